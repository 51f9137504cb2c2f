package courseschema

import (
	"encoding/json"
	"sort"

	"curriculum-backend/pkg/utils"
)

// Lesson is a normalized lesson with migrated content.
type Lesson struct {
	ID                string
	Title             string
	Slug              string
	Type              ContentType
	Order             int
	EstimatedDuration *int
	Duration          string
	Content           LessonContent
	Extensions        map[string]any
}

// Module owns an ordered list of lessons. EstimatedDuration is always the sum
// of its lessons' estimates.
type Module struct {
	ID                string
	Title             string
	Slug              string
	Order             int
	EstimatedDuration int
	Duration          string
	Lessons           []Lesson
	Extensions        map[string]any
}

// Chapter is the player's read-only projection of a module.
type Chapter struct {
	ID                string
	Title             string
	Slug              string
	Order             int
	EstimatedDuration int
	Duration          string
	Lessons           []Lesson
}

// Course is the root of a normalized course tree.
type Course struct {
	ID                string
	Title             string
	Slug              string
	LessonCount       int
	EstimatedDuration int
	Duration          string
	Modules           []Module
	Chapters          []Chapter
	Extensions        map[string]any
}

var (
	courseKeys = keySet("id", "title", "slug", "modules", "chapters", "lessons",
		"estimatedDuration", "estimated_duration", "duration")
	moduleKeys = keySet("id", "title", "slug", "order", "lessons",
		"estimatedDuration", "estimated_duration", "duration")
	lessonKeys = keySet("id", "title", "slug", "type", "order",
		"estimatedDuration", "estimated_duration", "duration", "content", "content_json")
)

// Normalizer imposes hierarchy-wide invariants on a course tree and migrates
// every lesson's content. It is stateless and safe for concurrent use.
type Normalizer struct {
	migrator *Migrator
}

func NewNormalizer(migrator *Migrator) *Normalizer {
	if migrator == nil {
		migrator = defaultMigrator
	}
	return &Normalizer{migrator: migrator}
}

var defaultNormalizer = NewNormalizer(defaultMigrator)

// NormalizeCourse normalizes raw with the default schema version.
func NormalizeCourse(raw any) Course {
	return defaultNormalizer.Normalize(raw)
}

func (n *Normalizer) Normalize(raw any) Course {
	course, _ := n.NormalizeWithReports(raw)
	return course
}

// NormalizeWithReports also returns one migration report per lesson, in
// output order.
func (n *Normalizer) NormalizeWithReports(raw any) (Course, []MigrationReport) {
	m := coerceCourse(raw)
	course := Course{
		Extensions: extensionsFrom(m, courseKeys),
	}
	course.ID, _ = identifier(m["id"])
	course.Title, _ = nonEmptyString(m, "title")
	course.Slug = deriveSlug(m)

	type moduleWithReports struct {
		module  Module
		reports []MigrationReport
	}

	rawModules, _ := asSlice(m["modules"])
	normalized := make([]moduleWithReports, 0, len(rawModules))
	for i, item := range rawModules {
		moduleMap, ok := asMap(item)
		if !ok {
			continue
		}
		module, moduleReports := n.normalizeModule(moduleMap, i)
		normalized = append(normalized, moduleWithReports{module: module, reports: moduleReports})
	}
	sort.SliceStable(normalized, func(a, b int) bool {
		return normalized[a].module.Order < normalized[b].module.Order
	})

	var reports []MigrationReport
	course.Modules = make([]Module, 0, len(normalized))
	course.Chapters = make([]Chapter, 0, len(normalized))
	for _, entry := range normalized {
		module := entry.module
		course.Modules = append(course.Modules, module)
		reports = append(reports, entry.reports...)
		course.LessonCount += len(module.Lessons)
		course.EstimatedDuration += module.EstimatedDuration
		course.Chapters = append(course.Chapters, Chapter{
			ID:                module.ID,
			Title:             module.Title,
			Slug:              module.Slug,
			Order:             module.Order,
			EstimatedDuration: module.EstimatedDuration,
			Duration:          module.Duration,
			Lessons:           module.Lessons,
		})
	}

	if display, ok := nonEmptyString(m, "duration"); ok {
		course.Duration = display
	} else {
		course.Duration = FormatMinutes(course.EstimatedDuration)
	}

	return course, reports
}

func (n *Normalizer) normalizeModule(m map[string]any, index int) (Module, []MigrationReport) {
	module := Module{
		Extensions: extensionsFrom(m, moduleKeys),
		Order:      orderOf(m, index),
	}
	module.ID, _ = identifier(m["id"])
	module.Title, _ = nonEmptyString(m, "title")
	module.Slug = deriveSlug(m)

	rawLessons, _ := asSlice(m["lessons"])
	module.Lessons = make([]Lesson, 0, len(rawLessons))
	reports := make([]MigrationReport, 0, len(rawLessons))
	for i, item := range rawLessons {
		lessonMap, ok := asMap(item)
		if !ok {
			continue
		}
		lesson, report := n.normalizeLesson(lessonMap, i)
		module.Lessons = append(module.Lessons, lesson)
		reports = append(reports, report)
	}
	sortLessons(module.Lessons, reports)

	for _, lesson := range module.Lessons {
		if lesson.EstimatedDuration != nil {
			module.EstimatedDuration += *lesson.EstimatedDuration
		}
	}
	if display, ok := nonEmptyString(m, "duration"); ok {
		module.Duration = display
	} else {
		module.Duration = FormatMinutes(module.EstimatedDuration)
	}
	return module, reports
}

func (n *Normalizer) normalizeLesson(m map[string]any, index int) (Lesson, MigrationReport) {
	lesson := Lesson{
		Extensions: extensionsFrom(m, lessonKeys),
		Order:      orderOf(m, index),
	}
	lesson.ID, _ = identifier(m["id"])
	lesson.Title, _ = nonEmptyString(m, "title")
	lesson.Slug = deriveSlug(m)

	rawContent, ok := m["content_json"]
	if !ok || rawContent == nil {
		rawContent = m["content"]
	}
	content, report := n.migrator.MigrateWithReport(rawContent)
	lesson.Content = content

	if t, ok := nonEmptyString(m, "type"); ok {
		lesson.Type = ContentType(t)
	} else {
		lesson.Type = content.Type
	}

	for _, key := range []string{"estimatedDuration", "estimated_duration", "duration"} {
		if minutes, ok := ParseDurationToMinutes(m[key]); ok {
			lesson.EstimatedDuration = intPtr(minutes)
			break
		}
	}
	if display, ok := nonEmptyString(m, "duration"); ok {
		lesson.Duration = display
	} else if lesson.EstimatedDuration != nil {
		lesson.Duration = FormatMinutes(*lesson.EstimatedDuration)
	}

	return lesson, report
}

// sortLessons orders lessons by Order, keeping input order for ties, and
// applies the same permutation to their reports.
func sortLessons(lessons []Lesson, reports []MigrationReport) {
	idx := make([]int, len(lessons))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lessons[idx[a]].Order < lessons[idx[b]].Order
	})
	sortedLessons := make([]Lesson, len(lessons))
	sortedReports := make([]MigrationReport, len(reports))
	for to, from := range idx {
		sortedLessons[to] = lessons[from]
		if from < len(reports) {
			sortedReports[to] = reports[from]
		}
	}
	copy(lessons, sortedLessons)
	copy(reports, sortedReports)
}

func orderOf(m map[string]any, index int) int {
	if order, ok := asInt(m["order"]); ok {
		return order
	}
	return index + 1
}

// deriveSlug slugifies slug, then title, then id, taking the first one
// present.
func deriveSlug(m map[string]any) string {
	if s, ok := nonEmptyString(m, "slug", "title"); ok {
		return utils.GenerateSlug(s)
	}
	if id, ok := identifier(m["id"]); ok {
		return utils.GenerateSlug(id)
	}
	return ""
}

func coerceCourse(raw any) map[string]any {
	switch v := raw.(type) {
	case Course:
		return v.Map()
	case *Course:
		if v == nil {
			return map[string]any{}
		}
		return v.Map()
	}
	return coerceContent(raw)
}

func (l Lesson) Map() map[string]any {
	out := make(map[string]any, len(l.Extensions)+8)
	for k, v := range l.Extensions {
		out[k] = v
	}
	putString(out, "id", l.ID)
	putString(out, "title", l.Title)
	putString(out, "slug", l.Slug)
	putString(out, "type", string(l.Type))
	putString(out, "duration", l.Duration)
	out["order"] = l.Order
	if l.EstimatedDuration != nil {
		out["estimatedDuration"] = *l.EstimatedDuration
	}
	out["content"] = l.Content.Map()
	return out
}

func (m Module) Map() map[string]any {
	out := make(map[string]any, len(m.Extensions)+7)
	for k, v := range m.Extensions {
		out[k] = v
	}
	putString(out, "id", m.ID)
	putString(out, "title", m.Title)
	putString(out, "slug", m.Slug)
	putString(out, "duration", m.Duration)
	out["order"] = m.Order
	out["estimatedDuration"] = m.EstimatedDuration
	out["lessons"] = lessonMaps(m.Lessons)
	return out
}

func (c Chapter) Map() map[string]any {
	out := make(map[string]any, 7)
	putString(out, "id", c.ID)
	putString(out, "title", c.Title)
	putString(out, "slug", c.Slug)
	putString(out, "duration", c.Duration)
	out["order"] = c.Order
	out["estimatedDuration"] = c.EstimatedDuration
	out["lessons"] = lessonMaps(c.Lessons)
	return out
}

func (c Course) Map() map[string]any {
	out := make(map[string]any, len(c.Extensions)+8)
	for k, v := range c.Extensions {
		out[k] = v
	}
	putString(out, "id", c.ID)
	putString(out, "title", c.Title)
	putString(out, "slug", c.Slug)
	putString(out, "duration", c.Duration)
	out["lessons"] = c.LessonCount
	out["estimatedDuration"] = c.EstimatedDuration

	modules := make([]any, 0, len(c.Modules))
	for _, module := range c.Modules {
		modules = append(modules, module.Map())
	}
	out["modules"] = modules

	chapters := make([]any, 0, len(c.Chapters))
	for _, chapter := range c.Chapters {
		chapters = append(chapters, chapter.Map())
	}
	out["chapters"] = chapters
	return out
}

func (l Lesson) MarshalJSON() ([]byte, error)  { return json.Marshal(l.Map()) }
func (m Module) MarshalJSON() ([]byte, error)  { return json.Marshal(m.Map()) }
func (c Chapter) MarshalJSON() ([]byte, error) { return json.Marshal(c.Map()) }
func (c Course) MarshalJSON() ([]byte, error)  { return json.Marshal(c.Map()) }

func lessonMaps(lessons []Lesson) []any {
	out := make([]any, 0, len(lessons))
	for _, lesson := range lessons {
		out = append(out, lesson.Map())
	}
	return out
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

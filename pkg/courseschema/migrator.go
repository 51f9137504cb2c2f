package courseschema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSchemaVersion is the content schema version stamped by
// MigrateLessonContent.
const DefaultSchemaVersion = 1

// Migrator rewrites lesson content of any historical shape into the canonical
// form of one schema version. A Migrator has no mutable state and is safe for
// concurrent use.
type Migrator struct {
	SchemaVersion int
}

// MigrationReport describes what a migration pass did.
type MigrationReport struct {
	// Legacy is true when the input carried no schema version and went
	// through legacy normalization.
	Legacy        bool
	SourceVersion int
	Shape         LegacyShape
}

func NewMigrator(schemaVersion int) *Migrator {
	if schemaVersion <= 0 {
		schemaVersion = DefaultSchemaVersion
	}
	return &Migrator{SchemaVersion: schemaVersion}
}

var defaultMigrator = NewMigrator(DefaultSchemaVersion)

// MigrateLessonContent migrates raw content to DefaultSchemaVersion.
func MigrateLessonContent(raw any) LessonContent {
	return defaultMigrator.Migrate(raw)
}

// Migrate never fails: input that is not an object is treated as an empty
// object and yields an empty canonical shell.
func (m *Migrator) Migrate(raw any) LessonContent {
	content, _ := m.MigrateWithReport(raw)
	return content
}

func (m *Migrator) MigrateWithReport(raw any) (LessonContent, MigrationReport) {
	content := flattenBody(coerceContent(raw))

	report := MigrationReport{Shape: LegacyShapeUnknown}
	version, versioned := schemaVersionOf(content)
	if versioned {
		report.SourceVersion = version
	} else {
		report.Legacy = true
		report.Shape = normalizeLegacy(content)
	}

	delete(content, "schemaVersion")
	content["schema_version"] = m.version()

	return decodeLessonContent(content), report
}

// DetectShape reports the legacy layout raw would be migrated from. It reads
// the record through the same decoding and body flattening as Migrate, so
// wrapped and JSON-string records are detected the way they migrate. The
// caller's value is not modified.
func DetectShape(raw any) LegacyShape {
	return normalizeLegacy(flattenBody(coerceContent(raw)))
}

func (m *Migrator) version() int {
	if m == nil || m.SchemaVersion <= 0 {
		return DefaultSchemaVersion
	}
	return m.SchemaVersion
}

// coerceContent returns a top-level copy of raw so the caller's value is
// never modified.
func coerceContent(raw any) map[string]any {
	switch v := raw.(type) {
	case LessonContent:
		return v.Map()
	case *LessonContent:
		if v == nil {
			return map[string]any{}
		}
		return v.Map()
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case string:
		return decodeObject([]byte(v))
	}
	if m, ok := asMap(raw); ok {
		return shallowCopy(m)
	}
	return map[string]any{}
}

func decodeObject(data []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// flattenBody merges authoring-UI "body" wrappers into the outer object,
// innermost last, until no object-valued body remains. Body keys win, except
// that the outermost schema version beats nested ones.
func flattenBody(content map[string]any) map[string]any {
	if _, ok := asMap(content["body"]); !ok {
		return content
	}

	outerVersion, hasOuterVersion := content["schema_version"], has(content, "schema_version")
	if !hasOuterVersion && has(content, "schemaVersion") {
		outerVersion, hasOuterVersion = content["schemaVersion"], true
	}

	for {
		body, ok := asMap(content["body"])
		if !ok {
			break
		}
		delete(content, "body")
		for k, v := range body {
			content[k] = v
		}
	}

	if hasOuterVersion {
		delete(content, "schemaVersion")
		content["schema_version"] = outerVersion
	}
	return content
}

func schemaVersionOf(content map[string]any) (int, bool) {
	for _, key := range []string{"schema_version", "schemaVersion"} {
		v, ok := content[key]
		if !ok || v == nil {
			continue
		}
		if n, ok := asInt(v); ok {
			return n, true
		}
		if s, ok := v.(string); ok {
			var n int
			if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// normalizeLegacy rewrites version-0 records in place and returns the shape
// the record was detected as.
func normalizeLegacy(content map[string]any) LegacyShape {
	aliasText(content)

	if _, ok := nonEmptyString(content, "prompt"); !ok {
		if prompt, ok := nonEmptyString(content, "reflectionPrompt"); ok {
			content["prompt"] = prompt
		}
	}
	delete(content, "reflectionPrompt")

	if s, ok := content["videoDuration"].(string); ok {
		if seconds, ok := wholeSeconds(s); ok {
			content["videoDuration"] = seconds
		} else {
			delete(content, "videoDuration")
		}
	}

	if list, ok := asSlice(content["captions"]); ok {
		captions := normalizeCaptions(list)
		out := make([]any, 0, len(captions))
		for _, c := range captions {
			out = append(out, c.Map())
		}
		content["captions"] = out
	}

	hoistQuizQuestions(content)

	shape := DetectLegacyShape(content)
	if _, ok := nonEmptyString(content, "type"); !ok {
		if ct := shape.ContentType(); ct != "" {
			content["type"] = string(ct)
		}
	}

	if list, ok := asSlice(content["steps"]); ok {
		steps := normalizeSteps(list)
		out := make([]any, 0, len(steps))
		for _, s := range steps {
			out = append(out, s.Map())
		}
		content["steps"] = out
	}

	return shape
}

// aliasText folds the legacy body-text keys into textContent. An existing
// textContent wins over every alias.
func aliasText(content map[string]any) {
	if _, ok := nonEmptyString(content, "textContent"); !ok {
		if text, ok := nonEmptyString(content, "content", "html", "markdown"); ok {
			content["textContent"] = text
		}
	}
	for _, key := range []string{"content", "html", "markdown"} {
		if _, ok := content[key].(string); ok {
			delete(content, key)
		}
	}
}

func hoistQuizQuestions(content map[string]any) {
	if _, ok := asSlice(content["questions"]); ok {
		return
	}
	quiz, ok := asMap(content["quiz"])
	if !ok {
		return
	}
	questions, ok := asSlice(quiz["questions"])
	if !ok {
		return
	}
	content["questions"] = questions

	rest := shallowCopy(quiz)
	delete(rest, "questions")
	if len(rest) == 0 {
		delete(content, "quiz")
		return
	}
	content["quiz"] = rest
}

// normalizeCaptions accepts {startTime,endTime,text}, {start,end,content}
// and {from,to,caption} entries. Non-object entries are dropped.
func normalizeCaptions(list []any) []Caption {
	out := make([]Caption, 0, len(list))
	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		c := Caption{}
		c.StartTime = firstFloat(m, "startTime", "start", "from")
		c.EndTime = firstFloat(m, "endTime", "end", "to")
		c.Text, _ = nonEmptyString(m, "text", "content", "caption")
		out = append(out, c)
	}
	return out
}

func firstFloat(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if f, ok := asFloat(m[key]); ok {
			return f
		}
	}
	return 0
}

// normalizeSteps maps interactive steps onto {id,title,body}. Missing ids
// and titles default to "step_N" and "Step N".
func normalizeSteps(list []any) []InteractiveStep {
	out := make([]InteractiveStep, 0, len(list))
	for _, item := range list {
		n := len(out) + 1
		step := InteractiveStep{
			ID:    fmt.Sprintf("step_%d", n),
			Title: fmt.Sprintf("Step %d", n),
		}
		switch v := item.(type) {
		case string:
			step.Body = v
		default:
			m, ok := asMap(item)
			if !ok {
				continue
			}
			if id, ok := identifier(m["id"]); ok {
				step.ID = id
			}
			if title, ok := nonEmptyString(m, "title", "heading"); ok {
				step.Title = title
			}
			step.Body, _ = nonEmptyString(m, "body", "content", "text")
		}
		out = append(out, step)
	}
	return out
}

// decodeLessonContent projects a content map onto the typed canonical form.
// Questions are re-canonicalized and video re-derived on every call; both
// are the identity on canonical input.
func decodeLessonContent(m map[string]any) LessonContent {
	c := LessonContent{
		Extensions: extensionsFrom(m, lessonContentKeys),
	}
	if v, ok := asInt(m["schema_version"]); ok {
		c.SchemaVersion = v
	}
	if t, ok := nonEmptyString(m, "type"); ok {
		c.Type = ContentType(strings.TrimSpace(t))
	}
	c.TextContent, _ = nonEmptyString(m, "textContent")
	c.Prompt, _ = nonEmptyString(m, "prompt")
	if seconds, ok := wholeSeconds(m["videoDuration"]); ok {
		c.VideoDuration = intPtr(seconds)
	}
	if list, ok := asSlice(m["captions"]); ok {
		c.Captions = normalizeCaptions(list)
	}
	if list, ok := asSlice(m["questions"]); ok {
		c.Questions = CanonicalizeQuestions(list)
	}
	c.Video = DeriveVideo(m)
	c.Instructions = instructionsText(m["instructions"])
	if list, ok := asSlice(m["steps"]); ok {
		c.Steps = normalizeSteps(list)
	}
	return c
}

func instructionsText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	list, ok := asSlice(v)
	if !ok {
		return ""
	}
	lines := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

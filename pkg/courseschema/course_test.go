package courseschema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleCourse() map[string]any {
	return map[string]any{
		"id":       7,
		"title":    "Go for Beginners!",
		"category": "programming",
		"modules": []any{
			map[string]any{
				"title": "Second",
				"order": 2,
				"lessons": []any{
					map[string]any{"title": "Wrap up", "estimatedDuration": 15, "content": map[string]any{"reflectionPrompt": "Thoughts?"}},
				},
			},
			map[string]any{
				"title": "First",
				"order": 1,
				"lessons": []any{
					map[string]any{"title": "Welcome", "duration": "10 min", "content": map[string]any{"videoUrl": "https://youtu.be/abc123"}},
					map[string]any{"title": "Reading", "estimated_duration": "20", "content_json": `{"html":"<p>x</p>"}`},
				},
			},
			"not a module",
		},
	}
}

func TestNormalizeCourseAggregates(t *testing.T) {
	course := NormalizeCourse(sampleCourse())

	if course.ID != "7" || course.Slug != "go-for-beginners" {
		t.Fatalf("unexpected identity %q / %q", course.ID, course.Slug)
	}
	if course.LessonCount != 3 {
		t.Fatalf("expected 3 lessons, got %d", course.LessonCount)
	}
	if course.EstimatedDuration != 45 || course.Duration != "45 min" {
		t.Fatalf("expected 45 minutes, got %d / %q", course.EstimatedDuration, course.Duration)
	}
	if len(course.Modules) != 2 {
		t.Fatalf("expected malformed module to be dropped, got %d modules", len(course.Modules))
	}
	if course.Modules[0].Title != "First" || course.Modules[0].EstimatedDuration != 30 {
		t.Fatalf("expected modules sorted by order, got %+v", course.Modules[0])
	}
	if course.Modules[0].Duration != "30 min" || course.Modules[1].Duration != "15 min" {
		t.Fatalf("unexpected module durations %q / %q", course.Modules[0].Duration, course.Modules[1].Duration)
	}
	if course.Extensions["category"] != "programming" {
		t.Fatalf("expected extension fields to pass through, got %v", course.Extensions)
	}
}

func TestNormalizeCourseIgnoresOutOfRangeDuration(t *testing.T) {
	course := NormalizeCourse(map[string]any{
		"title": "Huge",
		"modules": []any{map[string]any{"lessons": []any{
			map[string]any{"title": "A", "estimatedDuration": 1e19},
			map[string]any{"title": "B", "estimatedDuration": 10},
		}}},
	})

	if got := course.Modules[0].Lessons[0].EstimatedDuration; got != nil {
		t.Fatalf("expected out-of-range duration to be dropped, got %d", *got)
	}
	if course.EstimatedDuration != 10 || course.Duration != "10 min" {
		t.Fatalf("expected 10 minutes, got %d / %q", course.EstimatedDuration, course.Duration)
	}
}

func TestNormalizeCourseLessons(t *testing.T) {
	course := NormalizeCourse(sampleCourse())
	lessons := course.Modules[0].Lessons

	welcome := lessons[0]
	if welcome.Order != 1 || welcome.Slug != "welcome" {
		t.Fatalf("unexpected welcome lesson %+v", welcome)
	}
	if welcome.EstimatedDuration == nil || *welcome.EstimatedDuration != 10 || welcome.Duration != "10 min" {
		t.Fatalf("expected duration parsed from display string, got %v / %q", welcome.EstimatedDuration, welcome.Duration)
	}
	if welcome.Type != ContentTypeVideo || welcome.Content.Video == nil {
		t.Fatalf("expected migrated video content, got %+v", welcome.Content)
	}

	reading := lessons[1]
	if reading.Order != 2 || reading.Content.TextContent != "<p>x</p>" {
		t.Fatalf("expected content_json string to be decoded, got %+v", reading)
	}
	if reading.Duration != "20 min" {
		t.Fatalf("expected display duration from estimate, got %q", reading.Duration)
	}
	if reading.Content.SchemaVersion != DefaultSchemaVersion {
		t.Fatalf("expected stamped content, got version %d", reading.Content.SchemaVersion)
	}
}

func TestNormalizeCourseChapters(t *testing.T) {
	course := NormalizeCourse(sampleCourse())

	if len(course.Chapters) != len(course.Modules) {
		t.Fatalf("expected one chapter per module, got %d", len(course.Chapters))
	}
	for i, chapter := range course.Chapters {
		module := course.Modules[i]
		if chapter.Title != module.Title || chapter.EstimatedDuration != module.EstimatedDuration {
			t.Fatalf("chapter %d does not mirror its module: %+v", i, chapter)
		}
		if len(chapter.Lessons) != len(module.Lessons) {
			t.Fatalf("chapter %d has %d lessons, want %d", i, len(chapter.Lessons), len(module.Lessons))
		}
	}
}

func TestNormalizeCourseOrderFallback(t *testing.T) {
	course := NormalizeCourse(map[string]any{
		"modules": []any{
			map[string]any{
				"lessons": []any{
					map[string]any{"title": "a"},
					map[string]any{"title": "b"},
					map[string]any{"title": "c"},
				},
			},
		},
	})

	for i, lesson := range course.Modules[0].Lessons {
		if lesson.Order != i+1 {
			t.Fatalf("lesson %q has order %d, want %d", lesson.Title, lesson.Order, i+1)
		}
	}
	if course.Modules[0].Order != 1 {
		t.Fatalf("expected module order 1, got %d", course.Modules[0].Order)
	}
}

func TestNormalizeCourseSortIsStable(t *testing.T) {
	course := NormalizeCourse(map[string]any{
		"modules": []any{
			map[string]any{
				"lessons": []any{
					map[string]any{"title": "late", "order": 5},
					map[string]any{"title": "tie-one", "order": 2},
					map[string]any{"title": "tie-two", "order": 2},
				},
			},
		},
	})

	var titles []string
	for _, lesson := range course.Modules[0].Lessons {
		titles = append(titles, lesson.Title)
	}
	if diff := cmp.Diff([]string{"tie-one", "tie-two", "late"}, titles); diff != "" {
		t.Fatalf("unexpected lesson order (-want +got):\n%s", diff)
	}
}

func TestNormalizeCourseKeepsExplicitDuration(t *testing.T) {
	course := NormalizeCourse(map[string]any{
		"duration": "about an hour",
		"modules": []any{
			map[string]any{"duration": "short", "lessons": []any{map[string]any{"estimatedDuration": 5}}},
		},
	})
	if course.Duration != "about an hour" || course.Modules[0].Duration != "short" {
		t.Fatalf("expected explicit durations to be kept, got %q / %q", course.Duration, course.Modules[0].Duration)
	}
	if course.EstimatedDuration != 5 {
		t.Fatalf("expected estimate to be recomputed, got %d", course.EstimatedDuration)
	}
}

func TestNormalizeCourseSlugFallsBackToID(t *testing.T) {
	course := NormalizeCourse(map[string]any{"id": "Course_42"})
	if course.Slug != "course-42" {
		t.Fatalf("expected slug from id, got %q", course.Slug)
	}
	if course.Modules == nil || course.Chapters == nil {
		t.Fatal("expected empty, non-nil collections")
	}
}

func TestNormalizeCourseEmptyInput(t *testing.T) {
	for _, input := range []any{nil, "", 12, []any{}} {
		course := NormalizeCourse(input)
		if course.LessonCount != 0 || len(course.Modules) != 0 || course.Duration != "" {
			t.Fatalf("expected empty course for %#v, got %+v", input, course)
		}
	}
}

func TestNormalizeCourseIsIdempotent(t *testing.T) {
	once := NormalizeCourse(sampleCourse())
	twice := NormalizeCourse(once.Map())
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second normalization changed the course (-once +twice):\n%s", diff)
	}

	raw, err := json.Marshal(once)
	if err != nil {
		t.Fatalf("marshal course: %v", err)
	}
	fromJSON := NormalizeCourse(json.RawMessage(raw))
	again, _ := json.Marshal(fromJSON)
	if string(again) != string(raw) {
		t.Fatalf("expected stored JSON to be stable\nfirst:  %s\nsecond: %s", raw, again)
	}
}

func TestNormalizeWithReports(t *testing.T) {
	normalizer := NewNormalizer(NewMigrator(2))
	course, reports := normalizer.NormalizeWithReports(sampleCourse())

	if len(reports) != course.LessonCount {
		t.Fatalf("expected one report per lesson, got %d", len(reports))
	}
	if reports[0].Shape != LegacyShapeVideo || reports[1].Shape != LegacyShapeText || reports[2].Shape != LegacyShapeReflection {
		t.Fatalf("expected reports in output order, got %+v", reports)
	}
	if course.Modules[0].Lessons[0].Content.SchemaVersion != 2 {
		t.Fatalf("expected injected schema version, got %d", course.Modules[0].Lessons[0].Content.SchemaVersion)
	}
}

package courseschema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func legacyFixtures() map[string]map[string]any {
	return map[string]map[string]any{
		"video": {
			"videoUrl":      "https://youtu.be/abc123",
			"videoDuration": "125",
			"captions": []any{
				map[string]any{"start": 0.0, "end": 5.0, "content": "hi"},
				map[string]any{"from": 5.0, "to": 9.5, "caption": "there"},
				"garbage",
			},
			"transcript": "hi there",
		},
		"text": {
			"html":  "<p>Read me</p>",
			"title": "Reading",
		},
		"quiz": {
			"quiz": map[string]any{
				"title": "Check",
				"questions": []any{
					map[string]any{"question": "2 + 2?", "options": []any{"3", "4"}, "correctAnswer": 1.0},
					map[string]any{"prompt": "Colors", "choices": []any{
						map[string]any{"label": "red", "correct": true},
						map[string]any{"label": "blue", "correct": true},
					}},
				},
			},
		},
		"reflection": {
			"reflectionPrompt": "What did you learn?",
		},
		"interactive": {
			"instructions": []any{"Open the editor", "Run the tests"},
			"steps": []any{
				"Just read",
				map[string]any{"heading": "Try", "text": "Edit the file"},
				map[string]any{"id": "final", "title": "Finish", "content": "Submit"},
			},
		},
		"body wrapper": {
			"body": map[string]any{"content": "wrapped", "schemaVersion": 9},
		},
		"nested body": {
			"type": "text",
			"body": map[string]any{
				"note": "outer",
				"body": map[string]any{"textContent": "deep"},
			},
		},
		"empty": {},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	for name, fixture := range legacyFixtures() {
		t.Run(name, func(t *testing.T) {
			once := MigrateLessonContent(fixture)
			twice := MigrateLessonContent(once.Map())
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("second migration changed content (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestMigrateIsIdempotentThroughJSON(t *testing.T) {
	for name, fixture := range legacyFixtures() {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(fixture)
			if err != nil {
				t.Fatalf("marshal fixture: %v", err)
			}
			once := MigrateLessonContent(string(raw))

			stored, err := json.Marshal(once)
			if err != nil {
				t.Fatalf("marshal migrated content: %v", err)
			}
			twice := MigrateLessonContent(json.RawMessage(stored))

			onceJSON, _ := json.Marshal(once)
			twiceJSON, _ := json.Marshal(twice)
			if string(onceJSON) != string(twiceJSON) {
				t.Fatalf("expected identical JSON\nonce:  %s\ntwice: %s", onceJSON, twiceJSON)
			}
		})
	}
}

func TestMigrateStampsCurrentVersion(t *testing.T) {
	inputs := []any{
		map[string]any{},
		map[string]any{"schema_version": 0, "type": "text"},
		map[string]any{"schemaVersion": "3"},
		map[string]any{"schema_version": 7},
		"not json",
		42,
		nil,
	}
	migrator := NewMigrator(4)
	for _, input := range inputs {
		if got := migrator.Migrate(input).SchemaVersion; got != 4 {
			t.Fatalf("expected version 4 for %#v, got %d", input, got)
		}
	}
	if got := MigrateLessonContent(nil).SchemaVersion; got != DefaultSchemaVersion {
		t.Fatalf("expected default version, got %d", got)
	}
}

func TestMigrateNonObjectYieldsEmptyShell(t *testing.T) {
	content := MigrateLessonContent([]any{1, 2})
	want := LessonContent{SchemaVersion: DefaultSchemaVersion}
	if diff := cmp.Diff(want, content); diff != "" {
		t.Fatalf("unexpected shell (-want +got):\n%s", diff)
	}
	if content.Type.Known() {
		t.Fatal("expected empty shell to have unknown type")
	}
}

func TestMigrateLegacyVideo(t *testing.T) {
	content, report := defaultMigrator.MigrateWithReport(legacyFixtures()["video"])

	if !report.Legacy || report.Shape != LegacyShapeVideo {
		t.Fatalf("unexpected report %+v", report)
	}
	if content.Type != ContentTypeVideo {
		t.Fatalf("expected inferred video type, got %q", content.Type)
	}
	if content.VideoDuration == nil || *content.VideoDuration != 125 {
		t.Fatalf("expected videoDuration 125, got %v", content.VideoDuration)
	}
	if content.Video == nil || content.Video.EmbedURL != "https://www.youtube.com/embed/abc123" {
		t.Fatalf("unexpected video %+v", content.Video)
	}
	if content.Video.DurationSeconds == nil || *content.Video.DurationSeconds != 125 {
		t.Fatalf("expected video duration to follow videoDuration, got %v", content.Video.DurationSeconds)
	}

	wantCaptions := []Caption{
		{StartTime: 0, EndTime: 5, Text: "hi"},
		{StartTime: 5, EndTime: 9.5, Text: "there"},
	}
	if diff := cmp.Diff(wantCaptions, content.Captions); diff != "" {
		t.Fatalf("unexpected captions (-want +got):\n%s", diff)
	}
	if content.Extensions["transcript"] != "hi there" {
		t.Fatalf("expected transcript to pass through, got %v", content.Extensions)
	}
}

func TestMigrateLegacyTextAndReflection(t *testing.T) {
	text := MigrateLessonContent(legacyFixtures()["text"])
	if text.Type != ContentTypeText || text.TextContent != "<p>Read me</p>" {
		t.Fatalf("unexpected text content %+v", text)
	}
	if _, ok := text.Map()["html"]; ok {
		t.Fatal("expected html alias to be consumed")
	}

	reflection := MigrateLessonContent(legacyFixtures()["reflection"])
	if reflection.Type != ContentTypeReflection || reflection.Prompt != "What did you learn?" {
		t.Fatalf("unexpected reflection content %+v", reflection)
	}
}

func TestMigrateLegacyQuiz(t *testing.T) {
	content := MigrateLessonContent(legacyFixtures()["quiz"])

	if content.Type != ContentTypeQuiz {
		t.Fatalf("expected quiz type, got %q", content.Type)
	}
	if len(content.Questions) != 2 {
		t.Fatalf("expected hoisted questions, got %d", len(content.Questions))
	}

	first := content.Questions[0]
	if !first.Options[1].Correct || *first.CorrectAnswerIndex != 1 {
		t.Fatalf("unexpected first question %+v", first)
	}
	if diff := cmp.Diff([]string{first.Options[1].ID}, first.CorrectOptionIDs); diff != "" {
		t.Fatalf("unexpected correctOptionIds (-want +got):\n%s", diff)
	}

	second := content.Questions[1]
	if second.ID != "q_2" {
		t.Fatalf("expected id q_2, got %q", second.ID)
	}
	if diff := cmp.Diff([]string{"q_2_opt_0", "q_2_opt_1"}, second.CorrectOptionIDs); diff != "" {
		t.Fatalf("expected both options correct (-want +got):\n%s", diff)
	}
	if *second.CorrectAnswerIndex != 0 {
		t.Fatalf("expected first correct option index, got %d", *second.CorrectAnswerIndex)
	}

	quiz, ok := content.Extensions["quiz"].(map[string]any)
	if !ok || quiz["title"] != "Check" {
		t.Fatalf("expected quiz metadata to remain, got %v", content.Extensions["quiz"])
	}
	if _, ok := quiz["questions"]; ok {
		t.Fatal("expected questions to be removed from quiz wrapper")
	}
}

func TestMigrateLegacyInteractive(t *testing.T) {
	content := MigrateLessonContent(legacyFixtures()["interactive"])

	if content.Type != ContentTypeInteractive {
		t.Fatalf("expected interactive type, got %q", content.Type)
	}
	if content.Instructions != "Open the editor\nRun the tests" {
		t.Fatalf("unexpected instructions %q", content.Instructions)
	}
	want := []InteractiveStep{
		{ID: "step_1", Title: "Step 1", Body: "Just read"},
		{ID: "step_2", Title: "Try", Body: "Edit the file"},
		{ID: "final", Title: "Finish", Body: "Submit"},
	}
	if diff := cmp.Diff(want, content.Steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
}

func TestMigrateFlattensBody(t *testing.T) {
	content := MigrateLessonContent(map[string]any{
		"type":           "video",
		"schema_version": 1,
		"body":           map[string]any{"videoUrl": "x", "transcript": "y"},
	})

	out := content.Map()
	if _, ok := out["body"]; ok {
		t.Fatal("expected body wrapper to be removed")
	}
	if out["videoUrl"] != "x" || out["transcript"] != "y" {
		t.Fatalf("expected body keys at top level, got %v", out)
	}
	if content.Video == nil || content.Video.URL != "x" {
		t.Fatalf("expected video to be derived from flattened url, got %+v", content.Video)
	}
}

func TestMigrateFlattensNestedBody(t *testing.T) {
	content := MigrateLessonContent(legacyFixtures()["nested body"])

	if content.TextContent != "deep" {
		t.Fatalf("expected innermost text content, got %q", content.TextContent)
	}
	out := content.Map()
	if _, ok := out["body"]; ok {
		t.Fatalf("expected every body wrapper to be removed, got %v", out)
	}
	if out["note"] != "outer" {
		t.Fatalf("expected intermediate body keys to survive, got %v", out)
	}
}

func TestMigrateOuterVersionBeatsBody(t *testing.T) {
	_, report := defaultMigrator.MigrateWithReport(map[string]any{
		"schema_version": 1,
		"body":           map[string]any{"schema_version": 5, "content": "kept as-is"},
	})
	if report.Legacy || report.SourceVersion != 1 {
		t.Fatalf("expected outer version to gate migration, got %+v", report)
	}

	_, report = defaultMigrator.MigrateWithReport(legacyFixtures()["body wrapper"])
	if report.Legacy || report.SourceVersion != 9 {
		t.Fatalf("expected nested version to be used when outer is absent, got %+v", report)
	}
}

func TestMigrateVersionedSkipsLegacyNormalization(t *testing.T) {
	content := MigrateLessonContent(map[string]any{
		"schema_version": 1,
		"content":        "left alone",
		"videoUrl":       "https://vimeo.com/42",
	})

	if content.TextContent != "" || content.Type != "" {
		t.Fatalf("expected no aliasing or inference on versioned content, got %+v", content)
	}
	if content.Extensions["content"] != "left alone" {
		t.Fatalf("expected content to pass through, got %v", content.Extensions)
	}
	if content.Video == nil || content.Video.EmbedURL != "https://player.vimeo.com/video/42" {
		t.Fatalf("expected video derivation to run regardless of version, got %+v", content.Video)
	}
}

func TestMigrateDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"content": "hello", "reflectionPrompt": "p"}
	MigrateLessonContent(input)
	if input["content"] != "hello" || input["reflectionPrompt"] != "p" || len(input) != 2 {
		t.Fatalf("input was modified: %v", input)
	}
}

func TestLessonContentUnmarshalJSON(t *testing.T) {
	var content LessonContent
	if err := json.Unmarshal([]byte(`{"schema_version":1,"type":"text","textContent":"hi","extra":true}`), &content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Type != ContentTypeText || content.TextContent != "hi" || content.Extensions["extra"] != true {
		t.Fatalf("unexpected content %+v", content)
	}
}

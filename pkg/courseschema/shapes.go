package courseschema

// LegacyShape names the layout a pre-versioning record was authored in.
type LegacyShape string

const (
	LegacyShapeUnknown     LegacyShape = "unknown"
	LegacyShapeVideo       LegacyShape = "video"
	LegacyShapeText        LegacyShape = "text"
	LegacyShapeQuiz        LegacyShape = "quiz"
	LegacyShapeReflection  LegacyShape = "reflection"
	LegacyShapeInteractive LegacyShape = "interactive"
)

// ContentType returns the canonical type a shape migrates into, or "" for
// unknown shapes.
func (s LegacyShape) ContentType() ContentType {
	switch s {
	case LegacyShapeVideo:
		return ContentTypeVideo
	case LegacyShapeText:
		return ContentTypeText
	case LegacyShapeQuiz:
		return ContentTypeQuiz
	case LegacyShapeReflection:
		return ContentTypeReflection
	case LegacyShapeInteractive:
		return ContentTypeInteractive
	default:
		return ""
	}
}

type shapeDetector struct {
	shape LegacyShape
	match func(map[string]any) bool
}

// Order matters: a record with both a video URL and body text is a video.
var shapeDetectors = []shapeDetector{
	{shape: LegacyShapeVideo, match: hasVideoFields},
	{shape: LegacyShapeText, match: hasTextFields},
	{shape: LegacyShapeQuiz, match: hasQuizQuestions},
	{shape: LegacyShapeReflection, match: hasReflectionPrompt},
	{shape: LegacyShapeInteractive, match: hasInteractiveFields},
}

// DetectLegacyShape returns the first shape whose detector matches.
func DetectLegacyShape(content map[string]any) LegacyShape {
	for _, d := range shapeDetectors {
		if d.match(content) {
			return d.shape
		}
	}
	return LegacyShapeUnknown
}

func hasVideoFields(m map[string]any) bool {
	if _, ok := asMap(m["video"]); ok {
		return true
	}
	_, ok := nonEmptyString(m, "videoUrl", "videoSrc", "src")
	return ok
}

func hasTextFields(m map[string]any) bool {
	_, ok := nonEmptyString(m, "textContent", "content", "html", "markdown")
	return ok
}

func hasQuizQuestions(m map[string]any) bool {
	if _, ok := asSlice(m["questions"]); ok {
		return true
	}
	quiz, ok := asMap(m["quiz"])
	if !ok {
		return false
	}
	_, ok = asSlice(quiz["questions"])
	return ok
}

func hasReflectionPrompt(m map[string]any) bool {
	_, ok := nonEmptyString(m, "prompt", "reflectionPrompt")
	return ok
}

func hasInteractiveFields(m map[string]any) bool {
	return has(m, "instructions") || has(m, "steps") || has(m, "activity")
}

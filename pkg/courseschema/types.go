package courseschema

import "encoding/json"

// ContentType tags a lesson's canonical content.
type ContentType string

const (
	ContentTypeVideo       ContentType = "video"
	ContentTypeQuiz        ContentType = "quiz"
	ContentTypeText        ContentType = "text"
	ContentTypeReflection  ContentType = "reflection"
	ContentTypeInteractive ContentType = "interactive"
	ContentTypeResource    ContentType = "resource"
)

// Known reports whether t is one of the content types renderers understand.
// Anything else, including the empty type, is "unknown content".
func (t ContentType) Known() bool {
	switch t {
	case ContentTypeVideo, ContentTypeQuiz, ContentTypeText, ContentTypeReflection,
		ContentTypeInteractive, ContentTypeResource:
		return true
	default:
		return false
	}
}

// VideoType is the playback provider of a derived video.
type VideoType string

const (
	VideoTypeYouTube  VideoType = "youtube"
	VideoTypeVimeo    VideoType = "vimeo"
	VideoTypeLoom     VideoType = "loom"
	VideoTypeNative   VideoType = "native"
	VideoTypeExternal VideoType = "external"
)

// Source types of a derived video.
const (
	VideoSourceEmbed = "embed"
	VideoSourceFile  = "file"
	VideoSourceURL   = "url"
)

// VideoMetadata is always derived from legacy fields, never authored directly.
type VideoMetadata struct {
	Type            VideoType `json:"type"`
	URL             string    `json:"url"`
	EmbedURL        string    `json:"embedUrl,omitempty"`
	Provider        string    `json:"provider"`
	SourceType      string    `json:"sourceType"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
	Title           string    `json:"title,omitempty"`
}

func (v *VideoMetadata) Map() map[string]any {
	out := map[string]any{
		"type":       string(v.Type),
		"url":        v.URL,
		"provider":   v.Provider,
		"sourceType": v.SourceType,
	}
	if v.EmbedURL != "" {
		out["embedUrl"] = v.EmbedURL
	}
	if v.ThumbnailURL != "" {
		out["thumbnailUrl"] = v.ThumbnailURL
	}
	if v.DurationSeconds != nil {
		out["durationSeconds"] = *v.DurationSeconds
	}
	if v.Title != "" {
		out["title"] = v.Title
	}
	return out
}

// QuizOption keeps Correct and IsCorrect equal for readers of either field.
type QuizOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Correct   bool   `json:"correct"`
	IsCorrect bool   `json:"isCorrect"`
}

func (o QuizOption) Map() map[string]any {
	return map[string]any{
		"id":        o.ID,
		"text":      o.Text,
		"correct":   o.Correct,
		"isCorrect": o.IsCorrect,
	}
}

// QuizQuestion carries both Text and Prompt for older player builds.
// CorrectOptionIDs is the source of truth for correctness; every id in it
// names an entry of Options.
type QuizQuestion struct {
	ID                 string         `json:"id"`
	Text               string         `json:"text"`
	Prompt             string         `json:"prompt"`
	Options            []QuizOption   `json:"options"`
	CorrectAnswerIndex *int           `json:"correctAnswerIndex,omitempty"`
	CorrectOptionIDs   []string       `json:"correctOptionIds"`
	Explanation        string         `json:"explanation,omitempty"`
	Extensions         map[string]any `json:"-"`
}

func (q QuizQuestion) Map() map[string]any {
	out := make(map[string]any, len(q.Extensions)+7)
	for k, v := range q.Extensions {
		out[k] = v
	}
	options := make([]any, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, o.Map())
	}
	ids := make([]any, 0, len(q.CorrectOptionIDs))
	for _, id := range q.CorrectOptionIDs {
		ids = append(ids, id)
	}
	out["id"] = q.ID
	out["text"] = q.Text
	out["prompt"] = q.Prompt
	out["options"] = options
	out["correctOptionIds"] = ids
	if q.CorrectAnswerIndex != nil {
		out["correctAnswerIndex"] = *q.CorrectAnswerIndex
	}
	if q.Explanation != "" {
		out["explanation"] = q.Explanation
	}
	return out
}

func (q QuizQuestion) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Map())
}

// Caption times are in seconds.
type Caption struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
}

func (c Caption) Map() map[string]any {
	return map[string]any{"startTime": c.StartTime, "endTime": c.EndTime, "text": c.Text}
}

// InteractiveStep is one step of an interactive activity.
type InteractiveStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s InteractiveStep) Map() map[string]any {
	return map[string]any{"id": s.ID, "title": s.Title, "body": s.Body}
}

// LessonContent is the canonical lesson content. Fields the schema does not
// model travel in Extensions and are written back at the top level of the
// JSON object.
type LessonContent struct {
	SchemaVersion int
	Type          ContentType
	TextContent   string
	Prompt        string
	Video         *VideoMetadata
	VideoDuration *int
	Captions      []Caption
	Questions     []QuizQuestion
	Instructions  string
	Steps         []InteractiveStep
	Extensions    map[string]any
}

var lessonContentKeys = keySet(
	"schema_version", "type", "textContent", "prompt", "video", "videoDuration",
	"captions", "questions", "instructions", "steps",
)

// Map returns the content as a plain JSON-compatible map. Feeding it back to
// Migrate yields an equal value.
func (c LessonContent) Map() map[string]any {
	out := make(map[string]any, len(c.Extensions)+len(lessonContentKeys))
	for k, v := range c.Extensions {
		out[k] = v
	}
	out["schema_version"] = c.SchemaVersion
	if c.Type != "" {
		out["type"] = string(c.Type)
	}
	if c.TextContent != "" {
		out["textContent"] = c.TextContent
	}
	if c.Prompt != "" {
		out["prompt"] = c.Prompt
	}
	if c.Video != nil {
		out["video"] = c.Video.Map()
	}
	if c.VideoDuration != nil {
		out["videoDuration"] = *c.VideoDuration
	}
	if c.Captions != nil {
		captions := make([]any, 0, len(c.Captions))
		for _, caption := range c.Captions {
			captions = append(captions, caption.Map())
		}
		out["captions"] = captions
	}
	if c.Questions != nil {
		questions := make([]any, 0, len(c.Questions))
		for _, q := range c.Questions {
			questions = append(questions, q.Map())
		}
		out["questions"] = questions
	}
	if c.Instructions != "" {
		out["instructions"] = c.Instructions
	}
	if c.Steps != nil {
		steps := make([]any, 0, len(c.Steps))
		for _, step := range c.Steps {
			steps = append(steps, step.Map())
		}
		out["steps"] = steps
	}
	return out
}

func (c LessonContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON reads already-canonical content without migrating it.
func (c *LessonContent) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = decodeLessonContent(raw)
	return nil
}

package models

import (
	"encoding/json"

	"curriculum-backend/pkg/courseschema"
)

type ImportCoursesRequest struct {
	Courses []json.RawMessage `json:"courses" binding:"required,min=1"`
}

type BackfillRequest struct {
	BatchSize int `json:"batch_size" binding:"omitempty,min=1,max=5000"`
}

type CourseSlugParam struct {
	Slug string `uri:"slug" binding:"required,slug"`
}

// ImportResult reports the outcome of one record of a bulk import. Error is
// empty on success.
type ImportResult struct {
	Index    int    `json:"index"`
	Slug     string `json:"slug,omitempty"`
	CourseID uint   `json:"course_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ImportSummary struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []ImportResult `json:"results"`
}

type MigrationResponse struct {
	Content       courseschema.LessonContent `json:"content"`
	Shape         courseschema.LegacyShape   `json:"shape"`
	Legacy        bool                       `json:"legacy"`
	SourceVersion int                        `json:"source_version,omitempty"`
}

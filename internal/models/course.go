package models

import (
	"time"

	"gorm.io/datatypes"
)

// CourseRecord stores a normalized course. Document holds the full
// normalized tree; the scalar columns duplicate its aggregates for listing.
type CourseRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug              string         `gorm:"uniqueIndex;not null" json:"slug"`
	Title             string         `json:"title"`
	SourceID          string         `gorm:"index" json:"source_id,omitempty"`
	SchemaVersion     int            `gorm:"not null;index" json:"schema_version"`
	LessonCount       int            `gorm:"not null;default:0" json:"lessons"`
	EstimatedDuration int            `gorm:"not null;default:0" json:"estimated_duration"`
	Duration          string         `json:"duration"`
	Document          datatypes.JSON `gorm:"not null" json:"document"`
}

// LessonContentRecord is the migrated content of one lesson, addressed by
// its position in the normalized course.
type LessonContentRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CourseID       uint           `gorm:"not null;uniqueIndex:idx_lesson_contents_position" json:"course_id"`
	ModulePosition int            `gorm:"not null;uniqueIndex:idx_lesson_contents_position" json:"module_position"`
	LessonPosition int            `gorm:"not null;uniqueIndex:idx_lesson_contents_position" json:"lesson_position"`
	LessonSlug     string         `json:"lesson_slug"`
	Type           string         `gorm:"index" json:"type"`
	SchemaVersion  int            `gorm:"not null;index" json:"schema_version"`
	Content        datatypes.JSON `gorm:"not null" json:"content"`
}

func (LessonContentRecord) TableName() string {
	return "lesson_contents"
}

func (CourseRecord) TableName() string {
	return "courses"
}

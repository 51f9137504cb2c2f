package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"curriculum-backend/internal/models"
)

type CourseRepository interface {
	// Upsert inserts or replaces the course with the same slug together with
	// its lesson content rows, and fills course.ID.
	Upsert(ctx context.Context, course *models.CourseRecord, lessons []models.LessonContentRecord) error
	GetBySlug(ctx context.Context, slug string) (*models.CourseRecord, error)
	List(ctx context.Context, limit, offset int) ([]models.CourseRecord, error)
}

type LessonContentRepository interface {
	ListByCourse(ctx context.Context, courseID uint) ([]models.LessonContentRecord, error)
	// ListOutdated returns rows below schemaVersion with an id greater than
	// afterID, in id order.
	ListOutdated(ctx context.Context, schemaVersion int, afterID uint, limit int) ([]models.LessonContentRecord, error)
	UpdateContent(ctx context.Context, id uint, schemaVersion int, contentType string, content datatypes.JSON) error
	CountOutdated(ctx context.Context, schemaVersion int) (int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

type lessonContentRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func NewLessonContentRepository(db *gorm.DB) LessonContentRepository {
	return &lessonContentRepository{db: db}
}

func (r *courseRepository) Upsert(ctx context.Context, course *models.CourseRecord, lessons []models.LessonContentRecord) error {
	if r == nil || r.db == nil {
		return errors.New("course repository is not initialised")
	}
	if course == nil {
		return errors.New("course is required")
	}
	course.Slug = strings.TrimSpace(course.Slug)
	if course.Slug == "" {
		return errors.New("course slug is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "source_id", "schema_version", "lesson_count",
				"estimated_duration", "duration", "document", "updated_at",
			}),
		}).Create(course).Error
		if err != nil {
			return err
		}

		var stored models.CourseRecord
		if err := tx.Select("id", "created_at").Where("slug = ?", course.Slug).First(&stored).Error; err != nil {
			return err
		}
		course.ID = stored.ID
		course.CreatedAt = stored.CreatedAt

		if err := tx.Where("course_id = ?", course.ID).Delete(&models.LessonContentRecord{}).Error; err != nil {
			return err
		}
		if len(lessons) == 0 {
			return nil
		}
		for i := range lessons {
			lessons[i].ID = 0
			lessons[i].CourseID = course.ID
		}
		return tx.CreateInBatches(lessons, 100).Error
	})
}

func (r *courseRepository) GetBySlug(ctx context.Context, slug string) (*models.CourseRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	cleaned := strings.TrimSpace(slug)
	if cleaned == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var course models.CourseRecord
	if err := r.db.WithContext(ctx).Where("slug = ?", cleaned).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) List(ctx context.Context, limit, offset int) ([]models.CourseRecord, error) {
	courses := make([]models.CourseRecord, 0)
	if r == nil || r.db == nil {
		return courses, errors.New("course repository is not initialised")
	}
	query := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&courses).Error
	return courses, err
}

func (r *lessonContentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.LessonContentRecord, error) {
	lessons := make([]models.LessonContentRecord, 0)
	if r == nil || r.db == nil {
		return lessons, errors.New("lesson content repository is not initialised")
	}
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("module_position ASC").
		Order("lesson_position ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonContentRepository) ListOutdated(ctx context.Context, schemaVersion int, afterID uint, limit int) ([]models.LessonContentRecord, error) {
	lessons := make([]models.LessonContentRecord, 0)
	if r == nil || r.db == nil {
		return lessons, errors.New("lesson content repository is not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	err := r.db.WithContext(ctx).
		Where("schema_version < ? AND id > ?", schemaVersion, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonContentRepository) UpdateContent(ctx context.Context, id uint, schemaVersion int, contentType string, content datatypes.JSON) error {
	if r == nil || r.db == nil {
		return errors.New("lesson content repository is not initialised")
	}
	result := r.db.WithContext(ctx).
		Model(&models.LessonContentRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"schema_version": schemaVersion,
			"type":           contentType,
			"content":        content,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *lessonContentRepository) CountOutdated(ctx context.Context, schemaVersion int) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("lesson content repository is not initialised")
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LessonContentRecord{}).
		Where("schema_version < ?", schemaVersion).
		Count(&count).Error
	return count, err
}

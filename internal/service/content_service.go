package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"curriculum-backend/internal/models"
	"curriculum-backend/internal/repository"
	"curriculum-backend/pkg/cache"
	"curriculum-backend/pkg/courseschema"
	"curriculum-backend/pkg/logger"
)

type ContentServiceConfig struct {
	SchemaVersion     int
	CacheTTL          time.Duration
	ImportConcurrency int
	MaxImportBatch    int
}

// ContentService wraps the migration engine with persistence, caching and
// bulk operations.
type ContentService struct {
	courses repository.CourseRepository
	lessons repository.LessonContentRepository
	cache   *cache.Cache

	migrator   *courseschema.Migrator
	normalizer *courseschema.Normalizer

	cacheTTL          time.Duration
	importConcurrency int
	maxImportBatch    int
}

func NewContentService(
	courses repository.CourseRepository,
	lessons repository.LessonContentRepository,
	cacheService *cache.Cache,
	cfg ContentServiceConfig,
) *ContentService {
	initMetrics()

	if cfg.ImportConcurrency <= 0 {
		cfg.ImportConcurrency = 1
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	migrator := courseschema.NewMigrator(cfg.SchemaVersion)
	return &ContentService{
		courses:           courses,
		lessons:           lessons,
		cache:             cacheService,
		migrator:          migrator,
		normalizer:        courseschema.NewNormalizer(migrator),
		cacheTTL:          cfg.CacheTTL,
		importConcurrency: cfg.ImportConcurrency,
		maxImportBatch:    cfg.MaxImportBatch,
	}
}

func (s *ContentService) SchemaVersion() int {
	if s == nil || s.migrator == nil {
		return courseschema.DefaultSchemaVersion
	}
	return s.migrator.SchemaVersion
}

// MigrateLesson migrates one lesson content payload. Only a body that is not
// valid JSON is rejected; any JSON value migrates.
func (s *ContentService) MigrateLesson(ctx context.Context, raw any) (courseschema.LessonContent, courseschema.MigrationReport, error) {
	if s == nil || s.migrator == nil {
		return courseschema.LessonContent{}, courseschema.MigrationReport{}, errServiceNotConfigured
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return courseschema.LessonContent{}, courseschema.MigrationReport{}, err
	}

	content, report := s.migrator.MigrateWithReport(payload)
	observeMigrations(report)
	if report.Legacy {
		logger.FromContext(ctx).WithField("shape", report.Shape).Debug("Migrated legacy lesson content")
	}
	return content, report, nil
}

// NormalizeCourse normalizes a course payload. Results are cached by a digest
// of the input and the schema version they were produced for.
func (s *ContentService) NormalizeCourse(ctx context.Context, raw any) (courseschema.Course, error) {
	if s == nil || s.normalizer == nil {
		return courseschema.Course{}, errServiceNotConfigured
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return courseschema.Course{}, err
	}

	key := ""
	if s.cache.Enabled() {
		if digest, err := payloadDigest(payload); err == nil {
			key = cache.NormalizedCourseKey(s.SchemaVersion(), digest)
			var cached json.RawMessage
			if err := s.cache.Get(ctx, key, &cached); err == nil {
				cacheLookupsTotal.WithLabelValues("normalized", "hit").Inc()
				return s.normalizer.Normalize(cached), nil
			}
			cacheLookupsTotal.WithLabelValues("normalized", "miss").Inc()
		}
	}

	course := s.normalize(ctx, payload)

	if key != "" {
		if err := s.cache.Set(ctx, key, course, s.cacheTTL); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to cache normalized course")
		}
	}
	return course, nil
}

// SaveCourse normalizes a course and upserts it by slug with one content row
// per lesson.
func (s *ContentService) SaveCourse(ctx context.Context, raw any) (*models.CourseRecord, error) {
	if s == nil || s.normalizer == nil || s.courses == nil {
		return nil, errServiceNotConfigured
	}
	prepared, err := s.prepareCourse(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.storeCourse(ctx, prepared); err != nil {
		return nil, err
	}
	return prepared.record, nil
}

type preparedCourse struct {
	course  courseschema.Course
	record  *models.CourseRecord
	lessons []models.LessonContentRecord
}

func (s *ContentService) prepareCourse(ctx context.Context, raw any) (*preparedCourse, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	course := s.normalize(ctx, payload)
	if course.Slug == "" {
		return nil, newValidationError("course requires a slug, title or id")
	}

	record, lessons, err := buildRecords(course, s.SchemaVersion())
	if err != nil {
		return nil, err
	}
	return &preparedCourse{course: course, record: record, lessons: lessons}, nil
}

func (s *ContentService) storeCourse(ctx context.Context, p *preparedCourse) error {
	slug := p.course.Slug
	if err := s.courses.Upsert(ctx, p.record, p.lessons); err != nil {
		return fmt.Errorf("save course %q: %w", slug, err)
	}

	if err := s.cache.InvalidateCourse(ctx, slug); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("slug", slug).Warn("Failed to invalidate course cache")
	}

	logger.FromContext(ctx).WithField("slug", slug).WithField("lessons", p.course.LessonCount).Info("Course saved")
	return nil
}

// GetCourse loads a stored course and normalizes it again on read, so
// documents stored under an older schema version come back current.
func (s *ContentService) GetCourse(ctx context.Context, slug string) (courseschema.Course, error) {
	if s == nil || s.normalizer == nil || s.courses == nil {
		return courseschema.Course{}, errServiceNotConfigured
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return courseschema.Course{}, newValidationError("slug is required")
	}

	if s.cache.Enabled() {
		var cached json.RawMessage
		if err := s.cache.GetCachedCourse(ctx, slug, &cached); err == nil {
			cacheLookupsTotal.WithLabelValues("slug", "hit").Inc()
			return s.normalizer.Normalize(cached), nil
		}
		cacheLookupsTotal.WithLabelValues("slug", "miss").Inc()
	}

	record, err := s.courses.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return courseschema.Course{}, ErrNotFound
		}
		return courseschema.Course{}, fmt.Errorf("load course %q: %w", slug, err)
	}

	course := s.normalize(ctx, json.RawMessage(record.Document))
	if err := s.cache.CacheCourse(ctx, slug, course, s.cacheTTL); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("slug", slug).Warn("Failed to cache course")
	}
	return course, nil
}

func (s *ContentService) ListCourses(ctx context.Context, limit, offset int) ([]models.CourseRecord, error) {
	if s == nil || s.courses == nil {
		return nil, errServiceNotConfigured
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.courses.List(ctx, limit, offset)
}

// ImportCourses saves every record with bounded concurrency. A failing record
// is reported in its result row and never aborts the rest of the batch.
func (s *ContentService) ImportCourses(ctx context.Context, raws []json.RawMessage) (models.ImportSummary, error) {
	if s == nil || s.normalizer == nil || s.courses == nil {
		return models.ImportSummary{}, errServiceNotConfigured
	}
	if len(raws) == 0 {
		return models.ImportSummary{}, newValidationError("at least one course is required")
	}
	if s.maxImportBatch > 0 && len(raws) > s.maxImportBatch {
		return models.ImportSummary{}, newValidationError("import batch of %d exceeds the limit of %d", len(raws), s.maxImportBatch)
	}

	runID := uuid.NewString()
	ctx = logger.ContextWithFields(ctx, map[string]interface{}{"import_run": runID})

	results := make([]models.ImportResult, len(raws))
	prepared := make([]*preparedCourse, len(raws))
	var g errgroup.Group
	g.SetLimit(s.importConcurrency)
	for i, raw := range raws {
		i, raw := i, raw
		results[i].Index = i
		g.Go(func() error {
			p, err := s.prepareCourse(ctx, raw)
			if err != nil {
				s.recordImportFailure(ctx, &results[i], err)
				return nil
			}
			prepared[i] = p
			return nil
		})
	}
	_ = g.Wait()

	// Records sharing a slug are stored one after another in input order, so
	// the last one wins and their lesson rows never interleave.
	var slugs []string
	bySlug := make(map[string][]int)
	for i, p := range prepared {
		if p == nil {
			continue
		}
		slug := p.course.Slug
		if _, ok := bySlug[slug]; !ok {
			slugs = append(slugs, slug)
		}
		bySlug[slug] = append(bySlug[slug], i)
	}

	var store errgroup.Group
	store.SetLimit(s.importConcurrency)
	for _, slug := range slugs {
		indexes := bySlug[slug]
		store.Go(func() error {
			for _, i := range indexes {
				s.storeImported(ctx, &results[i], prepared[i])
			}
			return nil
		})
	}
	_ = store.Wait()

	summary := models.ImportSummary{RunID: runID, Total: len(raws), Results: results}
	for _, result := range results {
		if result.Error == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	importRecordsTotal.WithLabelValues("success").Add(float64(summary.Succeeded))
	importRecordsTotal.WithLabelValues("failure").Add(float64(summary.Failed))

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Course import finished")
	return summary, nil
}

func (s *ContentService) storeImported(ctx context.Context, result *models.ImportResult, p *preparedCourse) {
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return
	}
	if err := s.storeCourse(ctx, p); err != nil {
		s.recordImportFailure(ctx, result, err)
		return
	}
	result.Slug = p.record.Slug
	result.CourseID = p.record.ID
}

func (s *ContentService) recordImportFailure(ctx context.Context, result *models.ImportResult, err error) {
	result.Error = err.Error()
	logger.FromContext(ctx).WithError(err).WithField("index", result.Index).Warn("Course import record failed")
}

// BackfillLessons re-migrates stored lesson content below the current schema
// version, batchSize rows at a time, and returns the number of rows updated.
func (s *ContentService) BackfillLessons(ctx context.Context, batchSize int) (int, error) {
	if s == nil || s.lessons == nil || s.migrator == nil {
		return 0, errServiceNotConfigured
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	version := s.SchemaVersion()
	updated := 0
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		rows, err := s.lessons.ListOutdated(ctx, version, afterID, batchSize)
		if err != nil {
			return updated, fmt.Errorf("list outdated lessons: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			afterID = row.ID
			content, report := s.migrator.MigrateWithReport(json.RawMessage(row.Content))
			observeMigrations(report)

			data, err := json.Marshal(content)
			if err != nil {
				return updated, fmt.Errorf("encode lesson %d: %w", row.ID, err)
			}
			if err := s.lessons.UpdateContent(ctx, row.ID, content.SchemaVersion, string(content.Type), datatypes.JSON(data)); err != nil {
				return updated, fmt.Errorf("update lesson %d: %w", row.ID, err)
			}
			updated++
			backfillRowsTotal.Inc()
		}

		if len(rows) < batchSize {
			break
		}
	}

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"updated":        updated,
		"schema_version": version,
	}).Info("Lesson content backfill finished")
	return updated, nil
}

// ClearNormalizedCache drops cached normalization results so the next
// request normalizes from scratch.
func (s *ContentService) ClearNormalizedCache(ctx context.Context) error {
	if s == nil {
		return errServiceNotConfigured
	}
	if !s.cache.Enabled() {
		return nil
	}
	return s.cache.InvalidateNormalized(ctx)
}

func (s *ContentService) OutdatedLessonCount(ctx context.Context) (int64, error) {
	if s == nil || s.lessons == nil {
		return 0, errServiceNotConfigured
	}
	return s.lessons.CountOutdated(ctx, s.SchemaVersion())
}

func (s *ContentService) normalize(ctx context.Context, payload any) courseschema.Course {
	start := time.Now()
	course, reports := s.normalizer.NormalizeWithReports(payload)
	normalizeDuration.Observe(time.Since(start).Seconds())
	observeMigrations(reports...)

	legacy := 0
	for _, report := range reports {
		if report.Legacy {
			legacy++
		}
	}
	if legacy > 0 {
		logger.FromContext(ctx).WithFields(map[string]interface{}{
			"slug":           course.Slug,
			"legacy_lessons": legacy,
		}).Debug("Normalized course with legacy lesson content")
	}
	return course
}

func buildRecords(course courseschema.Course, schemaVersion int) (*models.CourseRecord, []models.LessonContentRecord, error) {
	document, err := json.Marshal(course)
	if err != nil {
		return nil, nil, fmt.Errorf("encode course: %w", err)
	}

	record := &models.CourseRecord{
		Slug:              course.Slug,
		Title:             course.Title,
		SourceID:          course.ID,
		SchemaVersion:     schemaVersion,
		LessonCount:       course.LessonCount,
		EstimatedDuration: course.EstimatedDuration,
		Duration:          course.Duration,
		Document:          datatypes.JSON(document),
	}

	lessons := make([]models.LessonContentRecord, 0, course.LessonCount)
	for mi, module := range course.Modules {
		for li, lesson := range module.Lessons {
			content, err := json.Marshal(lesson.Content)
			if err != nil {
				return nil, nil, fmt.Errorf("encode lesson content: %w", err)
			}
			lessons = append(lessons, models.LessonContentRecord{
				ModulePosition: mi,
				LessonPosition: li,
				LessonSlug:     lesson.Slug,
				Type:           string(lesson.Content.Type),
				SchemaVersion:  lesson.Content.SchemaVersion,
				Content:        datatypes.JSON(content),
			})
		}
	}
	return record, lessons, nil
}

// decodePayload turns raw request bytes into a JSON value. Already decoded
// values pass through untouched.
func decodePayload(raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		return raw, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newValidationError("payload is empty")
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, newValidationError("payload is not valid JSON: %v", err)
	}
	return out, nil
}

func payloadDigest(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

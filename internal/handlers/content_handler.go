package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"curriculum-backend/internal/background"
	"curriculum-backend/internal/models"
	"curriculum-backend/internal/service"
	"curriculum-backend/pkg/courseschema"
	"curriculum-backend/pkg/logger"
	"curriculum-backend/pkg/validator"
)

const maxPayloadBytes = 8 << 20

type ContentHandler struct {
	contentService    *service.ContentService
	scheduler         *background.Scheduler
	backfillBatchSize int
}

func NewContentHandler(contentService *service.ContentService, scheduler *background.Scheduler, backfillBatchSize int) *ContentHandler {
	return &ContentHandler{
		contentService:    contentService,
		scheduler:         scheduler,
		backfillBatchSize: backfillBatchSize,
	}
}

func (h *ContentHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.contentService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content service is not available"})
		return false
	}
	return true
}

// MigrateLesson migrates one lesson content record and reports the legacy
// shape it was detected as.
func (h *ContentHandler) MigrateLesson(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	payload, ok := readPayload(c)
	if !ok {
		return
	}

	content, report, err := h.contentService.MigrateLesson(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MigrationResponse{
		Content:       content,
		Shape:         report.Shape,
		Legacy:        report.Legacy,
		SourceVersion: report.SourceVersion,
	})
}

// DetectShape reports the legacy shape of a record without migrating it.
func (h *ContentHandler) DetectShape(c *gin.Context) {
	payload, ok := readPayload(c)
	if !ok {
		return
	}

	var record map[string]any
	switch v := payload.(type) {
	case json.RawMessage:
		if err := json.Unmarshal(v, &record); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be a JSON object"})
			return
		}
	case map[string]any:
		record = v
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be an object"})
		return
	}

	shape := courseschema.DetectShape(record)
	c.JSON(http.StatusOK, gin.H{"shape": shape, "type": shape.ContentType()})
}

func (h *ContentHandler) NormalizeCourse(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	payload, ok := readPayload(c)
	if !ok {
		return
	}

	course, err := h.contentService.NormalizeCourse(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"course": course})
}

func (h *ContentHandler) SaveCourse(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	payload, ok := readPayload(c)
	if !ok {
		return
	}

	record, err := h.contentService.SaveCourse(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"course": record})
}

func (h *ContentHandler) GetCourse(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	var params models.CourseSlugParam
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.Describe(err)})
		return
	}

	course, err := h.contentService.GetCourse(c.Request.Context(), params.Slug)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"course": course})
}

func (h *ContentHandler) ListCourses(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	courses, err := h.contentService.ListCourses(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// ImportCourses saves a batch of courses. The response is 200 even when some
// records failed; callers read the per-record results.
func (h *ContentHandler) ImportCourses(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	var req models.ImportCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.Describe(err)})
		return
	}

	summary, err := h.contentService.ImportCourses(c.Request.Context(), req.Courses)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// StartBackfill queues a lesson content backfill. Without a scheduler the
// backfill runs inside the request.
func (h *ContentHandler) StartBackfill(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	var req models.BackfillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validator.Describe(err)})
			return
		}
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = h.backfillBatchSize
	}

	if h.scheduler == nil {
		updated, err := h.contentService.BackfillLessons(c.Request.Context(), batchSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated, "schema_version": h.contentService.SchemaVersion()})
		return
	}

	if err := h.scheduler.ScheduleUnique(h.contentService.BackfillJob(batchSize)); err != nil {
		if errors.Is(err, background.ErrJobAlreadyScheduled) {
			c.JSON(http.StatusConflict, gin.H{"error": "backfill is already running"})
			return
		}
		logger.FromContext(c.Request.Context()).WithError(err).Error("Failed to schedule backfill")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to schedule backfill"})
		return
	}

	status, _ := h.scheduler.Status(service.BackfillJobName)
	c.JSON(http.StatusAccepted, gin.H{"job": status})
}

func (h *ContentHandler) BackfillStatus(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	outdated, err := h.contentService.OutdatedLessonCount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"schema_version": h.contentService.SchemaVersion(),
		"outdated":       outdated,
	}
	if status, ok := h.scheduler.Status(service.BackfillJobName); ok {
		response["job"] = status
	}
	c.JSON(http.StatusOK, response)
}

func (h *ContentHandler) ClearCache(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	if err := h.contentService.ClearNormalizedCache(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
}

// readPayload returns the request body as json.RawMessage, or as a decoded
// value when the body is YAML.
func readPayload(c *gin.Context) (any, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	if len(body) > maxPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body is too large"})
		return nil, false
	}

	if validator.IsYAMLContentType(c.GetHeader("Content-Type")) {
		var payload any
		if err := yaml.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload is not valid YAML"})
			return nil, false
		}
		if payload == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload is empty"})
			return nil, false
		}
		return payload, true
	}
	return json.RawMessage(body), true
}

func respondError(c *gin.Context, err error) {
	switch {
	case service.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
	default:
		logger.FromContext(c.Request.Context()).WithError(err).Error("Content request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

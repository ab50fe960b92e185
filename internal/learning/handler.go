package learning

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/pkg/response"
)

// Handler serves the authenticated learning surface: dashboard, player
// payloads, enrollment checks and progress tracking.
type Handler struct {
	api       *upstream.Client
	assetBase string
	logger    *zap.Logger
}

// NewHandler creates a learning handler. assetBase is prepended to relative
// lesson content paths.
func NewHandler(api *upstream.Client, assetBase string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{api: api, assetBase: assetBase, logger: logger}
}

// Enrollments handles GET /me/enrollments.
func (h *Handler) Enrollments(c *gin.Context) {
	list, err := h.api.Enrollments(c.Request.Context())
	if err != nil {
		h.logger.Error("list enrollments failed", zap.Error(err))
		response.BadGateway(c, upstream.Message(err, "Failed to load enrollments"))
		return
	}
	response.OK(c, list, "")
}

// MyCourse handles GET /me/courses/:courseId: the learning-player payload
// with embeddable video sources resolved.
func (h *Handler) MyCourse(c *gin.Context) {
	courseID, err := strconv.Atoi(c.Param("courseId"))
	if err != nil || courseID <= 0 {
		response.BadRequest(c, "invalid course id")
		return
	}
	cp, err := h.api.MyCourse(c.Request.Context(), courseID)
	if err != nil {
		var uerr *upstream.Error
		if errors.As(err, &uerr) {
			switch uerr.StatusCode {
			case http.StatusNotFound:
				response.NotFound(c, "course not found")
				return
			case http.StatusForbidden:
				response.Forbidden(c, "not enrolled in this course")
				return
			}
		}
		h.logger.Error("get my course failed", zap.Int("course_id", courseID), zap.Error(err))
		response.BadGateway(c, upstream.Message(err, "Failed to load course"))
		return
	}

	for si := range cp.Course.Sections {
		lessons := cp.Course.Sections[si].Lessons
		for li := range lessons {
			if lessons[li].ContentURL == nil {
				continue
			}
			lessons[li].EmbedURL = Source(*lessons[li].ContentURL, h.assetBase)
		}
	}
	response.OK(c, cp, "")
}

// CheckEnrollment handles GET /me/check-enrollment/:courseId. An unknown
// course reads as not enrolled rather than an error.
func (h *Handler) CheckEnrollment(c *gin.Context) {
	courseID, err := strconv.Atoi(c.Param("courseId"))
	if err != nil || courseID <= 0 {
		response.BadRequest(c, "invalid course id")
		return
	}
	enrolled, err := h.api.CheckEnrollment(c.Request.Context(), courseID)
	if err != nil {
		var uerr *upstream.Error
		if errors.As(err, &uerr) && uerr.StatusCode == http.StatusNotFound {
			enrolled = false
		} else {
			h.logger.Error("check enrollment failed", zap.Int("course_id", courseID), zap.Error(err))
			response.BadGateway(c, upstream.Message(err, "Failed to check enrollment"))
			return
		}
	}
	response.OK(c, gin.H{"isEnrolled": enrolled}, "")
}

// ProgressRequest is the body for POST /me/progress.
type ProgressRequest struct {
	CourseID int `json:"courseId" binding:"required"`
	LessonID int `json:"lessonId" binding:"required"`
}

// RecordProgress handles POST /me/progress.
func (h *Handler) RecordProgress(c *gin.Context) {
	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.api.RecordProgress(c.Request.Context(), req.CourseID, req.LessonID); err != nil {
		h.logger.Error("record progress failed",
			zap.Int("course_id", req.CourseID), zap.Int("lesson_id", req.LessonID), zap.Error(err))
		response.BadGateway(c, upstream.Message(err, "Failed to record progress"))
		return
	}
	response.OK(c, nil, "progress recorded")
}

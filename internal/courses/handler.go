package courses

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/models"
	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/pkg/response"
)

const defaultPageSize = 20

// Handler serves the public course catalog, cache-first with the backend as
// the source of truth.
type Handler struct {
	api    *upstream.Client
	cache  *Cache
	logger *zap.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(api *upstream.Client, cache *Cache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{api: api, cache: cache, logger: logger}
}

// List handles GET /courses: search, limit and page are passed through to
// the backend. Unfiltered pages are cached.
func (h *Handler) List(c *gin.Context) {
	params := upstream.ListParams{
		Search: c.Query("search"),
		Limit:  defaultPageSize,
		Page:   1,
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		params.Limit = n
	}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		params.Page = n
	}

	// Search results are too varied to be worth caching.
	cacheKey := ""
	if params.Search == "" {
		cacheKey = fmt.Sprintf("p%d:l%d", params.Page, params.Limit)
		var cached models.CourseList
		if h.cache.GetList(c.Request.Context(), cacheKey, &cached) {
			response.OK(c, cached, "")
			return
		}
	}

	list, err := h.api.ListCoursesPublic(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("list courses failed", zap.Error(err))
		response.BadGateway(c, upstream.Message(err, "Failed to load courses"))
		return
	}
	if cacheKey != "" {
		h.cache.SetList(c.Request.Context(), cacheKey, list)
	}
	response.OK(c, list, "")
}

// Get handles GET /courses/:idOrSlug.
func (h *Handler) Get(c *gin.Context) {
	idOrSlug, _ := URLIdentifier(c.Param("idOrSlug"))
	if idOrSlug == "" {
		response.BadRequest(c, "invalid course identifier")
		return
	}

	var cached models.Course
	if h.cache.GetCourse(c.Request.Context(), idOrSlug, &cached) {
		response.OK(c, cached, "")
		return
	}

	course, err := h.api.CoursePublic(c.Request.Context(), idOrSlug)
	if err != nil {
		var uerr *upstream.Error
		if errors.As(err, &uerr) && uerr.StatusCode == http.StatusNotFound {
			response.NotFound(c, "course not found")
			return
		}
		h.logger.Error("get course failed", zap.String("course", idOrSlug), zap.Error(err))
		response.BadGateway(c, upstream.Message(err, "Failed to load course"))
		return
	}
	h.cache.SetCourse(c.Request.Context(), idOrSlug, course)
	response.OK(c, course, "")
}

package tag

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"promptbank-backend/internal/services"
	"promptbank-backend/internal/utils"
	"promptbank-backend/pkg/logger"
)

// Handler serves the read-only tag surface through the query facade.
type Handler struct {
	queries *services.QueryFacade
}

func NewHandler(queries *services.QueryFacade) *Handler {
	return &Handler{queries: queries}
}

// ListTags godoc
// @Summary List tags by usage
// @Description List tags ordered by usage counter descending, 20 per page.
// @Tags tag
// @Produce json
// @Security Bearer
// @Param lastEvaluatedKey query string false "Continuation cursor"
// @Success 200 {object} utils.Response{data=TagListResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /tags [get]
func (h *Handler) ListTags(c *gin.Context) {
	cursor := c.Query("lastEvaluatedKey")

	items, next, err := h.queries.ListTags(c.Request.Context(), cursor)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid pagination cursor"))
			return
		}
		logger.Log.Error("listing tags", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to list tags"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Tags retrieved successfully", TagListResponse{
		Items:            items,
		LastEvaluatedKey: next,
	}))
}

// GetTag godoc
// @Summary Get a tag by id
// @Description Get a single tag with its usage counter.
// @Tags tag
// @Produce json
// @Security Bearer
// @Param tagid path string true "Tag ID"
// @Success 200 {object} utils.Response{data=models.Tag}
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /tags/{tagid} [get]
func (h *Handler) GetTag(c *gin.Context) {
	tagID := c.Param("tagid")

	t, err := h.queries.GetTagByID(c.Request.Context(), tagID)
	if err != nil {
		if errors.Is(err, services.ErrTagNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Tag not found"))
			return
		}
		logger.Log.Error("fetching tag", zap.String("tagid", tagID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to fetch tag"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Tag retrieved successfully", t))
}

// ListTagTemplates godoc
// @Summary List templates for a tag
// @Description List a tag's templates, descending by creation date (10 per page) or copy count (fixed top 3).
// @Tags tag
// @Produce json
// @Security Bearer
// @Param tagid path string true "Tag ID"
// @Param sortby query string false "Sort order" Enums(createdDate, copycount) default(createdDate)
// @Param lastEvaluatedKey query string false "Continuation cursor"
// @Success 200 {object} utils.Response{data=TagTemplateListResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /tags/{tagid}/templates [get]
func (h *Handler) ListTagTemplates(c *gin.Context) {
	tagID := c.Param("tagid")
	sortBy := c.DefaultQuery("sortby", services.SortByDate)
	cursor := c.Query("lastEvaluatedKey")

	if sortBy != services.SortByDate && sortBy != services.SortByPopularity {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "sortby must be createdDate or copycount"))
		return
	}

	items, next, err := h.queries.ListTemplatesByTag(c.Request.Context(), tagID, sortBy, cursor)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid pagination cursor"))
			return
		}
		logger.Log.Error("listing templates by tag", zap.String("tagid", tagID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to list templates"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Templates retrieved successfully", TagTemplateListResponse{
		Items:            items,
		LastEvaluatedKey: next,
	}))
}

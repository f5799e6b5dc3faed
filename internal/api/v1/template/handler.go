package template

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptbank-backend/internal/models"
	"promptbank-backend/internal/services"
	"promptbank-backend/internal/utils"
	"promptbank-backend/pkg/logger"
)

// Handler carries the injected core services. Mutations run the
// reconciliation engine after the store writes; reads never do.
type Handler struct {
	store      *services.TemplateStore
	registry   *services.TagRegistry
	reconciler *services.TagReconciler
	queries    *services.QueryFacade
}

func NewHandler(store *services.TemplateStore, registry *services.TagRegistry, reconciler *services.TagReconciler, queries *services.QueryFacade) *Handler {
	return &Handler{store: store, registry: registry, reconciler: reconciler, queries: queries}
}

// CreateTemplate godoc
// @Summary Create a prompt template
// @Description Create a prompt template. Tags are resolved and counted only for public templates.
// @Tags template
// @Accept json
// @Produce json
// @Security Bearer
// @Param input body TemplateInput true "Template Input"
// @Success 201 {object} utils.Response{data=models.Template}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	var input TemplateInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	user := c.MustGet("user").(models.User)
	ctx := c.Request.Context()

	tags := models.TagMap{}
	if input.Public {
		resolved, err := h.registry.ResolveTags(ctx, input.TagNames)
		if err != nil {
			logger.Log.Error("resolving tags", zap.Error(err))
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to create template"))
			return
		}
		tags = resolved
	}

	createdDate := strconv.FormatInt(time.Now().UnixMilli(), 10)
	tmpl := &models.Template{
		TemplateID:      uuid.New().String(),
		Title:           input.Title,
		Prompt:          input.Prompt,
		Public:          input.Public,
		UserID:          user.ID,
		UserMailAddress: user.MailAddress(),
		Tags:            tags,
		CreatedDate:     createdDate,
		CopyCount:       0,
		OwnerKey:        models.OwnerKey(user.ID, createdDate),
	}

	if err := h.store.Create(ctx, tmpl); err != nil {
		logger.Log.Error("creating template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to create template"))
		return
	}

	if err := h.reconciler.Reconcile(ctx, tags); err != nil {
		logger.Log.Error("reconciling tags after create", zap.String("templateid", tmpl.TemplateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to create template"))
		return
	}

	c.JSON(http.StatusCreated, utils.NewSuccessResponse("Template created successfully", tmpl))
}

// ListTemplates godoc
// @Summary List own templates
// @Description List the caller's templates, newest first, 10 per page.
// @Tags template
// @Produce json
// @Security Bearer
// @Param lastEvaluatedKey query string false "Continuation cursor"
// @Success 200 {object} utils.Response{data=TemplateListResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	user := c.MustGet("user").(models.User)
	cursor := c.Query("lastEvaluatedKey")

	items, next, err := h.queries.ListTemplatesByOwner(c.Request.Context(), user.ID, cursor)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid pagination cursor"))
			return
		}
		logger.Log.Error("listing templates by owner", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to list templates"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Templates retrieved successfully", TemplateListResponse{
		Items:            items,
		LastEvaluatedKey: next,
	}))
}

// GetTemplate godoc
// @Summary Get a template by id
// @Description Get a single template. Absent templates yield empty data, not an error.
// @Tags template
// @Produce json
// @Security Bearer
// @Param templateid path string true "Template ID"
// @Success 200 {object} utils.Response{data=models.Template}
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /templates/{templateid} [get]
func (h *Handler) GetTemplate(c *gin.Context) {
	templateID := c.Param("templateid")

	tmpl, err := h.queries.GetTemplateByID(c.Request.Context(), templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusOK, utils.NewSuccessResponse("Template not found", nil))
			return
		}
		logger.Log.Error("fetching template", zap.String("templateid", templateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to fetch template"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Template retrieved successfully", tmpl))
}

// UpdateTemplate godoc
// @Summary Update a template
// @Description Rewrite a template's fields. Copy count and creation date are preserved; the tag delta triggers reconciliation.
// @Tags template
// @Accept json
// @Produce json
// @Security Bearer
// @Param templateid path string true "Template ID"
// @Param input body TemplateInput true "Template Input"
// @Success 200 {object} utils.Response{data=models.Template}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /templates/{templateid} [put]
func (h *Handler) UpdateTemplate(c *gin.Context) {
	var input TemplateInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	templateID := c.Param("templateid")
	ctx := c.Request.Context()

	tags := models.TagMap{}
	if input.Public {
		resolved, err := h.registry.ResolveTags(ctx, input.TagNames)
		if err != nil {
			logger.Log.Error("resolving tags", zap.Error(err))
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to update template"))
			return
		}
		tags = resolved
	}

	tmpl, removed, err := h.store.Update(ctx, templateID, input.Title, input.Prompt, input.Public, tags)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Template not found"))
			return
		}
		logger.Log.Error("updating template", zap.String("templateid", templateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to update template"))
		return
	}

	// Removed tags first so a tag dropped by this update is pruned before
	// the kept set is recounted.
	if err := h.reconciler.Reconcile(ctx, removed, tmpl.Tags); err != nil {
		logger.Log.Error("reconciling tags after update", zap.String("templateid", templateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to update template"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Template updated successfully", tmpl))
}

// DeleteTemplate godoc
// @Summary Delete a template
// @Description Delete a template and its tag associations, then reconcile its former tags.
// @Tags template
// @Produce json
// @Security Bearer
// @Param templateid path string true "Template ID"
// @Success 200 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /templates/{templateid} [delete]
func (h *Handler) DeleteTemplate(c *gin.Context) {
	templateID := c.Param("templateid")
	ctx := c.Request.Context()

	former, err := h.store.Delete(ctx, templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Template not found"))
			return
		}
		logger.Log.Error("deleting template", zap.String("templateid", templateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to delete template"))
		return
	}

	if err := h.reconciler.Reconcile(ctx, former); err != nil {
		logger.Log.Error("reconciling tags after delete", zap.String("templateid", templateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to delete template"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Template deleted successfully", nil))
}

// IncrementCopyCount godoc
// @Summary Increment a template's copy count
// @Description Bump the copy counter and propagate it to the tag associations. No reconciliation runs.
// @Tags template
// @Produce json
// @Security Bearer
// @Param templateid path string true "Template ID"
// @Success 200 {object} utils.Response{data=CopyCountResponse}
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /templates/{templateid}/copycount [put]
func (h *Handler) IncrementCopyCount(c *gin.Context) {
	templateID := c.Param("templateid")

	newCount, err := h.store.IncrementCopyCount(c.Request.Context(), templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Template not found"))
			return
		}
		logger.Log.Error("incrementing copy count", zap.String("templateid", templateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to increment copy count"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Copy count incremented successfully", CopyCountResponse{CopyCount: newCount}))
}

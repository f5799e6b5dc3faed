package template

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	templates := router.Group("/templates")
	templates.POST("", h.CreateTemplate)
	templates.GET("", h.ListTemplates)
	templates.GET("/:templateid", h.GetTemplate)
	templates.PUT("/:templateid", h.UpdateTemplate)
	templates.DELETE("/:templateid", h.DeleteTemplate)
	templates.PUT("/:templateid/copycount", h.IncrementCopyCount)
}

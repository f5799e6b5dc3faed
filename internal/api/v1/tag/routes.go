package tag

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	tags := router.Group("/tags")
	tags.GET("", h.ListTags)
	tags.GET("/:tagid", h.GetTag)
	tags.GET("/:tagid/templates", h.ListTagTemplates)
}

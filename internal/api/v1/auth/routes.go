package auth

import (
	"github.com/gin-gonic/gin"

	"promptbank-backend/internal/middleware"
)

func RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	auth.POST("/register", Register)
	auth.POST("/login", Login)
	auth.POST("/logout", middleware.AuthMiddleware(), Logout)
}

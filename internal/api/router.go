package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"promptbank-backend/config"
	_ "promptbank-backend/docs"
	adminUser "promptbank-backend/internal/api/v1/admin/user"
	"promptbank-backend/internal/api/v1/auth"
	"promptbank-backend/internal/api/v1/tag"
	"promptbank-backend/internal/api/v1/template"
	userRoutes "promptbank-backend/internal/api/v1/user"
	"promptbank-backend/internal/database"
	"promptbank-backend/internal/middleware"
	"promptbank-backend/internal/services"
)

func NewRouter() (*gin.Engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}

	err = database.ConnectRedis(cfg)
	if err != nil {
		return nil, err
	}

	// Core services are built once here and handed to the handlers; only
	// the ambient identity layer still reaches for the package globals.
	registry := services.NewTagRegistry(db)
	store := services.NewTemplateStore(db)
	reconciler := services.NewTagReconciler(store, registry)
	queries := services.NewQueryFacade(store, registry)

	templateHandler := template.NewHandler(store, registry, reconciler, queries)
	tagHandler := tag.NewHandler(queries)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := router.Group("/api/v1")
	{
		auth.RegisterRoutes(v1)

		authorized := v1.Group("/")
		authorized.Use(middleware.AuthMiddleware())
		{
			userRoutes.RegisterRoutes(authorized)
			template.RegisterRoutes(authorized, templateHandler)
			tag.RegisterRoutes(authorized, tagHandler)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			adminUser.RegisterRoutes(admin)
		}
	}

	return router, nil
}

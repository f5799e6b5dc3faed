package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"promptbank-backend/config"
	"promptbank-backend/internal/api"
	"promptbank-backend/internal/database"
	"promptbank-backend/internal/models"
	"promptbank-backend/internal/services"
	"promptbank-backend/pkg/logger"
)

// @title promptbank-backend API
// @version 1.0
// @description Prompt template management backend with tag usage tracking.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFilename,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	services.SetStoreTimeout(time.Duration(cfg.StoreTimeout) * time.Second)

	router, err := api.NewRouter()
	if err != nil {
		log.Fatalf("failed to create router: %v", err)
	}

	// Migrate the schema
	err = database.DB.AutoMigrate(
		&models.User{},
		&models.Template{},
		&models.TemplateTag{},
		&models.Tag{},
	)
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	registry := services.NewTagRegistry(database.DB)
	if err := registry.SeedProtectedTags(context.Background()); err != nil {
		log.Fatalf("failed to seed protected tags: %v", err)
	}

	initAdminUser()

	if err := router.Run(":8080"); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

func initAdminUser() {
	adminUsername := "admin@admin.com"
	adminPassword := "ChangeMe1234"

	var adminUser models.User
	result := database.DB.Where("username = ?", adminUsername).First(&adminUser)

	if result.Error != nil {
		if result.Error.Error() == "record not found" {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				log.Fatalf("failed to hash admin password: %v", err)
			}

			adminUser = models.User{
				Username: adminUsername,
				Email:    adminUsername,
				Password: string(hashedPassword),
				Role:     "admin",
			}

			if err := database.DB.Create(&adminUser).Error; err != nil {
				log.Fatalf("failed to create admin user: %v", err)
			}
			log.Println("Admin user created successfully!")
		} else {
			log.Fatalf("failed to check for admin user: %v", result.Error)
		}
	} else {
		log.Println("Admin user already exists.")
	}
}

package main

import (
	"fmt"

	"github.com/autocat/backup-server/internal/backup"
	"github.com/autocat/backup-server/internal/config"
	"github.com/autocat/backup-server/internal/handlers"
	"github.com/autocat/backup-server/internal/middleware"
	"github.com/autocat/backup-server/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)
	if cfg.Server.Mode == "release" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize database
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize backup engine
	svc, err := backup.NewService(db, backup.CatalogRegistry(), backup.Options{
		RootDir:  cfg.Backup.RootDir,
		PageSize: cfg.Backup.PageSize,
		Logger:   log,
	})
	if err != nil {
		log.Fatalf("Failed to initialize backup service: %v", err)
	}

	// Initialize JWT auth
	jwtAuth := middleware.NewJWTAuth(cfg.JWT.Secret, cfg.JWT.ExpireHour)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, jwtAuth)
	backupHandler := handlers.NewBackupHandler(svc, cfg.Backup.RootDir)

	// Setup router
	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// Protected auth routes
		authProtected := v1.Group("/auth")
		authProtected.Use(jwtAuth.Middleware())
		{
			authProtected.GET("/me", authHandler.Me)
		}

		// Backup routes (admin only)
		backups := v1.Group("/backups")
		backups.Use(jwtAuth.Middleware(), middleware.RequireAdmin())
		{
			backups.GET("", backupHandler.List)
			backups.POST("", backupHandler.Create)
			backups.POST("/upload", backupHandler.Upload)
			backups.GET("/:id", backupHandler.Get)
			backups.GET("/:id/download", backupHandler.Download)
			backups.DELETE("/:id", backupHandler.Delete)
			backups.POST("/:id/validate", backupHandler.Validate)
			backups.POST("/:id/restore", backupHandler.Restore)
		}
	}

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Infof("Starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

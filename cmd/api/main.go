package main

import (
	"log"
	"os"
	"time"

	_ "expensetracker/api/swagger" // swagger docs
	"expensetracker/internal/database"
	"expensetracker/internal/handler"
	"expensetracker/internal/middleware"
	"expensetracker/internal/repository"
	"expensetracker/internal/service"
	"expensetracker/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Expense Tracker API
// @version         1.0
// @description     Expense and purchase request tracking with admin review.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "expensetracker")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Authorization gate config. The secret is injected, never a package global.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			log.Fatal("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		jwtSecret = "default_super_secret_key" // Development fallback only, DO NOT use in production
	}
	tokenTTL := 24 * time.Hour
	if raw := os.Getenv("JWT_TTL"); raw != "" {
		if parsed, parseErr := time.ParseDuration(raw); parseErr == nil {
			tokenTTL = parsed
		}
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Secret:   []byte(jwtSecret),
		TokenTTL: tokenTTL,
	})

	// Set up WebSocket Hub for decision notifications
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	userService := service.NewUserService(userRepo, auth)
	requestService := service.NewRequestService(requestRepo, userRepo, auditRepo, txManager)
	statisticsService := service.NewStatisticsService(db)
	adminService := service.NewAdminService(requestRepo, userRepo, auditRepo, txManager, wsHub)

	uploadDir := envOr("UPLOAD_DIR", "uploads")

	authHandler := handler.NewAuthHandler(userService, auth)
	requestHandler := handler.NewRequestHandler(requestService, statisticsService, auth, uploadDir)
	adminHandler := handler.NewAdminHandler(adminService, statisticsService, auth)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// Serve uploaded files
	router.Static("/uploads", uploadDir)

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth)
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	requestHandler.RegisterRoutes(router.Group(""))
	adminHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"guto-paylink/internal/config"
	"guto-paylink/internal/handlers"
	"guto-paylink/internal/interfaces"
	"guto-paylink/internal/services"
	"guto-paylink/internal/storage"
	"guto-paylink/internal/webhook"
)

func main() {
	// Optional .env for local development; missing file is fine.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize services based on configuration (factory pattern)
	lookup, gateway, err := services.CreateServices(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.Server.Verbose {
		if cfg.StandaloneMode {
			log.Printf("Initialized MOCK services for standalone mode")
		} else {
			log.Printf("Initialized REAL services for online mode")
		}
	}

	// In-memory session store with TTL sweep; sessions are never persisted
	store := storage.NewSessionStore(cfg.SessionTTL.Std(), cfg.Server.Verbose)
	store.StartCleanupRoutine(5 * time.Minute)

	var notifier interfaces.WebhookNotifier
	if cfg.Merchant.WebhookURL != "" {
		notifier = webhook.NewClient(10*time.Second, 3, cfg.Server.Verbose)
	}

	handler := handlers.NewPaylinkHandler(cfg, store, lookup, gateway, notifier)

	// Set up Gin router with logging based on verbose config
	var router *gin.Engine
	if cfg.Server.Verbose {
		gin.SetMode(gin.DebugMode)
		router = gin.Default()
		log.Printf("Verbose mode enabled - HTTP requests will be logged")
	} else {
		gin.SetMode(gin.ReleaseMode)
		router = gin.New()
		router.Use(gin.Recovery())
	}

	// API routes
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/carrier", handler.CarrierHint)

		session := apiGroup.Group("/session")
		{
			session.POST("", handler.StartSession)
			session.GET("/:id", handler.GetSession)
			session.POST("/:id/amount", handler.EnterAmount)
			session.POST("/:id/phone", handler.EnterPhone)
			session.POST("/:id/account", handler.EnterAccount)
			session.POST("/:id/pay", handler.Pay)
			session.GET("/:id/receipt", handler.Receipt)
			session.GET("/:id/receipt.svg", handler.ReceiptSVG)
			session.GET("/:id/receipt.png", handler.ReceiptPNG)
			session.GET("/:id/receipt.pdf", handler.ReceiptPDF)
		}
	}

	// Health check
	router.GET("/health", handler.HealthCheck)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting paylink service on port %d", cfg.Server.Port)

	if cfg.StandaloneMode {
		log.Printf("Running in STANDALONE mode - no external services required")
	} else {
		log.Printf("Running in ONLINE mode - connecting to external services")
		log.Printf("  Verify endpoint: %s", cfg.Endpoints.VerifyURL)
		log.Printf("  Pay endpoint:    %s", cfg.Endpoints.PayURL)
		log.Printf("  Status base:     %s", cfg.Endpoints.StatusBase)
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

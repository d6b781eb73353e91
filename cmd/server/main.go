package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stemscribe/api/internal/client"
	"github.com/stemscribe/api/internal/config"
	"github.com/stemscribe/api/internal/handler"
	"github.com/stemscribe/api/internal/middleware"
	"github.com/stemscribe/api/internal/pipeline"
	"github.com/stemscribe/api/internal/registry"
	"github.com/stemscribe/api/internal/service"
	"github.com/stemscribe/api/internal/storage"
	"github.com/stemscribe/api/internal/worker"
	ws "github.com/stemscribe/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize storage layout
	layout, err := storage.NewLayout(cfg.Storage.UploadsDir, cfg.Storage.OutputsDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	resolver := storage.NewResolver(layout)

	// Initialize inference client
	inferenceClient := client.NewInferenceClient(&cfg.Inference)
	if !inferenceClient.IsConfigured() {
		log.Println("Warning: inference service not configured")
	}

	// Initialize job registry and pipeline
	jobRegistry := registry.New()
	orchestrator := pipeline.New(inferenceClient, layout, cfg.Inference.Concurrency)

	// Initialize services
	transcriptionService := service.NewTranscriptionService(jobRegistry, layout, resolver, asynqClient, cfg)

	// Initialize handlers
	transcriptionHandler := handler.NewTranscriptionHandler(transcriptionService, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Upload.MaxSizeMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		inferenceUp := false
		if inferenceClient.IsConfigured() {
			checkCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			inferenceUp = inferenceClient.HealthCheck(checkCtx) == nil
		}
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":     redisClient.Ping(c.Context()).Err() == nil,
				"inference": inferenceUp,
			},
		})
	})

	// API routes
	api := app.Group("/api")
	api.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), transcriptionHandler.Upload)
	api.Post("/transcribe/:jobId", rateLimiter.TranscribeLimit(cfg.RateLimit.TranscribePerHour), transcriptionHandler.Transcribe)
	api.Get("/jobs", transcriptionHandler.List)
	api.Get("/status/:jobId", transcriptionHandler.Status)
	api.Get("/result/:jobId", transcriptionHandler.Result)
	api.Delete("/jobs/:jobId", transcriptionHandler.Delete)

	// File downloads
	app.Get("/files/:filename", rateLimiter.DownloadLimit(cfg.RateLimit.DownloadPerMin), transcriptionHandler.Download)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, jobRegistry, orchestrator, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	jobRegistry *registry.Registry,
	orchestrator *pipeline.Orchestrator,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// The inference gate serializes model calls; extra task
			// concurrency only lets queued jobs report queue position.
			Concurrency: 4,
			Queues: map[string]int{
				"transcribe": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	transcribeWorker := worker.NewTranscribeWorker(jobRegistry, orchestrator, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeTranscribe, transcribeWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}

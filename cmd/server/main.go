package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tubescribe-backend/internal/config"
	"tubescribe-backend/internal/database"
	"tubescribe-backend/internal/download"
	"tubescribe-backend/internal/extract"
	"tubescribe-backend/internal/handlers"
	"tubescribe-backend/internal/middleware"
	"tubescribe-backend/internal/repository"
	"tubescribe-backend/internal/router"
	"tubescribe-backend/internal/services"
	"tubescribe-backend/internal/websocket"
	"tubescribe-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting TubeScribe Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	channelRepo := repository.NewChannelRepo(pool)
	videoRepo := repository.NewVideoRepo(pool)
	transcriptRepo := repository.NewTranscriptRepo(pool)
	store := repository.NewStore(videoRepo, transcriptRepo)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(redisClients.Queue, jwtAuth, cfg.AdminPasswordHash)

	catalogService, err := services.NewCatalogService(cfg.YouTubeAPIKey)
	if err != nil {
		log.Fatalf("✗ YouTube Data API client initialization failed: %v", err)
	}
	log.Println("✓ YouTube Data API client initialized")

	captionService := services.NewCaptionService()

	audioService, err := services.NewAudioService(cfg.StoragePath, services.AudioFetchOptions{
		ProxyURL:    cfg.ProxyURL,
		CookiesFile: cfg.CookiesFile,
	})
	if err != nil {
		log.Fatalf("✗ Audio downloader initialization failed: %v", err)
	}

	// Speech-to-text backends, in preference order. Both are optional.
	var transcribers []extract.SpeechTranscriber
	if cfg.GeminiAPIKey != "" {
		geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer geminiService.Close()
		transcribers = append(transcribers, geminiService)
		log.Println("✓ Gemini Flash transcriber initialized")
	}
	if whisper := services.NewWhisperService(cfg.WhisperBin, cfg.WhisperModel); whisper.Available() {
		transcribers = append(transcribers, whisper)
		log.Println("✓ Local whisper transcriber initialized")
	}
	if len(transcribers) == 0 {
		log.Println("⚠ No speech-to-text backend configured; caption extraction only")
	}

	// ──── Extraction Engine ────
	extractor := extract.New(
		store,
		captionService,
		audioService,
		transcribers,
		time.Duration(cfg.ProviderTimeoutSeconds)*time.Second,
	)

	// ──── Staged Download Manager ────
	downloadManager := download.NewManager(
		audioService,
		cfg.StoragePath,
		time.Duration(cfg.DownloadTokenTTLSeconds)*time.Second,
	)
	downloadManager.StartSweeper()
	defer downloadManager.Stop()

	// ──── Step 5: Start Extraction Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, extractor, videoRepo, cfg.ExtractConcurrency)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.ExtractConcurrency)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	channelHandler := handlers.NewChannelHandler(channelRepo, videoRepo, catalogService)
	videoHandler := handlers.NewVideoHandler(videoRepo, transcriptRepo, audioService)
	extractHandler := handlers.NewExtractHandler(extractor, videoRepo, workerPool, cfg.ExtractConcurrency)
	downloadHandler := handlers.NewDownloadHandler(downloadManager, channelRepo, videoRepo)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		channelHandler,
		videoHandler,
		extractHandler,
		downloadHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: batch extraction and audio preparation hold
		// SSE streams open for many minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ TubeScribe Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

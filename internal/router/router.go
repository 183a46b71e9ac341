package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tubescribe-backend/internal/handlers"
	"tubescribe-backend/internal/middleware"
	"tubescribe-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	channelHandler *handlers.ChannelHandler,
	videoHandler *handlers.VideoHandler,
	extractHandler *handlers.ExtractHandler,
	downloadHandler *handlers.DownloadHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Per-IP rate limiters
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	extractLimiter := middleware.NewRateLimiter(20, time.Minute)
	audioLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Channel Routes ────
		r.Route("/channels", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", channelHandler.Create)
			r.Get("/", channelHandler.List)
			r.Get("/{id}", channelHandler.Get)
			r.Delete("/{id}", channelHandler.Delete)
			r.Post("/{id}/fetch-videos", channelHandler.FetchVideos)
			r.Get("/{id}/videos", videoHandler.List)
			r.Get("/{id}/export-markdown", videoHandler.ExportMarkdown)

			r.Group(func(r chi.Router) {
				r.Use(extractLimiter.Middleware)
				r.Post("/{id}/extract-all", extractHandler.ExtractChannel)
				r.Get("/{id}/extract-all/stream", extractHandler.ExtractChannelStream)
			})

			r.Group(func(r chi.Router) {
				r.Use(audioLimiter.Middleware)
				r.Get("/{id}/prepare-all-audio", downloadHandler.PrepareAllAudio)
			})
		})

		// ──── Video Routes ────
		r.Route("/videos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", videoHandler.Get)
			r.Get("/{id}/transcript", videoHandler.GetTranscript)
			r.Get("/{id}/transcript/download", videoHandler.DownloadTranscript)

			r.Group(func(r chi.Router) {
				r.Use(extractLimiter.Middleware)
				r.Post("/{id}/extract", extractHandler.ExtractOne)
				r.Post("/{id}/extract-async", extractHandler.Enqueue)
			})

			r.Group(func(r chi.Router) {
				r.Use(audioLimiter.Middleware)
				r.Get("/{id}/audio", videoHandler.DownloadAudio)
			})
		})

		// ──── Staged Downloads ────
		// Redemption is public: the single-use token is the credential, and
		// the browser follows this URL directly.
		r.Get("/download-prepared-audio/{token}", downloadHandler.DownloadPrepared)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

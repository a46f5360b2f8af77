package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twabWinners/api"
	"twabWinners/config"
	"twabWinners/db"
	"twabWinners/ws"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	settings, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}
	if err := config.ConfigureLogging(settings.LogLevel); err != nil {
		log.Warn().Err(err).Msg("⚠️  Unknown LOG_LEVEL, using info")
		config.ConfigureLogging("info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	if err := db.InitPostgres(settings.DatabaseURL); err != nil {
		log.Warn().Err(err).Msg("⚠️  PostgreSQL initialization failed")
		log.Warn().Msg("   Run history will not be recorded")
	}
	defer db.ClosePostgres()

	if err := db.InitRedis(settings.RedisURL, settings.RedisPassword, settings.RedisDB); err != nil {
		log.Warn().Err(err).Msg("⚠️  Redis initialization failed")
		log.Warn().Msg("   Run notifications only reach clients of this instance")
	}
	defer db.CloseRedis()

	api.Configure(*settings)

	ws.StartEventHub()
	if db.RedisClient != nil {
		ws.StartRunFeed(ctx)
	}

	mux := http.NewServeMux()
	api.Routes(mux)
	mux.HandleFunc("GET /ws", ws.HandleWS)

	server := &http.Server{
		Addr:              settings.ServerAddr,
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("❌ Server shutdown failed")
		}
	}()

	log.Info().Str("addr", settings.ServerAddr).Int64("chainId", settings.ChainID).Msg("🚀 Server starting")
	log.Info().Msg("📡 WebSocket Endpoints:")
	log.Info().Msg("   ws://" + settings.ServerAddr + "/ws - Subscribe to 'runs' for completed winner runs")
	log.Info().Msg("🔌 API Endpoints:")
	log.Info().Msg("   POST /api/winners - Compute winners of the last awarded draw")
	log.Info().Msg("   GET  /api/winners - Recent runs (last 50)")
	log.Info().Msg("   GET  /api/winners/{runId} - Stored run with winners")
	log.Info().Msg("   GET  /api/verify - Recompute a single prize slot")
	log.Info().Msg("   GET  /api/tiers - Tier parameters for a vault")
	log.Info().Msg("   GET  /api/health - Health check (Redis + PostgreSQL)")
	log.Info().Msg("   GET  /metrics - Prometheus metrics")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("❌ Server error")
	}
	log.Info().Msg("👋 Server stopped")
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/infra"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("service", "example-server").Logger()

	// Exemplo: triagem embutida direto no handler (sem proxy na frente)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ledger := infra.NewMemoryLedger(infra.WithIdleTTL(time.Hour))
	ledger.StartJanitor(ctx)

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/problems", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":       "queued",
			"submissionId": r.Header.Get(intake.HeaderSubmissionID),
		})
	})
	// GET não passa pela triagem
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":   stats.Total(),
			"byKey":   stats.ByKey(),
			"entries": ledger.Len(),
		})
	})

	var h http.Handler = mux
	h = intake.Middleware(intake.Options{
		Validator:           intake.NewValidator(intake.PolicyText),
		RateLimiter:         application.NewRateLimiter(ledger),
		Stats:               stats,
		KeyHeader:           intake.HeaderVisitorID,
		AddRateLimitHeaders: true,
	})(h)
	h = intake.AccessLog()(h)
	h = intake.RequestID(logger)(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/infra"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const metricsNamespace = "lead_intake"

const (
	routeProblems = "/api/problems"
	routeAnalyze  = "/api/problems/analyze"
)

// gatedRoutes são os rótulos "route" das rotas que passam pelo intake.Middleware.
var gatedRoutes = []string{
	http.MethodPost + " " + routeProblems,
	http.MethodPost + " " + routeAnalyze,
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intake gateway in front of the AI orchestration service",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "listen address (overrides LISTEN_ADDR)")
	cmd.Flags().String("upstream", "", "AI orchestration service URL (overrides UPSTREAM_URL)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := readConfig(path, serveFlags(cmd))
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// geração do blueprint pode demorar
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("upstream", cfg.UpstreamURL).
		Msg("intake gateway listening")
	logger.Info().
		Bool("enabled", cfg.Rate.Enabled).
		Dur("window", cfg.Rate.Window).
		Str("ledger", cfg.Rate.Ledger).
		Dur("ledger_ttl", cfg.Rate.LedgerTTL).
		Str("visitor_header", cfg.VisitorHeader).
		Bool("visitor_from_body", cfg.VisitorFromBody).
		Bool("trust_xff", cfg.TrustXFF).
		Msg("rate limit")
	logger.Info().
		Str("policy", cfg.Validation.Policy).
		Int("min_length", cfg.Validation.TextMinLength).
		Int("min_words", cfg.Validation.TextMinWords).
		Float64("min_unique_ratio", cfg.Validation.TextMinUniqueRatio).
		Msg("validation")
	logger.Info().
		Float64("rps", cfg.Upstream.RPS).
		Int("burst", cfg.Upstream.Burst).
		Int("concurrency_max", cfg.Upstream.ConcurrencyMax).
		Dur("concurrency_timeout", cfg.Upstream.ConcurrencyTimeout).
		Msg("upstream")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// serveFlags sobrepõe --upstream e --listen à configuração carregada.
func serveFlags(cmd *cobra.Command) func(*config) {
	return func(cfg *config) {
		if v, _ := cmd.Flags().GetString("upstream"); v != "" {
			cfg.UpstreamURL = v
		}
		if v, _ := cmd.Flags().GetString("listen"); v != "" {
			cfg.ListenAddr = v
		}
	}
}

// gateway agrupa o handler montado e os recursos que precisam ser fechados.
type gateway struct {
	Handler http.Handler
	closers []func() error
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		_ = g.closers[i]()
	}
}

func buildGateway(ctx context.Context, cfg config, logger zerolog.Logger) (*gateway, error) {
	gw := &gateway{}
	fail := func(err error) (*gateway, error) {
		gw.Close()
		return nil, err
	}

	policy, err := intake.ParsePolicy(cfg.Validation.Policy)
	if err != nil {
		return fail(err)
	}

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fail(fmt.Errorf("invalid UPSTREAM_URL: %w", err))
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var rdb *redis.Client
	if cfg.usesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		gw.closers = append(gw.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fail(fmt.Errorf("redis ping error: %w", err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var limiter *application.RateLimiter
	if cfg.Rate.Enabled {
		var ledger domain.Ledger
		switch cfg.Rate.Ledger {
		case "redis":
			ledger = infra.NewRedisLedger(rdb,
				infra.WithLedgerPrefix(cfg.Redis.Prefix+":ratelimit"),
				infra.WithLedgerTTL(cfg.Rate.LedgerTTL),
			)
		default:
			mem := infra.NewMemoryLedger(infra.WithIdleTTL(cfg.Rate.LedgerTTL))
			mem.StartJanitor(ctx)
			if err := infra.RegisterLedgerGauge(reg, metricsNamespace, mem); err != nil {
				return fail(err)
			}
			ledger = mem
		}
		limiter = application.NewRateLimiter(ledger, application.WithWindow(cfg.Rate.Window))
	}

	var stats infra.MultiStats
	if cfg.Stats.Enabled {
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(orDefault(cfg.Stats.Prefix, cfg.Redis.Prefix+":stats")),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	}
	if cfg.MetricsEnabled {
		prom, err := infra.NewPrometheusStats(reg, metricsNamespace, gatedRoutes...)
		if err != nil {
			return fail(err)
		}
		stats = append(stats, prom)
	}

	var throttle domain.Throttle
	if cfg.Upstream.RPS > 0 {
		throttle = infra.NewRateThrottle(cfg.Upstream.RPS, cfg.Upstream.Burst)
	}

	var pool *infra.ChanPool
	if cfg.Upstream.ConcurrencyMax > 0 {
		pool = infra.NewChanPool(cfg.Upstream.ConcurrencyMax)
		if err := infra.RegisterPoolGauges(reg, metricsNamespace, pool); err != nil {
			return fail(err)
		}
	}

	var submissions domain.SubmissionLog
	var checks []intake.HealthCheck
	if cfg.SubmissionLogPath != "" {
		subLog, err := infra.NewSQLiteSubmissionLog(cfg.SubmissionLogPath)
		if err != nil {
			return fail(err)
		}
		gw.closers = append(gw.closers, subLog.Close)
		submissions = subLog
		checks = append(checks, intake.HealthCheck{Name: "submission_log", Check: subLog.Ping})
	}
	if rdb != nil {
		checks = append(checks, intake.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var statsStore domain.StatsStore
	if len(stats) > 0 {
		statsStore = stats
	}
	gateOpts := func(p intake.Policy) intake.Options {
		opts := intake.Options{
			Validator:           cfg.Validation.validator(p),
			RateLimiter:         limiter,
			Throttle:            throttle,
			Stats:               statsStore,
			Submissions:         submissions,
			AcquireTimeout:      cfg.Upstream.ConcurrencyTimeout,
			KeyHeader:           cfg.VisitorHeader,
			TrustXForwardedFor:  cfg.TrustXFF,
			IgnoreBodyVisitorID: !cfg.VisitorFromBody,
			MaxBodyBytes:        cfg.MaxBodyBytes,
			AddRateLimitHeaders: cfg.AddHeaders,
		}
		if pool != nil {
			opts.Pool = pool
		}
		return opts
	}

	// rotas sem intake dividem o mesmo pool com as submissões
	var fallthroughUpstream http.Handler = proxy
	if pool != nil {
		fallthroughUpstream = intake.ConcurrencyMiddleware(intake.ConcurrencyOptions{
			Pool:           pool,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.Upstream.ConcurrencyTimeout,
		})(proxy)
	}

	r := mux.NewRouter()
	r.Handle("/healthz", intake.HealthHandler(2*time.Second, checks...)).Methods(http.MethodGet)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.Handle("/api/validate", intake.ValidateHandler(cfg.Validation.validator(intake.PolicyText), cfg.MaxBodyBytes)).Methods(http.MethodPost)
	r.Handle("/api/validate/input", intake.ValidateHandler(cfg.Validation.validator(intake.PolicyInput), cfg.MaxBodyBytes)).Methods(http.MethodPost)
	r.Handle(routeProblems, intake.Middleware(gateOpts(policy))(proxy)).Methods(http.MethodPost)
	r.Handle(routeAnalyze, intake.Middleware(gateOpts(intake.PolicyInput))(proxy)).Methods(http.MethodPost)
	// demais rotas (perguntas, blueprint, ...) seguem direto para o upstream
	r.PathPrefix("/").Handler(fallthroughUpstream)

	var h http.Handler = r
	h = intake.Recover()(h)
	h = intake.AccessLog()(h)
	h = intake.RequestID(logger)(h)
	gw.Handler = h

	return gw, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

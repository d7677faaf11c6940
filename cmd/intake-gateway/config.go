package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"

	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr    string `yaml:"listen_addr"`
	UpstreamURL   string `yaml:"upstream_url"`
	VisitorHeader string `yaml:"visitor_header"`
	TrustXFF      bool   `yaml:"trust_xff"`
	AddHeaders    bool   `yaml:"add_ratelimit_headers"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`

	// VisitorFromBody: o visitorId do corpo JSON define a chave do rate limit.
	// Com false, só o header/IP contam (o cliente não escolhe a própria chave).
	VisitorFromBody bool `yaml:"visitor_from_body"`

	Validation validationConfig `yaml:"validation"`
	Rate       rateConfig       `yaml:"rate"`
	Redis      redisConfig      `yaml:"redis"`
	Upstream   upstreamConfig   `yaml:"upstream"`
	Stats      statsConfig      `yaml:"stats"`

	MetricsEnabled    bool   `yaml:"metrics_enabled"`
	SubmissionLogPath string `yaml:"submission_log_path"`

	Log logConfig `yaml:"log"`
}

type validationConfig struct {
	Policy             string  `yaml:"policy"`
	TextMinLength      int     `yaml:"text_min_length"`
	TextMinWords       int     `yaml:"text_min_words"`
	TextMinUniqueRatio float64 `yaml:"text_min_unique_ratio"`
}

type rateConfig struct {
	Enabled bool          `yaml:"enabled"`
	Window  time.Duration `yaml:"window"`
	// Ledger: "memory" (padrão) ou "redis".
	Ledger string `yaml:"ledger"`
	// LedgerTTL > 0 ativa a expiração de visitantes inativos (opt-in).
	LedgerTTL time.Duration `yaml:"ledger_ttl"`
}

type redisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type upstreamConfig struct {
	RPS                float64       `yaml:"rps"`
	Burst              int           `yaml:"burst"`
	ConcurrencyMax     int           `yaml:"concurrency_max"`
	ConcurrencyTimeout time.Duration `yaml:"concurrency_timeout"`
}

type statsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
	Bucket    string        `yaml:"bucket"`
	TrackKeys bool          `yaml:"track_keys"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() config {
	return config{
		ListenAddr:      ":8080",
		VisitorHeader:   "X-Visitor-Id",
		VisitorFromBody: true,
		MaxBodyBytes:    64 << 10,
		Validation: validationConfig{
			Policy:             "text",
			TextMinLength:      20,
			TextMinWords:       5,
			TextMinUniqueRatio: 0.3,
		},
		Rate: rateConfig{
			Enabled: true,
			Window:  10 * time.Second,
			Ledger:  "memory",
		},
		Redis: redisConfig{
			Prefix: "intake",
		},
		Upstream: upstreamConfig{
			ConcurrencyMax: 20,
		},
		Stats: statsConfig{
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
		MetricsEnabled: true,
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// readConfig aplica: padrões -> arquivo YAML (opcional) -> variáveis de ambiente
// -> overlays (flags da linha de comando) e valida o resultado.
func readConfig(path string, overlays ...func(*config)) (config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return config{}, err
	}
	for _, o := range overlays {
		o(&cfg)
	}
	return cfg, cfg.validate()
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.UpstreamURL = getenvDefault("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.VisitorHeader = getenvDefault("VISITOR_HEADER", cfg.VisitorHeader)
	cfg.TrustXFF = getenvBoolDefault("TRUST_XFF", cfg.TrustXFF)
	cfg.VisitorFromBody = getenvBoolDefault("TRUST_BODY_VISITOR_ID", cfg.VisitorFromBody)
	cfg.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.AddHeaders)
	cfg.MaxBodyBytes = int64(getenvIntDefault("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))

	cfg.Validation.Policy = getenvDefault("VALIDATION_POLICY", cfg.Validation.Policy)
	cfg.Validation.TextMinLength = getenvIntDefault("TEXT_MIN_LENGTH", cfg.Validation.TextMinLength)
	cfg.Validation.TextMinWords = getenvIntDefault("TEXT_MIN_WORDS", cfg.Validation.TextMinWords)
	cfg.Validation.TextMinUniqueRatio = getenvFloatDefault("TEXT_MIN_UNIQUE_RATIO", cfg.Validation.TextMinUniqueRatio)

	cfg.Rate.Enabled = getenvBoolDefault("RATE_ENABLED", cfg.Rate.Enabled)
	cfg.Rate.Window = getenvDurationDefault("RATE_WINDOW", cfg.Rate.Window)
	cfg.Rate.Ledger = strings.ToLower(getenvDefault("RATE_LEDGER", cfg.Rate.Ledger))
	cfg.Rate.LedgerTTL = getenvDurationDefault("RATE_LEDGER_TTL", cfg.Rate.LedgerTTL)

	cfg.Redis.Addr = getenvDefault("RATE_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("RATE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getenvIntDefault("RATE_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = getenvDefault("RATE_REDIS_PREFIX", cfg.Redis.Prefix)

	cfg.Upstream.RPS = getenvFloatDefault("UPSTREAM_RPS", cfg.Upstream.RPS)
	cfg.Upstream.Burst = getenvIntDefault("UPSTREAM_BURST", cfg.Upstream.Burst)
	cfg.Upstream.ConcurrencyMax = getenvIntDefault("CONCURRENCY_MAX", cfg.Upstream.ConcurrencyMax)
	cfg.Upstream.ConcurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.Upstream.ConcurrencyTimeout)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.Stats.TrackKeys)

	cfg.MetricsEnabled = getenvBoolDefault("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.SubmissionLogPath = getenvDefault("SUBMISSION_LOG_PATH", cfg.SubmissionLogPath)
	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)

	// IMPORTANTE: com burst 0 o token bucket nunca libera nada.
	if cfg.Upstream.RPS > 0 && cfg.Upstream.Burst <= 0 {
		cfg.Upstream.Burst = 1
	}

	return cfg, nil
}

func (cfg config) usesRedis() bool {
	return (cfg.Rate.Enabled && cfg.Rate.Ledger == "redis") || cfg.Stats.Enabled
}

func (cfg config) validate() error {
	if cfg.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if cfg.Rate.Window <= 0 {
		return errors.New("RATE_WINDOW must be > 0")
	}
	switch cfg.Rate.Ledger {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LEDGER must be memory or redis, got %q", cfg.Rate.Ledger)
	}
	// TTL menor que a janela mudaria o comportamento observável do portão.
	if cfg.Rate.LedgerTTL > 0 && cfg.Rate.LedgerTTL < cfg.Rate.Window {
		return errors.New("RATE_LEDGER_TTL must be 0 (never expire) or >= RATE_WINDOW")
	}
	if cfg.usesRedis() && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("RATE_REDIS_ADDR is required when RATE_LEDGER=redis or RATE_STATS_ENABLED=true")
	}
	if err := cfg.Validation.validate(); err != nil {
		return err
	}
	if cfg.Upstream.RPS < 0 {
		return errors.New("UPSTREAM_RPS must be >= 0 (0 disables the upstream budget)")
	}
	if cfg.Upstream.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	return nil
}

func (v validationConfig) validate() error {
	if _, err := intake.ParsePolicy(v.Policy); err != nil {
		return err
	}
	if v.TextMinLength < 0 || v.TextMinWords < 0 {
		return errors.New("TEXT_MIN_LENGTH and TEXT_MIN_WORDS must be >= 0")
	}
	if v.TextMinUniqueRatio < 0 || v.TextMinUniqueRatio > 1 {
		return errors.New("TEXT_MIN_UNIQUE_RATIO must be within [0, 1]")
	}
	return nil
}

// validator monta o Validator da política com os limites configurados.
// Usado pelo gateway e pelo comando validate.
func (v validationConfig) validator(p intake.Policy) intake.Validator {
	val := intake.NewValidator(p)
	val.Text = application.TextPolicy{
		MinLength:      v.TextMinLength,
		MinWords:       v.TextMinWords,
		MinUniqueRatio: v.TextMinUniqueRatio,
	}
	return val
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

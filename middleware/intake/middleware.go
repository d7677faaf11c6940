package intake

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderVisitorID    = "X-Visitor-Id"
	HeaderSubmissionID = "X-Submission-Id"
)

type Options struct {
	Validator   Validator
	RateLimiter *application.RateLimiter
	Throttle    domain.Throttle
	Stats       domain.StatsStore
	Submissions domain.SubmissionLog

	// Pool limita chamadas simultâneas ao upstream; a vaga é tomada antes do
	// rate limit e segurada até next terminar.
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	// IgnoreBodyVisitorID faz o visitorId do corpo ser ignorado: a chave vem só
	// de KeyFn (header configurado, XFF, IP).
	IgnoreBodyVisitorID bool

	MaxBodyBytes        int64
	AddRateLimitHeaders bool

	// Now e NewID existem para testes; padrão time.Now e uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// Middleware protege o handler seguinte (normalmente o reverse proxy para o
// serviço de IA). Só requisições POST são avaliadas; as demais passam direto.
//
// Ordem: validação (422) -> orçamento global e vaga no upstream (503) -> rate
// limit do visitante (429). O portão de saída vem antes do rate limit para que
// um 503 nunca gaste a janela do visitante; se o rate limit recusa, token e vaga
// são devolvidos.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Validator.Policy == "" {
		opts.Validator = NewValidator(PolicyText)
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	gate := application.UpstreamGate{
		Throttle:       opts.Throttle,
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := zerolog.Ctx(ctx)

			req, body, err := readSubmission(w, r, opts.MaxBodyBytes)
			if err != nil {
				writeError(w, bodyErrorStatus(err), err.Error())
				return
			}

			key := req.VisitorID
			if key == "" || opts.IgnoreBodyVisitorID {
				key = opts.KeyFn(r)
			}

			record := func(o domain.Outcome) {
				if opts.Stats == nil {
					return
				}
				err := opts.Stats.Record(ctx, domain.StatsEvent{
					Key:     domain.Key(key),
					Outcome: o,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				})
				if err != nil {
					logger.Warn().Err(err).Msg("stats record failed")
				}
			}

			if res := opts.Validator.Validate(req); !res.Valid {
				logger.Debug().Str("visitor", key).Strs("errors", res.Errors).Msg("submission rejected by validation")
				record(domain.OutcomeInvalid)
				writeJSON(w, http.StatusUnprocessableEntity, res)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if opts.RateLimiter != nil {
					w.Header().Set("X-RateLimit-Window", formatInt(int(opts.RateLimiter.Window/time.Second)))
				}
				if ri, ok := opts.Throttle.(rateInfo); ok {
					w.Header().Set("X-Upstream-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-Upstream-Burst", formatInt(ri.Burst()))
				}
			}

			ticket, err := gate.Enter(ctx)
			if err != nil {
				logger.Warn().Err(err).Str("visitor", key).Msg("upstream gate closed")
				record(domain.OutcomeThrottled)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "upstream busy, try again shortly")
				return
			}

			dec, err := opts.RateLimiter.CheckRateLimit(ctx, key)
			if err != nil {
				ticket.Refund()
				logger.Error().Err(err).Str("visitor", key).Msg("rate limiter unavailable")
				record(domain.OutcomeUnavailable)
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			if !dec.Allowed {
				ticket.Refund()
				logger.Debug().Str("visitor", key).Int("retry_after", dec.RetryAfter).Msg("submission rate limited")
				record(domain.OutcomeRateLimited)
				w.Header().Set("Retry-After", formatInt(dec.RetryAfter))
				writeJSON(w, http.StatusTooManyRequests, dec)
				return
			}
			defer ticket.Done()

			sub := domain.Submission{
				ID:         opts.NewID(),
				VisitorID:  domain.Key(key),
				Text:       req.Problem,
				ReceivedAt: opts.Now(),
			}
			if d, ok := domain.ParseDomain(req.Domain); ok {
				sub.Domain = d
			}
			if opts.Submissions != nil {
				if err := opts.Submissions.Append(ctx, sub); err != nil {
					logger.Warn().Err(err).Str("submission_id", sub.ID).Msg("submission log append failed")
				}
			}
			record(domain.OutcomeAccepted)

			r.Header.Set(HeaderVisitorID, key)
			r.Header.Set(HeaderSubmissionID, sub.ID)
			w.Header().Set(HeaderSubmissionID, sub.ID)

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Set("Content-Length", strconv.Itoa(len(body)))

			next.ServeHTTP(w, r)
		})
	}
}

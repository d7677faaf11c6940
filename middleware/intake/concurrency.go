package intake

import (
	"net/http"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/infra"

	"github.com/rs/zerolog"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Pool opcional; sem ele é criado um semáforo de capacidade Max.
	Pool domain.SlotPool
}

// ConcurrencyMiddleware limita chamadas simultâneas ao serviço de IA nas rotas
// que não passam pela triagem (perguntas, blueprint). As rotas de submissão
// tomam a vaga dentro de Middleware (Options.Pool), antes do rate limit; use o
// mesmo Pool nos dois para um limite único. Sem vaga dentro de AcquireTimeout
// responde RejectStatus (503).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil && opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool(opts.Max)
	}

	gate := application.UpstreamGate{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := gate.Acquire(r.Context())
			if !ok {
				zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("no upstream slot available")
				writeError(w, opts.RejectStatus, http.StatusText(opts.RejectStatus))
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

package application

import (
	"context"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
)

// DefaultWindow é o espaçamento mínimo entre submissões admitidas do mesmo visitante.
const DefaultWindow = 10 * time.Second

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RateLimiter aplica o "portão deslizante": no máximo uma submissão admitida por
// Window por visitante, sem rajada e sem recarga gradual.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type RateLimiter struct {
	Ledger domain.Ledger
	Clock  domain.Clock
	Window time.Duration
}

type RateLimiterOption func(*RateLimiter)

func WithClock(c domain.Clock) RateLimiterOption {
	return func(l *RateLimiter) { l.Clock = c }
}

func WithWindow(d time.Duration) RateLimiterOption {
	return func(l *RateLimiter) { l.Window = d }
}

func NewRateLimiter(ledger domain.Ledger, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		Ledger: ledger,
		Clock:  systemClock{},
		Window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckRateLimit decide se o visitante pode submeter agora.
//
// Uma tentativa rejeitada não altera o ledger: não reinicia nem estende a janela.
// Erro só acontece quando o ledger faz I/O (ex: Redis fora do ar).
func (l *RateLimiter) CheckRateLimit(ctx context.Context, visitorID string) (domain.RateLimitResult, error) {
	if l == nil || l.Ledger == nil {
		return domain.RateLimitResult{Allowed: true}, nil
	}

	clock := l.Clock
	if clock == nil {
		clock = systemClock{}
	}
	window := l.Window
	if window <= 0 {
		window = DefaultWindow
	}

	now := clock.Now()
	adm, err := l.Ledger.Admit(ctx, domain.Key(visitorID), now, window)
	if err != nil {
		return domain.RateLimitResult{}, err
	}
	if adm.Admitted {
		return domain.RateLimitResult{Allowed: true}, nil
	}

	return domain.RateLimitResult{
		Allowed:    false,
		RetryAfter: retryAfterSeconds(window, now.Sub(adm.Last)),
	}, nil
}

// retryAfterSeconds = ceil((window-elapsed)/1s), nunca menor que 1.
// Relógio voltando no tempo (elapsed < 0) é tratado como elapsed = 0.
func retryAfterSeconds(window, elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := window - elapsed
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

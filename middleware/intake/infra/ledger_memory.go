package infra

import (
	"context"
	"sync"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
)

// MemoryLedger guarda o último envio admitido por chave, em memória do processo.
//
// Por padrão as entradas nunca expiram (crescimento sem limite durante a vida do
// processo). WithIdleTTL + StartJanitor ativam a expiração de chaves inativas;
// isso é uma mudança de comportamento opt-in: uma chave esquecida volta a ser
// tratada como "nunca vista". Use idleTTL >= janela do rate limit.
type MemoryLedger struct {
	mu           sync.Mutex
	entries      map[domain.Key]time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
	clock        domain.Clock
}

type LedgerOption func(*MemoryLedger)

func WithIdleTTL(d time.Duration) LedgerOption {
	return func(l *MemoryLedger) { l.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LedgerOption {
	return func(l *MemoryLedger) { l.cleanupEvery = d }
}

// WithLedgerClock define o relógio usado pela limpeza (Cleanup).
func WithLedgerClock(c domain.Clock) LedgerOption {
	return func(l *MemoryLedger) { l.clock = c }
}

func NewMemoryLedger(opts ...LedgerOption) *MemoryLedger {
	l := &MemoryLedger{
		entries:      make(map[domain.Key]time.Time),
		cleanupEvery: 2 * time.Minute,
		clock:        wallClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLedger) IdleTTL() time.Duration { return l.idleTTL }

// Admit implementa domain.Ledger. Nunca retorna erro.
func (l *MemoryLedger) Admit(_ context.Context, key domain.Key, now time.Time, window time.Duration) (domain.Admission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.entries[key]; ok && now.Sub(last) < window {
		return domain.Admission{Admitted: false, Last: last}, nil
	}

	l.entries[key] = now
	return domain.Admission{Admitted: true, Last: now}, nil
}

// Len devolve o número de visitantes rastreados.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cleanup remove chaves sem envio admitido há mais de idleTTL.
// Sem idleTTL (padrão) não faz nada.
func (l *MemoryLedger) Cleanup() {
	if l.idleTTL <= 0 {
		return
	}
	cutoff := l.clock.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, last := range l.entries {
		if last.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto. Sem idleTTL a goroutine não é iniciada.
func (l *MemoryLedger) StartJanitor(ctx DoneContext) {
	if l.idleTTL <= 0 || l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

package application

import (
	"context"
	"errors"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
)

var (
	// ErrNoBudget: o orçamento global de chamadas ao serviço de IA acabou.
	ErrNoBudget = errors.New("upstream budget exhausted")
	// ErrNoSlot: nenhuma vaga de chamada simultânea dentro de AcquireTimeout.
	ErrNoSlot = errors.New("no upstream slot available")
)

// UpstreamGate protege o serviço de orquestração de IA com um orçamento global
// (Throttle) e um limite de chamadas simultâneas (Pool), sem saber nada sobre HTTP.
//
// O portão é consultado ANTES do rate limit do visitante: uma submissão recusada
// aqui não consome a janela do visitante, e o Ticket permite devolver token e
// vaga quando o rate limit recusa depois.
type UpstreamGate struct {
	Throttle       domain.Throttle
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Ticket segura o token do orçamento e a vaga de uma submissão em andamento.
type Ticket struct {
	refund  func()
	release func()
}

// Refund devolve token e vaga: a submissão não vai ao upstream.
func (t Ticket) Refund() {
	if t.refund != nil {
		t.refund()
	}
	t.Done()
}

// Done libera a vaga depois da chamada ao upstream; o token continua gasto.
func (t Ticket) Done() {
	if t.release != nil {
		t.release()
	}
}

// Enter reserva um token do orçamento e depois uma vaga. Sem vaga, o token é
// devolvido antes de retornar ErrNoSlot.
func (g UpstreamGate) Enter(ctx context.Context) (Ticket, error) {
	var t Ticket
	if g.Throttle != nil {
		refund, ok := g.Throttle.Reserve()
		if !ok {
			return Ticket{}, ErrNoBudget
		}
		t.refund = refund
	}

	release, ok := g.Acquire(ctx)
	if !ok {
		if t.refund != nil {
			t.refund()
		}
		return Ticket{}, ErrNoSlot
	}
	t.release = release
	return t, nil
}

// Acquire toma uma vaga do Pool. Sem Pool a vaga é imediata.
// AcquireTimeout <= 0 espera até o ctx encerrar; > 0 desiste após o timeout.
func (g UpstreamGate) Acquire(ctx context.Context) (func(), bool) {
	if g.Pool == nil {
		return func() {}, true
	}

	if g.AcquireTimeout <= 0 {
		return g.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, g.AcquireTimeout)
	defer cancel()
	return g.Pool.Acquire(acqCtx)
}

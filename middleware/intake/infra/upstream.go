package infra

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateThrottle é o token bucket global (x/time/rate) que protege o orçamento de
// chamadas ao serviço de IA, independente do visitante.
type RateThrottle struct {
	lim *rate.Limiter
	now func() time.Time
}

func NewRateThrottle(rps float64, burst int) *RateThrottle {
	return &RateThrottle{lim: rate.NewLimiter(rate.Limit(rps), burst), now: time.Now}
}

func (t *RateThrottle) RPS() float64 { return float64(t.lim.Limit()) }
func (t *RateThrottle) Burst() int   { return t.lim.Burst() }

// Tokens devolve os tokens disponíveis agora.
func (t *RateThrottle) Tokens() float64 { return t.lim.TokensAt(t.now()) }

// Reserve implementa domain.Throttle.
//
// A reserva e o refund usam o mesmo instante: rate.Reservation.Cancel() só
// devolve tokens de reservas cujo timeToAct ainda não passou, e uma reserva
// imediata já "passou" no nanossegundo seguinte.
func (t *RateThrottle) Reserve() (func(), bool) {
	at := t.now()
	r := t.lim.ReserveN(at, 1)
	if !r.OK() {
		return nil, false
	}
	if r.DelayFrom(at) > 0 {
		r.CancelAt(at)
		return nil, false
	}
	return func() { r.CancelAt(at) }, true
}

// ChanPool é o semáforo das chamadas simultâneas ao serviço de IA: cada
// submissão aceita ocupa uma vaga enquanto o proxy espera a resposta do
// upstream. Implementa domain.SlotPool; Cap/InUse alimentam os gauges.
type ChanPool struct {
	slots chan struct{}
}

func NewChanPool(max int) *ChanPool {
	return &ChanPool{slots: make(chan struct{}, max)}
}

func (p *ChanPool) Cap() int   { return cap(p.slots) }
func (p *ChanPool) InUse() int { return len(p.slots) }

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, true
	case <-ctx.Done():
		return nil, false
	}
}

package infra

import (
	"context"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe as decisões como contador. Não usa a chave do visitante
// como label (cardinalidade).
type PrometheusStats struct {
	decisions *prometheus.CounterVec
}

// NewPrometheusStats registra o contador. Para cada rota informada (ex.:
// "POST /api/problems") todas as séries de outcome nascem zeradas, então
// rate()/increase() funcionam desde a primeira decisão.
func NewPrometheusStats(reg prometheus.Registerer, namespace string, routes ...string) (*PrometheusStats, error) {
	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_decisions_total",
			Help:      "Total number of problem submission decisions by outcome",
		},
		[]string{"outcome", "route"},
	)
	if err := reg.Register(decisions); err != nil {
		return nil, err
	}
	for _, route := range routes {
		for _, o := range domain.Outcomes() {
			decisions.WithLabelValues(string(o), route)
		}
	}
	return &PrometheusStats{decisions: decisions}, nil
}

func (p *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	p.decisions.WithLabelValues(string(ev.Outcome), ev.Method+" "+ev.Path).Inc()
	return nil
}

// Counter devolve o contador de um outcome/rota (usado em testes e diagnósticos).
func (p *PrometheusStats) Counter(outcome domain.Outcome, route string) prometheus.Counter {
	return p.decisions.WithLabelValues(string(outcome), route)
}

// RegisterPoolGauges publica ocupação do semáforo de upstream.
func RegisterPoolGauges(reg prometheus.Registerer, namespace string, pool *ChanPool) error {
	inUse := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upstream_slots_in_use",
		Help:      "Upstream calls currently holding a concurrency slot",
	}, func() float64 { return float64(pool.InUse()) })
	capacity := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upstream_slots_capacity",
		Help:      "Maximum concurrent upstream calls",
	}, func() float64 { return float64(pool.Cap()) })

	if err := reg.Register(inUse); err != nil {
		return err
	}
	return reg.Register(capacity)
}

// RegisterLedgerGauge publica o número de visitantes rastreados no ledger em memória.
func RegisterLedgerGauge(reg prometheus.Registerer, namespace string, l *MemoryLedger) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ratelimit_ledger_entries",
		Help:      "Visitors tracked by the in-memory rate limit ledger",
	}, func() float64 { return float64(l.Len()) }))
}

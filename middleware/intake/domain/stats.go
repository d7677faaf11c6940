package domain

import (
	"context"
	"time"
)

// Outcome classifica a decisão tomada para uma submissão.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeThrottled   Outcome = "throttled"
	OutcomeUnavailable Outcome = "unavailable"
)

// Outcomes lista todos os resultados possíveis (usado para pré-registrar séries).
func Outcomes() []Outcome {
	return []Outcome{OutcomeAccepted, OutcomeInvalid, OutcomeRateLimited, OutcomeThrottled, OutcomeUnavailable}
}

// StatsEvent representa um evento de decisão da triagem.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas da triagem.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

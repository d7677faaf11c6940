package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key é a identidade opaca do visitante (chave de partição do rate limit).
type Key string

// Clock abstrai a fonte de tempo para que testes possam avançar o relógio.
type Clock interface {
	Now() time.Time
}

// Admission é o resultado bruto de uma tentativa de admissão no ledger.
//
// Quando Admitted=false, Last carrega o instante da última submissão admitida
// para a chave (o ledger não foi alterado).
type Admission struct {
	Admitted bool
	Last     time.Time
}

// Ledger guarda, por chave, o instante da última submissão admitida.
//
// Admit é a única operação e precisa ser atômica por chave: se a chave nunca foi
// vista, ou se now-last >= window, grava now e retorna Admitted=true; caso
// contrário devolve o last armazenado sem tocar no registro.
//
// Implementações em memória nunca retornam erro. Implementações com I/O (Redis)
// podem retornar.
type Ledger interface {
	Admit(ctx context.Context, key Key, now time.Time, window time.Duration) (Admission, error)
}

// Throttle é o orçamento global de chamadas ao serviço de orquestração de IA,
// compartilhado por todos os visitantes.
//
// Reserve tira um token sem bloquear. Com ok=false nada foi consumido. Com
// ok=true o token fica reservado até o chamador decidir: se a submissão não
// seguir para o upstream (visitante dentro da janela, ledger fora do ar, sem
// vaga), refund devolve o token.
type Throttle interface {
	Reserve() (refund func(), ok bool)
}

// RateLimitResult é a decisão do rate limit para uma submissão.
type RateLimitResult struct {
	Allowed bool `json:"allowed"`
	// RetryAfter é a espera mínima, em segundos inteiros (arredondado para cima),
	// antes de tentar de novo. Só é > 0 quando Allowed=false.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// RetryAfterDuration devolve RetryAfter como time.Duration.
func (r RateLimitResult) RetryAfterDuration() time.Duration {
	return time.Duration(r.RetryAfter) * time.Second
}

// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryLedger / RedisLedger: último envio admitido por visitante
//   - RateThrottle: orçamento global de chamadas ao serviço de IA (golang.org/x/time/rate)
//   - ChanPool: semáforo simples para limite de concorrência
//   - *StatsStore / PrometheusStats: estatísticas das decisões
//   - SQLiteSubmissionLog: registro das submissões aceitas
package infra

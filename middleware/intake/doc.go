// Package intake fornece adapters HTTP (net/http) para a triagem de problemas
// enviados pelo funil de captação: validação do texto, rate limit por visitante
// e controle de saída para o serviço de orquestração de IA.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (validação, decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (ledger em memória/Redis, token bucket, semáforo,
//     estatísticas, log de submissões), detalhes de infraestrutura
//   - intake (este pacote): middlewares HTTP + extração da chave do visitante + tradução
//     para status/headers
//
// Fluxo no gateway:
//
//   1) Lê o JSON {"problem","domain","visitorId"} da submissão
//   2) Valida o texto; se inválido responde 422 com todos os erros
//   3) Extrai a chave do visitante (body/header/XFF/IP) e consulta o rate limit;
//      se bloqueado responde 429 com Retry-After
//   4) Consulta o orçamento global do upstream (503 se esgotado)
//   5) Se permitido, registra a submissão e chama o próximo handler (reverse proxy
//      para o serviço de orquestração de IA)
//
// Variáveis de ambiente do binário cmd/intake-gateway controlam o comportamento,
// como RATE_WINDOW, VALIDATION_POLICY, UPSTREAM_RPS e CONCURRENCY_MAX.
package intake

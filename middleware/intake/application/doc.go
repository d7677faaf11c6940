// Package application contém os casos de uso (regras de aplicação) da triagem de
// problemas: validação de texto, rate limit por visitante e o portão de saída
// para o serviço de orquestração de IA.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: RateLimiter.CheckRateLimit(ctx, visitor) retorna um RateLimitResult
// (allow/deny + retry-after).
package application

// Package domain define contratos e tipos de domínio para a triagem de problemas
// (validação de texto + rate limit por visitante).
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (memória, Redis, SQLite).
package domain

package domain

import "context"

// SlotPool limita quantas submissões aceitas estão ao mesmo tempo aguardando o
// serviço de orquestração de IA. A vaga é tomada antes do rate limit do
// visitante e só é devolvida quando a resposta do upstream termina (ou quando a
// submissão é recusada antes de sair).
//
// Acquire bloqueia até haver vaga ou até o ctx encerrar; com ok=true, release
// deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

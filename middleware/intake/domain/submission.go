package domain

import (
	"context"
	"time"
)

// Submission é um problema que passou pela validação e pelo rate limit e foi
// encaminhado ao serviço de orquestração de IA.
type Submission struct {
	ID         string
	VisitorID  Key
	Domain     Domain
	Text       string
	ReceivedAt time.Time
}

// SubmissionLog registra submissões aceitas. Escrita é best-effort do ponto de
// vista do middleware.
type SubmissionLog interface {
	Append(ctx context.Context, s Submission) error
}

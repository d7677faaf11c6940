package application

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
)

// Mensagens exibidas ao visitante sem tradução adicional pela interface.
const (
	MsgTextTooShort   = "description too short — provide more detail."
	MsgTextRepetitive = "text appears repetitive or invalid — describe your actual problem."

	MsgInputRequired = "problem text is required."
	MsgInvalidDomain = "invalid domain."
)

// TextPolicy são os limites de qualidade usados por ValidateProblemText.
type TextPolicy struct {
	MinLength      int
	MinWords       int
	MinUniqueRatio float64
}

var DefaultTextPolicy = TextPolicy{
	MinLength:      20,
	MinWords:       5,
	MinUniqueRatio: 0.3,
}

// MsgTooFewWords é a mensagem de contagem mínima de palavras da política.
func (p TextPolicy) MsgTooFewWords() string {
	return fmt.Sprintf("text needs at least %d words.", p.MinWords)
}

// Validate aplica as três regras (tamanho, palavras, repetição) sem curto-circuito:
// todos os erros aplicáveis são devolvidos de uma vez.
func (p TextPolicy) Validate(text string) domain.ValidationResult {
	var errs []string

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < p.MinLength {
		errs = append(errs, MsgTextTooShort)
	}

	words := strings.Fields(trimmed)
	if len(words) < p.MinWords {
		errs = append(errs, p.MsgTooFewWords())
	}

	if uniqueRatio(words) < p.MinUniqueRatio {
		errs = append(errs, MsgTextRepetitive)
	}

	return domain.NewValidationResult(errs)
}

// uniqueRatio = palavras distintas (case-insensitive) / total. Sem palavras => 1.
func uniqueRatio(words []string) float64 {
	if len(words) == 0 {
		return 1
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.ToLower(w)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

// ValidateProblemText valida a descrição livre do problema com DefaultTextPolicy.
func ValidateProblemText(text string) domain.ValidationResult {
	return DefaultTextPolicy.Validate(text)
}

// InputPolicy são os limites da validação estrita (texto + domínio).
//
// Não é uma extensão de TextPolicy: as duas políticas são independentes.
type InputPolicy struct {
	MinLength int
	MaxLength int
	Domains   []domain.Domain
}

var DefaultInputPolicy = InputPolicy{
	MinLength: 10,
	MaxLength: 5000,
	Domains:   domain.Domains(),
}

func (p InputPolicy) MsgTooShort() string {
	return fmt.Sprintf("problem text too short (minimum %d characters).", p.MinLength)
}

func (p InputPolicy) MsgTooLong() string {
	return fmt.Sprintf("problem text too long (maximum %d characters).", p.MaxLength)
}

// Validate exige texto não vazio, tamanho em [MinLength, MaxLength] e domínio
// pertencente a Domains. O domínio é comparado de forma exata.
func (p InputPolicy) Validate(text, dom string) domain.ValidationResult {
	var errs []string

	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		errs = append(errs, MsgInputRequired)
	}
	if n < p.MinLength {
		errs = append(errs, p.MsgTooShort())
	}
	if n > p.MaxLength {
		errs = append(errs, p.MsgTooLong())
	}
	if !p.allows(domain.Domain(dom)) {
		errs = append(errs, MsgInvalidDomain)
	}

	return domain.NewValidationResult(errs)
}

func (p InputPolicy) allows(d domain.Domain) bool {
	for _, allowed := range p.Domains {
		if d == allowed {
			return true
		}
	}
	return false
}

// ValidateProblemInput valida texto + domínio com DefaultInputPolicy.
func ValidateProblemInput(text, dom string) domain.ValidationResult {
	return DefaultInputPolicy.Validate(text, dom)
}

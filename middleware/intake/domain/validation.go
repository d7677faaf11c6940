package domain

import "strings"

// ValidationResult agrega todos os motivos de rejeição de um texto, na ordem em
// que as regras foram avaliadas. Valid é true se e somente se Errors está vazio.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// NewValidationResult monta o resultado a partir dos erros coletados.
// Errors nunca é nil, para serializar como [] e não null.
func NewValidationResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Domain é a dimensão do problema escolhida pelo visitante.
type Domain string

const (
	DomainTechnical Domain = "technical"
	DomainBusiness  Domain = "business"
	DomainStrategic Domain = "strategic"
)

// Domains lista os domínios aceitos, na ordem exibida pela interface.
func Domains() []Domain {
	return []Domain{DomainTechnical, DomainBusiness, DomainStrategic}
}

func (d Domain) Valid() bool {
	switch d {
	case DomainTechnical, DomainBusiness, DomainStrategic:
		return true
	}
	return false
}

// ParseDomain normaliza (trim + lower) e valida o domínio.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Valid()
}

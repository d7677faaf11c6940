package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
)

// Policy escolhe qual validador protege a rota.
type Policy string

const (
	// PolicyText usa ValidateProblemText (fase de descrição do problema).
	PolicyText Policy = "text"
	// PolicyInput usa ValidateProblemInput (texto + domínio).
	PolicyInput Policy = "input"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyText, PolicyInput:
		return p, nil
	case "":
		return PolicyText, nil
	default:
		return "", fmt.Errorf("unknown validation policy %q", s)
	}
}

// DefaultMaxBodyBytes limita o JSON de uma submissão.
const DefaultMaxBodyBytes int64 = 64 << 10

// SubmissionRequest é o corpo JSON enviado pela interface.
type SubmissionRequest struct {
	Problem   string `json:"problem"`
	Domain    string `json:"domain,omitempty"`
	VisitorID string `json:"visitorId,omitempty"`
}

// Validator aplica uma das duas políticas, nunca as duas juntas.
type Validator struct {
	Policy Policy
	Text   application.TextPolicy
	Input  application.InputPolicy
}

// NewValidator devolve um Validator com as políticas padrão.
func NewValidator(p Policy) Validator {
	return Validator{
		Policy: p,
		Text:   application.DefaultTextPolicy,
		Input:  application.DefaultInputPolicy,
	}
}

func (v Validator) Validate(req SubmissionRequest) domain.ValidationResult {
	if v.Policy == PolicyInput {
		return v.Input.Validate(req.Problem, req.Domain)
	}
	return v.Text.Validate(req.Problem)
}

var errBodyTooLarge = errors.New("request body too large")

// readSubmission lê e decodifica o corpo, devolvendo também os bytes crus
// para que possam ser repassados ao upstream.
func readSubmission(w http.ResponseWriter, r *http.Request, max int64) (SubmissionRequest, []byte, error) {
	var req SubmissionRequest
	if r.Body == nil {
		return req, nil, errors.New("missing request body")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, max))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, nil, errBodyTooLarge
		}
		return req, nil, fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return req, body, nil
}

func bodyErrorStatus(err error) int {
	if errors.Is(err, errBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// ValidateHandler responde POST /api/validate: só valida, não consome a janela
// do rate limit. Sempre 200 quando o JSON é legível; o veredito vai no corpo.
func ValidateHandler(v Validator, maxBodyBytes int64) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, _, err := readSubmission(w, r, maxBodyBytes)
		if err != nil {
			writeError(w, bodyErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, v.Validate(req))
	})
}

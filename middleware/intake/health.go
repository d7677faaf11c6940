package intake

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck é uma dependência verificada por /healthz (ex: ping no Redis).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler responde 200 {"status":"ok"} ou 503 com as verificações que falharam.
func HealthHandler(timeout time.Duration, checks ...HealthCheck) http.Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		body := healthBody{Status: "ok"}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				if body.Checks == nil {
					body.Checks = make(map[string]string)
				}
				body.Checks[c.Name] = err.Error()
				body.Status = "degraded"
			}
		}

		status := http.StatusOK
		if body.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, body)
	})
}

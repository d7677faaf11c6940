package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const problem = `{"problem":"Temos um problema sério de gestão de estoque que afeta nossas vendas diárias e causa prejuízo.","domain":"business"}`

func newUpstream(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":       r.URL.Path,
			"visitor":    r.Header.Get("X-Visitor-Id"),
			"submission": r.Header.Get("X-Submission-Id"),
			"body":       string(b),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rd)
	r.RemoteAddr = "192.0.2.10:4444"
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func testConfig(upstream string) config {
	cfg := defaultConfig()
	cfg.UpstreamURL = upstream
	return cfg
}

func TestBuildGateway_EndToEnd(t *testing.T) {
	var hits atomic.Int32
	up := newUpstream(t, &hits)

	cfg := testConfig(up.URL)
	cfg.SubmissionLogPath = filepath.Join(t.TempDir(), "submissions.db")
	require.NoError(t, cfg.validate())

	gw, err := buildGateway(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	visitor := map[string]string{"X-Visitor-Id": "user_1"}

	w := do(t, gw.Handler, http.MethodPost, "/api/problems", problem, visitor)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var echoed map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &echoed))
	assert.Equal(t, "user_1", echoed["visitor"])
	assert.Equal(t, problem, echoed["body"])
	assert.NotEmpty(t, echoed["submission"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = do(t, gw.Handler, http.MethodPost, "/api/problems", problem, visitor)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))

	// a rota estrita compartilha a janela do visitante
	w = do(t, gw.Handler, http.MethodPost, "/api/problems/analyze", problem, visitor)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(t, gw.Handler, http.MethodPost, "/api/problems/analyze", `{"problem":"ok text here now","domain":"nope"}`, map[string]string{"X-Visitor-Id": "user_3"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, gw.Handler, http.MethodPost, "/api/validate", `{"problem":"curto"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)

	// rotas fora da triagem passam direto
	w = do(t, gw.Handler, http.MethodGet, "/api/blueprints/1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, gw.Handler, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, gw.Handler, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `lead_intake_intake_decisions_total{outcome="rate_limited",route="POST /api/problems"} 1`)
	assert.Contains(t, w.Body.String(), "lead_intake_ratelimit_ledger_entries 1")
	// séries pré-registradas aparecem zeradas
	assert.Contains(t, w.Body.String(), `lead_intake_intake_decisions_total{outcome="throttled",route="POST /api/problems/analyze"} 0`)
	assert.Contains(t, w.Body.String(), "lead_intake_upstream_slots_in_use 0")

	assert.Equal(t, int32(2), hits.Load())

	out, err := runCLI(t, "", "submissions", "--db", cfg.SubmissionLogPath, "--visitor", "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, `"domain":"business"`)
}

func TestBuildGateway_RedisLedgerAndStats(t *testing.T) {
	mr := miniredis.RunT(t)
	var hits atomic.Int32
	up := newUpstream(t, &hits)

	cfg := testConfig(up.URL)
	cfg.Rate.Ledger = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Stats.Enabled = true
	cfg.MetricsEnabled = false
	require.NoError(t, cfg.validate())

	gw, err := buildGateway(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	visitor := map[string]string{"X-Visitor-Id": "user_2"}
	require.Equal(t, http.StatusOK, do(t, gw.Handler, http.MethodPost, "/api/problems", problem, visitor).Code)
	require.Equal(t, http.StatusTooManyRequests, do(t, gw.Handler, http.MethodPost, "/api/problems", problem, visitor).Code)

	assert.True(t, mr.Exists("intake:ratelimit:user_2"))
	assert.Equal(t, "1", mr.HGet("intake:stats:total", "accepted"))
	assert.Equal(t, "1", mr.HGet("intake:stats:total", "rate_limited"))

	// sem /metrics local a rota cai no upstream
	assert.Equal(t, http.StatusOK, do(t, gw.Handler, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBuildGateway_VisitorFromBodyDisabled(t *testing.T) {
	var hits atomic.Int32
	up := newUpstream(t, &hits)

	withID := func(id string) string {
		return `{"problem":"Temos um problema sério de gestão de estoque que afeta nossas vendas diárias e causa prejuízo.","visitorId":"` + id + `"}`
	}

	cfg := testConfig(up.URL)
	gw, err := buildGateway(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	// padrão: o visitorId do corpo vira a chave
	assert.Equal(t, http.StatusOK, do(t, gw.Handler, http.MethodPost, "/api/problems", withID("a"), nil).Code)
	assert.Equal(t, http.StatusOK, do(t, gw.Handler, http.MethodPost, "/api/problems", withID("b"), nil).Code)

	cfg.VisitorFromBody = false
	strict, err := buildGateway(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(strict.Close)

	// só o IP conta: trocar o visitorId não abre uma janela nova
	assert.Equal(t, http.StatusOK, do(t, strict.Handler, http.MethodPost, "/api/problems", withID("a"), nil).Code)
	w := do(t, strict.Handler, http.MethodPost, "/api/problems", withID("b"), nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, int32(3), hits.Load())
}

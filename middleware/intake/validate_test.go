package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/application"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postValidate(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, domain.ValidationResult) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "http://example/api/validate", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var res domain.ValidationResult
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func TestValidateHandler_TextPolicy(t *testing.T) {
	h := ValidateHandler(NewValidator(PolicyText), 0)

	w, res := postValidate(t, h, `{"problem":"curto"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{application.MsgTextTooShort, "text needs at least 5 words."}, res.Errors)

	w, res = postValidate(t, h, `{"problem":"`+goodProblem+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Valid)
	assert.Contains(t, w.Body.String(), `"errors":[]`)
}

func TestValidateHandler_InputPolicy(t *testing.T) {
	h := ValidateHandler(NewValidator(PolicyInput), 0)

	_, res := postValidate(t, h, `{"problem":"","domain":"technical"}`)
	assert.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors, application.MsgInputRequired)
}

func TestValidateHandler_MalformedJSON(t *testing.T) {
	h := ValidateHandler(NewValidator(PolicyText), 0)

	w, _ := postValidate(t, h, `[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" Input ")
	require.NoError(t, err)
	assert.Equal(t, PolicyInput, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyText, p)

	_, err = ParsePolicy("strict")
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCmd_ValidFromArgs(t *testing.T) {
	out, err := runCLI(t, "", "validate", "Temos", "um", "problema", "sério", "de", "gestão", "de", "estoque")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidateCmd_InvalidJSONFromStdin(t *testing.T) {
	out, err := runCLI(t, "teste teste teste teste teste teste teste teste", "validate", "--json")
	assert.ErrorIs(t, err, errInvalidText)

	var res domain.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"text appears repetitive or invalid — describe your actual problem."}, res.Errors)
}

func TestValidateCmd_InputPolicy(t *testing.T) {
	out, err := runCLI(t, "", "validate", "--policy", "input", "--domain", "invalid-domain", "ok text here now")
	assert.ErrorIs(t, err, errInvalidText)
	assert.Contains(t, out, "invalid domain.")

	_, err = runCLI(t, "", "validate", "--policy", "input", "--domain", "strategic", "ok text here now")
	assert.NoError(t, err)
}

func TestValidateCmd_UnknownPolicy(t *testing.T) {
	_, err := runCLI(t, "", "validate", "--policy", "strict", "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errInvalidText)
}

func TestValidateCmd_UsesConfiguredTextLimits(t *testing.T) {
	t.Setenv("TEXT_MIN_LENGTH", "200")

	out, err := runCLI(t, "", "validate", "--json", "Temos", "um", "problema", "sério", "de", "gestão", "de", "estoque")
	assert.ErrorIs(t, err, errInvalidText)

	var res domain.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"description too short — provide more detail."}, res.Errors)
}

func TestValidateCmd_PolicyFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validation:\n  policy: input\n"), 0o644))
	t.Setenv("VALIDATION_POLICY", "")

	// a política input não aceita domínio desconhecido
	out, err := runCLI(t, "", "validate", "--config", path, "--domain", "invalid-domain", "ok text here now")
	assert.ErrorIs(t, err, errInvalidText)
	assert.Contains(t, out, "invalid domain.")

	// --policy explícito vence o arquivo
	_, err = runCLI(t, "", "validate", "--config", path, "--policy", "text", "Temos", "um", "problema", "sério", "de", "gestão", "de", "estoque")
	assert.NoError(t, err)
}

func TestValidateCmd_RejectsBadConfiguredLimits(t *testing.T) {
	t.Setenv("TEXT_MIN_UNIQUE_RATIO", "2")

	_, err := runCLI(t, "", "validate", "x")
	assert.ErrorContains(t, err, "TEXT_MIN_UNIQUE_RATIO")
	assert.NotErrorIs(t, err, errInvalidText)
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/formlint"
)

const intakeForm = "../../../../forms/intake.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		lintJSON = false
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeForm(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const brokenForm = `
version: "bad"
sections:
  - key: personal
    title: Dados pessoais
    fields:
      - key: name
        label: Nome
        field_type: text
        data_path: personal.name
      - key: name
        label: Nome de novo
        field_type: text
        data_path: personal.other
`

func TestLintForm_Valid(t *testing.T) {
	out, err := execute(t, "lint-form", intakeForm)
	require.NoError(t, err)
	assert.Contains(t, out, "intake.yaml: ok (version 2024.1, 8 sections")
}

func TestLintForm_Invalid(t *testing.T) {
	out, err := execute(t, "lint-form", writeForm(t, brokenForm))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, out, "error [duplicate-key] personal.name")
}

func TestLintForm_JSON(t *testing.T) {
	out, err := execute(t, "lint-form", "--json", writeForm(t, brokenForm))
	require.Error(t, err)

	var result formlint.Result
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(out)).Decode(&result))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors())
	assert.Equal(t, "duplicate-key", result.Errors()[0].Rule)
}

func TestLintForm_Unreadable(t *testing.T) {
	_, err := execute(t, "lint-form", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, "lint-form", writeForm(t, "sections: [unterminated"))
	assert.Error(t, err)
}

func TestImportForm_RejectsInvalidBeforeConnecting(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")

	out, err := execute(t, "import-form", writeForm(t, brokenForm))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotContains(t, out, "connect to database")
}

func TestImportForm_RequiresFile(t *testing.T) {
	_, err := execute(t, "import-form")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/smokecheck/models"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		outcome models.Outcome
		want    int
	}{
		{models.OutcomePass, ExitPass},
		{models.OutcomeTitleMismatch, ExitTitleMismatch},
		{models.OutcomeUnreachable, ExitUnreachable},
		{models.OutcomeLoadTimeout, ExitLoadTimeout},
		{models.OutcomeError, ExitError},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(&models.CheckReport{Outcome: tt.outcome}))
		})
	}
	assert.Equal(t, ExitError, ExitCode(nil))
}

func TestWrite_Text(t *testing.T) {
	r := &models.CheckReport{
		URL:     "http://localhost:63441",
		Title:   "Untitled",
		Pattern: "/lifeline/i",
		Outcome: models.OutcomeTitleMismatch,
		Error:   &models.ErrorDetail{Code: models.ErrCodeTitleMismatch, Message: `title "Untitled" does not match /lifeline/i`},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, "text"))

	out := buf.String()
	assert.Contains(t, out, "FAIL (title_mismatch)")
	assert.Contains(t, out, `"Untitled"`)
	assert.Contains(t, out, "/lifeline/i")
	assert.Contains(t, out, "TITLE_MISMATCH")
}

func TestWrite_JSON(t *testing.T) {
	r := &models.CheckReport{URL: "http://localhost:63441", Title: "Lifeline", Passed: true, Outcome: models.OutcomePass}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, "json"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "pass", decoded["outcome"])
	assert.NotContains(t, decoded, "error")
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, &models.CheckReport{}, "xml"))
}

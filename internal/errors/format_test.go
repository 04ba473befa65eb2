package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_ShowsMessageAndCode(t *testing.T) {
	err := New(ErrCodeConfigNotFound, "config file '.vab.yaml' not found", nil)

	out := FormatForUser(err, false)

	assert.Contains(t, out, "config file '.vab.yaml' not found")
	assert.Contains(t, out, "[ERR_101_CONFIG_NOT_FOUND]")
}

func TestFormatForUser_ShowsSuggestionWhenSet(t *testing.T) {
	err := New(ErrCodeNetworkUnavailable, "embedding service is unreachable", nil).
		WithSuggestion("Start Ollama with 'ollama serve' or set VAB_EMBEDDER=static")

	out := FormatForUser(err, false)

	assert.Contains(t, out, "Suggestion:")
	assert.Contains(t, out, "VAB_EMBEDDER=static")
}

func TestFormatForUser_NormalModeHidesInternals(t *testing.T) {
	err := New(ErrCodeInternal, "upsert batch rejected", errors.New("gob: type mismatch")).
		WithDetail("shard", "7")

	out := FormatForUser(err, false)

	assert.NotContains(t, out, "gob: type mismatch")
	assert.NotContains(t, out, "shard")
}

func TestFormatForUser_DebugModeShowsCauseAndDetails(t *testing.T) {
	err := New(ErrCodeIndexFailed, "upsert batch rejected", errors.New("gob: type mismatch")).
		WithDetail("shard", "7")

	out := FormatForUser(err, true)

	assert.Contains(t, out, "gob: type mismatch")
	assert.Contains(t, out, "shard")
}

func TestFormatForUser_PlainAndNilErrors(t *testing.T) {
	assert.Contains(t, FormatForUser(errors.New("disk full"), false), "disk full")
	assert.Empty(t, FormatForUser(nil, false))
}

func TestFormatJSON_RoundTripsStructuredFields(t *testing.T) {
	err := New(ErrCodeMalformedRow, "catalog row is missing its name column", nil).
		WithDetail("sku", "VB-2044").
		WithSuggestion("Re-run the catalog import")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Equal(t, ErrCodeMalformedRow, payload["code"])
	assert.Equal(t, "catalog row is missing its name column", payload["message"])
	assert.Equal(t, string(CategoryData), payload["category"])
	assert.Equal(t, string(SeverityError), payload["severity"])
	assert.Equal(t, "Re-run the catalog import", payload["suggestion"])

	details, ok := payload["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VB-2044", details["sku"])
}

func TestFormatJSON_CoercesPlainErrors(t *testing.T) {
	data, jsonErr := FormatJSON(errors.New("catalog.db is locked"))
	require.NoError(t, jsonErr)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Equal(t, ErrCodeInternal, payload["code"])
	assert.Equal(t, "catalog.db is locked", payload["message"])
}

func TestFormatJSON_NilIsNull(t *testing.T) {
	data, err := FormatJSON(nil)

	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatJSON_IncludesCauseChain(t *testing.T) {
	inner := errors.New("connection refused")
	data, jsonErr := FormatJSON(New(ErrCodeEmbedService, "embedding request failed", inner))
	require.NoError(t, jsonErr)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Equal(t, "connection refused", payload["cause"])
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "vector index sidecar is unreadable", nil).
		WithSuggestion("Run 'vab index --force' to rebuild")

	out := FormatForCLI(err)

	assert.Contains(t, out, "vector index sidecar is unreadable")
	assert.Contains(t, out, "ERR_203_CORRUPT_INDEX")
	assert.Contains(t, out, "vab index --force")

	// Stays terse even with hint and code lines.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.LessOrEqual(t, len(lines), 5)
}

func TestFormatForLog_FlattensFields(t *testing.T) {
	err := New(ErrCodeEmptySKU, "row 12 has no SKU", nil).WithDetail("row", "12")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeEmptySKU, fields["error_code"])
	assert.Equal(t, "row 12 has no SKU", fields["message"])
	assert.Equal(t, "12", fields["detail_row"])
}

package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_MessageAndSuggestion(t *testing.T) {
	// Given: an error with a suggestion
	err := New(ErrCodeNetworkUnavailable, "search backend unreachable", errors.New("dial tcp: refused")).
		WithSuggestion("check search.endpoint")

	// When: formatting without verbose
	result := FormatForUser(err, false)

	// Then: message and suggestion are shown, code is hidden
	assert.Equal(t, "search backend unreachable (check search.endpoint)", result)
}

func TestFormatForUser_Verbose(t *testing.T) {
	err := New(ErrCodeNetworkUnavailable, "unreachable", errors.New("dial tcp: refused"))

	result := FormatForUser(err, true)

	assert.Contains(t, result, "[ERR_302_NETWORK_UNAVAILABLE]")
	assert.Contains(t, result, "dial tcp: refused")
}

func TestFormatForUser_StandardAndNil(t *testing.T) {
	assert.Equal(t, "something went wrong", FormatForUser(errors.New("something went wrong"), false))
	assert.Empty(t, FormatForUser(nil, true))
}

func TestFormatForCLI(t *testing.T) {
	// Given: a rate limit error with a hint
	err := New(ErrCodeRateLimited, "quota exceeded", nil).WithSuggestion("wait for next month")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: message, hint and code appear on separate lines
	assert.Equal(t, "Error: quota exceeded\n  Hint: wait for next month\n  Code: ERR_303_RATE_LIMITED\n", result)
}

func TestFormatForCLI_WrapsStandardError(t *testing.T) {
	result := FormatForCLI(errors.New("boom"))

	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	// Given: an error with details and a cause
	err := New(ErrCodeUpstreamStatus, "unexpected status", errors.New("500 Internal Server Error")).
		WithDetail("status", "500")

	// When: formatting as JSON
	data, jsonErr := FormatJSON(err)

	// Then: fields are present
	require.NoError(t, jsonErr)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, ErrCodeUpstreamStatus, parsed["code"])
	assert.Equal(t, "NETWORK", parsed["category"])
	assert.Equal(t, "500 Internal Server Error", parsed["cause"])
	assert.Equal(t, true, parsed["retryable"])
	assert.Equal(t, map[string]any{"status": "500"}, parsed["details"])
}

func TestLogAttrs(t *testing.T) {
	// Given: an error with two details
	err := New(ErrCodeUpstreamStatus, "unexpected status", nil).
		WithDetail("status", "502").
		WithDetail("endpoint", "http://localhost")

	// When: building log attributes
	attrs := LogAttrs(err)

	// Then: details are sorted and prefixed
	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{"error_code", "error", "category", "severity", "detail_endpoint", "detail_status"}, keys)
}

func TestLogAttrs_PlainAndNil(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
	attrs := LogAttrs(errors.New("plain"))
	require.Len(t, attrs, 1)
	assert.Equal(t, "error", attrs[0].Key)
	assert.Equal(t, slog.KindString, attrs[0].Value.Kind())
	assert.Equal(t, "plain", attrs[0].Value.String())
}

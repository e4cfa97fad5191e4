package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-10-18T10:00:00.000Z","level":"INFO","msg":"session_started","session_id":"a"}
{"time":"2026-10-18T10:00:01.000Z","level":"DEBUG","msg":"search_started","session_id":"a","query":"refund policy"}
not json at all
{"time":"2026-10-18T10:00:02.000Z","level":"ERROR","msg":"search_failed","session_id":"b","error_code":"ERR_303_RATE_LIMITED"}
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docchat.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestViewer_Tail_All(t *testing.T) {
	// Given: a log with four lines
	path := writeSample(t)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	// When: tailing without limit
	entries, err := v.Tail(path, 0)

	// Then: every line is returned, the invalid one raw
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.False(t, entries[2].IsValid)
	assert.Equal(t, "not json at all", entries[2].Raw)
	assert.Equal(t, "a", entries[1].SessionID)
	assert.Equal(t, "refund policy", entries[1].Attrs["query"])
}

func TestViewer_Tail_LastN(t *testing.T) {
	path := writeSample(t)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 1)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "search_failed", entries[0].Msg)
}

func TestViewer_Filters(t *testing.T) {
	path := writeSample(t)

	tests := []struct {
		name string
		cfg  ViewerConfig
		msgs []string
	}{
		{"level", ViewerConfig{Level: "info"}, []string{"session_started", "", "search_failed"}},
		{"session", ViewerConfig{SessionID: "a"}, []string{"session_started", "search_started"}},
		{"pattern", ViewerConfig{Pattern: regexp.MustCompile("RATE_LIMITED")}, []string{"search_failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.NoColor = true
			entries, err := NewViewer(tt.cfg, &bytes.Buffer{}).Tail(path, 0)
			require.NoError(t, err)

			var msgs []string
			for _, e := range entries {
				msgs = append(msgs, e.Msg)
			}
			assert.Equal(t, tt.msgs, msgs)
		})
	}
}

func TestViewer_PrintFormatsEntries(t *testing.T) {
	path := writeSample(t)
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true, SessionID: "b"}, buf)

	entries, err := v.Tail(path, 0)
	require.NoError(t, err)
	v.Print(entries)

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, "10:00:02.000 ERROR search_failed error_code=ERR_303_RATE_LIMITED", line)
}

func TestViewer_Tail_MissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	_, err := v.Tail(filepath.Join(t.TempDir(), "missing.log"), 10)

	assert.Error(t, err)
}

package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docchat/internal/session"
)

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_WithOptions(t *testing.T) {
	// Given: a dispatcher and options
	var got []session.Event
	in := &bytes.Buffer{}

	// When: creating config
	cfg := NewConfig(&bytes.Buffer{},
		WithForcePlain(true),
		WithNoColor(true),
		WithInput(in),
		WithDispatcher(func(ev session.Event) { got = append(got, ev) }),
	)

	// Then: every option is applied
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Same(t, in, cfg.Input)
	require.NotNil(t, cfg.Dispatch)
	cfg.Dispatch(session.Submit{})
	assert.Equal(t, []session.Event{session.Submit{}}, got)
}

func TestNewRenderer_ForcePlain_ReturnsPlainRenderer(t *testing.T) {
	r := NewRenderer(NewConfig(os.Stdout, WithForcePlain(true)))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_NonTTY_ReturnsPlainRenderer(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestUsePlain(t *testing.T) {
	assert.True(t, UsePlain(NewConfig(&bytes.Buffer{})))
	assert.True(t, UsePlain(NewConfig(os.Stdout, WithForcePlain(true))))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())

	require.NoError(t, os.Unsetenv("NO_COLOR"))
	assert.False(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
		require.NoError(t, os.Unsetenv(v))
	}
	assert.False(t, DetectCI())

	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

package cmd

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
)

func TestDoctorCmd_Ready(t *testing.T) {
	// Given: a reachable backend
	isolate(t)
	backend(t, http.StatusOK, nil)

	// When: running doctor
	out, err := run(t, "", "doctor")

	// Then: required checks pass; the piped terminal is only a warning
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS] config: OK")
	assert.Contains(t, out, "[PASS] backend")
	assert.Contains(t, out, "[WARN] terminal")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
}

func TestDoctorCmd_JSON(t *testing.T) {
	isolate(t)
	backend(t, http.StatusOK, nil)

	out, err := run(t, "", "doctor", "--json")

	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, "ready_with_warnings", report.Status)
	require.Len(t, report.Checks, 4)
	assert.Equal(t, "config", report.Checks[0].Name)
	assert.Equal(t, "pass", report.Checks[0].Status)
}

func TestDoctorCmd_InvalidConfigIsReported(t *testing.T) {
	// Given: an invalid stale policy from the environment
	isolate(t)
	t.Setenv("DOCCHAT_STALE_POLICY", "newest")

	// When: running doctor
	out, err := run(t, "", "doctor")

	// Then: the failure is listed and the command fails
	require.Error(t, err)
	assert.Equal(t, dcerrors.ErrCodeConfigInvalid, dcerrors.GetCode(err))
	assert.Contains(t, out, "[FAIL] config")
	assert.NotContains(t, out, "backend")
}

func TestDoctorCmd_FlagFixesConfig(t *testing.T) {
	isolate(t)
	backend(t, http.StatusOK, nil)
	t.Setenv("DOCCHAT_STALE_POLICY", "newest")

	_, err := run(t, "", "doctor", "--stale-policy", "last_wins")

	assert.NoError(t, err)
}

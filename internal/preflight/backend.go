package preflight

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Aman-CERP/docchat/internal/config"
	"github.com/Aman-CERP/docchat/pkg/version"
)

// CheckBackend verifies that the search backend answers HTTP.
// Any status counts as reachable. The probe sends no query.
func (c *Checker) CheckBackend(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "backend",
		Required: true,
		Details:  cfg.Search.Endpoint,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.Search.Endpoint, nil)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("invalid endpoint: %v", err)
		return result
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		result.Status = StatusFail
		result.Message = "unreachable"
		result.Details = err.Error()
		return result
	}
	_ = resp.Body.Close()

	result.Status = StatusPass
	result.Message = fmt.Sprintf("reachable (HTTP %d)", resp.StatusCode)
	return result
}

package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/docchat/internal/config"
	"github.com/Aman-CERP/docchat/internal/logging"
)

// CheckLogDir checks that the log directory can be written. Logging
// problems never stop a chat, so the check is optional.
func (c *Checker) CheckLogDir(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "log_dir",
		Required: false,
	}

	dir := c.logDir
	if dir == "" && cfg != nil && cfg.Logging.File != "" {
		dir = filepath.Dir(cfg.Logging.File)
	}
	if dir == "" {
		dir = logging.DefaultLogDir()
	}
	result.Details = dir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot create: %v", err)
		return result
	}

	f, err := os.CreateTemp(dir, ".docchat-preflight-*")
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckTerminal reports whether the full-screen chat will be used.
func (c *Checker) CheckTerminal(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "terminal",
		Required: false,
	}

	switch {
	case cfg != nil && cfg.UI.Plain:
		result.Status = StatusPass
		result.Message = "line mode (ui.plain is set)"
	case c.terminal():
		result.Status = StatusPass
		result.Message = "full-screen chat"
	default:
		result.Status = StatusWarn
		result.Message = "not a terminal; chat falls back to line mode"
	}
	return result
}

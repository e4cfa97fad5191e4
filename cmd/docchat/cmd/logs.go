package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/logging"
	"github.com/Aman-CERP/docchat/internal/ui"
)

type logsOptions struct {
	lines     int
	level     string
	filter    string
	sessionID string
	noColor   bool
	logFile   string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent docchat log entries",
		Long: `Show the most recent entries of the docchat log file.

Logs are written to ~/.docchat/logs/docchat.log while a chat is running.
Every entry carries the session_id of the chat that wrote it.`,
		Example: `  docchat logs                    # Last 50 entries
  docchat logs -n 200             # Last 200 entries
  docchat logs --level error      # Errors only
  docchat logs --grep rate_limit  # Entries matching a pattern
  docchat logs --session <id>     # One chat session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "grep", "", "Only entries matching this pattern (regex)")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Only entries of this session")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return dcerrors.New(dcerrors.ErrCodeFileNotFound, err.Error(), err).
			WithSuggestion("Pass --file or start a chat first")
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return dcerrors.ValidationError(fmt.Sprintf("invalid --grep pattern: %v", err), err)
		}
	}

	level := strings.ToLower(opts.level)
	switch level {
	case "", "debug", "info", "warn", "error":
	default:
		return dcerrors.ValidationError(fmt.Sprintf("invalid level %q", opts.level), nil).
			WithSuggestion("Use one of: debug, info, warn, error")
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:     level,
		Pattern:   pattern,
		SessionID: opts.sessionID,
		NoColor:   opts.noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()),
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

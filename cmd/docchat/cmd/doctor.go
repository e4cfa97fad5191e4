package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docchat/internal/config"
	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/output"
	"github.com/Aman-CERP/docchat/internal/preflight"
	"github.com/Aman-CERP/docchat/internal/ui"
)

func newDoctorCmd() *cobra.Command {
	var (
		flags      sessionFlags
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backend reachability",
		Long: `Run diagnostics to ensure docchat can chat with its backend.

Checks:
  - Configuration validity
  - Search backend reachability (no query is sent)
  - Log directory write permissions
  - Terminal support for the full-screen chat

Log directory and terminal checks are non-critical warnings.`,
		Example: `  # Run diagnostics
  docchat doctor

  # Check another backend
  docchat doctor --endpoint https://search.example.com

  # JSON output for scripting
  docchat doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, &flags, verbose, jsonOutput)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, flags *sessionFlags, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	// Left unvalidated; an invalid config is reported as a failed check.
	cfg, err := config.Merge(dir)
	if err != nil {
		return dcerrors.ConfigError(err.Error(), err)
	}
	applyFlags(cmd, flags, cfg)

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithTerminal(func() bool {
			return isTerminalInput(cmd.InOrStdin()) && ui.IsTTY(cmd.OutOrStdout())
		}),
	)
	results := checker.RunAll(ctx, cfg)

	if jsonOutput {
		report := doctorReport{Status: checker.SummaryStatus(results), Checks: results}
		if err := output.New(cmd.OutOrStdout()).JSON(report); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return dcerrors.New(dcerrors.ErrCodeConfigInvalid, "system check failed", nil).
			WithSuggestion("Fix the errors listed above and run 'docchat doctor' again")
	}
	return nil
}

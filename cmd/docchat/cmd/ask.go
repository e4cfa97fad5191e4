package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docchat/internal/discovery"
	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/output"
	"github.com/Aman-CERP/docchat/internal/session"
)

func newAskCmd() *cobra.Command {
	var flags sessionFlags
	var format string

	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Send one query and print the returned passages",
		Long: `Send a single query through a fresh chat session and print the result.

The query runs through the same session logic as the interactive chat, so
errors are reported the same way: quota exhaustion is distinguished from
every other failure.`,
		Example: `  # Plain text passages
  docchat ask refund policy

  # The final session state as JSON
  docchat ask --format json "shipping times"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, &flags, format, strings.Join(args, " "))
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runAsk(cmd *cobra.Command, flags *sessionFlags, format, query string) error {
	if format != "text" && format != "json" {
		return dcerrors.ValidationError(fmt.Sprintf("invalid format %q", format), nil).
			WithSuggestion("Use --format text or --format json")
	}
	if strings.TrimSpace(query) == "" {
		return dcerrors.New(dcerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	// Only the answer is printed, not the seeded greeting.
	cfg.Session.NoGreeting = true

	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := discovery.NewClient(discovery.ConfigFrom(cfg))
	if err != nil {
		return err
	}
	defer client.Close()

	controller := newController(cfg, client, nil)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var final session.State
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if err := controller.Dispatch(gctx, session.SubmitLine{Text: query}); err != nil {
			return err
		}
		var err error
		final, err = controller.WaitIdle(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return dcerrors.InternalError("search session ended early", err)
	}

	if flags.stats {
		defer printStats(cmd.ErrOrStderr(), controller.Metrics().Snapshot())
	}

	out := output.New(cmd.OutOrStdout())
	if format == "json" {
		if err := out.JSON(final); err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
		return stateError(final)
	}

	if err := stateError(final); err != nil {
		return err
	}
	for i, p := range final.Results {
		out.Passage(i+1, p.Text)
	}
	if final.ShowEmptyResults() {
		out.Status("", session.EmptyResultsMessage)
	}
	return nil
}

// stateError turns the error shown in the chat into a command error.
func stateError(s session.State) error {
	if s.Err == nil {
		return nil
	}
	if s.Err.Kind == session.ErrorRateLimited {
		return dcerrors.New(dcerrors.ErrCodeRateLimited, s.Err.Message, nil).
			WithSuggestion("The free query allowance is used up; try again next month")
	}
	return dcerrors.New(dcerrors.ErrCodeSearchFailed, s.Err.Message, nil).
		WithSuggestion("Run with --debug and check 'docchat logs' for the cause")
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docchat/internal/config"
	"github.com/Aman-CERP/docchat/internal/discovery"
	"github.com/Aman-CERP/docchat/internal/session"
	"github.com/Aman-CERP/docchat/internal/ui"
)

// runChat starts an interactive session: the full-screen chat on a
// terminal, line mode otherwise.
func runChat(cmd *cobra.Command, flags *sessionFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(cfg.UI.Plain),
		ui.WithNoColor(cfg.UI.NoColor),
		ui.WithInput(cmd.InOrStdin()),
	)

	var controller *session.Controller
	if ui.UsePlain(uiCfg) || !isTerminalInput(cmd.InOrStdin()) {
		controller, err = runLineMode(ctx, cmd.InOrStdin(), uiCfg, cfg, client)
	} else {
		controller, err = runTUI(ctx, uiCfg, cfg, client)
	}

	if flags.stats && controller != nil {
		printStats(cmd.ErrOrStderr(), controller.Metrics().Snapshot())
	}
	return err
}

func newController(cfg *config.Config, searcher session.Searcher, env session.Environment) *session.Controller {
	return session.NewController(session.ControllerConfig{
		Searcher:    searcher,
		Environment: env,
		Logger:      slog.Default(),
		Policy:      session.ParseStalePolicy(cfg.Session.StalePolicy),
		Greeting:    greeting(cfg),
	})
}

// runTUI drives the full-screen chat until the user quits or ctx ends.
func runTUI(ctx context.Context, uiCfg ui.Config, cfg *config.Config, searcher session.Searcher) (*session.Controller, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var controller *session.Controller
	uiCfg.Dispatch = func(ev session.Event) {
		if err := controller.Dispatch(runCtx, ev); err != nil {
			slog.Debug("dispatch_dropped", slog.String("error", err.Error()))
		}
	}

	renderer, err := ui.NewTUIRenderer(uiCfg)
	if err != nil {
		return runLineMode(ctx, uiCfg.Input, uiCfg, cfg, searcher)
	}

	controller = newController(cfg, searcher, renderer)
	controller.Subscribe(renderer.Render)

	if err := renderer.Start(runCtx); err != nil {
		return controller, err
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-renderer.Done():
		case <-gctx.Done():
		}
		cancel()
		return renderer.Stop()
	})

	return controller, g.Wait()
}

// runLineMode treats each input line as typed text followed by Enter.
// Lines are answered one at a time.
func runLineMode(ctx context.Context, in io.Reader, uiCfg ui.Config, cfg *config.Config, searcher session.Searcher) (*session.Controller, error) {
	renderer := ui.NewPlainRenderer(uiCfg)
	defer func() { _ = renderer.Stop() }()

	controller := newController(cfg, searcher, renderer)
	controller.Subscribe(renderer.Render)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		err := feedLines(gctx, in, controller)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := g.Wait()
	cancel()
	return controller, err
}

// feedLines submits every line read from in and waits for its answer.
func feedLines(ctx context.Context, in io.Reader, controller *session.Controller) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := controller.Dispatch(ctx, session.SubmitLine{Text: line}); err != nil {
				return err
			}
			if _, err := controller.WaitIdle(ctx); err != nil {
				return err
			}
		}
	}
}

// isTerminalInput reports whether keys can be read from in.
func isTerminalInput(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && ui.IsTTY(f)
}

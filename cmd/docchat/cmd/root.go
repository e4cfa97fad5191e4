// Package cmd provides the CLI commands for docchat.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docchat/internal/config"
	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
	"github.com/Aman-CERP/docchat/internal/logging"
	"github.com/Aman-CERP/docchat/internal/output"
	"github.com/Aman-CERP/docchat/internal/profiling"
	"github.com/Aman-CERP/docchat/internal/session"
	"github.com/Aman-CERP/docchat/internal/telemetry"
	"github.com/Aman-CERP/docchat/pkg/version"
)

var (
	// Debug logging flag
	debugMode bool

	profileOpts profiling.Options
	profiler    *profiling.Profiler
)

// sessionFlags are the overrides shared by the chat, ask and doctor commands.
type sessionFlags struct {
	endpoint    string
	count       int
	stalePolicy string
	plain       bool
	noColor     bool
	stats       bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "Search backend base URL (default from config)")
	cmd.Flags().IntVar(&f.count, "count", 0, "Passages requested per query (default from config)")
	cmd.Flags().StringVar(&f.stalePolicy, "stale-policy", "", "Late responses: drop or last_wins")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Print session query statistics on exit")
}

func (f *sessionFlags) registerUI(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Line mode instead of the full-screen chat")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colors")
}

// NewRootCmd creates the root command for docchat CLI.
func NewRootCmd() *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with a document search backend",
		Long: `docchat is a terminal chat front end for a document search service.

Every message you send is a search query; the passages the backend returns
are appended to the conversation as replies.

Run 'docchat' in a terminal for the full-screen chat. When input or output
is not a terminal, docchat reads one query per line from stdin.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, &flags)
		},
	}

	cmd.SetVersionTemplate("docchat version {{.Version}}\n")

	flags.register(cmd)
	flags.registerUI(cmd)
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.docchat/logs/")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfiling starts the profiles requested by the --profile-* flags.
func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	p, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profiler = p
	return nil
}

// stopProfiling flushes the running profiles and writes the heap profile.
func stopProfiling(_ *cobra.Command, _ []string) error {
	p := profiler
	profiler = nil
	return p.Stop()
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	err := NewRootCmd().Execute()
	// Post-run hooks are skipped when a command fails.
	if stopErr := stopProfiling(nil, nil); err == nil {
		err = stopErr
	}
	if err != nil {
		fmt.Fprint(os.Stderr, dcerrors.FormatForCLI(err))
	}
	return err
}

// loadConfig merges the config files, environment and command flags.
func loadConfig(cmd *cobra.Command, flags *sessionFlags) (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.Merge(dir)
	if err != nil {
		return nil, dcerrors.ConfigError(err.Error(), err).
			WithSuggestion("Run 'docchat config show' to inspect the effective configuration")
	}
	applyFlags(cmd, flags, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, dcerrors.ConfigError(err.Error(), err).
			WithSuggestion("Run 'docchat doctor' to check the configuration")
	}
	return cfg, nil
}

// applyFlags copies explicitly set command flags onto cfg.
func applyFlags(cmd *cobra.Command, flags *sessionFlags, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("endpoint") {
		cfg.Search.Endpoint = flags.endpoint
	}
	if fs.Changed("count") {
		cfg.Search.ResultCount = flags.count
	}
	if fs.Changed("stale-policy") {
		cfg.Session.StalePolicy = flags.stalePolicy
	}
	if fs.Changed("plain") {
		cfg.UI.Plain = flags.plain
	}
	if fs.Changed("no-color") {
		cfg.UI.NoColor = flags.noColor
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
}

// setupLogging installs the rotating file logger as the slog default.
// Records are mirrored to stderr only for --plain --debug.
func setupLogging(cfg *config.Config) (func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.WriteToStderr = debugMode && cfg.UI.Plain
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	if cfg.Logging.MaxSizeMB > 0 {
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxFiles > 0 {
		logCfg.MaxFiles = cfg.Logging.MaxFiles
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	if debugMode {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return cleanup, nil
}

// greeting converts the configured seed transcript.
func greeting(cfg *config.Config) []session.Message {
	if cfg.Session.NoGreeting {
		return nil
	}
	msgs := make([]session.Message, 0, len(cfg.Session.Greeting))
	for _, g := range cfg.Session.Greeting {
		origin, err := session.ParseOrigin(g.Origin)
		if err != nil {
			continue // rejected by Validate
		}
		msgs = append(msgs, session.Message{Text: g.Text, Origin: origin})
	}
	return msgs
}

// printStats writes the session query statistics.
func printStats(w io.Writer, snap *telemetry.Snapshot) {
	out := output.New(w)
	out.Newline()
	out.Status("📊", snap.Summary())
	if snap.TotalQueries == 0 {
		return
	}
	out.Field("unique", snap.UniqueQueryCount)
	for _, bucket := range []telemetry.LatencyBucket{
		telemetry.BucketFast, telemetry.BucketOK, telemetry.BucketSlow,
		telemetry.BucketSlower, telemetry.BucketStall,
	} {
		if n := snap.LatencyDistribution[bucket]; n > 0 {
			out.Field(string(bucket), n)
		}
	}
	for i, term := range snap.TopTerms {
		if i == 5 {
			break
		}
		out.Field(fmt.Sprintf("term #%d", i+1), fmt.Sprintf("%s (%d)", term.Term, term.Count))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"redditetl/pkg/config"
	"redditetl/pkg/logger"
	"redditetl/pkg/models"
	"redditetl/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool

	out *ui.Printer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "redditetl",
	Short: "Daily ETL of subreddit top posts into a data warehouse",
	Long: `redditetl pulls the top posts of a subreddit from the Reddit API, writes
them to a dated CSV, stages the file in S3 and merges it into a Redshift
table keyed by post id.

Each stage can run on its own (extract, upload, load) or in sequence with
'run'. A date argument in YYYYMMDD form selects the run date; it defaults
to today.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		color := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
		out = ui.NewPrinter(os.Stdout, color, quiet)

		switch cmd.Name() {
		case "extract", "upload", "load", "run":
			out.Logo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if out == nil {
			out = ui.NewPrinter(os.Stderr, false, false)
		}
		out.Error("Error", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: redditetl.yaml, configuration.yaml or ~/.config/redditetl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`redditetl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// setup loads the configuration with the given flag overrides and
// initializes the global logger from it
func setup(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil, fmt.Errorf("%w (create one with 'redditetl config init')", err)
		}
		return nil, nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger().WithField("version", version)
	return cfg, log, nil
}

// runDate resolves the optional date argument
func runDate(args []string) (string, error) {
	var s string
	if len(args) > 0 {
		s = args[0]
	}
	return models.ParseRunDate(s, time.Now())
}

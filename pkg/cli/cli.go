package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobwatch/upwork-fetcher/pkg/config"
	"github.com/jobwatch/upwork-fetcher/pkg/fetch"
	"github.com/jobwatch/upwork-fetcher/pkg/mail"
	"github.com/jobwatch/upwork-fetcher/pkg/metrics"
	"github.com/jobwatch/upwork-fetcher/pkg/notify"
	"github.com/jobwatch/upwork-fetcher/pkg/system"
)

// Options are the command-line settings. ConfigPath and Debug fall back
// to environment variables so the binary works unmodified under cron;
// Limit is flag-only because the LIMIT variable is already consumed by
// pkg/config.
type Options struct {
	ConfigPath string
	Debug      bool
	Limit      int
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	var code int
	root := NewRootCommand(&code)
	if err := root.Execute(); err != nil {
		// flag/usage errors; cobra already printed them
		return notify.ExitTransportFailure
	}
	return code
}

// NewRootCommand builds the upwork-fetcher command. The run's exit code is
// written through code so main can pass it to os.Exit.
func NewRootCommand(code *int) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:          "upwork-fetcher",
		Short:        "Fetch the Upwork most-recent-jobs feed and mail the result",
		SilenceUsage: true,
		Run: func(_ *cobra.Command, _ []string) {
			*code = run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config-path", getEnvString("UPWORK_FETCHER_CONFIG", ""),
		"Path to the optional YAML configuration file (environment variables take precedence)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", getEnvBool("UPWORK_FETCHER_DEBUG", false),
		"Enable debug level logging")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0,
		"Override the configured result limit")

	cmd.AddCommand(NewVersionCommand())
	return cmd
}

// run is the whole pipeline: load config, validate, fetch once, notify
// once, exit. No network call happens before validation passes.
func run(opts *Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return notify.ExitConfigMissing
	}
	if opts.Limit > 0 {
		cfg.API.Limit = opts.Limit
	}

	zl, err := system.NewLogger(opts.Debug, cfg.Log.Path)
	if err != nil {
		// Log file not writable; keep going with stdout only.
		fmt.Fprintf(os.Stderr, "falling back to stdout logging: %v\n", err)
		if zl, err = system.NewLogger(opts.Debug, ""); err != nil {
			fmt.Fprintf(os.Stderr, "error setting up logger: %v\n", err)
			return notify.ExitTransportFailure
		}
	}
	defer func() {
		_ = zl.Sync()
	}()
	log := zl.Sugar()
	log.With("version", system.Version).Info("Starting upwork-fetcher")

	if missing := cfg.Validate(); len(missing) > 0 {
		log.Errorw("Missing required configuration", "missing", strings.Join(missing, ", "))
		return notify.ExitConfigMissing
	}

	log.Infow("Fetching Upwork feed", "limit", cfg.API.Limit)
	outcome := fetch.New(&cfg, log).Fetch(context.Background())
	if outcome.Err != nil {
		log.Errorw("Failed to fetch Upwork feed", "error", outcome.Err)
	} else {
		log.Infow("Received response", "status", outcome.Status)
	}

	notifier := notify.New(mail.NewSender(cfg.Mail, log), log)
	exitCode := notifier.Notify(outcome)

	metrics.LogSummary(log)
	log.Infow("Done", "exitCode", exitCode)
	return exitCode
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

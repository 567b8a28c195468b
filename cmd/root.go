package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mkoepf/ghcrpush/internal/config"
	"github.com/mkoepf/ghcrpush/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is injected at build time with -ldflags "-X ...cmd.version=v1.2.3"
var version = "dev"

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	logAPICalls bool
	quiet       bool
	envFile     string
	configPath  string
}

func (o *rootOptions) logger(cmd *cobra.Command) *logrus.Logger {
	return logging.NewLogger(cmd.ErrOrStderr(), o.quiet)
}

func (o *rootOptions) config() *config.Config {
	if o.configPath != "" {
		return config.NewWithPath(o.configPath)
	}
	return config.New()
}

// NewRootCmd creates the root command with isolated flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ghcrpush",
		Short: "Build and publish a container image to GitHub Container Registry",
		Long: `ghcrpush builds a container image and publishes it to GitHub Container Registry (GHCR).

It is meant to run as a CI step and:
- Builds the image from a Dockerfile or inline Dockerfile content
- Logs in to the registry with the workflow token
- Deletes the package version that already carries the tag, so the tag can be reused
- Pushes the image and logs out again

Inputs are read from flags, INPUT_* environment variables (GitHub Actions)
and an optional YAML configuration file.`,
		Version:       version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				// Variables already set in the environment win over the file
				if err := godotenv.Load(opts.envFile); err != nil {
					cmd.SilenceUsage = true
					return fmt.Errorf("failed to load env file %s: %w", opts.envFile, err)
				}
			}

			// Enable API call logging if flag is set
			if opts.logAPICalls {
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				cmd.SetContext(logging.EnableLogging(ctx))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.logAPICalls, "log-api-calls", false, "Log all API calls with timing and categorization to stderr")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print warnings and errors")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from a dotenv file before resolving inputs")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML file with inputs (default $GHCRPUSH_CONFIG)")

	cmd.AddCommand(newPublishCmd(opts))
	cmd.AddCommand(newLookupCmd(opts))

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running step;
// cleanup still happens before the process exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		logging.NewLogger(os.Stderr, false).Error(err)
		os.Exit(1)
	}
}

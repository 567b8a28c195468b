package cmd

import (
	"context"
	"fmt"

	"github.com/mkoepf/ghcrpush/internal/config"
	"github.com/mkoepf/ghcrpush/internal/display"
	"github.com/mkoepf/ghcrpush/internal/publish"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runner runs a resolved publish flow
type runner interface {
	Run(ctx context.Context, cfg *config.BuildConfig) (*publish.Outcome, error)
}

// newRunnerFunc creates the runner for a resolved configuration.
type newRunnerFunc func(ctx context.Context, cfg *config.BuildConfig, log *logrus.Logger) (runner, error)

func newPublisher(ctx context.Context, cfg *config.BuildConfig, log *logrus.Logger) (runner, error) {
	return publish.New(ctx, cfg, log)
}

// newPublishCmd creates the publish command with isolated flag state.
func newPublishCmd(opts *rootOptions) *cobra.Command {
	return newPublishCmdWith(opts, newPublisher)
}

func newPublishCmdWith(opts *rootOptions, newRunner newRunnerFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build, tag and push an image, replacing the version that carries the tag",
		Long: `Build an image from the workspace, log in to the registry, delete the package
version that already carries the tag and push the new image. The temporary
Dockerfile and the registry login are always cleaned up.

Every flag can also be given as an INPUT_<NAME> environment variable, the way
GitHub Actions passes step inputs. The workspace, token, actor and repository
default to GITHUB_WORKSPACE, GITHUB_TOKEN, GITHUB_ACTOR and GITHUB_REPOSITORY.

Examples:
  # Inside a workflow step
  ghcrpush publish --tag latest

  # Custom Dockerfile location and labels
  ghcrpush publish --tag v1.2.0 --path services/api --dockerfile Dockerfile.prod \
    --label team=platform --label tier=backend

  # Inline Dockerfile
  ghcrpush publish --tag nightly --custom-dockerfile "$(printf 'FROM alpine:3.20\nRUN apk add curl')"

  # Local run with a dotenv file
  ghcrpush --env-file .env publish --tag dev --workspace .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			if err := cfg.BindFlags(cmd.Flags()); err != nil {
				return err
			}

			build, err := cfg.Resolve()
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}

			log := opts.logger(cmd)
			ctx := cmd.Context()

			r, err := newRunner(ctx, build, log)
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}

			out, err := r.Run(ctx, build)
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), out.ImageRef)
			if out.Digest != "" {
				log.Debugf("Digest %s", display.ColorDigest(out.Digest))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("password", "", "Registry password or token (default $GITHUB_TOKEN)")
	flags.String("username", "", "Registry username (default $GITHUB_ACTOR)")
	flags.String("tag", "", "Tag to publish (required)")
	flags.StringArray("label", nil, "Image label NAME=VALUE (repeatable)")
	flags.String("path", "", "Build context, relative to the workspace")
	flags.String("dockerfile", config.DefaultDockerfile, "Dockerfile, relative to the build context")
	flags.String("custom-dockerfile", "", "Inline Dockerfile content; overrides --dockerfile")
	flags.String("repo", "", "Target repository as owner/name (default $GITHUB_REPOSITORY)")
	flags.String("owner-type", config.DefaultOwnerType, "Owner type of the package: org or user")
	flags.String("registry", config.DefaultRegistry, "Registry host")
	flags.String("engine", config.DefaultEngine, "Container engine binary")
	flags.Int("max-pages", config.DefaultMaxPages, "Maximum number of version pages to scan for the tag")
	flags.Bool("verify", false, "Read the pushed image back and check its labels")
	flags.String("workspace", "", "Workspace directory (default $GITHUB_WORKSPACE)")

	return cmd
}

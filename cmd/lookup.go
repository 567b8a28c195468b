package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mkoepf/ghcrpush/internal/collision"
	"github.com/mkoepf/ghcrpush/internal/display"
	"github.com/mkoepf/ghcrpush/internal/gh"
	"github.com/spf13/cobra"
)

// lookupResult is the JSON form of a lookup.
type lookupResult struct {
	Owner     string   `json:"owner"`
	Package   string   `json:"package"`
	Tag       string   `json:"tag"`
	Found     bool     `json:"found"`
	VersionID int64    `json:"version_id,omitempty"`
	Digest    string   `json:"digest,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// newLookupCmd creates the lookup command with isolated flag state.
func newLookupCmd(opts *rootOptions) *cobra.Command {
	var (
		tag        string
		ownerType  string
		maxPages   int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <owner/package>",
		Short: "Show which package version carries a tag",
		Long: `Find the package version that currently carries a tag, without changing anything.
This is the version publish would delete before pushing.

Examples:
  # Look up a tag
  ghcrpush lookup mkoepf/myimage --tag latest

  # Skip owner type detection
  ghcrpush lookup myorg/myimage --tag v1.0.0 --owner-type org

  # JSON output
  ghcrpush lookup mkoepf/myimage --tag latest --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, packageName, err := parsePackageRef(args[0])
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}

			if tag == "" {
				cmd.SilenceUsage = true
				return fmt.Errorf("--tag is required")
			}

			if ownerType != "" && ownerType != "org" && ownerType != "user" {
				cmd.SilenceUsage = true
				return fmt.Errorf("invalid owner type %q: must be 'org' or 'user'", ownerType)
			}

			if maxPages < 1 {
				cmd.SilenceUsage = true
				return fmt.Errorf("invalid max pages %d: must be at least 1", maxPages)
			}

			token, err := gh.GetToken()
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}

			ctx := cmd.Context()

			client, err := gh.NewClientWithContext(ctx, token)
			if err != nil {
				cmd.SilenceUsage = true
				return fmt.Errorf("failed to create GitHub client: %w", err)
			}
			if err := client.SetBaseURL(os.Getenv("GITHUB_API_URL")); err != nil {
				cmd.SilenceUsage = true
				return err
			}

			if ownerType == "" {
				ownerType, err = client.GetOwnerType(ctx, owner)
				if err != nil {
					cmd.SilenceUsage = true
					return fmt.Errorf("failed to determine owner type: %w", err)
				}
			}

			resolver := collision.NewResolver(client, opts.logger(cmd))
			resolver.MaxPages = maxPages

			version, found, err := resolver.Find(ctx, collision.Target{
				Owner:     owner,
				OwnerType: ownerType,
				Package:   packageName,
				Tag:       tag,
			})
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}

			result := lookupResult{
				Owner:     owner,
				Package:   packageName,
				Tag:       tag,
				Found:     found,
				VersionID: version.ID,
				Digest:    version.Name,
				Tags:      version.Tags,
				CreatedAt: version.CreatedAt,
			}
			if jsonOutput {
				return outputLookupJSON(cmd.OutOrStdout(), result)
			}
			outputLookupText(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Tag to look up (required)")
	cmd.Flags().StringVar(&ownerType, "owner-type", "", "Owner type: org or user (detected when empty)")
	cmd.Flags().IntVar(&maxPages, "max-pages", collision.DefaultMaxPages, "Maximum number of version pages to scan")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func outputLookupJSON(w io.Writer, result lookupResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func outputLookupText(w io.Writer, result lookupResult) {
	if !result.Found {
		fmt.Fprintf(w, "No version of %s/%s carries tag %s\n", result.Owner, result.Package, display.ColorTag(result.Tag))
		return
	}
	fmt.Fprintf(w, "%s %d\n", display.ColorHeader("Version"), result.VersionID)
	fmt.Fprintf(w, "  Package: %s/%s\n", result.Owner, result.Package)
	if result.Digest != "" {
		fmt.Fprintf(w, "  Digest:  %s\n", display.ColorDigest(result.Digest))
	}
	fmt.Fprintf(w, "  Tags:    %s\n", display.ColorTag(display.FormatTags(result.Tags)))
	if result.CreatedAt != "" {
		fmt.Fprintf(w, "  Created: %s\n", result.CreatedAt)
	}
}

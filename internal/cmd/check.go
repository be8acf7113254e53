package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/update"
)

func newCheckCmd() *cobra.Command {
	var (
		release        releaseFlags
		currentVersion string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release is available",
		Long: `Check fetches the latest release from the configured source and compares
it with the running version.

Examples:
  hoist check --current-version 1.4.0
  hoist check --repo owner/app -o json
  hoist check --url https://example.com/App-2.0.0.zip --version 2.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), hoistfile, release, currentVersion)
		},
	}

	addReleaseFlags(cmd, &release)
	cmd.Flags().StringVar(&currentVersion, "current-version", "", "Version of the running application")

	return cmd
}

// addReleaseFlags registers the flags that override the Hoistfile's release section.
func addReleaseFlags(cmd *cobra.Command, f *releaseFlags) {
	cmd.Flags().StringVar(&f.url, "url", "", "Archive URL (overrides the Hoistfile)")
	cmd.Flags().StringVar(&f.version, "version", "", "Release version for --url")
	cmd.Flags().StringVar(&f.checksum, "checksum", "", "Expected SHA-256 of the archive")
	cmd.Flags().StringVar(&f.repo, "repo", "", "GitHub repository owner/name (overrides the Hoistfile)")
	cmd.MarkFlagsRequiredTogether("url", "version")
	cmd.MarkFlagsMutuallyExclusive("url", "repo")
}

// resolveRelease fetches the latest release and reports whether it is newer.
func resolveRelease(ctx context.Context, cfg *config.Hoistfile, f releaseFlags, current string) (*update.ReleaseArtifact, bool, error) {
	source, err := newReleaseSource(cfg, f)
	if err != nil {
		return nil, false, err
	}

	artifact, err := source.Latest(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for updates: %w", err)
	}

	newer, err := update.IsNewer(current, artifact.Version)
	if err != nil {
		return nil, false, err
	}
	return artifact, newer, nil
}

func runCheck(ctx context.Context, w io.Writer, cfg *config.Hoistfile, f releaseFlags, current string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	artifact, newer, err := resolveRelease(ctx, cfg, f, current)
	if err != nil {
		return err
	}

	writer, err := newWriter(w)
	if err != nil {
		return err
	}

	return writer.Write(output.CheckReport{
		CurrentVersion:  update.NormalizeVersion(current),
		LatestVersion:   artifact.Version,
		UpdateAvailable: newer,
		DownloadURL:     artifact.DownloadURL,
		Notes:           artifact.Notes,
		Platform:        update.Detect().String(),
	})
}

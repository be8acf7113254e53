package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/interactive"
	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/receipt"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
)

type installOptions struct {
	release        releaseFlags
	currentVersion string
	yes            bool
	force          bool
	relaunch       bool
	retries        int

	confirmer  interactive.Confirmer
	relauncher update.Relauncher
}

func newInstallCmd() *cobra.Command {
	var opts installOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and install the latest release",
		Long: `Install downloads the latest release, unpacks its bundle and installs it.

The running installation is replaced in place when possible. If that is not
permitted the bundle goes to the per-user application directory, and then
to the system-wide directory after asking for administrator rights.

Press Ctrl-C while downloading to cancel. Once the archive is downloaded the
update runs to completion.

Examples:
  hoist install                         # Confirm, then install
  hoist install --yes --relaunch        # Install without asking and restart the app
  hoist install --url https://example.com/App-2.0.0.zip --version 2.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), cmd.OutOrStdout(), hoistfile, opts)
		},
	}

	addReleaseFlags(cmd, &opts.release)
	cmd.Flags().StringVar(&opts.currentVersion, "current-version", "", "Version of the running application")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip confirmation prompts")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Install even if the release is not newer")
	cmd.Flags().BoolVar(&opts.relaunch, "relaunch", false, "Relaunch the application after a successful install")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retry a failed attempt up to N times without asking")

	return cmd
}

func runInstall(ctx context.Context, w io.Writer, cfg *config.Hoistfile, opts installOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.L("install")

	writer, err := newWriter(w)
	if err != nil {
		return err
	}

	artifact, newer, err := resolveRelease(ctx, cfg, opts.release, opts.currentVersion)
	if err != nil {
		return err
	}
	if !newer && !opts.force {
		if writer.IsText() {
			_, _ = fmt.Fprintf(w, "Already running the latest version (%s)\n", artifact.Version)
			return nil
		}
		return writer.Write(output.CheckReport{
			CurrentVersion: update.NormalizeVersion(opts.currentVersion),
			LatestVersion:  artifact.Version,
			DownloadURL:    artifact.DownloadURL,
			Platform:       update.Detect().String(),
		})
	}

	confirmer := opts.confirmer
	if confirmer == nil {
		confirmer = interactive.NewConfirmer()
	}
	if !opts.yes {
		ok, err := confirmer.Confirm(fmt.Sprintf("Install %s?", artifact.Version), summarizeNotes(artifact.Notes))
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	chain, err := newChain(cfg, currentInstallation(cfg))
	if err != nil {
		return err
	}

	recorder := &finishRecorder{
		writer:   writer,
		receipts: receipt.NewManager(expandHomePath(cfg.History.Dir), hoistVersion),
		keep:     cfg.History.Keep,
	}
	observers := fanout{recorder}
	if writer.IsText() && !quiet {
		view := interactive.NewProgressView(w, interactive.IsOutputTerminal(w))
		observers = fanout{view, recorder}
	}

	var relauncher update.Relauncher
	if opts.relaunch {
		relauncher = opts.relauncher
		if relauncher == nil {
			relauncher = update.NewExecRelauncher(nil)
		}
	}

	coord := update.NewCoordinator(update.CoordinatorOptions{
		Fetcher: update.NewHTTPDownloader().
			WithTimeout(cfg.Download.TimeoutDuration()).
			WithUserAgent(cfg.Download.UserAgent),
		Unpacker:   newUnpacker(cfg),
		Chain:      chain,
		ScratchDir: expandHomePath(cfg.ScratchDir),
		Observer:   observers,
		Relauncher: relauncher,
	})
	defer coord.Discard()

	// Interrupts cancel the download. After that they are swallowed so the
	// install is never cut short.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer func() { stop() }()

	if err := coord.Start(sigCtx, *artifact); err != nil {
		return err
	}

	for retries := 0; ; retries++ {
		res, err := coord.Wait(ctx)
		if err != nil {
			return err
		}
		if res.Succeeded() {
			return nil
		}

		retry := res.State == types.StateFailed && retries < opts.retries
		if !retry && !opts.yes {
			retry, err = confirmer.Confirm("Retry?", "")
			if err != nil {
				return err
			}
		}
		if !retry {
			if res.State == types.StateCancelled {
				return errors.New("update cancelled")
			}
			return fmt.Errorf("update failed: %w", res.Err)
		}

		log.WithField(logging.KeyAttemptID, res.AttemptID).Info("retrying update")
		stop()
		sigCtx, stop = signal.NotifyContext(ctx, os.Interrupt)
		if err := coord.Retry(sigCtx); err != nil {
			return err
		}
	}
}

// summarizeNotes returns the first lines of the release notes for the prompt.
func summarizeNotes(notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}
	lines := strings.Split(notes, "\n")
	if len(lines) > 8 {
		lines = append(lines[:8], "...")
	}
	return strings.Join(lines, "\n")
}

// fanout delivers coordinator notifications to several observers in order.
type fanout []update.Observer

func (f fanout) OnStatus(s update.Status) {
	for _, o := range f {
		o.OnStatus(s)
	}
}

func (f fanout) OnFinish(r update.Result) {
	for _, o := range f {
		o.OnFinish(r)
	}
}

// finishRecorder writes a receipt and prints the report for each finished
// attempt. It runs before any relaunch.
type finishRecorder struct {
	writer   *output.Writer
	receipts *receipt.Manager
	keep     int
}

func (r *finishRecorder) OnStatus(update.Status) {}

func (r *finishRecorder) OnFinish(res update.Result) {
	log := logging.L("install").WithField(logging.KeyAttemptID, res.AttemptID)

	report := output.InstallReport{
		AttemptID:        res.AttemptID,
		Version:          res.Version,
		State:            res.State.String(),
		RelaunchRequired: res.RelaunchRequired,
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
	}
	if res.Target != nil {
		report.Strategy = res.Target.Kind.String()
		report.Location = res.Target.DestinationPath
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}

	if rec, err := r.receipts.Create(res); err != nil {
		log.WithError(err).Warn("failed to write receipt")
	} else {
		report.Receipt = rec.File()
		if r.keep > 0 {
			if _, err := r.receipts.Prune(r.keep); err != nil {
				log.WithError(err).Warn("failed to prune receipts")
			}
		}
	}

	if quiet && res.Succeeded() {
		return
	}
	if err := r.writer.Write(report); err != nil {
		log.WithError(err).Warn("failed to write report")
	}
}

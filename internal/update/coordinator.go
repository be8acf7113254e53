package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/types"
)

// Status texts shown while an attempt runs.
const (
	TextFetching   = "Downloading update..."
	TextUnpacking  = "Unpacking update..."
	TextInstalling = "Installing update..."
	TextSucceeded  = "Update installed. Relaunch to finish."
	TextCancelled  = "Update cancelled."
)

// CoordinatorOptions configures a Coordinator. Chain is required; every
// other field has a default.
type CoordinatorOptions struct {
	Fetcher    Fetcher
	Unpacker   Unpacker
	Chain      *Chain
	ScratchDir string // Parent of each attempt's private working directory; never removed itself
	Observer   Observer
	Relauncher Relauncher

	// Dispatch runs each observer callback. Callbacks are handed over one at
	// a time and in order; the default calls them on the dispatcher goroutine.
	Dispatch func(func())

	Now func() time.Time
}

// Coordinator drives one update attempt at a time through
// fetching, unpacking and installing.
type Coordinator struct {
	opts CoordinatorOptions
	log  *log.Entry

	mu      sync.Mutex
	attempt *UpdateAttempt
	cancel  context.CancelFunc // Non-nil only while fetching
	disp    *dispatcher
	done    chan struct{}
	result  Result
}

type stage int

const (
	stageFetch stage = iota
	stageInstall
)

// NewCoordinator creates a coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPDownloader()
	}
	if opts.Unpacker == nil {
		opts.Unpacker = NewArchiveUnpacker(DefaultBundleSuffix)
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		opts: opts,
		log:  logging.L("coordinator"),
	}
}

// WorkDir returns the current attempt's private working directory, or ""
// when none exists.
func (c *Coordinator) WorkDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return ""
	}
	return c.attempt.workDir
}

// Start begins a new attempt for artifact. ctx cancels the download only;
// once the archive is on disk the attempt runs to completion.
func (c *Coordinator) Start(ctx context.Context, artifact ReleaseArtifact) error {
	if c.opts.Chain == nil {
		return errors.New("no install strategies configured")
	}
	if artifact.DownloadURL == "" {
		return fmt.Errorf("release %s has no download URL", artifact.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt != nil && c.attempt.State.IsActive() {
		return &AlreadyInProgressError{AttemptID: c.attempt.ID, State: c.attempt.State}
	}
	if c.attempt != nil && c.attempt.workDir != "" {
		c.discardScratch(c.log, c.attempt.workDir, "")
	}

	c.attempt = &UpdateAttempt{
		ID:        uuid.NewString(),
		Artifact:  artifact,
		State:     types.StateFetching,
		StartedAt: c.opts.Now(),
	}
	c.log.WithFields(log.Fields{
		logging.KeyAttemptID: c.attempt.ID,
		logging.KeyVersion:   artifact.Version,
	}).Info("starting update")

	c.beginLocked(ctx, stageFetch)
	return nil
}

// Retry re-runs a failed or cancelled attempt. An attempt that failed while
// installing goes straight back to the strategy chain if its staged bundle
// is still on disk; otherwise it downloads again.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.attempt
	if a == nil {
		return ErrNothingToRetry
	}
	if a.State.IsActive() {
		return &AlreadyInProgressError{AttemptID: a.ID, State: a.State}
	}
	if !a.State.IsRetryable() {
		return ErrNothingToRetry
	}

	from := stageFetch
	if a.State == types.StateFailed && a.installOnly && a.bundle != nil && exists(a.bundle.Path) {
		from = stageInstall
	}

	// Every retry is a new attempt, so elevation is requested at most once
	// per attempt ID.
	a.ID = uuid.NewString()
	a.StartedAt = c.opts.Now()
	a.LastError = nil
	a.Location = ""
	a.FinishedAt = time.Time{}
	a.installOnly = false
	if from == stageInstall {
		a.State = types.StateInstalling
	} else {
		a.State = types.StateFetching
		a.ProgressFraction = 0
		a.bundle = nil
		if a.workDir != "" {
			c.discardScratch(c.log, a.workDir, "")
			a.workDir = ""
		}
	}

	c.log.WithFields(log.Fields{
		logging.KeyAttemptID: a.ID,
		logging.KeyState:     a.State,
	}).Info("retrying update")

	c.beginLocked(ctx, from)
	return nil
}

// Cancel stops an in-flight download. It returns false, and does nothing,
// unless the current attempt is fetching.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt == nil || c.attempt.State != types.StateFetching || c.cancel == nil {
		return false
	}
	c.log.WithField(logging.KeyAttemptID, c.attempt.ID).Info("cancelling download")
	c.cancel()
	return true
}

// Status returns a snapshot of the current attempt.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(false)
}

// Attempt returns a copy of the current attempt record.
func (c *Coordinator) Attempt() (UpdateAttempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return UpdateAttempt{State: types.StateIdle}, false
	}
	return *c.attempt, true
}

// Wait blocks until the current attempt's terminal notification has been
// delivered and returns its result.
func (c *Coordinator) Wait(ctx context.Context) (Result, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return Result{}, errors.New("no update attempt has been started")
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, nil
}

// Discard removes a staged bundle kept for Retry. It does nothing while an
// attempt is running.
func (c *Coordinator) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt != nil {
		if c.attempt.State.IsActive() {
			return
		}
		c.attempt.bundle = nil
		c.attempt.installOnly = false
		dir := c.attempt.workDir
		c.attempt.workDir = ""
		c.discardScratch(c.log, dir, "")
	}
}

// beginLocked launches the worker for the current attempt. c.mu must be held.
func (c *Coordinator) beginLocked(ctx context.Context, from stage) {
	var prev <-chan struct{}
	if c.done != nil {
		prev = c.done
	}
	c.disp = newDispatcher(c.opts.Dispatch, prev)
	c.done = c.disp.done

	runCtx, cancel := context.WithCancel(ctx)
	if from == stageFetch {
		c.cancel = cancel
	} else {
		runCtx = context.WithoutCancel(runCtx)
	}

	c.notifyLocked(false)
	a, disp := c.attempt, c.disp
	go func() {
		defer cancel()
		c.run(runCtx, a, disp, from)
	}()
}

func (c *Coordinator) run(ctx context.Context, a *UpdateAttempt, disp *dispatcher, from stage) {
	entry := c.log.WithFields(log.Fields{
		logging.KeyAttemptID: a.ID,
		logging.KeyVersion:   a.Artifact.Version,
	})

	c.mu.Lock()
	bundle := a.bundle
	workDir := a.workDir
	c.mu.Unlock()

	if from == stageFetch {
		var err error
		workDir, err = c.newWorkDir(a)
		if err != nil {
			c.finish(entry, a, disp, types.StateFailed, err, nil)
			return
		}

		archive, err := c.fetch(ctx, a, workDir)
		if err != nil {
			c.discardScratch(entry, c.takeWorkDir(a), "")
			state := types.StateFailed
			var cancelled *CancelledError
			if errors.As(err, &cancelled) {
				state = types.StateCancelled
			}
			c.finish(entry, a, disp, state, err, nil)
			return
		}

		// From here on the attempt cannot be cancelled.
		ctx = context.WithoutCancel(ctx)
		c.transition(a, types.StateUnpacking)

		bundle, err = c.opts.Unpacker.Unpack(archive, workDir)
		if err != nil {
			c.discardScratch(entry, c.takeWorkDir(a), archive)
			c.finish(entry, a, disp, types.StateFailed, err, nil)
			return
		}
		if rmErr := os.Remove(archive); rmErr != nil && !os.IsNotExist(rmErr) {
			entry.WithError(rmErr).Warn("failed to remove downloaded archive")
		}

		c.mu.Lock()
		a.bundle = bundle
		c.mu.Unlock()
	}

	c.transition(a, types.StateInstalling)

	target, err := c.opts.Chain.Install(ctx, bundle)
	if err != nil {
		c.mu.Lock()
		a.installOnly = true
		c.mu.Unlock()
		entry.WithField(logging.KeyPath, workDir).Info("keeping staged bundle for retry")
		c.finish(entry, a, disp, types.StateFailed, err, nil)
		return
	}

	c.mu.Lock()
	a.bundle = nil
	c.mu.Unlock()
	c.discardScratch(entry, c.takeWorkDir(a), "")
	c.finish(entry, a, disp, types.StateSucceeded, nil, target)
}

// fetch downloads and verifies the archive, reporting monotonic progress.
func (c *Coordinator) fetch(ctx context.Context, a *UpdateAttempt, dir string) (string, error) {
	onProgress := func(p Progress) {
		fraction, known := p.Fraction()

		c.mu.Lock()
		defer c.mu.Unlock()
		if a.State != types.StateFetching {
			return
		}
		if known {
			if fraction <= a.ProgressFraction {
				return
			}
			a.ProgressFraction = fraction
		}
		c.notifyLocked(!known)
	}

	archive, err := c.opts.Fetcher.Fetch(ctx, a.Artifact.DownloadURL, dir, onProgress)
	if err != nil {
		if ctx.Err() != nil {
			var cancelled *CancelledError
			if !errors.As(err, &cancelled) {
				err = &CancelledError{Err: err}
			}
		}
		return "", err
	}

	if a.Artifact.Checksum != "" {
		if err := VerifyChecksum(archive, a.Artifact.Checksum); err != nil {
			_ = os.Remove(archive)
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
	if ctx.Err() != nil {
		_ = os.Remove(archive)
		return "", &CancelledError{Err: ctx.Err()}
	}
	a.ProgressFraction = 1
	c.notifyLocked(false)

	return archive, nil
}

func (c *Coordinator) transition(a *UpdateAttempt, state types.AttemptState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.WithFields(log.Fields{
		logging.KeyAttemptID: a.ID,
		logging.KeyState:     state,
	}).Debug("attempt state changed")
	a.State = state
	c.notifyLocked(false)
}

// finish records the terminal state and queues the final notifications.
// A successful attempt triggers the relauncher after OnFinish returns.
func (c *Coordinator) finish(entry *log.Entry, a *UpdateAttempt, disp *dispatcher, state types.AttemptState, err error, target *InstallTarget) {
	c.mu.Lock()
	a.State = state
	a.LastError = err
	a.FinishedAt = c.opts.Now()
	if target != nil {
		a.Location = target.DestinationPath
	}
	c.cancel = nil

	res := Result{
		AttemptID:        a.ID,
		Version:          a.Artifact.Version,
		State:            state,
		Target:           target,
		Err:              err,
		RelaunchRequired: state == types.StateSucceeded,
		StartedAt:        a.StartedAt,
		FinishedAt:       a.FinishedAt,
	}
	c.result = res
	c.notifyLocked(false)
	c.mu.Unlock()

	switch state {
	case types.StateSucceeded:
		entry.WithField(logging.KeyPath, res.Target.DestinationPath).Info("update installed")
	case types.StateCancelled:
		entry.Info("update cancelled")
	default:
		entry.WithError(err).Error("update failed")
	}

	observer := c.opts.Observer
	relauncher := c.opts.Relauncher
	disp.close(func() {
		observer.OnFinish(res)
		if res.Succeeded() && relauncher != nil {
			if rErr := relauncher.Relaunch(res.Target.DestinationPath); rErr != nil {
				entry.WithError(rErr).Error("failed to relaunch")
			}
		}
	})
}

// notifyLocked queues a status snapshot. c.mu must be held.
func (c *Coordinator) notifyLocked(indeterminate bool) {
	if c.disp == nil {
		return
	}
	st := c.statusLocked(indeterminate)
	observer := c.opts.Observer
	c.disp.post(func() { observer.OnStatus(st) })
}

func (c *Coordinator) statusLocked(indeterminate bool) Status {
	a := c.attempt
	if a == nil {
		return Status{State: types.StateIdle}
	}

	st := Status{
		AttemptID:        a.ID,
		Version:          a.Artifact.Version,
		State:            a.State,
		ProgressFraction: a.ProgressFraction,
		Indeterminate:    indeterminate,
		IsUpdating:       a.State.IsActive(),
		Location:         a.Location,
	}
	if a.LastError != nil {
		st.Error = a.LastError.Error()
	}

	switch a.State {
	case types.StateFetching:
		st.Text = TextFetching
	case types.StateUnpacking:
		st.Text = TextUnpacking
	case types.StateInstalling:
		st.Text = TextInstalling
	case types.StateSucceeded:
		st.Text = TextSucceeded
		st.RelaunchRequired = true
	case types.StateCancelled:
		st.Text = TextCancelled
	case types.StateFailed:
		st.Text = "Update failed: " + st.Error
	}
	return st
}

// newWorkDir creates a private working directory for a under the scratch
// root and records it on the attempt.
func (c *Coordinator) newWorkDir(a *UpdateAttempt) (string, error) {
	if err := os.MkdirAll(c.opts.ScratchDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch root %s: %w", c.opts.ScratchDir, err)
	}
	dir, err := os.MkdirTemp(c.opts.ScratchDir, "hoist-")
	if err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}

	c.mu.Lock()
	a.workDir = dir
	c.mu.Unlock()
	return dir, nil
}

// takeWorkDir detaches a's working directory so it can be removed.
func (c *Coordinator) takeWorkDir(a *UpdateAttempt) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	dir := a.workDir
	a.workDir = ""
	return dir
}

// discardScratch removes the archive (if any) and an attempt's working
// directory. The scratch root is left alone.
func (c *Coordinator) discardScratch(entry *log.Entry, dir, archive string) {
	var result *multierror.Error
	if archive != "" {
		if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, fmt.Errorf("remove archive: %w", err))
		}
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove working dir: %w", err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		entry.WithError(err).Warn("cleanup incomplete")
	}
}

type nopObserver struct{}

func (nopObserver) OnStatus(Status) {}
func (nopObserver) OnFinish(Result) {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Status func(Status)
	Finish func(Result)
}

func (o ObserverFuncs) OnStatus(s Status) {
	if o.Status != nil {
		o.Status(s)
	}
}

func (o ObserverFuncs) OnFinish(r Result) {
	if o.Finish != nil {
		o.Finish(r)
	}
}

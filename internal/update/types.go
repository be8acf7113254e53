package update

import (
	"context"
	"time"

	"github.com/adamancini/hoist/internal/types"
)

// ReleaseArtifact describes a published release. It is supplied by a
// ReleaseSource and never modified afterwards.
type ReleaseArtifact struct {
	Version     string `json:"version" yaml:"version"`
	DownloadURL string `json:"download_url" yaml:"download_url"`
	Notes       string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Checksum    string `json:"checksum,omitempty" yaml:"checksum,omitempty"` // Optional hex SHA-256 of the archive
}

// StagedBundle is an unpacked bundle waiting in scratch space.
type StagedBundle struct {
	Path          string // Bundle directory (or file) inside the scratch dir
	SourceArchive string // Archive it was extracted from
}

// Name returns the bundle's base name, e.g. "App.app".
func (b *StagedBundle) Name() string {
	return getFilename(b.Path)
}

// InstallTarget is where a strategy places the bundle.
type InstallTarget struct {
	Kind            types.StrategyKind `json:"kind" yaml:"kind"`
	DestinationPath string             `json:"destination_path" yaml:"destination_path"`
}

// UpdateAttempt is the record of one update, owned by a Coordinator.
type UpdateAttempt struct {
	ID               string
	Artifact         ReleaseArtifact
	State            types.AttemptState
	ProgressFraction float64
	LastError        error
	Location         string
	StartedAt        time.Time
	FinishedAt       time.Time

	// installOnly marks a failure that happened after unpack, so Retry
	// can skip straight to the strategy chain.
	installOnly bool
	bundle      *StagedBundle
	workDir     string // Private child of the scratch root; the only directory ever removed
}

// Status is the snapshot handed to the presentation layer.
type Status struct {
	AttemptID        string             `json:"attempt_id,omitempty" yaml:"attempt_id,omitempty"`
	Version          string             `json:"version,omitempty" yaml:"version,omitempty"`
	State            types.AttemptState `json:"state" yaml:"state"`
	Text             string             `json:"text" yaml:"text"`
	ProgressFraction float64            `json:"progress" yaml:"progress"`
	Indeterminate    bool               `json:"indeterminate,omitempty" yaml:"indeterminate,omitempty"`
	IsUpdating       bool               `json:"is_updating" yaml:"is_updating"`
	Location         string             `json:"location,omitempty" yaml:"location,omitempty"`
	Error            string             `json:"error,omitempty" yaml:"error,omitempty"`
	RelaunchRequired bool               `json:"relaunch_required,omitempty" yaml:"relaunch_required,omitempty"`
}

// Result is the terminal outcome of an attempt.
type Result struct {
	AttemptID        string             `json:"attempt_id" yaml:"attempt_id"`
	Version          string             `json:"version" yaml:"version"`
	State            types.AttemptState `json:"state" yaml:"state"`
	Target           *InstallTarget     `json:"target,omitempty" yaml:"target,omitempty"`
	Err              error              `json:"-" yaml:"-"`
	RelaunchRequired bool               `json:"relaunch_required" yaml:"relaunch_required"`
	StartedAt        time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time          `json:"finished_at" yaml:"finished_at"`
}

// Succeeded returns true if the attempt installed the bundle.
func (r Result) Succeeded() bool {
	return r.State == types.StateSucceeded
}

// Progress is a download progress sample.
type Progress struct {
	Received int64
	Total    int64 // <= 0 when the server did not send a length
}

// Fraction returns received/total in [0,1], or false when the total is unknown.
func (p Progress) Fraction() (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	f := float64(p.Received) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	if f < 0 {
		f = 0
	}
	return f, true
}

// ReleaseSource supplies the latest release.
type ReleaseSource interface {
	Latest(ctx context.Context) (*ReleaseArtifact, error)
}

// Fetcher downloads an archive into dir and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, onProgress func(Progress)) (string, error)
}

// Unpacker extracts an archive into dir and locates the single bundle in it.
type Unpacker interface {
	Unpack(archivePath, dir string) (*StagedBundle, error)
}

// PrivilegeBroker obtains administrator rights and copies with them.
type PrivilegeBroker interface {
	RequestElevation(ctx context.Context) (bool, error)
	ElevatedCopy(ctx context.Context, src, dst string) error
}

// Relauncher terminates the current process and starts the installed bundle.
type Relauncher interface {
	Relaunch(path string) error
}

// Observer receives coordinator notifications. Calls are serialized.
type Observer interface {
	OnStatus(Status)
	OnFinish(Result)
}

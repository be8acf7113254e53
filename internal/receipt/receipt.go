// Package receipt records the outcome of finished update attempts.
package receipt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
)

// Receipt is the audit record of one finished attempt.
type Receipt struct {
	ID           string             `json:"id" yaml:"id"`
	Version      string             `json:"version" yaml:"version"`
	State        types.AttemptState `json:"state" yaml:"state"`
	Strategy     types.StrategyKind `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Location     string             `json:"location,omitempty" yaml:"location,omitempty"`
	Error        string             `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time          `json:"finished_at" yaml:"finished_at"`
	HoistVersion string             `json:"hoist_version" yaml:"hoist_version"`

	file string
}

// File returns the path the receipt was read from or written to.
func (r *Receipt) File() string {
	return r.file
}

// Manager reads and writes receipts in a directory.
type Manager struct {
	dir          string
	hoistVersion string
}

// NewManager creates a receipt manager writing to dir.
func NewManager(dir, version string) *Manager {
	return &Manager{dir: dir, hoistVersion: version}
}

// Dir returns the receipt directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Create writes a receipt for a terminal result.
func (m *Manager) Create(res update.Result) (*Receipt, error) {
	if !res.State.IsTerminal() {
		return nil, fmt.Errorf("attempt %s has not finished (state %s)", res.AttemptID, res.State)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}

	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	r := &Receipt{
		ID:           res.AttemptID,
		Version:      res.Version,
		State:        res.State,
		StartedAt:    res.StartedAt,
		FinishedAt:   finished,
		HoistVersion: m.hoistVersion,
	}
	if res.Target != nil {
		r.Strategy = res.Target.Kind
		r.Location = res.Target.DestinationPath
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}

	name := fmt.Sprintf("%s-%s.json", finished.UTC().Format("20060102T150405Z"), res.AttemptID)
	r.file = filepath.Join(m.dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt: %w", err)
	}
	if err := os.WriteFile(r.file, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write receipt file: %w", err)
	}

	logging.L("receipt").WithField(logging.KeyPath, r.file).Debug("wrote receipt")
	return r, nil
}

// List returns all receipts sorted by finish time (newest first).
// Unreadable files are skipped.
func (m *Manager) List() ([]*Receipt, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Receipt{}, nil
		}
		return nil, fmt.Errorf("failed to read receipt directory: %w", err)
	}

	receipts := make([]*Receipt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		r, err := load(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			logging.L("receipt").WithError(err).Debug("skipping unreadable receipt")
			continue
		}
		receipts = append(receipts, r)
	}

	sort.SliceStable(receipts, func(i, j int) bool {
		if receipts[i].FinishedAt.Equal(receipts[j].FinishedAt) {
			return receipts[i].file > receipts[j].file
		}
		return receipts[i].FinishedAt.After(receipts[j].FinishedAt)
	})

	return receipts, nil
}

// Get retrieves a receipt by attempt ID or unique ID prefix.
// Use "latest" to get the most recent receipt.
func (m *Manager) Get(id string) (*Receipt, error) {
	receipts, err := m.List()
	if err != nil {
		return nil, err
	}

	if id == "latest" {
		if len(receipts) == 0 {
			return nil, fmt.Errorf("no receipts found")
		}
		return receipts[0], nil
	}

	var match *Receipt
	for _, r := range receipts {
		if r.ID == id {
			return r, nil
		}
		if id != "" && strings.HasPrefix(r.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("receipt id %q is ambiguous", id)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("receipt not found: %s", id)
	}
	return match, nil
}

// Delete removes a receipt by attempt ID.
func (m *Manager) Delete(id string) error {
	r, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(r.file); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return nil
}

func load(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipt file: %w", err)
	}
	r.file = path
	return &r, nil
}

package receipt

import (
	"fmt"
	"os"
)

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []*Receipt `json:"deleted" yaml:"deleted"`
	Kept    int        `json:"kept" yaml:"kept"`
}

// Prune removes old receipts, keeping only the most recent N.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	receipts, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}

	// Receipts are already sorted newest first
	if len(receipts) <= keep {
		result.Kept = len(receipts)
		return result, nil
	}

	result.Kept = keep
	for _, r := range receipts[keep:] {
		if err := os.Remove(r.file); err != nil {
			return nil, fmt.Errorf("failed to delete receipt %s: %w", r.ID, err)
		}
		result.Deleted = append(result.Deleted, r)
	}

	return result, nil
}

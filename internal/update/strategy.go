package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/types"
)

// Outcome is what a strategy reports back to the chain.
type Outcome int

const (
	OutcomeInstalled        Outcome = iota // Bundle is in place; stop
	OutcomePermissionDenied                // Target not writable; try the next strategy
	OutcomeFailed                          // Something broke; see Recoverable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInstalled:
		return "installed"
	case OutcomePermissionDenied:
		return "permission denied"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// InstallResult is returned by Strategy.TryInstall.
type InstallResult struct {
	Outcome     Outcome
	Target      InstallTarget
	Err         error
	Recoverable bool // Only meaningful for OutcomeFailed
}

func installed(target InstallTarget) InstallResult {
	return InstallResult{Outcome: OutcomeInstalled, Target: target}
}

func denied(target InstallTarget, err error) InstallResult {
	return InstallResult{Outcome: OutcomePermissionDenied, Target: target, Err: err}
}

func failed(target InstallTarget, err error, recoverable bool) InstallResult {
	return InstallResult{Outcome: OutcomeFailed, Target: target, Err: err, Recoverable: recoverable}
}

// Strategy places a staged bundle at one kind of target.
type Strategy interface {
	Kind() types.StrategyKind
	TryInstall(ctx context.Context, bundle *StagedBundle) InstallResult
}

// Chain runs strategies in priority order until one installs the bundle.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain. Strategies must be given in priority order
// (in-place, user, system) and each kind may appear once; the chain never
// reorders them.
func NewChain(strategies ...Strategy) (*Chain, error) {
	if len(strategies) == 0 {
		return nil, errors.New("at least one install strategy is required")
	}

	last := -1
	for _, s := range strategies {
		p := s.Kind().Priority()
		if p <= last {
			return nil, fmt.Errorf("install strategy %s is out of order", s.Kind())
		}
		last = p
	}

	return &Chain{strategies: strategies}, nil
}

// Kinds returns the strategy kinds in evaluation order.
func (c *Chain) Kinds() []types.StrategyKind {
	kinds := make([]types.StrategyKind, 0, len(c.strategies))
	for _, s := range c.strategies {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

// Install evaluates the chain. It returns the target of the first strategy
// that installs the bundle, or the error that ended the chain: an
// unrecoverable failure, or the last strategy's error once all were tried.
func (c *Chain) Install(ctx context.Context, bundle *StagedBundle) (*InstallTarget, error) {
	log := logging.L("chain")
	var lastErr error

	for _, s := range c.strategies {
		entry := log.WithField(logging.KeyStrategy, s.Kind())
		entry.Debug("trying install strategy")

		res := s.TryInstall(ctx, bundle)
		switch res.Outcome {
		case OutcomeInstalled:
			target := res.Target
			entry.WithField(logging.KeyPath, target.DestinationPath).Info("bundle installed")
			return &target, nil

		case OutcomePermissionDenied:
			entry.WithError(res.Err).Info("install strategy not permitted, falling through")
			lastErr = res.Err

		default:
			if !res.Recoverable {
				entry.WithError(res.Err).Error("install strategy failed")
				return nil, res.Err
			}
			entry.WithError(res.Err).Warn("install strategy failed, falling through")
			lastErr = res.Err
		}
	}

	return nil, lastErr
}

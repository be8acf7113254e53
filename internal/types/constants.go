// Package types provides type-safe constants for the hoist updater.
//
// This package centralizes all enumerated types used throughout the codebase,
// replacing magic strings with typed constants that provide compile-time safety
// and validation methods.
//
// SYNC REQUIREMENT: These types must stay in sync with:
//   - internal/config/validate.go (runtime validation)
//   - internal/update/coordinator.go (transition table)
package types

import (
	"fmt"
	"strings"
)

// AttemptState is the lifecycle state of one update attempt.
type AttemptState string

const (
	// StateIdle is the initial state before Start.
	StateIdle AttemptState = "idle"
	// StateFetching means the archive is being downloaded.
	StateFetching AttemptState = "fetching"
	// StateUnpacking means the archive is being extracted into scratch space.
	StateUnpacking AttemptState = "unpacking"
	// StateInstalling means the strategy chain is running.
	StateInstalling AttemptState = "installing"
	// StateSucceeded is terminal: the new bundle is in place.
	StateSucceeded AttemptState = "succeeded"
	// StateFailed is terminal: the attempt failed and may be retried.
	StateFailed AttemptState = "failed"
	// StateCancelled is terminal: the download was cancelled.
	StateCancelled AttemptState = "cancelled"
)

// AllAttemptStates returns all valid attempt states.
func AllAttemptStates() []AttemptState {
	return []AttemptState{
		StateIdle, StateFetching, StateUnpacking, StateInstalling,
		StateSucceeded, StateFailed, StateCancelled,
	}
}

// Validate checks if the AttemptState is a valid value.
func (s AttemptState) Validate() error {
	for _, v := range AllAttemptStates() {
		if s == v {
			return nil
		}
	}
	if s == "" {
		return fmt.Errorf("attempt state is required")
	}
	return fmt.Errorf("invalid attempt state '%s'", s)
}

// String returns the string representation of the AttemptState.
func (s AttemptState) String() string {
	return string(s)
}

// IsTerminal returns true for states that need caller action to leave.
func (s AttemptState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// IsActive returns true while an attempt is in flight.
func (s AttemptState) IsActive() bool {
	return s == StateFetching || s == StateUnpacking || s == StateInstalling
}

// IsRetryable returns true if Retry may be called from this state.
func (s AttemptState) IsRetryable() bool {
	return s == StateFailed || s == StateCancelled
}

// StrategyKind identifies an install strategy and the kind of target it writes to.
type StrategyKind string

const (
	// StrategyInPlace replaces the running installation where it lives.
	StrategyInPlace StrategyKind = "in-place"
	// StrategyUser installs into a per-user application directory.
	StrategyUser StrategyKind = "user"
	// StrategySystem installs into a machine-wide directory via elevation.
	StrategySystem StrategyKind = "system"
)

// AllStrategyKinds returns all strategy kinds in their fixed priority order.
func AllStrategyKinds() []StrategyKind {
	return []StrategyKind{StrategyInPlace, StrategyUser, StrategySystem}
}

// Validate checks if the StrategyKind is a valid value.
func (k StrategyKind) Validate() error {
	switch k {
	case StrategyInPlace, StrategyUser, StrategySystem:
		return nil
	case "":
		return fmt.Errorf("strategy is required")
	default:
		return fmt.Errorf("invalid strategy '%s' (must be in-place, user, or system)", k)
	}
}

// String returns the string representation of the StrategyKind.
func (k StrategyKind) String() string {
	return string(k)
}

// Priority returns the position of the strategy in the chain, lowest first.
// Unknown kinds sort last.
func (k StrategyKind) Priority() int {
	for i, v := range AllStrategyKinds() {
		if k == v {
			return i
		}
	}
	return len(AllStrategyKinds())
}

// RequiresElevation returns true if the strategy prompts for administrator rights.
func (k StrategyKind) RequiresElevation() bool {
	return k == StrategySystem
}

// ParseStrategyKind parses a string into a StrategyKind.
// "in_place", "inplace" and "user-scoped"/"system-scoped" spellings are accepted.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in-place", "in_place", "inplace":
		return StrategyInPlace, nil
	case "user", "user-scoped", "user_scoped":
		return StrategyUser, nil
	case "system", "system-scoped", "system_scoped", "privileged":
		return StrategySystem, nil
	}
	k := StrategyKind(strings.ToLower(s))
	return "", k.Validate()
}

// SourceType represents where release metadata comes from.
type SourceType string

const (
	// SourceTypeGitHub reads the latest release from the GitHub releases API.
	SourceTypeGitHub SourceType = "github"
	// SourceTypeStatic takes version, URL and notes verbatim from the Hoistfile.
	SourceTypeStatic SourceType = "static"
)

// AllSourceTypes returns all valid source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceTypeGitHub, SourceTypeStatic}
}

// Validate checks if the SourceType is a valid value.
func (s SourceType) Validate() error {
	switch s {
	case SourceTypeGitHub, SourceTypeStatic:
		return nil
	case "":
		return fmt.Errorf("release source is required")
	default:
		return fmt.Errorf("invalid release source '%s' (must be github or static)", s)
	}
}

// String returns the string representation of the SourceType.
func (s SourceType) String() string {
	return string(s)
}

// IsGitHub returns true if the source type is GitHub.
func (s SourceType) IsGitHub() bool {
	return s == SourceTypeGitHub
}

// IsStatic returns true if the source type is static.
func (s SourceType) IsStatic() bool {
	return s == SourceTypeStatic
}

// ParseSourceType parses a string into a SourceType.
// Returns an error if the string is not a valid source type.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(s))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// UnpackMode selects the archive extraction backend.
type UnpackMode string

const (
	// UnpackNative extracts zip and tar.gz archives in-process.
	UnpackNative UnpackMode = "native"
	// UnpackCommand shells out to the unzip tool.
	UnpackCommand UnpackMode = "command"
)

// Validate checks if the UnpackMode is a valid value.
// Empty mode is valid and means native.
func (m UnpackMode) Validate() error {
	switch m {
	case UnpackNative, UnpackCommand, "":
		return nil
	default:
		return fmt.Errorf("invalid unpack mode '%s' (must be native or command)", m)
	}
}

// String returns the string representation of the UnpackMode.
func (m UnpackMode) String() string {
	return string(m)
}

// Default returns native if the mode is empty.
func (m UnpackMode) Default() UnpackMode {
	if m == "" {
		return UnpackNative
	}
	return m
}

// BrokerType selects the privilege broker used by the system strategy.
type BrokerType string

const (
	// BrokerSudo elevates with sudo.
	BrokerSudo BrokerType = "sudo"
	// BrokerOSAScript elevates with an AppleScript administrator prompt.
	BrokerOSAScript BrokerType = "osascript"
	// BrokerNone disables elevation; the system strategy always reports denial.
	BrokerNone BrokerType = "none"
)

// Validate checks if the BrokerType is a valid value.
// Empty is valid and resolves to the platform default.
func (b BrokerType) Validate() error {
	switch b {
	case BrokerSudo, BrokerOSAScript, BrokerNone, "":
		return nil
	default:
		return fmt.Errorf("invalid broker '%s' (must be sudo, osascript, or none)", b)
	}
}

// String returns the string representation of the BrokerType.
func (b BrokerType) String() string {
	return string(b)
}

// ParseBrokerType parses a string into a BrokerType.
func ParseBrokerType(s string) (BrokerType, error) {
	b := BrokerType(strings.ToLower(s))
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b, nil
}

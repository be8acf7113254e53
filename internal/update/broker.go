package update

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adamancini/hoist/internal/types"
)

// NewBroker returns the broker for kind, or nil for BrokerNone.
// An empty kind picks osascript on darwin and sudo elsewhere.
func NewBroker(kind types.BrokerType, runner CommandRunner) PrivilegeBroker {
	if runner == nil {
		runner = &DefaultCommandRunner{}
	}
	if kind == "" {
		kind = types.BrokerSudo
		if runtime.GOOS == "darwin" {
			kind = types.BrokerOSAScript
		}
	}

	switch kind {
	case types.BrokerSudo:
		return &SudoBroker{runner: runner}
	case types.BrokerOSAScript:
		return &OSAScriptBroker{runner: runner}
	}
	return nil
}

// SudoBroker elevates with sudo. RequestElevation primes sudo's credential
// cache so the copy commands run non-interactively.
type SudoBroker struct {
	runner CommandRunner
}

// RequestElevation runs `sudo -v`. A non-zero exit is a denial.
func (b *SudoBroker) RequestElevation(ctx context.Context) (bool, error) {
	output, err := b.runner.Run(ctx, "sudo", "-v")
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("sudo failed: %w\nOutput: %s", err, strings.TrimSpace(string(output)))
}

// ElevatedCopy replaces dst with a recursive copy of src as root.
func (b *SudoBroker) ElevatedCopy(ctx context.Context, src, dst string) error {
	steps := [][]string{
		{"-n", "mkdir", "-p", filepath.Dir(dst)},
		{"-n", "rm", "-rf", dst},
		{"-n", "cp", "-R", src, dst},
	}
	for _, args := range steps {
		if output, err := b.runner.Run(ctx, "sudo", args...); err != nil {
			return fmt.Errorf("sudo %s failed: %w\nOutput: %s",
				strings.Join(args[1:], " "), err, strings.TrimSpace(string(output)))
		}
	}
	return nil
}

// OSAScriptBroker elevates through an AppleScript administrator prompt.
// The prompt is shown once, by ElevatedCopy; RequestElevation only checks
// that osascript is available.
type OSAScriptBroker struct {
	runner CommandRunner
}

// userCancelled is the AppleScript error number for a dismissed prompt.
const userCancelled = "-128"

func (b *OSAScriptBroker) RequestElevation(_ context.Context) (bool, error) {
	if _, err := exec.LookPath("osascript"); err != nil {
		return false, err
	}
	return true, nil
}

// ElevatedCopy replaces dst with a copy of src inside one privileged shell script.
func (b *OSAScriptBroker) ElevatedCopy(ctx context.Context, src, dst string) error {
	shell := fmt.Sprintf("mkdir -p %s && rm -rf %s && cp -R %s %s",
		shellQuote(filepath.Dir(dst)), shellQuote(dst), shellQuote(src), shellQuote(dst))
	script := fmt.Sprintf("do shell script %s with administrator privileges", appleScriptString(shell))

	output, err := b.runner.Run(ctx, "osascript", "-e", script)
	if err != nil {
		if strings.Contains(string(output), userCancelled) {
			return &ElevationDeniedError{Reason: "request was declined"}
		}
		return fmt.Errorf("privileged copy failed: %w\nOutput: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// shellQuote wraps s in single quotes for /bin/sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// appleScriptString renders s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

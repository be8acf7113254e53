//go:build !windows

package update

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// openBundle asks LaunchServices for a new instance of the bundle.
func (r *ExecRelauncher) openBundle(path string) error {
	args := []string{"-n", path}
	if len(r.args) > 0 {
		args = append(args, "--args")
		args = append(args, r.args...)
	}
	if output, err := r.runner.Run(context.Background(), "open", args...); err != nil {
		return fmt.Errorf("open failed: %w\nOutput: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// execBinary replaces the current process with path.
func (r *ExecRelauncher) execBinary(path string) error {
	argv := append([]string{path}, r.args...)
	return syscall.Exec(path, argv, os.Environ())
}

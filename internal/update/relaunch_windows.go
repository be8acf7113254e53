//go:build windows

package update

import (
	"errors"
	"fmt"
	"os/exec"
)

func (r *ExecRelauncher) openBundle(path string) error {
	return errors.New("bundle relaunch is not supported on windows")
}

// execBinary starts path detached and exits; windows has no exec(2).
func (r *ExecRelauncher) execBinary(path string) error {
	cmd := exec.Command(path, r.args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", path, err)
	}
	_ = cmd.Process.Release()
	r.exit(0)
	return nil
}

package update

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/adamancini/hoist/internal/logging"
)

// ExecRelauncher starts the freshly installed bundle and exits the current
// process. On unix a plain executable replaces this process image.
type ExecRelauncher struct {
	runner CommandRunner
	exit   func(code int)
	args   []string
}

// NewExecRelauncher creates a relauncher passing args to the new process.
func NewExecRelauncher(runner CommandRunner, args ...string) *ExecRelauncher {
	if runner == nil {
		runner = &DefaultCommandRunner{}
	}
	return &ExecRelauncher{runner: runner, exit: os.Exit, args: args}
}

// Relaunch starts the installation at path. It only returns on failure.
func (r *ExecRelauncher) Relaunch(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	logging.L("relaunch").WithField(logging.KeyPath, path).Info("relaunching")

	if runtime.GOOS == "darwin" && info.IsDir() && strings.HasSuffix(strings.ToLower(path), ".app") {
		if err := r.openBundle(path); err != nil {
			return err
		}
		r.exit(0)
		return nil
	}
	if info.IsDir() {
		return fmt.Errorf("cannot relaunch %s: not an executable", path)
	}

	return r.execBinary(path)
}

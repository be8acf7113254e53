//go:build !windows

package update

import (
	"errors"

	"golang.org/x/sys/unix"
)

// probeWritable asks the kernel whether the real user may write path.
func probeWritable(path string) error {
	return unix.Access(path, unix.W_OK)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

func isReadOnlyFS(err error) bool {
	return errors.Is(err, unix.EROFS)
}

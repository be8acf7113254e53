package update

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// moveTree renames src to dst, copying and removing the source when the
// two live on different filesystems.
func moveTree(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	if err := copyTree(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return fmt.Errorf("failed to copy across filesystems: %w", err)
	}
	return os.RemoveAll(src)
}

// copyTree copies a file or directory tree, preserving modes and symlinks.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyEntry(src, dst, info)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyEntry(path, filepath.Join(dst, rel), info)
	})
}

func copyEntry(src, dst string, info fs.FileInfo) error {
	switch {
	case info.IsDir():
		return os.MkdirAll(dst, info.Mode().Perm()|0700)
	case info.Mode()&os.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)
	default:
		return copyFile(src, dst)
	}
}

// exists reports whether path exists without following a final symlink.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// isPermission reports errors that mean "not allowed" rather than "broken".
func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) || isReadOnlyFS(err)
}

// ensureWritable returns nil if the current user may replace path in place:
// both the entry itself and its parent directory must be writable.
func ensureWritable(path string) error {
	if err := probeWritable(filepath.Dir(path)); err != nil {
		return err
	}
	if exists(path) {
		if err := probeWritable(path); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies a single regular file, keeping its permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

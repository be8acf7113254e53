package update

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultBundleSuffix matches macOS application bundles.
const DefaultBundleSuffix = ".app"

// unpackDirName is the scratch subdirectory archives are extracted into.
const unpackDirName = "unpacked"

// ArchiveUnpacker extracts zip and tar.gz archives in-process.
type ArchiveUnpacker struct {
	suffix string
}

// NewArchiveUnpacker creates an unpacker looking for bundles ending in suffix.
func NewArchiveUnpacker(suffix string) *ArchiveUnpacker {
	if suffix == "" {
		suffix = DefaultBundleSuffix
	}
	return &ArchiveUnpacker{suffix: suffix}
}

// Unpack extracts archivePath into <dir>/unpacked and returns the single bundle in it.
func (u *ArchiveUnpacker) Unpack(archivePath, dir string) (*StagedBundle, error) {
	dest, err := freshDir(dir)
	if err != nil {
		return nil, &UnpackError{Archive: archivePath, Err: err}
	}

	format, err := sniffArchive(archivePath)
	if err != nil {
		return nil, &UnpackError{Archive: archivePath, Err: err}
	}

	switch format {
	case archiveZip:
		err = extractZip(archivePath, dest)
	case archiveTarGz:
		err = extractTarGz(archivePath, dest)
	default:
		err = fmt.Errorf("unsupported archive format")
	}
	if err != nil {
		return nil, &UnpackError{Archive: archivePath, Err: err}
	}

	return locateBundle(dest, archivePath, u.suffix)
}

// CommandUnpacker extracts zip archives with the system unzip tool.
type CommandUnpacker struct {
	suffix string
	runner CommandRunner
	tool   string
}

// NewCommandUnpacker creates an unpacker that runs `unzip -o <archive> -d <dir>`.
func NewCommandUnpacker(suffix string, runner CommandRunner) *CommandUnpacker {
	if suffix == "" {
		suffix = DefaultBundleSuffix
	}
	if runner == nil {
		runner = &DefaultCommandRunner{}
	}
	return &CommandUnpacker{suffix: suffix, runner: runner, tool: "unzip"}
}

// Unpack runs the extraction tool and returns the single bundle it produced.
func (u *CommandUnpacker) Unpack(archivePath, dir string) (*StagedBundle, error) {
	dest, err := freshDir(dir)
	if err != nil {
		return nil, &UnpackError{Archive: archivePath, Err: err}
	}

	// Extraction is not cancellable once started.
	output, err := u.runner.Run(context.Background(), u.tool, "-o", "-q", archivePath, "-d", dest)
	if err != nil {
		return nil, &UnpackError{
			Archive: archivePath,
			Err:     fmt.Errorf("%s failed: %w\nOutput: %s", u.tool, err, strings.TrimSpace(string(output))),
		}
	}

	return locateBundle(dest, archivePath, u.suffix)
}

// freshDir removes any previous extraction and recreates an empty directory.
func freshDir(dir string) (string, error) {
	dest := filepath.Join(dir, unpackDirName)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	return dest, nil
}

// locateBundle requires exactly one top-level entry ending in suffix.
func locateBundle(dest, archivePath, suffix string) (*StagedBundle, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return nil, &UnpackError{Archive: archivePath, Err: err}
	}

	var candidates []string
	for _, entry := range entries {
		if strings.HasSuffix(strings.ToLower(entry.Name()), strings.ToLower(suffix)) {
			candidates = append(candidates, entry.Name())
		}
	}
	sort.Strings(candidates)

	if len(candidates) != 1 {
		return nil, &AmbiguousBundleError{Suffix: suffix, Candidates: candidates}
	}

	return &StagedBundle{
		Path:          filepath.Join(dest, candidates[0]),
		SourceArchive: archivePath,
	}, nil
}

type archiveFormat int

const (
	archiveUnknown archiveFormat = iota
	archiveZip
	archiveTarGz
)

// sniffArchive detects the format from magic bytes rather than the file name.
func sniffArchive(path string) (archiveFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return archiveUnknown, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return archiveUnknown, fmt.Errorf("failed to read archive header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte("PK\x03\x04")), bytes.HasPrefix(header, []byte("PK\x05\x06")):
		return archiveZip, nil
	case bytes.HasPrefix(header, []byte{0x1f, 0x8b}):
		return archiveTarGz, nil
	}
	return archiveUnknown, nil
}

// safeJoin joins name under dest, rejecting entries that escape it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}

// within reports whether path is root or lies below it, comparing cleaned
// paths only.
func within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// extractor writes archive entries below dest. Every write is checked
// against the real location of dest so links created by earlier entries
// cannot redirect later ones.
type extractor struct {
	dest     string
	realDest string
}

func newExtractor(dest string) (*extractor, error) {
	resolved, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, err
	}
	return &extractor{dest: dest, realDest: resolved}, nil
}

// target returns the path for an archive entry after checking that neither
// its name nor any link already on disk leads outside dest.
func (x *extractor) target(name string) (string, error) {
	target, err := safeJoin(x.dest, name)
	if err != nil {
		return "", err
	}
	if err := x.checkResolved(target, name); err != nil {
		return "", err
	}
	return target, nil
}

// checkResolved follows the deepest existing prefix of path through the
// filesystem. Components below it do not exist yet, so they cannot be links.
func (x *extractor) checkResolved(path, name string) error {
	existing := path
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("cannot resolve %s in archive: %w", name, err)
	}
	if !within(x.realDest, resolved) {
		return fmt.Errorf("archive entry %s resolves outside the extraction directory", name)
	}
	return nil
}

// symlink creates target -> link. Absolute links and links that climb out
// of dest are rejected.
func (x *extractor) symlink(link, target, name string) error {
	if link == "" || filepath.IsAbs(link) || !within(x.dest, filepath.Join(filepath.Dir(target), link)) {
		return fmt.Errorf("symlink %s -> %s in archive points outside the extraction directory", name, link)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.Symlink(link, target)
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	x, err := newExtractor(dest)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		target, err := x.target(f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			link, err := readZipLink(f)
			if err != nil {
				return err
			}
			if err := x.symlink(link, target, f.Name); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return err
			}
			err = writeFile(rc, target, mode.Perm())
			_ = rc.Close()
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported entry %s in archive (mode %s)", f.Name, mode)
		}
	}

	return nil
}

// readZipLink returns a symlink entry's target, which zip stores as the body.
func readZipLink(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	link, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(link), nil
}

func extractTarGz(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read gzip: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	x, err := newExtractor(dest)
	if err != nil {
		return err
	}

	// tar.Reader reports old-style TypeRegA entries as TypeReg or TypeDir.
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := x.target(header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(tr, target, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := x.symlink(header.Linkname, target, header.Name); err != nil {
				return err
			}
		case tar.TypeLink:
			// Hard link names are archive paths, like entry names.
			source, err := x.target(header.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("failed to link %s to %s: %w", header.Name, header.Linkname, err)
			}
		default:
			return fmt.Errorf("unsupported entry %s in archive (type %q)", header.Name, header.Typeflag)
		}
	}
}

// writeFile writes src to path, creating parent directories.
func writeFile(src io.Reader, path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

package update

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform identifies an operating system and architecture pair.
type Platform struct {
	OS   string
	Arch string
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// Expand substitutes {os} and {arch} in an asset pattern,
// e.g. "app-{os}-{arch}.zip" becomes "app-darwin-arm64.zip".
func (p Platform) Expand(pattern string) string {
	return strings.NewReplacer("{os}", p.OS, "{arch}", p.Arch).Replace(pattern)
}

// IsSupported returns true if this platform is supported
func (p Platform) IsSupported() bool {
	supportedPlatforms := map[string][]string{
		"darwin":  {"amd64", "arm64"},
		"linux":   {"amd64", "arm64"},
		"windows": {"amd64", "arm64"},
	}

	archs, ok := supportedPlatforms[p.OS]
	if !ok {
		return false
	}

	for _, arch := range archs {
		if p.Arch == arch {
			return true
		}
	}

	return false
}

// DefaultUserDir returns the per-user application directory for p.
func (p Platform) DefaultUserDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	switch p.OS {
	case "darwin":
		return filepath.Join(home, "Applications"), nil
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "Programs"), nil
		}
		return filepath.Join(home, "AppData", "Local", "Programs"), nil
	}
	return filepath.Join(home, ".local", "opt"), nil
}

// DefaultSystemDir returns the machine-wide application directory for p.
func (p Platform) DefaultSystemDir() string {
	switch p.OS {
	case "darwin":
		return "/Applications"
	case "windows":
		if dir := os.Getenv("ProgramFiles"); dir != "" {
			return dir
		}
		return `C:\Program Files`
	}
	return "/opt"
}

// ErrNotInBundle is returned when the running executable is not inside a bundle.
var ErrNotInBundle = errors.New("running executable is not inside an application bundle")

// CurrentInstallation returns the bundle the running executable belongs to,
// e.g. /Applications/App.app for /Applications/App.app/Contents/MacOS/app.
func CurrentInstallation(suffix string) (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the real path
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}

	root, ok := bundleRoot(execPath, suffix)
	if !ok {
		return "", ErrNotInBundle
	}
	return root, nil
}

// bundleRoot walks up from path to the nearest ancestor (or path itself)
// whose name ends with suffix.
func bundleRoot(path, suffix string) (string, bool) {
	if suffix == "" {
		return "", false
	}
	suffix = strings.ToLower(suffix)
	for p := filepath.Clean(path); ; {
		if strings.HasSuffix(strings.ToLower(filepath.Base(p)), suffix) {
			return p, true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", false
		}
		p = parent
	}
}

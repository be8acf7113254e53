package update

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// devVersion is the version stamped into unreleased builds.
const devVersion = "dev"

// IsNewer reports whether latest is a newer release than current.
// A development build is older than every release.
func IsNewer(current, latest string) (bool, error) {
	latestVer, err := goversion.NewVersion(NormalizeVersion(latest))
	if err != nil {
		return false, fmt.Errorf("invalid latest version: %w", err)
	}

	current = NormalizeVersion(current)
	if current == "" || current == devVersion {
		return true, nil
	}
	currentVer, err := goversion.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid current version: %w", err)
	}

	return latestVer.GreaterThan(currentVer), nil
}

// CompareVersions compares two version strings
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//   - error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	ver1, err := goversion.NewVersion(NormalizeVersion(v1))
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}

	ver2, err := goversion.NewVersion(NormalizeVersion(v2))
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}

	return ver1.Compare(ver2), nil
}

// NormalizeVersion trims whitespace and the 'v' prefix if present
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}

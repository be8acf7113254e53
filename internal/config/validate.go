package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/adamancini/hoist/internal/types"
)

var (
	// repoPattern validates GitHub repositories in the format "owner/name".
	repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	// checksumPattern validates hex-encoded SHA-256 digests.
	checksumPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// ValidationError represents a Hoistfile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the Hoistfile for required fields and valid values.
// Every problem is reported, not just the first.
func Validate(h *Hoistfile) error {
	var result *multierror.Error

	if h.Version != 0 && h.Version != 1 {
		result = multierror.Append(result, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (must be 1)", h.Version),
		})
	}

	result = multierror.Append(result, validateRelease(h.Release)...)
	result = multierror.Append(result, validateInstall(h.Install)...)

	if h.Download.Timeout != "" {
		timeout, err := time.ParseDuration(h.Download.Timeout)
		if err != nil || timeout <= 0 {
			result = multierror.Append(result, ValidationError{
				Field:   "download.timeout",
				Message: fmt.Sprintf("invalid duration '%s'", h.Download.Timeout),
			})
		}
	}

	if err := h.Unpack.Mode.Validate(); err != nil {
		result = multierror.Append(result, ValidationError{Field: "unpack.mode", Message: err.Error()})
	}

	if h.Log.Level != "" {
		if _, err := logrus.ParseLevel(h.Log.Level); err != nil {
			result = multierror.Append(result, ValidationError{Field: "log.level", Message: err.Error()})
		}
	}
	switch h.Log.Format {
	case "", "text", "json":
	default:
		result = multierror.Append(result, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s' (must be text or json)", h.Log.Format),
		})
	}

	if h.History.Keep < 0 {
		result = multierror.Append(result, ValidationError{
			Field:   "history.keep",
			Message: "must not be negative",
		})
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = formatErrors
	return result.ErrorOrNil()
}

// formatErrors renders the aggregated errors as an indented list.
func formatErrors(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(lines, "\n  - "))
}

func validateRelease(r ReleaseConfig) []error {
	var errs []error

	// An unset source is allowed: `hoist check` then needs --url or --repo.
	if r.Source == "" {
		return nil
	}
	if err := r.Source.Validate(); err != nil {
		return []error{ValidationError{Field: "release.source", Message: err.Error()}}
	}

	switch {
	case r.Source.IsGitHub():
		if !repoPattern.MatchString(r.Repo) {
			errs = append(errs, ValidationError{
				Field:   "release.repo",
				Message: fmt.Sprintf("invalid repo '%s' (must be owner/name)", r.Repo),
			})
		}
	case r.Source.IsStatic():
		u, err := url.Parse(r.URL)
		if r.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "release.url",
				Message: "an http or https URL is required for static source",
			})
		}
	}

	if r.Checksum != "" && !checksumPattern.MatchString(r.Checksum) {
		errs = append(errs, ValidationError{
			Field:   "release.checksum",
			Message: "must be a hex-encoded SHA-256 digest",
		})
	}

	return errs
}

func validateInstall(in InstallConfig) []error {
	var errs []error

	seen := make(map[types.StrategyKind]bool)
	last := -1
	for i, kind := range in.Strategies {
		field := fmt.Sprintf("install.strategies[%d]", i)
		if err := kind.Validate(); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
			continue
		}
		if seen[kind] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate strategy '%s'", kind)})
			continue
		}
		seen[kind] = true
		if kind.Priority() < last {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("strategy '%s' out of order (must follow in-place, user, system)", kind),
			})
		}
		last = kind.Priority()
	}

	if err := in.Broker.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "install.broker", Message: err.Error()})
	} else if in.Broker == types.BrokerNone && seen[types.StrategySystem] {
		errs = append(errs, ValidationError{
			Field:   "install.broker",
			Message: "system strategy requires a privilege broker",
		})
	}

	return errs
}

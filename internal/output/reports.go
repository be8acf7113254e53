package output

import (
	"fmt"
	"strings"
	"time"
)

// CheckReport is the result of `hoist check`.
type CheckReport struct {
	CurrentVersion  string `json:"current_version" yaml:"current_version"`
	LatestVersion   string `json:"latest_version" yaml:"latest_version"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
	DownloadURL     string `json:"download_url" yaml:"download_url"`
	Notes           string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Platform        string `json:"platform" yaml:"platform"`
}

func (r CheckReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %s\n", orUnknown(r.CurrentVersion))
	fmt.Fprintf(&b, "Latest version:  %s\n", r.LatestVersion)
	fmt.Fprintf(&b, "Platform:        %s\n", r.Platform)
	if r.UpdateAvailable {
		fmt.Fprintf(&b, "\nUpdate available: %s\n", r.DownloadURL)
		fmt.Fprint(&b, "Run 'hoist install' to update.")
	} else {
		fmt.Fprint(&b, "\nYou are running the latest version.")
	}
	if notes := strings.TrimSpace(r.Notes); notes != "" && r.UpdateAvailable {
		fmt.Fprintf(&b, "\n\nRelease notes:\n%s", indent(notes, "  "))
	}
	return b.String()
}

// InstallReport is the result of `hoist install`.
type InstallReport struct {
	AttemptID        string    `json:"attempt_id" yaml:"attempt_id"`
	Version          string    `json:"version" yaml:"version"`
	State            string    `json:"state" yaml:"state"`
	Strategy         string    `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Location         string    `json:"location,omitempty" yaml:"location,omitempty"`
	Error            string    `json:"error,omitempty" yaml:"error,omitempty"`
	RelaunchRequired bool      `json:"relaunch_required" yaml:"relaunch_required"`
	StartedAt        time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time `json:"finished_at" yaml:"finished_at"`
	Receipt          string    `json:"receipt,omitempty" yaml:"receipt,omitempty"`
}

func (r InstallReport) String() string {
	var b strings.Builder
	switch r.State {
	case "succeeded":
		fmt.Fprintf(&b, "%s Installed %s to %s", Success("✓"), r.Version, r.Location)
		if r.Strategy != "" {
			fmt.Fprintf(&b, " (%s)", r.Strategy)
		}
		if r.RelaunchRequired {
			fmt.Fprint(&b, "\nRelaunch the application to finish the update.")
		}
	case "cancelled":
		fmt.Fprintf(&b, "%s Update to %s cancelled", Warning("!"), r.Version)
	default:
		fmt.Fprintf(&b, "%s Update to %s failed: %s", Failure("✗"), r.Version, r.Error)
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "\nTook %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	return b.String()
}

// HistoryEntry is one receipt in `hoist history list`.
type HistoryEntry struct {
	ID         string    `json:"id" yaml:"id"`
	Version    string    `json:"version" yaml:"version"`
	State      string    `json:"state" yaml:"state"`
	Location   string    `json:"location,omitempty" yaml:"location,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// HistoryReport lists receipts newest first.
type HistoryReport struct {
	Entries []HistoryEntry `json:"entries" yaml:"entries"`
}

func (r HistoryReport) String() string {
	if len(r.Entries) == 0 {
		return "No update history."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s  %-10s  %-10s  %s\n", "FINISHED", "VERSION", "STATE", "DETAIL")
	for _, e := range r.Entries {
		detail := e.Location
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(&b, "%-20s  %-10s  %-10s  %s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"), e.Version, e.State, detail)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

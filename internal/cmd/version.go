package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/update"
)

// VersionInfo describes the hoist build.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("hoist version %s (commit %s, built %s, %s, %s)",
		v.Version, v.Commit, v.Date, v.GoVersion, v.Platform)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout())
		},
	}
}

func runVersion(w io.Writer) error {
	writer, err := newWriter(w)
	if err != nil {
		return err
	}
	return writer.Write(VersionInfo{
		Version:   hoistVersion,
		Commit:    buildCommit,
		Date:      buildDate,
		GoVersion: runtime.Version(),
		Platform:  update.Detect().String(),
	})
}

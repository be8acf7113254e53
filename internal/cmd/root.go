package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/logging"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
	logLevel     string
	logFile      string
)

// Build metadata, set by Execute.
var (
	hoistVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// hoistfile is the configuration loaded for the running command.
var hoistfile *config.Hoistfile

// skipConfig marks commands that run without a Hoistfile.
const skipConfig = "hoist/skip-config"

func Execute(version, commit, date string) error {
	hoistVersion, buildCommit, buildDate = version, commit, date
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hoist",
		Short: "Self-update agent for desktop application bundles",
		Long: `hoist downloads a released application archive, unpacks the bundle it
contains and installs it over the running installation.

Installation tries, in order: replacing the bundle in place, a per-user
application directory, and a system-wide directory with administrator
rights. The first that succeeds wins.`,
		Version:       hoistVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to Hoistfile")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log to a rotated file instead of stderr")

	// Add subcommands
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"trace", "debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// setup loads the Hoistfile and configures logging before any command runs.
func setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if _, ok := cmd.Annotations[skipConfig]; !ok {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	hoistfile = cfg

	level := cfg.Log.Level
	switch {
	case logLevel != "":
		level = logLevel
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}

	file := cfg.Log.File
	if logFile != "" {
		file = logFile
	}

	return logging.Init(level, file, cfg.Log.Format)
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/interactive"
	"github.com/adamancini/hoist/internal/templates"
)

func newInitCmd() *cobra.Command {
	var templateName string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new Hoistfile from a template",
		Long: `Create a new Hoistfile from a built-in template.

Available templates:
  github  - Latest GitHub release asset
  static  - Fixed archive URL and version
  full    - Every option with its default

Examples:
  hoist init                              # Pick a template interactively
  hoist init --template=static
  hoist init --config ~/path/Hoistfile    # Custom output location`,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := templateName
			if name == "" && interactive.IsTerminal() {
				selected, err := selectTemplate()
				if err != nil {
					return err
				}
				name = selected
			}
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), name, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template name")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing Hoistfile")

	// Register completion for template flag
	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// selectTemplate shows a template picker.
func selectTemplate() (string, error) {
	var options []huh.Option[string]
	for _, name := range templates.List() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s - %s", name, templates.GetDescription(name)), name))
	}

	selected := templates.Default
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a Hoistfile template").
				Options(options...).
				Value(&selected),
		),
	).Run(); err != nil {
		return "", fmt.Errorf("form error: %w", err)
	}
	return selected, nil
}

// runInit writes the template to outputPath after validating it.
func runInit(stdin io.Reader, stdout io.Writer, templateName, outputPath string, force bool) error {
	if templateName == "" {
		templateName = templates.Default
	}
	if outputPath == "" {
		outputPath = defaultHoistfilePath()
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !force {
		prompter := interactive.NewPrompterWithIO(stdin, stdout)
		ok, err := prompter.Confirm("Overwrite?", fmt.Sprintf("Hoistfile already exists at %s", outputPath))
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if !ok {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	tmpl, err := templates.Get(templateName)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	if err := validateTemplateContent(tmpl.Content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}

	if err := os.WriteFile(outputPath, tmpl.Content, 0644); err != nil {
		return fmt.Errorf("failed to write Hoistfile: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Created %s from the '%s' template\n", outputPath, tmpl.Name)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Edit the Hoistfile to point at your release")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'hoist check' to see the latest release")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'hoist install' to update")

	return nil
}

// validateTemplateContent validates that the content is a loadable Hoistfile.
func validateTemplateContent(content []byte) error {
	tmpFile, err := os.CreateTemp("", "hoistfile-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	_, err = config.Load(tmpName)
	return err
}

// defaultHoistfilePath returns the default Hoistfile location.
func defaultHoistfilePath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hoist", "Hoistfile")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "Hoistfile"
	}
	return filepath.Join(home, ".config", "hoist", "Hoistfile")
}

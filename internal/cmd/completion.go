package cmd

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for hoist.

To load completions:

Bash:
  $ source <(hoist completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ hoist completion bash > /etc/bash_completion.d/hoist
  # macOS:
  $ hoist completion bash > $(brew --prefix)/etc/bash_completion.d/hoist

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ hoist completion zsh > "${fpath[1]}/_hoist"

  # You will need to start a new shell for this setup to take effect.

  # Oh My Zsh:
  $ mkdir -p ~/.oh-my-zsh/completions
  $ hoist completion zsh > ~/.oh-my-zsh/completions/_hoist

Fish:
  $ hoist completion fish > ~/.config/fish/completions/hoist.fish
`,
		DisableFlagsInUseLine: true,
		Annotations:           map[string]string{skipConfig: "true"},
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			}
			return nil
		},
	}
}

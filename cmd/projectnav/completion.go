package main

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(completionCmd)
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script for your shell",
	Long: `To load completions:

Bash:
  $ source <(projectnav completion bash)

  # To load for each session (Linux):
  $ projectnav completion bash > ~/.local/share/bash-completion/completions/projectnav

  # To load for each session (macOS with Homebrew):
  $ projectnav completion bash > $(brew --prefix)/etc/bash_completion.d/projectnav

Zsh:
  $ projectnav completion zsh > ~/.zsh/completions/_projectnav
  # (create ~/.zsh/completions if needed, add to fpath in .zshrc)

Fish:
  $ projectnav completion fish > ~/.config/fish/completions/projectnav.fish

PowerShell:
  PS> projectnav completion powershell >> $PROFILE
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

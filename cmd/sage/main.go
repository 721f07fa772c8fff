// Sage - a Discord bot with role-gated slash commands, duels and polls.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagebot/sage/cmd/sage/internal"
	"github.com/sagebot/sage/cmd/sage/internal/commandscmd"
	"github.com/sagebot/sage/cmd/sage/internal/gateway"
	"github.com/sagebot/sage/cmd/sage/internal/version"
)

func NewSageCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "sage",
		Short:         fmt.Sprintf("%s sage - Discord community bot %s", internal.Logo, internal.FormatVersion()),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if configPath != "" {
				internal.SetConfigPath(configPath)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (JSON or YAML)")

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		commandscmd.NewCommandsCommand(),
		version.NewVersionCommand(),
	)
	return cmd
}

func main() {
	if err := NewSageCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package gateway

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func NewGatewayCommand() *cobra.Command {
	var (
		debug    bool
		skipSync bool
	)

	cmd := &cobra.Command{
		Use:     "gateway",
		Aliases: []string{"g"},
		Short:   "Connect to Discord and serve commands",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, options{debug: debug, skipSync: skipSync})
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Do not overwrite the registered slash commands on startup")

	return cmd
}

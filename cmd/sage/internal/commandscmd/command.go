package commandscmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sagebot/sage/cmd/sage/internal"
	"github.com/sagebot/sage/pkg/bot"
	"github.com/sagebot/sage/pkg/commands"
)

func NewCommandsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmd"},
		Short:   "Inspect and toggle bot commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newListCommand(),
		newToggleCommand(true),
		newToggleCommand(false),
	)
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List commands and whether they are enabled",
		Example: `sage commands list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd.Context(), func(reg *commands.Registry) error {
				renderList(cmd.OutOrStdout(), reg.List())
				return nil
			})
		},
	}
}

func newToggleCommand(enable bool) *cobra.Command {
	use, short := "disable", "Disable a command"
	if enable {
		use, short = "enable", "Enable a command"
	}

	return &cobra.Command{
		Use:     use + " <command>",
		Short:   short,
		Example: "sage commands " + use + " coinflip",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(args[0]))
			return withRegistry(cmd.Context(), func(reg *commands.Registry) error {
				if err := reg.SetEnabled(cmd.Context(), name, enable); err != nil {
					return err
				}
				state := "disabled"
				if enable {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, state)
				return nil
			})
		},
	}
}

// withRegistry builds the registry against the configured store so changes
// persist exactly as the admin slash commands would.
func withRegistry(ctx context.Context, fn func(reg *commands.Registry) error) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := internal.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := bot.New(ctx, cfg, st)
	if err != nil {
		return err
	}
	return fn(b.Registry)
}

func renderList(w io.Writer, defs []commands.Descriptor) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Command", "Enabled", "Guild only", "Roles", "Description"})
	for _, d := range defs {
		roles := "everyone"
		if len(d.RequiredRoles) > 0 {
			ids := make([]string, len(d.RequiredRoles))
			for i, r := range d.RequiredRoles {
				ids[i] = string(r)
			}
			roles = strings.Join(ids, ", ")
		}
		tw.AppendRow(table.Row{d.Name, yesNo(d.Enabled), yesNo(d.GuildOnly), roles, d.Description})
	}
	tw.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

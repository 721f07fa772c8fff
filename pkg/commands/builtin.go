package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/logger"
)

// Permissions maps the deployment's roles onto builtin command requirements.
type Permissions struct {
	// Admin roles may enable, disable and list commands.
	Admin []capability.RoleID
	// Member roles may use the general commands.
	Member []capability.RoleID
}

var coinFaces = []string{"You got: Heads!", "You got: Tails!"}

// flipDelay is how long coinflip keeps the suspense before editing its reply.
var flipDelay = 3 * time.Second

// BuiltinDescriptors returns the administrative and small general commands.
// Session commands (duel, poll) are contributed by their own packages.
func BuiltinDescriptors(reg *Registry, perms Permissions) []Descriptor {
	commandOption := []Option{{
		Name:        "command",
		Description: "The name of the command",
		Required:    true,
	}}

	return []Descriptor{
		{
			Name:          "enable",
			Description:   "Enable a command.",
			Options:       commandOption,
			RequiredRoles: perms.Admin,
			Enabled:       true,
			GuildOnly:     true,
			Handler: func(ctx context.Context, inv interaction.Invocation) error {
				return toggleCommand(ctx, reg, inv, true)
			},
		},
		{
			Name:          "disable",
			Description:   "Disable a command.",
			Options:       commandOption,
			RequiredRoles: perms.Admin,
			Enabled:       true,
			GuildOnly:     true,
			Handler: func(ctx context.Context, inv interaction.Invocation) error {
				return toggleCommand(ctx, reg, inv, false)
			},
		},
		{
			Name:          "showcommands",
			Description:   "Show all commands and whether they are enabled.",
			RequiredRoles: perms.Admin,
			Enabled:       true,
			Handler: func(ctx context.Context, inv interaction.Invocation) error {
				return inv.Reply(ctx, interaction.Text(FormatStatusMessage(reg.List())))
			},
		},
		{
			Name:          "coinflip",
			Description:   "Have the bot flip a coin for you!",
			RequiredRoles: perms.Member,
			Enabled:       true,
			Handler:       handleCoinflip,
		},
	}
}

func toggleCommand(ctx context.Context, reg *Registry, inv interaction.Invocation, enable bool) error {
	name, _ := inv.Option("command")
	name = strings.ToLower(strings.TrimSpace(name))

	desc, ok := reg.Find(name)
	if !ok {
		return inv.Reply(ctx, interaction.Ephemeral(fmt.Sprintf("I couldn't find a command called `%s`", name)))
	}

	if desc.Enabled == enable {
		state := "disabled"
		if enable {
			state = "enabled"
		}
		return inv.Reply(ctx, interaction.Ephemeral(fmt.Sprintf("%s is already %s.", desc.Name, state)))
	}

	if err := reg.SetEnabled(ctx, desc.Name, enable); err != nil {
		var protected *ProtectedCommandError
		if errors.As(err, &protected) {
			return inv.Reply(ctx, interaction.Ephemeral("Sorry fam, you can't disable that one."))
		}
		return err
	}

	logger.InfoCF("commands", "Command enablement changed", map[string]any{
		"command": desc.Name,
		"enabled": enable,
		"actor":   inv.Actor().ID,
	})

	if enable {
		return inv.Reply(ctx, interaction.Text(codeBlock("diff", fmt.Sprintf("+>>> %s Enabled", desc.Name))))
	}
	return inv.Reply(ctx, interaction.Text(codeBlock("diff", fmt.Sprintf("->>> %s Disabled", desc.Name))))
}

// FormatStatusMessage renders the enabled/disabled listing as a diff block.
func FormatStatusMessage(defs []Descriptor) string {
	lines := make([]string, 0, len(defs)+3)
	lines = append(lines, "+ Enabled", "- Disabled", "")
	for _, d := range defs {
		marker := "-"
		if d.Enabled {
			marker = "+"
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, d.Name))
	}
	return codeBlock("diff", strings.Join(lines, "\n"))
}

func handleCoinflip(ctx context.Context, inv interaction.Invocation) error {
	if err := inv.Reply(ctx, interaction.Text("Flipping...")); err != nil {
		return err
	}

	result := coinFaces[rand.Intn(len(coinFaces))]
	time.AfterFunc(flipDelay, func() {
		if err := inv.EditReply(context.Background(), interaction.Text(result)); err != nil {
			logger.WarnCF("commands", "Failed to edit coinflip reply", map[string]any{
				"error": err.Error(),
			})
		}
	})
	return nil
}

func codeBlock(lang, content string) string {
	return "```" + lang + "\n" + content + "\n```"
}

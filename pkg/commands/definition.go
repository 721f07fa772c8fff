package commands

import (
	"context"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/interaction"
)

// Handler runs a command body. Returned errors are reported by the router.
type Handler func(ctx context.Context, inv interaction.Invocation) error

// Option is a string option exposed on the slash command.
type Option struct {
	Name        string
	Description string
	Required    bool
	Choices     []string
}

// Descriptor is a command known to the registry.
type Descriptor struct {
	Name        string
	Description string
	Options     []Option
	// RequiredRoles lists the roles of which the actor must hold at least one.
	// Empty means everyone may invoke the command.
	RequiredRoles []capability.RoleID
	Enabled       bool
	// GuildOnly commands are rejected when invoked from a direct message.
	GuildOnly bool
	Handler   Handler
}

// Package interaction defines the platform events the router consumes and the
// response payloads handlers send back. The Discord adapter in pkg/channels
// implements these interfaces; tests use in-memory fakes.
package interaction

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sagebot/sage/pkg/capability"
)

// Actor is the platform identity behind an event.
type Actor struct {
	ID   string
	Name string
}

// Response is a message payload. Embeds and Components reuse discordgo's
// types so handlers can build rich messages without a translation layer.
type Response struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	// Components replace the message's controls on edits; nil removes them.
	Components []discordgo.MessageComponent
	// Ephemeral replies are only visible to the acting actor.
	Ephemeral bool
}

// Invocation is a new slash-command event.
type Invocation interface {
	CommandName() string
	Actor() Actor
	GuildID() string
	ChannelID() string
	// Capabilities are the actor's roles at the time of the event.
	Capabilities() capability.Set
	// Option returns a named command option as a string.
	Option(name string) (string, bool)

	Reply(ctx context.Context, resp Response) error
	EditReply(ctx context.Context, resp Response) error
	FollowUp(ctx context.Context, resp Response) error
	// ReplyMessageID fetches the id of the message created by Reply.
	ReplyMessageID(ctx context.Context) (string, error)
}

// Component is a follow-up event from a rendered control.
type Component interface {
	CustomID() string
	Actor() Actor
	ChannelID() string
	// MessageID is the id of the message the control is attached to.
	MessageID() string

	Reply(ctx context.Context, resp Response) error
	// EditOriginal edits the message the control is attached to. It does not
	// answer the event itself.
	EditOriginal(ctx context.Context, resp Response) error
	// Acknowledge tells the platform the event was handled without a reply.
	Acknowledge(ctx context.Context) error
}

// Ephemeral is shorthand for a private text reply.
func Ephemeral(content string) Response {
	return Response{Content: content, Ephemeral: true}
}

// Text is shorthand for a public text reply.
func Text(content string) Response {
	return Response{Content: content}
}

// Embed wraps a single embed in a public response.
func Embed(e *discordgo.MessageEmbed, rows ...discordgo.MessageComponent) Response {
	return Response{Embeds: []*discordgo.MessageEmbed{e}, Components: rows}
}

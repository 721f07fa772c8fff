// Package interactiontest provides recording fakes of the interaction events
// for use in tests.
package interactiontest

import (
	"context"
	"sync"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/interaction"
)

// Invocation is a recording fake of interaction.Invocation.
type Invocation struct {
	Name      string
	User      interaction.Actor
	Guild     string
	Channel   string
	Roles     capability.Set
	Options   map[string]string
	MessageID string

	// ReplyErr, when set, is returned by Reply.
	ReplyErr error

	mu        sync.Mutex
	Replies   []interaction.Response
	Edits     []interaction.Response
	FollowUps []interaction.Response
}

var _ interaction.Invocation = (*Invocation)(nil)

func (f *Invocation) CommandName() string          { return f.Name }
func (f *Invocation) Actor() interaction.Actor     { return f.User }
func (f *Invocation) GuildID() string              { return f.Guild }
func (f *Invocation) ChannelID() string            { return f.Channel }
func (f *Invocation) Capabilities() capability.Set { return f.Roles }

func (f *Invocation) Option(name string) (string, bool) {
	v, ok := f.Options[name]
	return v, ok
}

func (f *Invocation) Reply(_ context.Context, resp interaction.Response) error {
	if f.ReplyErr != nil {
		return f.ReplyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replies = append(f.Replies, resp)
	return nil
}

func (f *Invocation) EditReply(_ context.Context, resp interaction.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, resp)
	return nil
}

func (f *Invocation) FollowUp(_ context.Context, resp interaction.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FollowUps = append(f.FollowUps, resp)
	return nil
}

func (f *Invocation) ReplyMessageID(context.Context) (string, error) {
	return f.MessageID, nil
}

// EditCount returns the number of EditReply calls so far.
func (f *Invocation) EditCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Edits)
}

// LastReply returns the most recent reply or a zero Response.
func (f *Invocation) LastReply() interaction.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Replies) == 0 {
		return interaction.Response{}
	}
	return f.Replies[len(f.Replies)-1]
}

// Component is a recording fake of interaction.Component.
type Component struct {
	ID      string
	User    interaction.Actor
	Channel string
	Message string

	mu      sync.Mutex
	Replies []interaction.Response
	Edits   []interaction.Response
	Acks    int
}

var _ interaction.Component = (*Component)(nil)

func (f *Component) CustomID() string         { return f.ID }
func (f *Component) Actor() interaction.Actor { return f.User }
func (f *Component) ChannelID() string        { return f.Channel }
func (f *Component) MessageID() string        { return f.Message }

func (f *Component) Reply(_ context.Context, resp interaction.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replies = append(f.Replies, resp)
	return nil
}

func (f *Component) EditOriginal(_ context.Context, resp interaction.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, resp)
	return nil
}

func (f *Component) Acknowledge(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Acks++
	return nil
}

// LastReply returns the most recent reply or a zero Response.
func (f *Component) LastReply() interaction.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Replies) == 0 {
		return interaction.Response{}
	}
	return f.Replies[len(f.Replies)-1]
}

// EditCount returns the number of EditOriginal calls so far.
func (f *Component) EditCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Edits)
}

// LastEdit returns the most recent edit or a zero Response.
func (f *Component) LastEdit() interaction.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Edits) == 0 {
		return interaction.Response{}
	}
	return f.Edits[len(f.Edits)-1]
}

// AckCount returns the number of Acknowledge calls so far.
func (f *Component) AckCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Acks
}

// LastEdit returns the most recent reply edit or a zero Response.
func (f *Invocation) LastEdit() interaction.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Edits) == 0 {
		return interaction.Response{}
	}
	return f.Edits[len(f.Edits)-1]
}

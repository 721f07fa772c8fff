// Package poll runs the poll command: button driven votes persisted in the
// document store, closed by a scheduled sweep once they expire.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/commands"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/store"
	"github.com/sagebot/sage/pkg/token"
)

const (
	// CommandName is the slash command that creates a poll.
	CommandName = "poll"
	// Collection is where polls are stored.
	Collection = "polls"

	// ButtonsPerRow is Discord's limit on buttons in one action row.
	ButtonsPerRow = 5
	// MaxRows is Discord's limit on action rows per message.
	MaxRows = 5
)

const (
	MsgGone          = "This poll no longer exists."
	MsgClosed        = "This poll has ended."
	MsgUnknownOption = "That option is not part of this poll."
)

const colorPoll = 0x5865F2

// Documents is the slice of the document store a poll needs.
type Documents interface {
	FindOne(ctx context.Context, filter store.Filter, out any) error
	Find(ctx context.Context, filter store.Filter) ([]json.RawMessage, error)
	InsertOne(ctx context.Context, doc any) (string, error)
	ReplaceOne(ctx context.Context, filter store.Filter, doc any, upsert bool) error
}

// Options configures a Service.
type Options struct {
	// MaxOptions caps the options per poll. Zero or anything above what fits
	// on one message means the platform limit.
	MaxOptions    int
	RequiredRoles []capability.RoleID
	Now           func() time.Time
}

// Service creates polls and records votes.
type Service struct {
	docs Documents
	opts Options
}

// NewService creates a Service over docs.
func NewService(docs Documents, opts Options) *Service {
	if opts.MaxOptions <= 0 || opts.MaxOptions > ButtonsPerRow*MaxRows {
		opts.MaxOptions = ButtonsPerRow * MaxRows
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{docs: docs, opts: opts}
}

// Descriptor returns the registry entry for the poll command.
func (s *Service) Descriptor() commands.Descriptor {
	modes := make([]string, len(Modes))
	for i, m := range Modes {
		modes[i] = string(m)
	}
	return commands.Descriptor{
		Name:        CommandName,
		Description: "Have Sage create a poll for you",
		Options: []commands.Option{
			{Name: "timespan", Description: "How long your poll should last. Acceptable formats include \"6s\", \"10m\", \"1d\"", Required: true},
			{Name: "question", Description: "What would you like to ask?", Required: true},
			{Name: "choices", Description: "Poll options, separated by |", Required: true},
			{Name: "optiontype", Description: "Whether voters may pick one option or several", Required: true, Choices: modes},
		},
		RequiredRoles: s.opts.RequiredRoles,
		Enabled:       true,
		GuildOnly:     true,
		Handler:       s.Create,
	}
}

// Create validates the invocation, posts the poll message and stores the
// poll. Invalid input is answered with an ephemeral message and nothing is
// stored.
func (s *Service) Create(ctx context.Context, inv interaction.Invocation) error {
	actor := inv.Actor()

	question, _ := inv.Option("question")
	rawChoices, _ := inv.Option("choices")
	rawMode, _ := inv.Option("optiontype")
	rawSpan, _ := inv.Option("timespan")

	p, rows, err := s.build(actor.ID, strings.TrimSpace(question), rawChoices, rawMode, rawSpan)
	if err != nil {
		var input InputError
		if errors.As(err, &input) {
			return inv.Reply(ctx, interaction.Ephemeral(input.Error()))
		}
		return err
	}

	if err := inv.Reply(ctx, interaction.Embed(s.promptEmbed(p, actor.Name), rows...)); err != nil {
		return fmt.Errorf("sending poll message: %w", err)
	}

	msgID, err := inv.ReplyMessageID(ctx)
	if err != nil {
		return fmt.Errorf("fetching poll message id: %w", err)
	}
	p.Message = msgID
	p.Channel = inv.ChannelID()

	if _, err := s.docs.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("storing poll: %w", err)
	}

	logger.InfoCF("poll", "Poll created", map[string]any{
		"message": p.Message,
		"channel": p.Channel,
		"owner":   p.Owner,
		"options": len(p.Results),
		"mode":    string(p.Type),
		"expires": p.Expires.Format(time.RFC3339),
	})
	return nil
}

func (s *Service) build(owner, question, rawChoices, rawMode, rawSpan string) (*Poll, []discordgo.MessageComponent, error) {
	if question == "" {
		return nil, nil, InputError("Your poll needs a question.")
	}
	mode, err := ParseMode(rawMode)
	if err != nil {
		return nil, nil, err
	}
	span, err := ParseTimespan(rawSpan)
	if err != nil {
		return nil, nil, err
	}
	options, err := ParseOptions(rawChoices, s.opts.MaxOptions)
	if err != nil {
		return nil, nil, err
	}

	rows, err := buttonRows(owner, options)
	if err != nil {
		return nil, nil, err
	}

	results := make([]Result, len(options))
	for i, opt := range options {
		results[i] = Result{Option: opt, Users: []string{}}
	}
	return &Poll{
		Owner:    owner,
		Question: question,
		Results:  results,
		Type:     mode,
		Expires:  s.opts.Now().Add(span).UTC(),
		Status:   StatusOpen,
	}, rows, nil
}

// buttonRows renders one button per option, wrapping every ButtonsPerRow.
func buttonRows(owner string, options []string) ([]discordgo.MessageComponent, error) {
	var rows []discordgo.MessageComponent
	var row discordgo.ActionsRow
	for i, opt := range options {
		id, err := token.Encode(token.KindPoll, owner, opt)
		if errors.Is(err, token.ErrTooLong) {
			return nil, InputError(fmt.Sprintf("The option `%s` is too long.", opt))
		}
		if err != nil {
			return nil, fmt.Errorf("encoding poll button: %w", err)
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    opt,
			Style:    discordgo.SecondaryButton,
			CustomID: id,
		})
		if len(row.Components) == ButtonsPerRow || i == len(options)-1 {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
	}
	return rows, nil
}

func (s *Service) promptEmbed(p *Poll, ownerName string) *discordgo.MessageEmbed {
	verb := "Select one option"
	if p.Type == Multiple {
		verb = "Select as many options as you like"
	}
	return &discordgo.MessageEmbed{
		Title: p.Question,
		Description: fmt.Sprintf("%s. Click an option again to remove your vote.\nThis poll ends <t:%d:R>.",
			verb, p.Expires.Unix()),
		Color:  colorPoll,
		Footer: &discordgo.MessageEmbedFooter{Text: "Poll by " + ownerName},
	}
}

// HandleComponent toggles the actor's vote on the option named by the token.
// It matches router.ComponentHandler. Anyone may vote; the token owner is the
// poll's creator.
func (s *Service) HandleComponent(ctx context.Context, tok token.Token, ev interaction.Component) error {
	actor := ev.Actor()
	option := tok.Field(0)

	var p Poll
	err := s.docs.FindOne(ctx, store.Filter{"message": ev.MessageID()}, &p)
	if errors.Is(err, store.ErrNotFound) {
		return ev.Reply(ctx, interaction.Ephemeral(MsgGone))
	}
	if err != nil {
		return fmt.Errorf("loading poll: %w", err)
	}

	if !p.Open(s.opts.Now()) {
		return ev.Reply(ctx, interaction.Ephemeral(MsgClosed))
	}

	added, err := p.Toggle(actor.ID, option)
	if errors.Is(err, ErrUnknownOption) {
		return ev.Reply(ctx, interaction.Ephemeral(MsgUnknownOption))
	}
	if err != nil {
		return err
	}

	if err := s.docs.ReplaceOne(ctx, store.Filter{"message": p.Message}, &p, false); err != nil {
		return fmt.Errorf("saving poll vote: %w", err)
	}

	logger.DebugCF("poll", "Vote toggled", map[string]any{
		"message": p.Message,
		"user_id": actor.ID,
		"option":  option,
		"added":   added,
	})

	if added {
		return ev.Reply(ctx, interaction.Ephemeral(
			fmt.Sprintf("Vote for ***%s*** recorded. To remove it, click the same option again.", option)))
	}
	return ev.Reply(ctx, interaction.Ephemeral(fmt.Sprintf("Vote for %s removed.", option)))
}

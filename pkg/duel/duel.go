// Package duel runs the rockpaperscissors command: a single timed round
// between the invoker and the bot, driven by buttons on the reply.
package duel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/commands"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/token"
)

// CommandName is the slash command that starts a duel.
const CommandName = "rockpaperscissors"

const (
	MsgNotOwner = "You cannot respond to a command you did not execute"
	MsgStale    = "This game is already over."
)

// Embed colors, matching Discord's palette.
const (
	ColorRed   = 0xED4245
	ColorGreen = 0x57F287
	ColorBlue  = 0x3498DB
)

// State is where a session is in its lifecycle. Resolved and TimedOut are
// terminal and reached at most once.
type State int32

const (
	AwaitingChoice State = iota
	Resolved
	TimedOut
)

func (s State) String() string {
	switch s {
	case AwaitingChoice:
		return "awaiting_choice"
	case Resolved:
		return "resolved"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Options configures a Manager.
type Options struct {
	// BotName is shown as the opponent.
	BotName string
	// Timeout is how long the invoker has to pick. Defaults to 10 seconds.
	Timeout time.Duration
	// RequiredRoles gates the command.
	RequiredRoles []capability.RoleID
	// Pick chooses the bot's hand. Defaults to RandomChoice.
	Pick func() Choice
}

type session struct {
	owner  interaction.Actor
	handle string
	inv    interaction.Invocation
	state  atomic.Int32
	timer  *time.Timer
}

// finish moves the session into a terminal state. Only the first caller wins.
func (s *session) finish(to State) bool {
	return s.state.CompareAndSwap(int32(AwaitingChoice), int32(to))
}

// Manager owns the in-flight duels. Sessions live in memory only and are lost
// on restart.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*session
	nextID   atomic.Uint64
}

// NewManager creates a Manager, filling unset options with defaults.
func NewManager(opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Pick == nil {
		opts.Pick = RandomChoice
	}
	if opts.BotName == "" {
		opts.BotName = "Sage"
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// Descriptor returns the registry entry for the duel command.
func (m *Manager) Descriptor() commands.Descriptor {
	return commands.Descriptor{
		Name: CommandName,
		Description: fmt.Sprintf(
			"The ultimate battle of human vs program. Can you best %s in a round of rock paper scissors?",
			m.opts.BotName,
		),
		RequiredRoles: m.opts.RequiredRoles,
		Enabled:       true,
		Handler:       m.Start,
	}
}

// Active returns the number of sessions still awaiting a choice.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start opens a session for the invoker and renders the choice buttons.
func (m *Manager) Start(ctx context.Context, inv interaction.Invocation) error {
	actor := inv.Actor()
	s := &session{
		owner:  actor,
		handle: strconv.FormatUint(m.nextID.Add(1), 10),
		inv:    inv,
	}

	row, err := m.buttons(actor.ID, s.handle)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[s.handle] = s
	s.timer = time.AfterFunc(m.opts.Timeout, func() { m.expire(s) })
	m.mu.Unlock()

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Make your choice, %s...", actor.Name),
		Color: ColorRed,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("You have %d seconds to make up your mind.", int(m.opts.Timeout.Seconds())),
		},
	}
	if err := inv.Reply(ctx, interaction.Embed(embed, row)); err != nil {
		s.timer.Stop()
		m.remove(s.handle)
		return fmt.Errorf("sending duel prompt: %w", err)
	}

	logger.DebugCF("duel", "Duel started", map[string]any{
		"user_id": actor.ID,
		"handle":  s.handle,
	})
	return nil
}

func (m *Manager) buttons(owner, handle string) (discordgo.ActionsRow, error) {
	emoji := map[Choice]string{Rock: "👊", Paper: "✋", Scissors: "✌️"}

	row := discordgo.ActionsRow{}
	for _, c := range Choices {
		id, err := token.Encode(token.KindDuel, owner, string(c), handle)
		if err != nil {
			return discordgo.ActionsRow{}, fmt.Errorf("encoding duel button: %w", err)
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    titleCase(string(c)),
			Style:    discordgo.PrimaryButton,
			CustomID: id,
			Emoji:    &discordgo.ComponentEmoji{Name: emoji[c]},
		})
	}
	return row, nil
}

// HandleComponent resolves a session from a button press. It matches
// router.ComponentHandler.
func (m *Manager) HandleComponent(ctx context.Context, tok token.Token, ev interaction.Component) error {
	actor := ev.Actor()
	if tok.Owner != actor.ID {
		return ev.Reply(ctx, interaction.Ephemeral(MsgNotOwner))
	}

	choice := Choice(tok.Field(0))
	s := m.lookup(tok.Field(1))
	if !choice.Valid() || s == nil || s.owner.ID != tok.Owner || !s.finish(Resolved) {
		return ev.Reply(ctx, interaction.Ephemeral(MsgStale))
	}

	s.timer.Stop()
	m.remove(s.handle)

	bot := m.opts.Pick()
	embed := m.resultEmbed(actor.Name, choice, bot)
	if err := ev.EditOriginal(ctx, interaction.Embed(embed)); err != nil {
		return fmt.Errorf("editing duel message: %w", err)
	}

	logger.InfoCF("duel", "Duel resolved", map[string]any{
		"user_id": actor.ID,
		"handle":  s.handle,
		"player":  string(choice),
		"bot":     string(bot),
	})
	return ev.Acknowledge(ctx)
}

func (m *Manager) resultEmbed(player string, choice, bot Choice) *discordgo.MessageEmbed {
	switch Play(choice, bot) {
	case Win:
		return &discordgo.MessageEmbed{
			Title: fmt.Sprintf("%s threw %s and %s threw %s. %s won - humanity triumphs!",
				player, choice, m.opts.BotName, bot, player),
			Color: ColorGreen,
		}
	case Loss:
		return &discordgo.MessageEmbed{
			Title: fmt.Sprintf("%s threw %s and %s threw %s. %s won - the machine triumphs!",
				player, choice, m.opts.BotName, bot, m.opts.BotName),
			Color: ColorRed,
		}
	default:
		return &discordgo.MessageEmbed{
			Title: fmt.Sprintf("Both %s and %s threw %s. It's a draw!", player, m.opts.BotName, choice),
			Color: ColorBlue,
		}
	}
}

func (m *Manager) expire(s *session) {
	if !s.finish(TimedOut) {
		return
	}
	m.remove(s.handle)

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s couldn't make up their mind! Command timed out.", s.owner.Name),
		Color: ColorRed,
	}
	if err := s.inv.EditReply(context.Background(), interaction.Embed(embed)); err != nil {
		logger.WarnCF("duel", "Failed to edit timed out duel", map[string]any{
			"handle": s.handle,
			"error":  err.Error(),
		})
		return
	}
	logger.DebugCF("duel", "Duel timed out", map[string]any{
		"user_id": s.owner.ID,
		"handle":  s.handle,
	})
}

func (m *Manager) lookup(handle string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[handle]
}

func (m *Manager) remove(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, handle)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

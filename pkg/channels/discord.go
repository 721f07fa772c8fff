package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/commands"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/router"
)

const (
	// handleTimeout bounds one interaction. Discord drops unanswered
	// interactions after three seconds but follow-ups stay valid longer.
	handleTimeout = 30 * time.Second
	sendTimeout   = 10 * time.Second
)

type DiscordConfig struct {
	Token   string
	AppID   string
	GuildID string
	// Proxy is an optional HTTP proxy for REST and gateway traffic. Empty
	// falls back to the environment.
	Proxy string
}

// Dispatcher receives decoded platform events.
type Dispatcher interface {
	HandleInvocation(ctx context.Context, inv interaction.Invocation) router.Result
	HandleComponent(ctx context.Context, ev interaction.Component) router.Result
}

// discordAPI is the slice of *discordgo.Session the adapter calls.
type discordAPI interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponse(i *discordgo.Interaction, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

type DiscordChannel struct {
	session    *discordgo.Session
	api        discordAPI
	config     DiscordConfig
	dispatcher Dispatcher
	ctx        context.Context
	removeFn   func()
}

func NewDiscordChannel(cfg DiscordConfig, dispatcher Dispatcher) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if err := applyDiscordProxy(session, cfg.Proxy); err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &DiscordChannel{
		session:    session,
		api:        session,
		config:     cfg,
		dispatcher: dispatcher,
		ctx:        context.Background(),
	}, nil
}

// applyDiscordProxy routes REST and websocket traffic through proxyAddr, or
// through the standard proxy environment variables when it is empty.
func applyDiscordProxy(session *discordgo.Session, proxyAddr string) error {
	proxy := http.ProxyFromEnvironment
	if proxyAddr != "" {
		u, err := url.Parse(proxyAddr)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid discord proxy url %q", proxyAddr)
		}
		proxy = http.ProxyURL(u)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy
	session.Client = &http.Client{Timeout: sendTimeout, Transport: transport}
	session.Dialer = &websocket.Dialer{
		Proxy:            proxy,
		HandshakeTimeout: sendTimeout,
	}
	return nil
}

func (c *DiscordChannel) getContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Start opens the gateway connection and begins dispatching interactions.
func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.ctx = ctx
	c.removeFn = c.session.AddHandler(c.handleInteraction)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	if c.removeFn != nil {
		c.removeFn()
	}
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// SyncCommands replaces the application's slash commands with the registry's.
// Commands register in the configured guild, or globally when none is set.
func (c *DiscordChannel) SyncCommands(ctx context.Context, defs []commands.Descriptor) error {
	payload := applicationCommands(defs)
	created, err := c.api.ApplicationCommandBulkOverwrite(c.config.AppID, c.config.GuildID, payload, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	logger.InfoCF("discord", "Slash commands registered", map[string]any{
		"count":    len(created),
		"guild_id": c.config.GuildID,
	})
	return nil
}

// EditMessage replaces a channel message's content, embeds and controls.
func (c *DiscordChannel) EditMessage(ctx context.Context, channelID, messageID string, resp interaction.Response) error {
	_, err := c.api.ChannelMessageEditComplex(messageEdit(channelID, messageID, resp), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) handleInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Interaction == nil {
		return
	}
	c.dispatch(ic.Interaction)
}

func (c *DiscordChannel) dispatch(i *discordgo.Interaction) {
	ctx, cancel := context.WithTimeout(c.getContext(), handleTimeout)
	defer cancel()

	var result router.Result
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		result = c.dispatcher.HandleInvocation(ctx, &discordInvocation{api: c.api, i: i})
	case discordgo.InteractionMessageComponent:
		result = c.dispatcher.HandleComponent(ctx, &discordComponent{api: c.api, i: i})
	default:
		logger.DebugCF("discord", "Ignoring interaction", map[string]any{
			"type": i.Type.String(),
		})
		return
	}

	logger.DebugCF("discord", "Interaction dispatched", map[string]any{
		"interaction_id": i.ID,
		"outcome":        result.Outcome.String(),
		"command":        result.Command,
	})
}

// applicationCommands converts descriptors to the bulk overwrite payload.
func applicationCommands(defs []commands.Descriptor) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, d := range defs {
		cmd := &discordgo.ApplicationCommand{
			Name:        d.Name,
			Description: d.Description,
			Options:     commandOptions(d.Options),
		}
		if d.GuildOnly {
			dm := false
			cmd.DMPermission = &dm
		}
		out = append(out, cmd)
	}
	return out
}

func commandOptions(opts []commands.Option) []*discordgo.ApplicationCommandOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, o := range opts {
		opt := &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
		}
		for _, choice := range o.Choices {
			opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  choice,
				Value: choice,
			})
		}
		out = append(out, opt)
	}
	// Discord rejects optional options listed before required ones.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Required && !out[b].Required
	})
	return out
}

func interactionActor(i *discordgo.Interaction) interaction.Actor {
	u := i.User
	if i.Member != nil && i.Member.User != nil {
		u = i.Member.User
	}
	if u == nil {
		return interaction.Actor{}
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return interaction.Actor{ID: u.ID, Name: name}
}

func responseData(resp interaction.Response) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    resp.Content,
		Embeds:     resp.Embeds,
		Components: resp.Components,
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func webhookEdit(resp interaction.Response) *discordgo.WebhookEdit {
	content := resp.Content
	embeds := resp.Embeds
	components := resp.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

func messageEdit(channelID, messageID string, resp interaction.Response) *discordgo.MessageEdit {
	content := resp.Content
	embeds := resp.Embeds
	components := resp.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

// discordInvocation adapts an application command interaction.
type discordInvocation struct {
	api discordAPI
	i   *discordgo.Interaction
}

var _ interaction.Invocation = (*discordInvocation)(nil)

func (d *discordInvocation) CommandName() string      { return d.i.ApplicationCommandData().Name }
func (d *discordInvocation) Actor() interaction.Actor { return interactionActor(d.i) }
func (d *discordInvocation) GuildID() string          { return d.i.GuildID }
func (d *discordInvocation) ChannelID() string        { return d.i.ChannelID }

func (d *discordInvocation) Capabilities() capability.Set {
	if d.i.Member == nil {
		return capability.NewSet()
	}
	return capability.FromStrings(d.i.Member.Roles)
}

func (d *discordInvocation) Option(name string) (string, bool) {
	for _, opt := range d.i.ApplicationCommandData().Options {
		if opt.Name != name {
			continue
		}
		if opt.Type == discordgo.ApplicationCommandOptionString {
			return strings.TrimSpace(opt.StringValue()), true
		}
		return fmt.Sprint(opt.Value), true
	}
	return "", false
}

func (d *discordInvocation) Reply(ctx context.Context, resp interaction.Response) error {
	return d.api.InteractionRespond(d.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(resp),
	}, discordgo.WithContext(ctx))
}

func (d *discordInvocation) EditReply(ctx context.Context, resp interaction.Response) error {
	_, err := d.api.InteractionResponseEdit(d.i, webhookEdit(resp), discordgo.WithContext(ctx))
	return err
}

func (d *discordInvocation) FollowUp(ctx context.Context, resp interaction.Response) error {
	params := &discordgo.WebhookParams{
		Content:    resp.Content,
		Embeds:     resp.Embeds,
		Components: resp.Components,
	}
	if resp.Ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	_, err := d.api.FollowupMessageCreate(d.i, true, params, discordgo.WithContext(ctx))
	return err
}

func (d *discordInvocation) ReplyMessageID(ctx context.Context) (string, error) {
	msg, err := d.api.InteractionResponse(d.i, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// discordComponent adapts a message component interaction.
type discordComponent struct {
	api discordAPI
	i   *discordgo.Interaction
}

var _ interaction.Component = (*discordComponent)(nil)

func (d *discordComponent) CustomID() string         { return d.i.MessageComponentData().CustomID }
func (d *discordComponent) Actor() interaction.Actor { return interactionActor(d.i) }
func (d *discordComponent) ChannelID() string        { return d.i.ChannelID }

func (d *discordComponent) MessageID() string {
	if d.i.Message == nil {
		return ""
	}
	return d.i.Message.ID
}

func (d *discordComponent) Reply(ctx context.Context, resp interaction.Response) error {
	return d.api.InteractionRespond(d.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(resp),
	}, discordgo.WithContext(ctx))
}

func (d *discordComponent) EditOriginal(ctx context.Context, resp interaction.Response) error {
	_, err := d.api.ChannelMessageEditComplex(messageEdit(d.i.ChannelID, d.MessageID(), resp), discordgo.WithContext(ctx))
	return err
}

func (d *discordComponent) Acknowledge(ctx context.Context) error {
	return d.api.InteractionRespond(d.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
}

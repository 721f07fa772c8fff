package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/bwmarrin/discordgo"

	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/store"
)

// DefaultSweepSchedule checks for expired polls every minute.
const DefaultSweepSchedule = "* * * * *"

// MessageEditor edits a message the bot posted earlier.
type MessageEditor interface {
	EditMessage(ctx context.Context, channelID, messageID string, resp interaction.Response) error
}

// Sweeper closes expired polls on a cron schedule and replaces each poll
// message with its final results.
type Sweeper struct {
	svc      *Service
	editor   MessageEditor
	schedule string
}

// NewSweeper validates schedule and returns a sweeper for svc's polls.
func NewSweeper(svc *Service, editor MessageEditor, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	g := gronx.New()
	if !g.IsValid(schedule) {
		return nil, fmt.Errorf("invalid poll sweep schedule %q", schedule)
	}
	return &Sweeper{svc: svc, editor: editor, schedule: schedule}, nil
}

// Run sweeps on every schedule tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	logger.InfoCF("poll", "Poll sweeper started", map[string]any{"schedule": w.schedule})
	for {
		now := w.svc.opts.Now()
		next, err := gronx.NextTickAfter(w.schedule, now, false)
		if err != nil {
			return fmt.Errorf("computing next sweep: %w", err)
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.InfoC("poll", "Poll sweeper stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if closed, err := w.Sweep(ctx); err != nil {
			logger.ErrorCF("poll", "Poll sweep failed", map[string]any{"error": err.Error()})
		} else if closed > 0 {
			logger.InfoCF("poll", "Closed expired polls", map[string]any{"count": closed})
		}
	}
}

// Sweep closes every open poll whose expiry has passed and returns how many
// were closed. A failed message edit is logged and does not reopen the poll.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	docs, err := w.svc.docs.Find(ctx, store.Filter{"status": StatusOpen})
	if err != nil {
		return 0, fmt.Errorf("listing open polls: %w", err)
	}

	now := w.svc.opts.Now()
	closed := 0
	for _, raw := range docs {
		var p Poll
		if err := json.Unmarshal(raw, &p); err != nil {
			logger.WarnCF("poll", "Skipping unreadable poll", map[string]any{"error": err.Error()})
			continue
		}
		if p.Open(now) {
			continue
		}

		p.Status = StatusClosed
		if err := w.svc.docs.ReplaceOne(ctx, store.Filter{"message": p.Message}, &p, false); err != nil {
			return closed, fmt.Errorf("closing poll %s: %w", p.Message, err)
		}
		closed++

		if w.editor == nil {
			continue
		}
		if err := w.editor.EditMessage(ctx, p.Channel, p.Message, interaction.Embed(ResultsEmbed(&p))); err != nil {
			logger.WarnCF("poll", "Failed to post poll results", map[string]any{
				"message": p.Message,
				"channel": p.Channel,
				"error":   err.Error(),
			})
		}
	}
	return closed, nil
}

// ResultsEmbed renders the final tally of a poll.
func ResultsEmbed(p *Poll) *discordgo.MessageEmbed {
	tally := p.Tally()
	total := 0
	for _, n := range tally {
		total += n
	}

	lines := make([]string, 0, len(p.Results))
	for i, r := range p.Results {
		lines = append(lines, fmt.Sprintf("**%s**: %d %s", r.Option, tally[i], plural(tally[i], "vote", "votes")))
	}

	return &discordgo.MessageEmbed{
		Title:       p.Question,
		Description: "This poll has ended.\n\n" + strings.Join(lines, "\n"),
		Color:       colorPoll,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d total %s", total, plural(total, "vote", "votes")),
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Package bot assembles the command registry, the session commands and the
// router from configuration.
package bot

import (
	"context"
	"fmt"

	"github.com/sagebot/sage/pkg/commands"
	"github.com/sagebot/sage/pkg/config"
	"github.com/sagebot/sage/pkg/duel"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/poll"
	"github.com/sagebot/sage/pkg/ratelimit"
	"github.com/sagebot/sage/pkg/router"
	"github.com/sagebot/sage/pkg/store"
	"github.com/sagebot/sage/pkg/token"
)

type Bot struct {
	Registry *commands.Registry
	Router   *router.Router
	Duels    *duel.Manager
	Polls    *poll.Service
}

// New builds every command and applies the persisted enablement overrides
// for cfg.Bot.AppID.
func New(ctx context.Context, cfg *config.Config, st *store.Store) (*Bot, error) {
	if cfg.Bot.AppID == "" {
		return nil, fmt.Errorf("bot.app_id is required")
	}

	reg := commands.NewRegistry(store.NewClientSettings(st), cfg.Bot.AppID)

	duels := duel.NewManager(duel.Options{
		BotName:       cfg.Bot.Name,
		Timeout:       cfg.DuelTimeout(),
		RequiredRoles: cfg.MemberRoles(),
	})
	polls := poll.NewService(st.Collection(poll.Collection), poll.Options{
		MaxOptions:    cfg.Poll.MaxOptions,
		RequiredRoles: cfg.MemberRoles(),
	})

	defs := commands.BuiltinDescriptors(reg, commands.Permissions{
		Admin:  cfg.AdminRoles(),
		Member: cfg.MemberRoles(),
	})
	defs = append(defs, duels.Descriptor(), polls.Descriptor())
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}

	if err := reg.Load(ctx); err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		CommandsPerMinute: cfg.RateLimits.CommandsPerMinute,
		Burst:             cfg.RateLimits.Burst,
	})
	r := router.New(reg, limiter)
	r.RegisterComponentHandler(token.KindDuel, duels.HandleComponent)
	r.RegisterComponentHandler(token.KindPoll, polls.HandleComponent)

	logger.InfoCF("bot", "Commands ready", map[string]any{
		"commands": len(defs),
		"app_id":   cfg.Bot.AppID,
	})

	return &Bot{
		Registry: reg,
		Router:   r,
		Duels:    duels,
		Polls:    polls,
	}, nil
}

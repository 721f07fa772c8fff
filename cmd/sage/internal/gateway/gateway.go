package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sagebot/sage/cmd/sage/internal"
	"github.com/sagebot/sage/pkg/bot"
	"github.com/sagebot/sage/pkg/channels"
	"github.com/sagebot/sage/pkg/config"
	"github.com/sagebot/sage/pkg/logger"
	"github.com/sagebot/sage/pkg/poll"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	debug    bool
	skipSync bool
}

func run(ctx context.Context, opts options) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := internal.ConfigureLogging(cfg, opts.debug); err != nil {
		return err
	}
	defer logger.DisableFileLogging()

	if err := checkConfig(cfg); err != nil {
		return err
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

	discord, err := channels.NewDiscordChannel(channels.DiscordConfig{
		Token:   cfg.Bot.Token,
		AppID:   cfg.Bot.AppID,
		GuildID: cfg.Bot.GuildID,
		Proxy:   cfg.Bot.Proxy,
	}, b.Router)
	if err != nil {
		return err
	}

	sweeper, err := poll.NewSweeper(b.Polls, discord, cfg.Poll.SweepSchedule)
	if err != nil {
		return err
	}

	if err := discord.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := discord.Stop(stopCtx); err != nil {
			logger.WarnCF("gateway", "Discord shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	if !opts.skipSync {
		if err := discord.SyncCommands(ctx, b.Registry.List()); err != nil {
			return err
		}
	}

	sweepDone := make(chan error, 1)
	go func() { sweepDone <- sweeper.Run(ctx) }()

	logger.InfoCF("gateway", "Gateway running", map[string]any{
		"app_id":   cfg.Bot.AppID,
		"guild_id": cfg.Bot.GuildID,
		"store":    cfg.StorePath(),
	})

	<-ctx.Done()
	logger.InfoC("gateway", "Shutting down")

	if err := <-sweepDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.WarnCF("gateway", "Poll sweeper stopped with error", map[string]any{"error": err.Error()})
	}
	logger.InfoC("gateway", "Shutdown complete")
	return nil
}

// checkConfig rejects configurations the gateway cannot start with.
func checkConfig(cfg *config.Config) error {
	var missing []string
	if cfg.Bot.Token == "" {
		missing = append(missing, "bot.token (SAGE_BOT_TOKEN)")
	}
	if cfg.Bot.AppID == "" {
		missing = append(missing, "bot.app_id (SAGE_BOT_APP_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %v", missing)
	}
	return nil
}

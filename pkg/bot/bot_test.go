package bot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/config"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/interaction/interactiontest"
	"github.com/sagebot/sage/pkg/router"
	"github.com/sagebot/sage/pkg/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Bot.AppID = "app-1"
	cfg.Roles.Admin = []string{"admin"}
	return cfg
}

func TestNew_RegistersAllCommands(t *testing.T) {
	b, err := New(context.Background(), testConfig(), openStore(t))
	require.NoError(t, err)

	var names []string
	for _, d := range b.Registry.List() {
		names = append(names, d.Name)
		assert.True(t, d.Enabled, d.Name)
	}
	assert.Equal(t, []string{"coinflip", "disable", "enable", "poll", "rockpaperscissors", "showcommands"}, names)
}

func TestNew_RequiresAppID(t *testing.T) {
	cfg := testConfig()
	cfg.Bot.AppID = ""
	_, err := New(context.Background(), cfg, openStore(t))
	assert.ErrorContains(t, err, "app_id")
}

func TestNew_DisabledCommandSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	first, err := New(ctx, testConfig(), st)
	require.NoError(t, err)

	inv := &interactiontest.Invocation{
		Name:    "disable",
		User:    interaction.Actor{ID: "u1"},
		Guild:   "g1",
		Roles:   capability.NewSet("admin"),
		Options: map[string]string{"command": "coinflip"},
	}
	res := first.Router.HandleInvocation(ctx, inv)
	require.Equal(t, router.OutcomeHandled, res.Outcome)

	second, err := New(ctx, testConfig(), st)
	require.NoError(t, err)
	d, ok := second.Registry.Find("coinflip")
	require.True(t, ok)
	assert.False(t, d.Enabled)

	flip := &interactiontest.Invocation{Name: "coinflip", User: interaction.Actor{ID: "u2"}, Guild: "g1"}
	res = second.Router.HandleInvocation(ctx, flip)
	assert.Equal(t, router.OutcomeRejected, res.Outcome)
	assert.Equal(t, interaction.Ephemeral(router.MsgDisabled), flip.LastReply())
}

func TestNew_AdminCommandsNeedAdminRole(t *testing.T) {
	ctx := context.Background()
	b, err := New(ctx, testConfig(), openStore(t))
	require.NoError(t, err)

	inv := &interactiontest.Invocation{
		Name:    "disable",
		User:    interaction.Actor{ID: "u1"},
		Guild:   "g1",
		Roles:   capability.NewSet("member"),
		Options: map[string]string{"command": "coinflip"},
	}
	res := b.Router.HandleInvocation(ctx, inv)
	assert.Equal(t, router.OutcomeRejected, res.Outcome)
	assert.Equal(t, "forbidden", res.Reason)
}

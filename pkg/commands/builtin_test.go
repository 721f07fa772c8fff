package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sagebot/sage/pkg/capability"
	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/interaction/interactiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuiltinRegistry(t *testing.T, store SettingsStore) *Registry {
	t.Helper()
	reg := NewRegistry(store, "app-1")
	perms := Permissions{Admin: []capability.RoleID{"admin"}}
	for _, d := range BuiltinDescriptors(reg, perms) {
		require.NoError(t, reg.Register(d))
	}
	require.NoError(t, reg.Register(Descriptor{Name: "testcmd", Enabled: false}))
	require.NoError(t, reg.Register(Descriptor{Name: "alreadyon", Enabled: true}))
	return reg
}

func runBuiltin(t *testing.T, reg *Registry, name, arg string) *interactiontest.Invocation {
	t.Helper()
	d, ok := reg.Find(name)
	require.True(t, ok)
	inv := &interactiontest.Invocation{
		Name:    name,
		Options: map[string]string{"command": arg},
	}
	require.NoError(t, d.Handler(context.Background(), inv))
	return inv
}

func TestBuiltinDescriptors_Names(t *testing.T) {
	defs := BuiltinDescriptors(NewRegistry(nil, ""), Permissions{})
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	for _, want := range []string{"enable", "disable", "showcommands", "coinflip"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestEnable_EnablesDisabledCommand(t *testing.T) {
	store := newFakeSettings()
	reg := newBuiltinRegistry(t, store)

	inv := runBuiltin(t, reg, "enable", "testcmd")

	d, _ := reg.Find("testcmd")
	assert.True(t, d.Enabled)
	assert.Equal(t, map[string]bool{"testcmd": true}, store.saved)
	assert.Equal(t, interaction.Text("```diff\n+>>> testcmd Enabled\n```"), inv.LastReply())
}

func TestEnable_UnknownCommand(t *testing.T) {
	store := newFakeSettings()
	reg := newBuiltinRegistry(t, store)

	inv := runBuiltin(t, reg, "enable", "nonexistent")

	assert.Equal(t, interaction.Ephemeral("I couldn't find a command called `nonexistent`"), inv.LastReply())
	assert.Zero(t, store.saves)
}

func TestEnable_AlreadyEnabled(t *testing.T) {
	store := newFakeSettings()
	reg := newBuiltinRegistry(t, store)

	inv := runBuiltin(t, reg, "enable", "alreadyon")

	assert.Equal(t, interaction.Ephemeral("alreadyon is already enabled."), inv.LastReply())
	assert.Zero(t, store.saves)
}

func TestDisable_ProtectedCommand(t *testing.T) {
	store := newFakeSettings()
	reg := newBuiltinRegistry(t, store)

	inv := runBuiltin(t, reg, "disable", "enable")

	assert.Equal(t, interaction.Ephemeral("Sorry fam, you can't disable that one."), inv.LastReply())
	d, _ := reg.Find("enable")
	assert.True(t, d.Enabled)
	assert.Zero(t, store.saves)
}

func TestDisable_DisablesCommand(t *testing.T) {
	reg := newBuiltinRegistry(t, newFakeSettings())

	inv := runBuiltin(t, reg, "disable", "alreadyon")

	d, _ := reg.Find("alreadyon")
	assert.False(t, d.Enabled)
	assert.Equal(t, interaction.Text("```diff\n->>> alreadyon Disabled\n```"), inv.LastReply())
}

func TestDisable_StoreFailureBubblesUp(t *testing.T) {
	store := newFakeSettings()
	store.saveErr = errors.New("down")
	reg := newBuiltinRegistry(t, store)

	d, _ := reg.Find("disable")
	inv := &interactiontest.Invocation{Name: "disable", Options: map[string]string{"command": "alreadyon"}}
	err := d.Handler(context.Background(), inv)

	assert.ErrorIs(t, err, store.saveErr)
	assert.Empty(t, inv.Replies)
	got, _ := reg.Find("alreadyon")
	assert.True(t, got.Enabled)
}

func TestFormatStatusMessage(t *testing.T) {
	got := FormatStatusMessage([]Descriptor{
		{Name: "alpha", Enabled: true},
		{Name: "beta", Enabled: false},
		{Name: "gamma", Enabled: true},
	})
	assert.Equal(t, "```diff\n+ Enabled\n- Disabled\n\n+ alpha\n- beta\n+ gamma\n```", got)
}

func TestCoinflip_EditsReplyWithResult(t *testing.T) {
	prev := flipDelay
	flipDelay = time.Millisecond
	t.Cleanup(func() { flipDelay = prev })

	inv := &interactiontest.Invocation{Name: "coinflip"}
	require.NoError(t, handleCoinflip(context.Background(), inv))

	assert.Equal(t, interaction.Text("Flipping..."), inv.LastReply())
	require.Eventually(t, func() bool { return inv.EditCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, coinFaces, inv.Edits[0].Content)
}

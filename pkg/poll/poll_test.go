package poll

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebot/sage/pkg/interaction"
	"github.com/sagebot/sage/pkg/interaction/interactiontest"
	"github.com/sagebot/sage/pkg/store"
	"github.com/sagebot/sage/pkg/token"
)

// recordingDocs wraps a real collection and records every write.
type recordingDocs struct {
	*store.Collection

	mu       sync.Mutex
	inserts  int
	replaced []Poll
}

func (r *recordingDocs) InsertOne(ctx context.Context, doc any) (string, error) {
	r.mu.Lock()
	r.inserts++
	r.mu.Unlock()
	return r.Collection.InsertOne(ctx, doc)
}

func (r *recordingDocs) ReplaceOne(ctx context.Context, filter store.Filter, doc any, upsert bool) error {
	if p, ok := doc.(*Poll); ok {
		snapshot := *p
		snapshot.Results = make([]Result, len(p.Results))
		for i, res := range p.Results {
			snapshot.Results[i] = Result{Option: res.Option, Users: append([]string{}, res.Users...)}
		}
		r.mu.Lock()
		r.replaced = append(r.replaced, snapshot)
		r.mu.Unlock()
	}
	return r.Collection.ReplaceOne(ctx, filter, doc, upsert)
}

func (r *recordingDocs) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts + len(r.replaced)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	docs  *recordingDocs
	svc   *Service
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "polls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	docs := &recordingDocs{Collection: s.Collection(Collection)}
	return &fixture{
		docs:  docs,
		svc:   NewService(docs, Options{Now: c.Now}),
		clock: c,
	}
}

func (f *fixture) create(t *testing.T, question, choices, mode, span string) *interactiontest.Invocation {
	t.Helper()
	inv := &interactiontest.Invocation{
		Name:      CommandName,
		User:      interaction.Actor{ID: "owner", Name: "Owner"},
		Guild:     "g1",
		Channel:   "c1",
		MessageID: "m1",
		Options: map[string]string{
			"question":   question,
			"choices":    choices,
			"optiontype": mode,
			"timespan":   span,
		},
	}
	require.NoError(t, f.svc.Create(context.Background(), inv))
	return inv
}

func (f *fixture) vote(t *testing.T, actor, option string) *interactiontest.Component {
	t.Helper()
	id, err := token.Encode(token.KindPoll, "owner", option)
	require.NoError(t, err)
	tok, err := token.Decode(id)
	require.NoError(t, err)

	ev := &interactiontest.Component{ID: id, User: interaction.Actor{ID: actor}, Channel: "c1", Message: "m1"}
	require.NoError(t, f.svc.HandleComponent(context.Background(), tok, ev))
	return ev
}

func (f *fixture) stored(t *testing.T) Poll {
	t.Helper()
	var p Poll
	require.NoError(t, f.docs.FindOne(context.Background(), store.Filter{"message": "m1"}, &p))
	return p
}

func recorded(option string) string {
	return "Vote for ***" + option + "*** recorded. To remove it, click the same option again."
}

func TestCreate_StoresPollAndRendersButtons(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, "Is this a test?", "Yes|No", "Single", "1m")

	require.Len(t, inv.Replies, 1)
	reply := inv.Replies[0]
	assert.False(t, reply.Ephemeral)
	assert.Equal(t, "Is this a test?", reply.Embeds[0].Title)
	require.Len(t, reply.Components, 1)
	row := reply.Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 2)

	btn := row.Components[0].(discordgo.Button)
	assert.Equal(t, "Yes", btn.Label)
	assert.Equal(t, discordgo.SecondaryButton, btn.Style)
	tok, err := token.Decode(btn.CustomID)
	require.NoError(t, err)
	assert.Equal(t, token.Token{Kind: token.KindPoll, Owner: "owner", Fields: []string{"Yes"}}, tok)

	p := f.stored(t)
	assert.True(t, p.Expires.Equal(f.clock.Now().Add(time.Minute)), "expires %s", p.Expires)
	p.Expires = time.Time{}
	assert.Equal(t, Poll{
		Owner:    "owner",
		Message:  "m1",
		Channel:  "c1",
		Question: "Is this a test?",
		Results:  []Result{{Option: "Yes", Users: []string{}}, {Option: "No", Users: []string{}}},
		Type:     Single,
		Status:   StatusOpen,
	}, p)
}

func TestCreate_WrapsButtonsInRowsOfFive(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, "Favorite color?", "Red|Green|Blue|Yellow|Purple|Orange", "Multiple", "1m")

	comps := inv.Replies[0].Components
	require.Len(t, comps, 2)
	assert.Len(t, comps[0].(discordgo.ActionsRow).Components, 5)
	assert.Len(t, comps[1].(discordgo.ActionsRow).Components, 1)
}

func TestCreate_RejectsBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name    string
		choices string
		mode    string
		span    string
		want    string
	}{
		{name: "duplicate options", choices: "Red|Red", mode: "Single", span: "1m", want: "All poll options must be unique."},
		{name: "single option", choices: "Red", mode: "Single", span: "1m", want: "A poll needs at least two options, separated by `|`."},
		{name: "blank option", choices: "Red||Blue", mode: "Single", span: "1m", want: "Poll options cannot be empty."},
		{name: "bad mode", choices: "Yes|No", mode: "InvalidType", span: "1m", want: "poll option types must be one of Single, Multiple"},
		{name: "bad timespan", choices: "Yes|No", mode: "Single", span: "soon", want: "`soon` is not a valid duration. Try something like `10m`, `2h` or `1d`."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			inv := f.create(t, "Q?", tt.choices, tt.mode, tt.span)

			assert.Equal(t, []interaction.Response{interaction.Ephemeral(tt.want)}, inv.Replies)
			assert.Zero(t, f.docs.writes())
		})
	}
}

func TestCreate_TooManyOptions(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.docs, Options{MaxOptions: 3, Now: f.clock.Now})

	inv := f.create(t, "Q?", "a|b|c|d", "Multiple", "1m")
	assert.Equal(t, interaction.Ephemeral("A poll can have at most 3 options."), inv.LastReply())
	assert.Zero(t, f.docs.writes())
}

func TestVote_SingleModeMovesVote(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Favorite color?", "Red|Blue", "Single", "1m")

	ev := f.vote(t, "A", "Red")
	assert.Equal(t, interaction.Ephemeral(recorded("Red")), ev.LastReply())

	ev = f.vote(t, "A", "Blue")
	assert.Equal(t, interaction.Ephemeral(recorded("Blue")), ev.LastReply())

	p := f.stored(t)
	assert.Equal(t, []Result{{Option: "Red", Users: []string{}}, {Option: "Blue", Users: []string{"A"}}}, p.Results)
}

func TestVote_MultipleModeKeepsOtherVotes(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Snacks?", "Chips|Fruit|Candy", "Multiple", "1h")

	f.vote(t, "A", "Chips")
	f.vote(t, "A", "Candy")
	f.vote(t, "B", "Chips")

	p := f.stored(t)
	assert.Equal(t, []Result{
		{Option: "Chips", Users: []string{"A", "B"}},
		{Option: "Fruit", Users: []string{}},
		{Option: "Candy", Users: []string{"A"}},
	}, p.Results)
}

func TestVote_ToggleOff(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Favorite color?", "Red|Blue", "Single", "1m")

	f.vote(t, "A", "Red")
	ev := f.vote(t, "A", "Red")

	assert.Equal(t, interaction.Ephemeral("Vote for Red removed."), ev.LastReply())
	assert.Equal(t, []Result{{Option: "Red", Users: []string{}}, {Option: "Blue", Users: []string{}}}, f.stored(t).Results)
}

func TestVote_FavoriteColorScenario(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Favorite color?", "Red|Blue", "Single", "1m")

	f.vote(t, "A", "Red")
	f.vote(t, "A", "Red")

	require.Len(t, f.docs.replaced, 2)
	assert.Equal(t, []Result{{Option: "Red", Users: []string{"A"}}, {Option: "Blue", Users: []string{}}}, f.docs.replaced[0].Results)
	assert.Equal(t, []Result{{Option: "Red", Users: []string{}}, {Option: "Blue", Users: []string{}}}, f.docs.replaced[1].Results)

	raw, err := json.Marshal(f.docs.replaced[1].Results)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"option":"Red","users":[]},{"option":"Blue","users":[]}]`, string(raw))
}

func TestVote_Refusals(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Favorite color?", "Red|Blue", "Single", "1m")

	ev := f.vote(t, "A", "Green")
	assert.Equal(t, interaction.Ephemeral(MsgUnknownOption), ev.LastReply())

	f.clock.Advance(2 * time.Minute)
	ev = f.vote(t, "A", "Red")
	assert.Equal(t, interaction.Ephemeral(MsgClosed), ev.LastReply())

	assert.Empty(t, f.docs.replaced)
}

func TestVote_MissingPoll(t *testing.T) {
	f := newFixture(t)
	ev := f.vote(t, "A", "Red")
	assert.Equal(t, interaction.Ephemeral(MsgGone), ev.LastReply())
}

type failingDocs struct {
	Documents
}

func (failingDocs) FindOne(context.Context, store.Filter, any) error {
	return errors.New("disk on fire")
}

func TestVote_StoreErrorPropagates(t *testing.T) {
	svc := NewService(failingDocs{}, Options{})
	tok := token.Token{Kind: token.KindPoll, Owner: "owner", Fields: []string{"Red"}}
	ev := &interactiontest.Component{Message: "m1", User: interaction.Actor{ID: "A"}}

	err := svc.HandleComponent(context.Background(), tok, ev)
	assert.ErrorContains(t, err, "disk on fire")
	assert.Empty(t, ev.Replies)
}

func TestDescriptor(t *testing.T) {
	d := NewService(nil, Options{}).Descriptor()
	assert.Equal(t, CommandName, d.Name)
	assert.True(t, d.GuildOnly)
	require.Len(t, d.Options, 4)
	assert.Equal(t, []string{"Single", "Multiple"}, d.Options[3].Choices)
}

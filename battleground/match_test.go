package battleground

import (
	"errors"
	"testing"

	"agones-battleground/spawn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.startMatch(t, 2, 2)
	h.m.Tick(1000)
	h.m.End(TeamAlliance)
	require.NoError(t, h.m.Invite("late", TeamHorde))

	h.m.Reset()
	assert.Equal(t, StatusWaitQueue, h.m.Status())
	assert.Equal(t, TeamNone, h.m.Winner())
	assert.Equal(t, int64(0), h.m.StartTime())
	assert.Equal(t, int64(0), h.m.EndTime())
	assert.Equal(t, uint32(0), h.m.Events())
	assert.Equal(t, 0, h.m.RosterSize())
	for _, team := range []Team{TeamAlliance, TeamHorde} {
		assert.Equal(t, 0, h.m.InvitedCount(team))
		assert.Equal(t, 0, h.m.PresentCount(team))
	}
	_, ok := h.m.Score("a0")
	assert.False(t, ok)
	assert.Nil(t, h.m.FinalScore())
	assert.Equal(t, 0, h.slots.Len(2))
	for _, raid := range h.raids.created {
		assert.True(t, raid.released)
	}
	assert.True(t, h.m.Registry().IsActive(spawn.CategoryDoor, 0))

	h.m.Start()
	assert.Equal(t, StatusWaitJoin, h.m.Status())
	assert.Equal(t, 1, h.slots.Len(2))
}

type recordingScript struct {
	DefaultScript
	changes []spawn.Coordinate
	started int
}

func (s *recordingScript) OnEventStateChanged(_ *Match, c spawn.Coordinate, active bool) {
	if active {
		s.changes = append(s.changes, c)
	}
}

func (s *recordingScript) OnStart(*Match) { s.started++ }

func TestMatch_ScriptHooks(t *testing.T) {
	script := &recordingScript{}
	h := newHarness(t, func(tpl *Template, _ *Settings, d *Deps) {
		tpl.Categories = []spawn.Category{1}
		d.Script = script
	})
	h.startMatch(t, 2, 2)
	assert.Equal(t, 1, script.started)

	require.NoError(t, h.m.SpawnEvent(1, 2, true, false, 0))
	assert.Equal(t, []spawn.Coordinate{{Category: 1, SubState: 2}}, script.changes)

	err := h.m.SpawnEvent(5, 0, true, false, 0)
	assert.True(t, errors.Is(err, spawn.ErrUnknownCategory))
}

func TestMatch_AliveCount(t *testing.T) {
	h := newHarness(t)
	h.m.Start()
	h.join("a0", TeamAlliance)
	h.join("a1", TeamAlliance).alive = false
	h.join("h0", TeamHorde)
	assert.Equal(t, 1, h.m.AliveCount(TeamAlliance))
	assert.Equal(t, 1, h.m.AliveCount(TeamHorde))
}

func TestMatch_RosterEntryTeamFallback(t *testing.T) {
	h := newHarness(t)
	h.m.Start()
	p := h.participant("n", TeamNone)
	h.m.Join(p)
	p.team = TeamHorde

	h.m.RewardHonorToTeam(10, TeamHorde)
	score, _ := h.m.Score("n")
	assert.Equal(t, uint32(10), score.BonusHonor, "entry without team resolves the live team")
	assert.Equal(t, 0, h.m.PresentCount(TeamHorde), "participants without team are not counted")
}

func TestTemplate_Validate(t *testing.T) {
	valid := Template{TypeID: 1, Name: "arena", MinPerTeam: 1, MaxPerTeam: 5}
	tests := []struct {
		name    string
		mutate  func(*Template)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Template) {}},
		{name: "missing type", mutate: func(t *Template) { t.TypeID = 0 }, wantErr: true},
		{name: "no capacity", mutate: func(t *Template) { t.MaxPerTeam = 0 }, wantErr: true},
		{name: "minimum above maximum", mutate: func(t *Template) { t.MinPerTeam = 6 }, wantErr: true},
		{name: "increasing delays", mutate: func(t *Template) { t.StartDelays = [4]int64{1000, 2000, 0, 0} }, wantErr: true},
		{name: "binding names both kinds", mutate: func(t *Template) { t.Bindings = []Binding{{Creature: 1, Object: 2}} }, wantErr: true},
		{name: "empty binding", mutate: func(t *Template) { t.Bindings = []Binding{{}} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := valid.WithDefaults()
			tt.mutate(&tpl)
			err := tpl.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error mismatch\ngot=%#v\nwantErr=%#v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("Validate() error not ErrInvalidTemplate: %#v", err)
			}
		})
	}
}

func TestTemplate_Defaults(t *testing.T) {
	tpl := Template{}.WithDefaults()
	assert.Equal(t, DefaultStartDelays, tpl.StartDelays)
	assert.Equal(t, DefaultStartMessages, tpl.StartMessages)
	assert.Equal(t, int64(180000), tpl.doorDespawnAfter())
	assert.Equal(t, TextAllianceWins, tpl.WinText(TeamAlliance))
	assert.Equal(t, TextID(0), tpl.WinText(TeamNone))
}

func TestParseTeam(t *testing.T) {
	tests := []struct {
		in      string
		want    Team
		wantErr bool
	}{
		{in: "alliance", want: TeamAlliance},
		{in: " Horde ", want: TeamHorde},
		{in: "", want: TeamNone},
		{in: "scourge", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTeam(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTeam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTeam() mismatch\ngot=%#v\nwant=%#v", got, tt.want)
			}
		})
	}
}

func TestFreeSlotRegistry(t *testing.T) {
	r := NewFreeSlotRegistry()
	first := New(1, Template{TypeID: 3, MaxPerTeam: 1}, DefaultSettings(), Deps{FreeSlots: r})
	second := New(2, Template{TypeID: 3, MaxPerTeam: 1}, DefaultSettings(), Deps{FreeSlots: r})
	other := New(3, Template{TypeID: 4, MaxPerTeam: 1}, DefaultSettings(), Deps{FreeSlots: r})

	first.Start()
	second.Start()
	other.Start()
	first.register()
	assert.Equal(t, []*Match{second, first}, r.Matches(3), "newest first, no duplicates")
	assert.Equal(t, 1, r.Len(4))

	first.unregister()
	assert.Equal(t, []*Match{second}, r.Matches(3))
	assert.False(t, r.remove(first))
	second.unregister()
	assert.Equal(t, 0, r.Len(3))
}

func TestMessageSources(t *testing.T) {
	l := rawLocalizer{}
	tests := []struct {
		name string
		src  MessageSource
		want Message
	}{
		{name: "broadcast", src: Broadcast{ID: 6}, want: Message{Kind: KindChat, Text: "#6"}},
		{name: "formatted", src: Formatted{ID: 1, Args: []any{3}}, want: Message{Kind: KindChat, Text: "#1 [3]"}},
		{name: "narrated", src: Narrated{Speaker: "herald", ID: 6}, want: Message{Kind: KindNarration, Speaker: "herald", Text: "#6"}},
		{name: "sound", src: Sound(SoundStart), want: Message{Kind: KindSound, Sound: SoundStart}},
		{name: "static", src: Static{Kind: KindLeft, Participant: "p"}, want: Message{Kind: KindLeft, Participant: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.src.Message(l, "en"))
		})
	}
}

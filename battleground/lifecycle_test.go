package battleground

import (
	"testing"

	"agones-battleground/spawn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_EmptyRoster(t *testing.T) {
	tests := []struct {
		name    string
		id      uint32
		invite  bool
		want    TickResult
		elapsed int64
	}{
		{name: "empty match retires", id: 7, want: TickRetire},
		{name: "pending invitation keeps the match", id: 7, invite: true, want: TickContinue},
		{name: "template never retires", id: 0, want: TickContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.id, Template{TypeID: 1, MaxPerTeam: 5}, DefaultSettings(), Deps{})
			m.Start()
			if tt.invite {
				require.NoError(t, m.Invite("p1", TeamHorde))
			}
			got := m.Tick(1000)
			if got != tt.want {
				t.Errorf("Tick() mismatch\ngot=%#v\nwant=%#v", got, tt.want)
			}
			assert.Equal(t, tt.elapsed, m.StartTime(), "empty ticks do not advance the clock")
		})
	}
}

func TestTick_StartingSequenceOrder(t *testing.T) {
	h := newHarness(t)
	h.m.Start()
	h.join("a0", TeamAlliance)
	h.join("h0", TeamHorde)

	var fired []uint32
	prev := h.m.Events()
	ticks := 0
	for h.m.Status() == StatusWaitJoin && ticks < 500 {
		h.m.Tick(1000)
		ticks++
		if now := h.m.Events(); now != prev {
			fired = append(fired, now&^prev)
			prev = now
		}
	}

	want := []uint32{EventStartFirst, EventStartSecond, EventStartThird, EventStartFourth}
	assert.Equal(t, want, fired)
	assert.Equal(t, 121, ticks)
	assert.Equal(t, StatusInProgress, h.m.Status())
	assert.Equal(t, int64(121000), h.m.StartTime())

	for _, id := range []string{"a0", "h0"} {
		assert.Equal(t, 1, h.gw.texts(id, "#3"), "two minute warning")
		assert.Equal(t, 1, h.gw.texts(id, "#4"), "one minute warning")
		assert.Equal(t, 1, h.gw.texts(id, "#5"), "half minute warning")
		assert.Equal(t, 1, h.gw.texts(id, "#6"), "begun")
		sounds := h.gw.ofKind(id, KindSound)
		require.Len(t, sounds, 1)
		assert.Equal(t, SoundStart, sounds[0].Sound)
	}
}

func TestTick_OneStepPerTick(t *testing.T) {
	h := newHarness(t)
	h.m.Start()
	h.join("a0", TeamAlliance)

	h.m.Tick(0)
	require.Equal(t, EventStartFirst, h.m.Events())

	h.m.Tick(200000)
	assert.Equal(t, EventStartFirst|EventStartSecond, h.m.Events(), "a large delta still fires a single step")
	h.m.Tick(0)
	assert.Equal(t, EventStartFirst|EventStartSecond|EventStartThird, h.m.Events())
	h.m.Tick(0)
	assert.Equal(t, StatusInProgress, h.m.Status())
}

func TestTick_SetupFailureEndsMatch(t *testing.T) {
	h := newHarness(t, func(_ *Template, _ *Settings, d *Deps) { d.Script = failingScript{} })
	h.m.Start()
	p := h.join("a0", TeamAlliance)
	require.Equal(t, 1, h.slots.Len(2))

	h.m.Tick(1000)
	assert.Equal(t, StatusWaitLeave, h.m.Status())
	assert.Equal(t, int64(0), h.m.EndTime())
	assert.Equal(t, int64(0), h.m.StartTime(), "failed setup returns before the clock advances")
	assert.Equal(t, 0, h.slots.Len(2))

	h.m.Tick(1000)
	assert.Equal(t, 0, h.m.RosterSize())
	assert.Equal(t, []bool{true}, p.detached)
	assert.Equal(t, TickRetire, h.m.Tick(1000))
}

func TestTick_SetupFailsOnMissingEntities(t *testing.T) {
	h := newHarness(t, func(tpl *Template, _ *Settings, d *Deps) {
		tpl.Bindings = []Binding{{Object: 40, Coordinates: []spawn.Coordinate{{Category: spawn.CategoryDoor}}}}
		d.World = doorWorld{}
	})
	h.m.Start()
	h.join("a0", TeamAlliance)
	h.m.Tick(1000)
	assert.Equal(t, StatusWaitLeave, h.m.Status())
}

func TestTick_DoorsOpenAndDespawn(t *testing.T) {
	world := doorWorld{40: {}, 41: {}}
	h := newHarness(t, func(tpl *Template, _ *Settings, d *Deps) {
		tpl.Bindings = []Binding{
			{Object: 40, Coordinates: []spawn.Coordinate{{Category: spawn.CategoryDoor}}},
			{Object: 41, Coordinates: []spawn.Coordinate{{Category: spawn.CategoryDoor}}},
		}
		d.World = world
	})
	h.startMatch(t, 2, 2)
	assert.True(t, world[40].open)
	assert.True(t, world[41].open)

	for h.m.StartTime() <= 180000 {
		h.m.Tick(1000)
	}
	assert.False(t, world[40].removed)
	h.m.Tick(1000)
	assert.True(t, world[40].removed)
	assert.True(t, world[41].removed)
	assert.NotZero(t, h.m.Events()&EventDoorsDespawned)
}

func TestTick_ReturnToStart(t *testing.T) {
	h := newHarness(t)
	h.m.Start()
	near := h.join("a0", TeamAlliance)
	far := h.participant("a1", TeamAlliance)
	far.pos = Position{X: 1500, Y: 1700}
	h.m.Join(far)
	gm := h.participant("h0", TeamHorde)
	gm.gm = true
	gm.pos = Position{}
	h.m.Join(gm)

	for h.m.Status() == StatusWaitJoin {
		h.m.Tick(1000)
	}
	assert.Equal(t, 0, near.rallied)
	assert.Equal(t, 1, far.rallied)
	assert.Equal(t, 0, gm.rallied)
}

func TestTick_PrematureFinish(t *testing.T) {
	h := newHarness(t)
	h.startMatch(t, 1, 2)

	ticks := 0
	for h.m.Status() == StatusInProgress && ticks < 1000 {
		h.m.Tick(1000)
		ticks++
	}
	assert.Equal(t, 302, ticks, "countdown starts on the first tick and ends once less than a tick is left")
	assert.Equal(t, StatusWaitLeave, h.m.Status())
	assert.Equal(t, TeamHorde, h.m.Winner())
	running, _ := h.m.Premature()
	assert.False(t, running)
	assert.Equal(t, 0, h.gw.texts("a0", "#1 "), "testing mode is silent")
}

func TestTick_PrematureAnnouncements(t *testing.T) {
	h := newHarness(t, func(_ *Template, s *Settings, _ *Deps) { s.Testing = false })
	h.startMatch(t, 1, 2)
	for h.m.Status() == StatusInProgress {
		h.m.Tick(1000)
	}
	assert.Equal(t, 4, h.gw.texts("h0", "#1 "), "minute announcements")
	assert.Equal(t, 4, h.gw.texts("h0", "#2 "), "quarter minute announcements")
	assert.Equal(t, 1, h.gw.texts("h0", "#1 [5]"))
	assert.Equal(t, 1, h.gw.texts("h0", "#2 [15]"))
}

func TestTick_PrematureCancelled(t *testing.T) {
	h := newHarness(t)
	h.startMatch(t, 1, 2)

	h.m.Tick(1000)
	h.m.Tick(1000)
	running, left := h.m.Premature()
	require.True(t, running)
	assert.Equal(t, int64(299000), left)

	h.join("a9", TeamAlliance)
	h.m.Tick(1000)
	running, _ = h.m.Premature()
	assert.False(t, running)
	assert.Equal(t, StatusInProgress, h.m.Status())
}

func TestTick_PrematureDisabled(t *testing.T) {
	h := newHarness(t, func(_ *Template, s *Settings, _ *Deps) { s.PrematureFinishTime = 0 })
	h.startMatch(t, 1, 0)
	for i := 0; i < 10; i++ {
		h.m.Tick(60000)
	}
	assert.Equal(t, StatusInProgress, h.m.Status())
}

func TestStop(t *testing.T) {
	t.Run("in progress", func(t *testing.T) {
		h := newHarness(t)
		h.startMatch(t, 2, 2)
		h.m.Stop()
		h.m.Tick(1000)
		assert.Equal(t, StatusWaitLeave, h.m.Status())
		assert.Equal(t, TeamNone, h.m.Winner())
		for _, id := range []string{"a0", "a1", "h0", "h1"} {
			assert.Empty(t, h.grantor.applied[id], "no winner tier on stop")
		}
	})
	t.Run("one team short", func(t *testing.T) {
		h := newHarness(t)
		h.startMatch(t, 2, 0)
		h.m.Stop()
		h.m.Tick(1000)
		assert.Equal(t, StatusWaitLeave, h.m.Status())
		assert.Equal(t, TeamNone, h.m.Winner())
	})
	t.Run("before start", func(t *testing.T) {
		h := newHarness(t)
		h.m.Start()
		h.join("a0", TeamAlliance)
		h.m.Stop()
		assert.Equal(t, StatusWaitLeave, h.m.Status())
		assert.Equal(t, TeamNone, h.m.Winner())
	})
}

func TestTick_WaitLeaveRemovesRoster(t *testing.T) {
	h := newHarness(t)
	h.startMatch(t, 2, 2)
	h.m.End(TeamAlliance)
	require.Equal(t, int64(120000), h.m.EndTime())

	h.m.Tick(119000)
	assert.Equal(t, 4, h.m.RosterSize())
	h.m.Tick(1000)
	assert.Equal(t, 0, h.m.RosterSize())
	assert.Equal(t, int64(0), h.m.EndTime())
	for _, id := range []string{"a0", "a1", "h0", "h1"} {
		assert.Equal(t, []bool{true}, h.dir[id].detached)
		assert.Len(t, h.gw.ofKind(id, KindLeft), 0, "no left notices once the match ended")
	}
	assert.Equal(t, 0, h.m.InvitedCount(TeamAlliance))
	assert.Equal(t, TickRetire, h.m.Tick(1000))
}

package world

import (
	"testing"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/spawn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doorTemplate() battleground.Template {
	return battleground.Template{
		TypeID:     2,
		MaxPerTeam: 10,
		Categories: []spawn.Category{1},
		Bindings: []battleground.Binding{
			{Object: 10, Coordinates: []spawn.Coordinate{{Category: spawn.CategoryDoor}}},
			{Creature: 20, Coordinates: []spawn.Coordinate{{Category: 1, SubState: 0}}},
			{Creature: 21, Coordinates: []spawn.Coordinate{{Category: 1, SubState: 1}}},
		},
	}
}

func TestFromTemplate(t *testing.T) {
	w := FromTemplate(doorTemplate())
	want := []EntityState{
		{Ref: "creature:20", State: "alive"},
		{Ref: "creature:21", State: "alive"},
		{Ref: "object:10", State: "ready"},
	}
	assert.Equal(t, want, w.Snapshot())

	w.Delete(spawn.CreatureRef(21))
	_, ok := w.Creature(21)
	assert.False(t, ok)
}

func TestCreatureTransitions(t *testing.T) {
	c := &Creature{state: CreatureAlive}
	assert.False(t, c.RespawnPending())

	c.Kill()
	assert.True(t, c.Dead())
	assert.True(t, c.RespawnPending())

	c.Despawn()
	assert.False(t, c.Dead())
	assert.Equal(t, CreatureDespawned, c.State())

	c.RespawnNow()
	assert.Equal(t, CreatureAlive, c.State())
}

func TestObjectTransitions(t *testing.T) {
	tests := []struct {
		name  string
		start ObjectState
		apply func(o *Object)
		want  ObjectState
	}{
		{name: "use opens a ready door", start: ObjectReady, apply: func(o *Object) { o.Use(time.Minute) }, want: ObjectActive},
		{name: "use closes an open door", start: ObjectActive, apply: func(o *Object) { o.Use(time.Minute) }, want: ObjectReady},
		{name: "hidden objects ignore use", start: ObjectHidden, apply: func(o *Object) { o.Use(time.Minute) }, want: ObjectHidden},
		{name: "show", start: ObjectHidden, apply: func(o *Object) { o.Show(0) }, want: ObjectReady},
		{name: "removed stays removed", start: ObjectRemoved, apply: func(o *Object) { o.Show(0) }, want: ObjectRemoved},
		{name: "rearm", start: ObjectActive, apply: func(o *Object) { o.Rearm() }, want: ObjectReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Object{state: tt.start}
			tt.apply(o)
			if got := o.State(); got != tt.want {
				t.Errorf("State() mismatch\ngot=%#v\nwant=%#v", got, tt.want)
			}
		})
	}
}

func TestWorld_DrivesRegistry(t *testing.T) {
	tpl := doorTemplate()
	w := FromTemplate(tpl)
	m := battleground.New(1, tpl, battleground.DefaultSettings(), battleground.Deps{World: w})
	require.NoError(t, m.LoadEntities())

	first, _ := w.CreatureByID(20)
	second, _ := w.CreatureByID(21)
	assert.Equal(t, CreatureDespawned, first.State(), "inactive coordinates despawn on load")
	assert.Equal(t, spawn.CreatureDormancy, first.RespawnDelay())

	require.NoError(t, m.SpawnEvent(1, 0, true, false, 0))
	assert.Equal(t, CreatureAlive, first.State())
	assert.Equal(t, spawn.CreatureRespawnDelay, first.RespawnDelay())

	require.NoError(t, m.SpawnEvent(1, 1, true, true, 0))
	assert.Equal(t, CreatureDespawned, first.State())
	assert.Equal(t, CreatureAlive, second.State())

	require.NoError(t, m.OpenDoorEvent(spawn.CategoryDoor, 0))
	door, _ := w.ObjectByID(10)
	assert.Equal(t, ObjectActive, door.State())
	m.Registry().RemoveDoors()
	assert.Equal(t, ObjectRemoved, door.State())
}

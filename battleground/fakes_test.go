package battleground

import (
	"errors"
	"strings"
	"testing"
	"time"

	"agones-battleground/spawn"
)

type fakeParticipant struct {
	id         string
	team       Team
	pos        Position
	alive      bool
	gm         bool
	leader     bool
	inRange    bool
	redemption bool

	resurrected int
	stopped     int
	blocked     int
	rallied     int
	detached    []bool
}

func (p *fakeParticipant) ID() string                     { return p.id }
func (p *fakeParticipant) Name() string                   { return strings.ToUpper(p.id) }
func (p *fakeParticipant) Locale() string                 { return "en" }
func (p *fakeParticipant) Team() Team                     { return p.team }
func (p *fakeParticipant) Position() Position             { return p.pos }
func (p *fakeParticipant) Alive() bool                    { return p.alive }
func (p *fakeParticipant) GameMaster() bool               { return p.gm }
func (p *fakeParticipant) LeadsOriginalGroup() bool       { return p.leader }
func (p *fakeParticipant) InRewardRange(Participant) bool { return p.inRange }
func (p *fakeParticipant) InRedemption() bool             { return p.redemption }
func (p *fakeParticipant) ClearRedemption()               { p.redemption = false }
func (p *fakeParticipant) Resurrect() {
	p.alive = true
	p.resurrected++
}
func (p *fakeParticipant) StopCombat()                   { p.stopped++ }
func (p *fakeParticipant) BlockMovement()                { p.blocked++ }
func (p *fakeParticipant) ReturnToRallyPoint()           { p.rallied++ }
func (p *fakeParticipant) DetachFromMatch(teleport bool) { p.detached = append(p.detached, teleport) }

type fakeDirectory map[string]*fakeParticipant

func (d fakeDirectory) Lookup(id string) (Participant, bool) {
	p, ok := d[id]
	if !ok {
		return nil, false
	}
	return p, true
}

type fakeGateway struct {
	sent map[string][]Message
}

func (g *fakeGateway) Send(p Participant, msg Message) {
	g.sent[p.ID()] = append(g.sent[p.ID()], msg)
}

func (g *fakeGateway) ofKind(id string, kind MessageKind) []Message {
	var out []Message
	for _, msg := range g.sent[id] {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (g *fakeGateway) texts(id, prefix string) int {
	n := 0
	for _, msg := range g.ofKind(id, KindChat) {
		if strings.HasPrefix(msg.Text, prefix) {
			n++
		}
	}
	return n
}

type fakeRaid struct {
	team     Team
	leader   string
	members  []string
	attached int
	released bool
}

func (r *fakeRaid) IsMember(id string) bool {
	for _, m := range r.members {
		if m == id {
			return true
		}
	}
	return false
}
func (r *fakeRaid) Attach(Participant) { r.attached++ }
func (r *fakeRaid) Add(p Participant)  { r.members = append(r.members, p.ID()) }
func (r *fakeRaid) Promote(id string)  { r.leader = id }
func (r *fakeRaid) Release()           { r.released = true }
func (r *fakeRaid) Remove(id string) int {
	for i, m := range r.members {
		if m == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	return len(r.members)
}

type fakeRaids struct {
	created []*fakeRaid
}

func (f *fakeRaids) NewRaid(team Team, leader Participant) Raid {
	r := &fakeRaid{team: team, leader: leader.ID(), members: []string{leader.ID()}}
	f.created = append(f.created, r)
	return r
}

type fakeLedger struct {
	reject  bool
	granted uint32
}

func (l *fakeLedger) Grant(_ Participant, amount uint32) bool {
	if l.reject {
		return false
	}
	l.granted += amount
	return true
}

type fakeRewards map[uint32]RewardDef

func (r fakeRewards) Lookup(id uint32) (RewardDef, bool) {
	def, ok := r[id]
	return def, ok
}

type fakeGrantor struct {
	applied map[string][]uint32
}

func (g *fakeGrantor) Apply(p Participant, def RewardDef) {
	g.applied[p.ID()] = append(g.applied[p.ID()], def.ID)
}

type fakeLog struct {
	records []LogRecord
}

func (l *fakeLog) Record(rec LogRecord) error {
	l.records = append(l.records, rec)
	return nil
}

type fakeQueue struct {
	updates []TypeID
}

func (q *fakeQueue) ScheduleQueueUpdate(t TypeID) { q.updates = append(q.updates, t) }

type failingScript struct {
	DefaultScript
}

func (failingScript) Setup(*Match) error { return errors.New("gates missing") }

type door struct {
	open    bool
	removed bool
}

func (d *door) Show(time.Duration) {}
func (d *door) Hide(time.Duration) {}
func (d *door) Open() bool         { return d.open }
func (d *door) Rearm()             {}
func (d *door) Use(time.Duration)  { d.open = !d.open }
func (d *door) Remove()            { d.removed = true }

type doorWorld map[uint64]*door

func (w doorWorld) Creature(uint64) (spawn.Creature, bool) { return nil, false }
func (w doorWorld) Object(id uint64) (spawn.Object, bool) {
	d, ok := w[id]
	if !ok {
		return nil, false
	}
	return d, true
}

const (
	rewardAllianceWin  = 1
	rewardAllianceLose = 2
	rewardHordeWin     = 3
	rewardHordeLose    = 4
)

type harness struct {
	m       *Match
	dir     fakeDirectory
	gw      *fakeGateway
	raids   *fakeRaids
	ledger  *fakeLedger
	grantor *fakeGrantor
	log     *fakeLog
	queue   *fakeQueue
	slots   *FreeSlotRegistry
}

type harnessOption func(*Template, *Settings, *Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		dir:     fakeDirectory{},
		gw:      &fakeGateway{sent: map[string][]Message{}},
		raids:   &fakeRaids{},
		ledger:  &fakeLedger{},
		grantor: &fakeGrantor{applied: map[string][]uint32{}},
		log:     &fakeLog{},
		queue:   &fakeQueue{},
		slots:   NewFreeSlotRegistry(),
	}
	tpl := Template{
		TypeID:        2,
		Name:          "Warsong Gulch",
		MinPerTeam:    2,
		MaxPerTeam:    10,
		AllianceStart: Position{X: 1500, Y: 1500},
		HordeStart:    Position{X: 900, Y: 1400},
		Rewards: RewardTable{
			AllianceWin:  rewardAllianceWin,
			AllianceLose: rewardAllianceLose,
			HordeWin:     rewardHordeWin,
			HordeLose:    rewardHordeLose,
		},
	}
	settings := DefaultSettings()
	settings.Testing = true
	deps := Deps{
		Directory: h.dir,
		Gateway:   h.gw,
		Ledger:    h.ledger,
		Rewards: fakeRewards{
			rewardAllianceWin:  {ID: rewardAllianceWin, BonusHonor: 60},
			rewardAllianceLose: {ID: rewardAllianceLose, BonusHonor: 60},
			rewardHordeWin:     {ID: rewardHordeWin, BonusHonor: 60},
			rewardHordeLose:    {ID: rewardHordeLose, BonusHonor: 60},
		},
		Grantor:   h.grantor,
		Raids:     h.raids,
		Log:       h.log,
		Queue:     h.queue,
		FreeSlots: h.slots,
	}
	for _, opt := range opts {
		opt(&tpl, &settings, &deps)
	}
	h.m = New(7, tpl, settings, deps)
	return h
}

func (h *harness) participant(id string, team Team) *fakeParticipant {
	start, _ := h.m.Template().StartPosition(team)
	p := &fakeParticipant{id: id, team: team, alive: true, pos: start}
	h.dir[id] = p
	return p
}

func (h *harness) join(id string, team Team) *fakeParticipant {
	p := h.participant(id, team)
	h.m.Join(p)
	return p
}

// startMatch starts the match with the given team sizes and ticks it into
// IN_PROGRESS.
func (h *harness) startMatch(t *testing.T, alliance, horde int) {
	t.Helper()
	h.m.Start()
	for i := 0; i < alliance; i++ {
		h.join("a"+string(rune('0'+i)), TeamAlliance)
	}
	for i := 0; i < horde; i++ {
		h.join("h"+string(rune('0'+i)), TeamHorde)
	}
	for i := 0; i < 200 && h.m.Status() == StatusWaitJoin; i++ {
		h.m.Tick(1000)
	}
	if h.m.Status() != StatusInProgress {
		t.Fatalf("match did not start: status=%s", h.m.Status())
	}
}

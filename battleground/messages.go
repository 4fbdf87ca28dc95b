package battleground

// TextID identifies a localized text in the locale catalog.
type TextID int32

// Texts the match emits on its own.
const (
	TextPrematureFinishMinutes TextID = 1
	TextPrematureFinishSeconds TextID = 2
	TextStartTwoMinutes        TextID = 3
	TextStartOneMinute         TextID = 4
	TextStartHalfMinute        TextID = 5
	TextHasBegun               TextID = 6
	TextAllianceWins           TextID = 7
	TextHordeWins              TextID = 8
)

// MessageKind tags the payload carried by a Message.
type MessageKind string

const (
	KindChat       MessageKind = "chat"
	KindNarration  MessageKind = "narration"
	KindSound      MessageKind = "sound"
	KindStatus     MessageKind = "status"
	KindScoreboard MessageKind = "scoreboard"
	KindJoined     MessageKind = "participant-joined"
	KindLeft       MessageKind = "participant-left"
)

// Message is a single outbound notification, already localized for its
// recipient.
type Message struct {
	Kind        MessageKind   `json:"kind"`
	Text        string        `json:"text,omitempty"`
	Speaker     string        `json:"speaker,omitempty"`
	Sound       uint32        `json:"sound,omitempty"`
	Participant string        `json:"participant,omitempty"`
	Status      *StatusUpdate `json:"status,omitempty"`
	Scoreboard  *FinalScore   `json:"scoreboard,omitempty"`
}

// StatusUpdate describes the match state as seen by one participant. A cleared
// update (Instance 0) tells the client it left the match.
type StatusUpdate struct {
	Instance uint32 `json:"instance"`
	Type     TypeID `json:"type"`
	Status   Status `json:"status"`
	Team     Team   `json:"team"`
	Elapsed  int64  `json:"elapsedMs"`
	Winner   Team   `json:"winner"`
}

// MessageSource builds the message for one recipient locale.
type MessageSource interface {
	Message(l Localizer, locale string) Message
}

// Broadcast is a plain localized announcement.
type Broadcast struct {
	ID TextID
}

func (b Broadcast) Message(l Localizer, locale string) Message {
	return Message{Kind: KindChat, Text: l.Text(locale, b.ID)}
}

// Formatted is a localized announcement with positional arguments.
type Formatted struct {
	ID   TextID
	Args []any
}

func (f Formatted) Message(l Localizer, locale string) Message {
	return Message{Kind: KindChat, Text: l.Text(locale, f.ID, f.Args...)}
}

// Narrated is spoken by a named in-world speaker.
type Narrated struct {
	Speaker string
	ID      TextID
	Args    []any
}

func (n Narrated) Message(l Localizer, locale string) Message {
	return Message{Kind: KindNarration, Speaker: n.Speaker, Text: l.Text(locale, n.ID, n.Args...)}
}

// Static sends the same message to everyone.
type Static Message

func (s Static) Message(Localizer, string) Message {
	return Message(s)
}

// Sound plays a sound id.
type Sound uint32

func (s Sound) Message(Localizer, string) Message {
	return Message{Kind: KindSound, Sound: uint32(s)}
}

// FinalScore is the end-of-match scoreboard, built once per match.
type FinalScore struct {
	Instance uint32     `json:"instance"`
	Type     TypeID     `json:"type"`
	Winner   Team       `json:"winner"`
	Elapsed  int64      `json:"elapsedMs"`
	Rows     []ScoreRow `json:"rows"`
}

// ScoreRow is one participant's line in the final scoreboard.
type ScoreRow struct {
	Participant string `json:"participant"`
	Team        Team   `json:"team"`
	Score
}

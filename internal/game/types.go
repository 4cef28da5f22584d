package game

import "time"

// Card is an index into the session's deck. Call cards and response cards
// occupy two disjoint identifier spaces.
type Card int

type PlayerID string

type Status int

const (
	StatusWaiting Status = iota
	StatusResponding
	StatusPicking
	StatusFinished
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusResponding:
		return "responding"
	case StatusPicking:
		return "picking"
	case StatusFinished:
		return "finished"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type Player struct {
	Username string
	Points   int
	Status   Status
	Hand     []Card
}

// State is the single source of truth for one session. It is only mutated
// through Apply, one event at a time, under the store's session lock.
type State struct {
	Players          map[PlayerID]*Player
	Tokens           map[PlayerID]string
	RoundNumber      int
	Call             *Card
	Responses        map[PlayerID][]Card
	Reveal           []PlayerID
	LastWinner       PlayerID
	Connected        []PlayerID
	Host             PlayerID
	LastRoundStarted time.Time
	Over             bool
}

// DeckState holds the remaining draw piles. Piles are never replenished
// mid-session; a short deck is a declared resource limit.
type DeckState struct {
	Calls     []Card
	Responses []Card
}

// DeckInfo describes a fetched deck: card counts, how many blanks each call
// expects, and the URL it came from.
type DeckInfo struct {
	Calls       int
	Responses   int
	CallLengths []int
	URL         string
}

// Definition is the immutable per-session configuration, set once at
// session creation.
type Definition struct {
	HandSize int
	Deck     DeckInfo
}

const DefaultHandSize = 7

func NewState(first PlayerID) *State {
	return &State{
		Players:   make(map[PlayerID]*Player),
		Tokens:    make(map[PlayerID]string),
		Responses: make(map[PlayerID][]Card),
		Connected: []PlayerID{first},
		Host:      first,
	}
}

func NewDeck(info DeckInfo) *DeckState {
	deck := &DeckState{
		Calls:     make([]Card, info.Calls),
		Responses: make([]Card, info.Responses),
	}
	for i := range deck.Calls {
		deck.Calls[i] = Card(i)
	}
	for i := range deck.Responses {
		deck.Responses[i] = Card(i)
	}
	return deck
}

func NewDefinition(info DeckInfo, handSize int) Definition {
	if handSize <= 0 {
		handSize = DefaultHandSize
	}
	return Definition{HandSize: handSize, Deck: info}
}

// Connect registers an id on the connected list. Idempotent.
func Connect(st *State, id PlayerID) {
	for _, existing := range st.Connected {
		if existing == id {
			return
		}
	}
	st.Connected = append(st.Connected, id)
}

package server

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"card-czar/internal/game"

	"github.com/google/uuid"
)

var (
	errSessionNotFound = errors.New("session not found")
	errSessionExists   = errors.New("session already exists")
	errInvalidToken    = errors.New("invalid token")
)

// session bundles the three keyed records of one game: state, deck, and the
// immutable definition, plus watch bookkeeping.
type session struct {
	id       string
	state    *game.State
	deck     *game.DeckState
	def      game.Definition
	dbID     uint
	version  uint64
	watchers map[uint64]chan struct{}
	nextSub  uint64
}

// Store owns every live session. All mutations run through Update under the
// store lock, which serializes read-modify-write cycles per session and keeps
// concurrent submits from racing each other.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	rng      *rand.Rand
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*session),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create registers an empty session ahead of the first connection.
func (s *Store) Create(id string, def game.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return errSessionExists
	}
	s.sessions[id] = newSession(id, def)
	return nil
}

func newSession(id string, def game.Definition) *session {
	return &session{
		id:       id,
		def:      def,
		watchers: make(map[uint64]chan struct{}),
	}
}

func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Attach resolves a connection's credentials and registers it on the session,
// creating the session (and its draw piles) on first contact. A claimed token
// must resolve against the session's token map; an absent token mints a fresh
// identity. When all previous occupants already left, the game state is
// rebuilt around the new arrival.
func (s *Store) Attach(id, claimedToken string, def game.Definition) (game.PlayerID, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		if def.HandSize == 0 {
			// Caller saw the session exist but it was destroyed in between;
			// there is no definition to build it from.
			return "", "", errSessionNotFound
		}
		sess = newSession(id, def)
		s.sessions[id] = sess
	}

	var playerID game.PlayerID
	token := claimedToken
	if claimedToken != "" {
		if sess.state == nil {
			return "", "", errInvalidToken
		}
		found := false
		for pid, t := range sess.state.Tokens {
			if t == claimedToken {
				playerID = pid
				found = true
				break
			}
		}
		if !found {
			return "", "", errInvalidToken
		}
	} else {
		playerID = game.PlayerID(uuid.NewString())
		token = uuid.NewString()
	}

	if sess.state == nil || len(sess.state.Connected) == 0 {
		sess.state = game.NewState(playerID)
	} else {
		game.Connect(sess.state, playerID)
	}
	if sess.deck == nil {
		sess.deck = game.NewDeck(sess.def.Deck)
	}
	sess.state.Tokens[playerID] = token
	s.bumpLocked(sess)
	return playerID, token, nil
}

// Update runs fn on the session under the store lock, then bumps the version
// and wakes watchers. fn returning an error leaves the version untouched.
func (s *Store) Update(id string, fn func(*session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errSessionNotFound
	}
	if err := fn(sess); err != nil {
		return err
	}
	s.bumpLocked(sess)
	return nil
}

// Detach disconnects a player and destroys the session once nobody is left.
// It reports whether the session was destroyed.
func (s *Store) Detach(id string, playerID game.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.state == nil {
		return false
	}
	_, _ = game.Apply(game.Leave{}, sess.state, sess.deck, sess.def, playerID, s.now(), s.rng)
	if len(sess.state.Connected) == 0 {
		s.destroyLocked(sess)
		return true
	}
	s.bumpLocked(sess)
	return false
}

// Subscribe returns a coalescing change-notification channel for a session.
// The channel closes when the session is destroyed.
func (s *Store) Subscribe(id string) (<-chan struct{}, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, false
	}
	key := sess.nextSub
	sess.nextSub++
	ch := make(chan struct{}, 1)
	sess.watchers[key] = ch
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.sessions[id]; ok && current == sess {
			delete(sess.watchers, key)
		}
	}
	return ch, cancel, true
}

// View projects the session's state for one player.
func (s *Store) View(id string, playerID game.PlayerID) (game.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.state == nil {
		return game.View{}, false
	}
	return game.Project(sess.state, playerID), true
}

// Read runs fn on the session under the lock without bumping the version.
func (s *Store) Read(id string, fn func(*session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	return true
}

func (s *Store) bumpLocked(sess *session) {
	sess.version++
	for _, ch := range sess.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) destroyLocked(sess *session) {
	for _, ch := range sess.watchers {
		close(ch)
	}
	sess.watchers = make(map[uint64]chan struct{})
	delete(s.sessions, sess.id)
}

package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"card-czar/internal/deck"
	"card-czar/internal/game"

	"github.com/gorilla/websocket"
)

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.NotFound(w, r)
		return
	}

	// The first connection to a session carries the deck reference; fetching
	// happens before the upgrade so a bad deck fails as a plain HTTP error.
	var def game.Definition
	if !s.store.Has(sessionID) {
		deckURL := r.URL.Query().Get("deck")
		if deckURL == "" {
			deckURL = s.cfg.DefaultDeckURL
		}
		if deckURL == "" {
			writeError(w, http.StatusBadRequest, "no deck url")
			return
		}
		_, info, err := deck.Fetch(r.Context(), deckURL)
		if err != nil {
			log.Printf("deck fetch failed game_id=%s url=%s error=%v", sessionID, deckURL, err)
			writeError(w, http.StatusBadRequest, "invalid deck")
			return
		}
		handSize := s.cfg.HandSize
		if raw := r.URL.Query().Get("handSize"); raw != "" {
			if value, err := strconv.Atoi(raw); err == nil && value > 0 {
				handSize = value
			}
		}
		def = game.NewDefinition(info, handSize)
	}

	playerID, token, err := s.store.Attach(sessionID, r.URL.Query().Get("token"), def)
	if err != nil {
		if errors.Is(err, errInvalidToken) {
			writeError(w, http.StatusForbidden, "invalid token")
			return
		}
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.persistGame(sessionID)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.disconnect(sessionID, playerID)
		return
	}
	log.Printf("ws connected game_id=%s player_id=%s remote=%s", sessionID, playerID, r.RemoteAddr)

	out := make(chan serverMessage, 16)
	done := make(chan struct{})
	var closeOnce sync.Once
	finish := func() { closeOnce.Do(func() { close(done) }) }

	send := func(msg serverMessage) {
		select {
		case out <- msg:
		case <-done:
		}
	}

	go func() {
		for {
			select {
			case msg := <-out:
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					_ = conn.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	watch, cancel, ok := s.store.Subscribe(sessionID)
	if !ok {
		finish()
		_ = conn.Close()
		return
	}
	go func() {
		for range watch {
			if view, ok := s.store.View(sessionID, playerID); ok {
				send(stateMessage(view))
			}
		}
		// Watch closed: the session was destroyed while we were attached.
		_ = conn.Close()
	}()

	var deckURL string
	s.store.Read(sessionID, func(sess *session) { deckURL = sess.def.Deck.URL })
	send(initMessage(playerID, token, deckURL))
	if view, ok := s.store.View(sessionID, playerID); ok {
		send(stateMessage(view))
	}

	defer func() {
		finish()
		cancel()
		_ = conn.Close()
		s.disconnect(sessionID, playerID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws disconnected game_id=%s player_id=%s error=%v", sessionID, playerID, err)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Protocol error: malformed frames end the connection.
			log.Printf("ws protocol error game_id=%s player_id=%s error=%v", sessionID, playerID, err)
			return
		}
		ev, ok := toEvent(msg)
		if !ok {
			continue
		}
		if err := s.applyEvent(sessionID, playerID, ev); err != nil {
			switch {
			case errors.Is(err, game.ErrNotHost):
				send(errorMessage(err.Error()))
			case errors.Is(err, game.ErrCorruptState):
				log.Printf("state corrupted game_id=%s player_id=%s error=%v", sessionID, playerID, err)
				return
			case errors.Is(err, errSessionNotFound):
				return
			default:
				log.Printf("event failed game_id=%s player_id=%s error=%v", sessionID, playerID, err)
			}
		}
	}
}

// disconnect applies the leave transition and tears the session down when the
// last occupant is gone. It must always run, even over partial state.
func (s *Server) disconnect(sessionID string, playerID game.PlayerID) {
	if destroyed := s.store.Detach(sessionID, playerID); destroyed {
		log.Printf("game deleted game_id=%s reason=empty", sessionID)
	}
}

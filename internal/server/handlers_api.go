package server

import (
	"log"
	"net/http"

	"card-czar/internal/deck"
	"card-czar/internal/game"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

type createGameRequest struct {
	DeckURL  string `json:"deck_url"`
	HandSize int    `json:"hand_size"`
}

// handleCreateGame pre-creates a session so its id can be shared before the
// first player connects. The deck is fetched and validated up front.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	if !s.enforceRateLimit(w, r, "create") {
		return
	}
	var req createGameRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	deckURL := req.DeckURL
	if deckURL == "" {
		deckURL = s.cfg.DefaultDeckURL
	}
	if deckURL == "" {
		writeError(w, http.StatusBadRequest, "deck_url is required")
		return
	}
	_, info, err := deck.Fetch(r.Context(), deckURL)
	if err != nil {
		log.Printf("deck fetch failed url=%s error=%v", deckURL, err)
		writeError(w, http.StatusBadRequest, "invalid deck")
		return
	}
	handSize := req.HandSize
	if handSize <= 0 {
		handSize = s.cfg.HandSize
	}

	sessionID := uuid.NewString()
	def := game.NewDefinition(info, handSize)
	if err := s.store.Create(sessionID, def); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}
	s.persistGame(sessionID)
	log.Printf("game created game_id=%s deck=%s calls=%d responses=%d", sessionID, deckURL, info.Calls, info.Responses)
	writeJSON(w, http.StatusCreated, map[string]any{
		"game_id":   sessionID,
		"deck_url":  deckURL,
		"hand_size": handSize,
		"calls":     info.Calls,
		"responses": info.Responses,
	})
}

// handleGetGame returns a public summary: no hands, no responses.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var summary map[string]any
	ok := s.store.Read(sessionID, func(sess *session) {
		summary = map[string]any{
			"game_id":   sess.id,
			"deck_url":  sess.def.Deck.URL,
			"hand_size": sess.def.HandSize,
		}
		if sess.state != nil {
			summary["round_number"] = sess.state.RoundNumber
			summary["players"] = len(sess.state.Players)
			summary["connected"] = len(sess.state.Connected)
			summary["game_over"] = sess.state.Over
		} else {
			summary["round_number"] = 0
			summary["players"] = 0
			summary["connected"] = 0
			summary["game_over"] = false
		}
	})
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleGameQR renders the websocket join link as a QR code.
func (s *Server) handleGameQR(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !s.store.Has(sessionID) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	png, err := qrcode.Encode(joinURL(r, sessionID), qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

package server

import (
	"log"
	"net/http"
	"time"

	"card-czar/internal/config"
	"card-czar/internal/game"

	"gorm.io/gorm"
)

type Server struct {
	store   *Store
	db      *gorm.DB
	cfg     config.Config
	sched   *scheduler
	limiter *rateLimiter
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	s := &Server{
		store:   NewStore(),
		db:      conn,
		cfg:     cfg,
		limiter: newRateLimiter(),
	}
	s.sched = newScheduler(time.Duration(cfg.RoundEndDelayMillis)*time.Millisecond, s.deliverAdvance)
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	mux.HandleFunc("GET /api/games/{id}/qr", s.handleGameQR)
	mux.HandleFunc("GET /ws/games/{id}", s.handleWebsocket)
	return mux
}

// applyDelta captures what one event changed, for the best-effort audit log.
type applyDelta struct {
	joinedUsername string
	joinedNew      bool
	roundStarted   bool
	roundNumber    int
	call           game.Card
	submitted      bool
	winner         game.PlayerID
	winnerPoints   int
	gameOver       bool
}

// applyEvent funnels every event, client or timer, through the engine under
// the session lock, then performs the requested side effects outside it.
func (s *Server) applyEvent(sessionID string, actor game.PlayerID, ev game.Event) error {
	var fx game.Effects
	var delta applyDelta
	err := s.store.Update(sessionID, func(sess *session) error {
		if sess.state == nil {
			return errSessionNotFound
		}
		prevRound := sess.state.RoundNumber
		prevWinner := sess.state.LastWinner
		prevOver := sess.state.Over
		prevResponses := len(sess.state.Responses)
		_, knownBefore := sess.state.Players[actor]

		var err error
		fx, err = game.Apply(ev, sess.state, sess.deck, sess.def, actor, s.store.now(), s.store.rng)
		if err != nil {
			return err
		}

		if join, ok := ev.(game.Join); ok && !knownBefore {
			delta.joinedNew = true
			delta.joinedUsername = join.Username
		}
		if sess.state.RoundNumber > prevRound && !sess.state.Over {
			delta.roundStarted = true
			delta.roundNumber = sess.state.RoundNumber
			if sess.state.Call != nil {
				delta.call = *sess.state.Call
			}
		}
		if _, ok := ev.(game.Submit); ok && len(sess.state.Responses) > prevResponses {
			delta.submitted = true
			delta.roundNumber = sess.state.RoundNumber
		}
		if prevWinner == "" && sess.state.LastWinner != "" {
			delta.winner = sess.state.LastWinner
			delta.roundNumber = prevRound
			if winner, ok := sess.state.Players[sess.state.LastWinner]; ok {
				delta.winnerPoints = winner.Points
			}
		}
		if !prevOver && sess.state.Over {
			delta.gameOver = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if fx.ScheduleAdvance {
		s.sched.Schedule(sessionID, fx.NotChangedSince)
		log.Printf("advance scheduled game_id=%s delay=%s", sessionID, s.sched.delay)
	}
	s.persistDelta(sessionID, actor, delta)
	return nil
}

// deliverAdvance is the scheduler's consumer: it re-enters the engine exactly
// like a client event. Staleness is decided inside the engine.
func (s *Server) deliverAdvance(sessionID string, notChangedSince time.Time) {
	log.Printf("advance dequeued game_id=%s", sessionID)
	if err := s.applyEvent(sessionID, "", game.Advance{NotChangedSince: notChangedSince}); err != nil {
		log.Printf("advance dropped game_id=%s error=%v", sessionID, err)
	}
}

func (s *Server) persistDelta(sessionID string, actor game.PlayerID, delta applyDelta) {
	if delta.joinedNew {
		s.persistPlayer(sessionID, actor, delta.joinedUsername)
	}
	if delta.roundStarted {
		s.persistRound(sessionID, delta.roundNumber, delta.call)
	}
	if delta.submitted {
		s.persistEvent(sessionID, "response_submitted", EventPayload{
			PlayerID:    string(actor),
			RoundNumber: delta.roundNumber,
		})
	}
	if delta.winner != "" {
		s.persistWinner(sessionID, delta.roundNumber, delta.winner, delta.winnerPoints)
	}
	if delta.gameOver {
		s.persistGameOver(sessionID)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

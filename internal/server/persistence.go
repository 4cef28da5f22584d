package server

import (
	"encoding/json"
	"errors"
	"log"

	"card-czar/internal/db"
	"card-czar/internal/game"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// The audit log is best-effort: persistence failures are logged and never
// block or corrupt the in-memory session.

func (s *Server) persistGame(sessionID string) {
	if s.db == nil {
		return
	}
	var def game.Definition
	var dbID uint
	if ok := s.store.Read(sessionID, func(sess *session) {
		def = sess.def
		dbID = sess.dbID
	}); !ok || dbID != 0 {
		return
	}
	record := db.Game{
		SessionID:     sessionID,
		DeckURL:       def.Deck.URL,
		HandSize:      def.HandSize,
		CallCount:     def.Deck.Calls,
		ResponseCount: def.Deck.Responses,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil && !isUniqueViolation(err) {
		log.Printf("persist game failed game_id=%s error=%v", sessionID, err)
		return
	}
	if record.ID == 0 {
		if err := s.db.Where("session_id = ?", sessionID).First(&record).Error; err != nil {
			log.Printf("persist game lookup failed game_id=%s error=%v", sessionID, err)
			return
		}
	}
	s.store.Read(sessionID, func(sess *session) { sess.dbID = record.ID })
	s.persistEvent(sessionID, "game_created", EventPayload{
		GameID:  sessionID,
		DeckURL: def.Deck.URL,
	})
}

func (s *Server) persistPlayer(sessionID string, playerID game.PlayerID, username string) {
	if s.db == nil {
		return
	}
	gameDBID := s.gameDBID(sessionID)
	if gameDBID == 0 {
		return
	}
	record := db.Player{
		GameID:    gameDBID,
		PlayerUID: string(playerID),
		Username:  username,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil && !isUniqueViolation(err) {
		log.Printf("persist player failed game_id=%s player_id=%s error=%v", sessionID, playerID, err)
		return
	}
	s.persistEvent(sessionID, "player_joined", EventPayload{
		PlayerID: string(playerID),
		Username: username,
	})
}

func (s *Server) persistRound(sessionID string, number int, call game.Card) {
	if s.db == nil {
		return
	}
	gameDBID := s.gameDBID(sessionID)
	if gameDBID == 0 {
		return
	}
	record := db.Round{
		GameID: gameDBID,
		Number: number,
		Call:   int(call),
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil && !isUniqueViolation(err) {
		log.Printf("persist round failed game_id=%s round=%d error=%v", sessionID, number, err)
		return
	}
	s.persistEvent(sessionID, "round_started", EventPayload{
		RoundNumber: number,
		Call:        int(call),
	})
}

func (s *Server) persistWinner(sessionID string, number int, winner game.PlayerID, points int) {
	if s.db == nil {
		return
	}
	gameDBID := s.gameDBID(sessionID)
	if gameDBID == 0 {
		return
	}
	if err := s.db.Model(&db.Round{}).
		Where("game_id = ? AND number = ?", gameDBID, number).
		Update("winner_uid", string(winner)).Error; err != nil {
		log.Printf("persist winner failed game_id=%s round=%d error=%v", sessionID, number, err)
	}
	if err := s.db.Model(&db.Player{}).
		Where("game_id = ? AND player_uid = ?", gameDBID, string(winner)).
		Update("points", points).Error; err != nil {
		log.Printf("persist points failed game_id=%s player_id=%s error=%v", sessionID, winner, err)
	}
	s.persistEvent(sessionID, "winner_picked", EventPayload{
		RoundNumber: number,
		WinnerID:    string(winner),
		Points:      points,
	})
}

func (s *Server) persistGameOver(sessionID string) {
	if s.db == nil {
		return
	}
	gameDBID := s.gameDBID(sessionID)
	if gameDBID == 0 {
		return
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", gameDBID).Update("over", true).Error; err != nil {
		log.Printf("persist game over failed game_id=%s error=%v", sessionID, err)
	}
	s.persistEvent(sessionID, "game_over", EventPayload{Reason: "deck exhausted"})
}

func (s *Server) persistEvent(sessionID, eventType string, payload EventPayload) {
	if s.db == nil {
		return
	}
	gameDBID := s.gameDBID(sessionID)
	if gameDBID == 0 {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	record := db.Event{
		GameID:  gameDBID,
		Type:    eventType,
		Payload: datatypes.JSON(body),
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("persist event failed game_id=%s type=%s error=%v", sessionID, eventType, err)
	}
}

func (s *Server) gameDBID(sessionID string) uint {
	var id uint
	s.store.Read(sessionID, func(sess *session) { id = sess.dbID })
	return id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

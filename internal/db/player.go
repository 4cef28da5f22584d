package db

import "time"

type Player struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_players_game_uid"`
	PlayerUID string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_uid"`
	Username  string    `gorm:"size:64;not null"`
	Points    int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

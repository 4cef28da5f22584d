package db

import "time"

type Game struct {
	ID            uint      `gorm:"primaryKey"`
	SessionID     string    `gorm:"size:64;uniqueIndex;not null"`
	DeckURL       string    `gorm:"size:512;not null"`
	HandSize      int       `gorm:"not null;default:7"`
	CallCount     int       `gorm:"not null"`
	ResponseCount int       `gorm:"not null"`
	Over          bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	Players       []Player
	Rounds        []Round
	Events        []Event
}

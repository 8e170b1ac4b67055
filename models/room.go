package models

import (
	"time"

	"gorm.io/datatypes"
)

// Room is one bingo session keyed by its shareable code.
type Room struct {
	Code             string         `gorm:"primaryKey;size:12" json:"roomId"`
	HostConnectionID string         `gorm:"size:64;index" json:"-"`
	Status           string         `gorm:"size:16;not null;default:waiting" json:"status"`
	CurrentNumber    int            `gorm:"not null;default:0" json:"currentNumber"`
	WinningPattern   datatypes.JSON `gorm:"not null" json:"winningPattern"` // []int cell indices
	Players          []Player       `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE" json:"players"`
	Draws            []Draw         `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE" json:"-"`
	Winners          []Winner       `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	ExpiresAt        time.Time      `gorm:"not null;index" json:"expiresAt"`
}

// Draw is one called number; ID order is draw order.
type Draw struct {
	ID       uint   `gorm:"primaryKey"`
	RoomCode string `gorm:"size:12;not null;uniqueIndex:idx_draws_room_number"`
	Number   int    `gorm:"not null;uniqueIndex:idx_draws_room_number"`
}

// Winner is an accepted bingo claim; ID order is rank order.
type Winner struct {
	ID        uint   `gorm:"primaryKey"`
	RoomCode  string `gorm:"size:12;not null;uniqueIndex:idx_winners_room_name"`
	Name      string `gorm:"not null;uniqueIndex:idx_winners_room_name"`
	CreatedAt time.Time
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type Player struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	RoomCode     string         `gorm:"size:12;not null;index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	ConnectionID string         `gorm:"size:64;index" json:"-"`
	IsHost       bool           `gorm:"not null;default:false" json:"isHost"`
	Card         datatypes.JSON `json:"cardMatrix"` // 5x5 grid, null for the host
	Marks        []Mark         `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Mark is one validated cell on a player's card.
type Mark struct {
	PlayerID  string `gorm:"primaryKey;size:36"`
	CellIndex int    `gorm:"primaryKey;autoIncrement:false"`
}

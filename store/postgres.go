package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bellapacxx/live-bingo/game"
	"github.com/bellapacxx/live-bingo/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres stores rooms through gorm. Multi-step updates take a row lock on
// the room so they serialize against each other.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// locked runs fn in a transaction holding SELECT ... FOR UPDATE on the room.
func (p *Postgres) locked(ctx context.Context, code string, fn func(tx *gorm.DB, room *models.Room) error) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return game.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		return fn(tx, &room)
	})
}

func (p *Postgres) Create(ctx context.Context, room *game.Room) error {
	row, err := roomToRow(room)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return game.ErrRoomExists
		}
		for i := range row.Players {
			if err := tx.Create(&row.Players[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Get(ctx context.Context, code string) (*game.Room, error) {
	var row models.Room
	err := p.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("Players.Marks").
		Preload("Draws", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Winners", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("code = ?", code).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToRoom(&row)
}

func (p *Postgres) Delete(ctx context.Context, code string) error {
	res := p.db.WithContext(ctx).Where("code = ?", code).Delete(&models.Room{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return game.ErrRoomNotFound
	}
	return nil
}

func (p *Postgres) AddPlayer(ctx context.Context, code string, pl game.Player, when game.Status) error {
	return p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		if game.Status(room.Status) != when {
			return ErrConflict
		}
		var taken int64
		if err := tx.Model(&models.Player{}).
			Where("room_code = ? AND LOWER(name) = LOWER(?)", code, pl.Name).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return game.ErrNameTaken
		}
		row, err := playerToRow(code, pl)
		if err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func (p *Postgres) RemovePlayer(ctx context.Context, code, playerID string) error {
	res := p.db.WithContext(ctx).
		Where("id = ? AND room_code = ?", playerID, code).
		Delete(&models.Player{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return game.ErrPlayerNotFound
	}
	return nil
}

func (p *Postgres) BindConnection(ctx context.Context, code, playerID, connID string) error {
	return p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		var pl models.Player
		err := tx.Where("id = ? AND room_code = ?", playerID, code).First(&pl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return game.ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&pl).Update("connection_id", connID).Error; err != nil {
			return err
		}
		if pl.IsHost {
			return tx.Model(room).Update("host_connection_id", connID).Error
		}
		return nil
	})
}

func (p *Postgres) SetStatus(ctx context.Context, code string, from []game.Status, to game.Status) error {
	res := p.db.WithContext(ctx).Model(&models.Room{}).
		Where("code = ? AND status IN ?", code, statusStrings(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return p.conflictOrMissing(ctx, code)
	}
	return nil
}

func (p *Postgres) AssignMissingCards(ctx context.Context, code string, cards map[string]game.Card) error {
	return p.locked(ctx, code, func(tx *gorm.DB, _ *models.Room) error {
		for id, card := range cards {
			data, err := json.Marshal(card)
			if err != nil {
				return err
			}
			res := tx.Model(&models.Player{}).
				Where("id = ? AND room_code = ? AND is_host = ? AND card IS NULL", id, code, false).
				Update("card", datatypes.JSON(data))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := resetMarks(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) AppendDraw(ctx context.Context, code string, n int) ([]int, error) {
	var history []int
	err := p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		if game.Status(room.Status) != game.StatusPlaying {
			return ErrConflict
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Draw{RoomCode: code, Number: n})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if err := tx.Model(room).Update("current_number", n).Error; err != nil {
			return err
		}
		return tx.Model(&models.Draw{}).
			Where("room_code = ?", code).
			Order("id").
			Pluck("number", &history).Error
	})
	return history, err
}

func (p *Postgres) MarkCell(ctx context.Context, code, playerID string, cell, number int) (game.CellSet, bool, error) {
	var (
		marked game.CellSet
		added  bool
	)
	err := p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		if game.Status(room.Status) != game.StatusPlaying {
			return ErrConflict
		}
		var pl models.Player
		err := tx.Where("id = ? AND room_code = ?", playerID, code).First(&pl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return game.ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		card, err := decodeCard(pl)
		if err != nil {
			return err
		}
		var drawn bool
		if err := tx.Raw("SELECT EXISTS (SELECT 1 FROM draws WHERE room_code = ? AND number = ?)", code, number).
			Scan(&drawn).Error; err != nil {
			return err
		}
		if err := checkMark(card, cell, number, drawn); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Mark{PlayerID: playerID, CellIndex: cell})
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0

		var cells []int
		if err := tx.Model(&models.Mark{}).
			Where("player_id = ?", playerID).
			Pluck("cell_index", &cells).Error; err != nil {
			return err
		}
		marked = game.NewCellSet(cells...)
		return nil
	})
	return marked, added, err
}

func (p *Postgres) SetCard(ctx context.Context, code, playerID string, card game.Card, when game.Status) error {
	data, err := json.Marshal(card)
	if err != nil {
		return err
	}
	return p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		if game.Status(room.Status) != when {
			return ErrConflict
		}
		res := tx.Model(&models.Player{}).
			Where("id = ? AND room_code = ?", playerID, code).
			Update("card", datatypes.JSON(data))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return game.ErrPlayerNotFound
		}
		return resetMarks(tx, playerID)
	})
}

func (p *Postgres) SetPattern(ctx context.Context, code string, pattern game.CellSet, when game.Status) error {
	data, err := json.Marshal(pattern)
	if err != nil {
		return err
	}
	res := p.db.WithContext(ctx).Model(&models.Room{}).
		Where("code = ? AND status = ?", code, string(when)).
		Update("winning_pattern", datatypes.JSON(data))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return p.conflictOrMissing(ctx, code)
	}
	return nil
}

func (p *Postgres) AddWinner(ctx context.Context, code, name string) ([]string, int, bool, error) {
	var (
		winners []string
		rank    int
		added   bool
	)
	err := p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		if err := winnerNames(tx, code, &winners); err != nil {
			return err
		}
		for i, w := range winners {
			if w == name {
				rank = i + 1
				return nil
			}
		}
		if game.Status(room.Status) != game.StatusPlaying {
			return ErrConflict
		}
		if err := tx.Create(&models.Winner{RoomCode: code, Name: name}).Error; err != nil {
			return err
		}
		winners = append(winners, name)
		rank = len(winners)
		added = true
		return nil
	})
	return winners, rank, added, err
}

func (p *Postgres) ResetRound(ctx context.Context, code string, cards map[string]game.Card) error {
	return p.locked(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		status := game.Status(room.Status)
		if status != game.StatusPlaying && status != game.StatusEnded {
			return ErrConflict
		}
		if err := tx.Model(room).Updates(map[string]any{
			"status":         string(game.StatusWaiting),
			"current_number": 0,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_code = ?", code).Delete(&models.Draw{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_code = ?", code).Delete(&models.Winner{}).Error; err != nil {
			return err
		}

		var players []models.Player
		if err := tx.Where("room_code = ?", code).Find(&players).Error; err != nil {
			return err
		}
		for _, pl := range players {
			if card, ok := cards[pl.ID]; ok && !pl.IsHost {
				data, err := json.Marshal(card)
				if err != nil {
					return err
				}
				if err := tx.Model(&pl).Update("card", datatypes.JSON(data)).Error; err != nil {
					return err
				}
			}
			if err := resetMarks(tx, pl.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	var codes []string
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Room{}).
			Where("expires_at <= ?", now).
			Pluck("code", &codes).Error; err != nil {
			return err
		}
		if len(codes) == 0 {
			return nil
		}
		return tx.Where("code IN ?", codes).Delete(&models.Room{}).Error
	})
	return codes, err
}

// conflictOrMissing tells a failed guard apart from a missing room.
func (p *Postgres) conflictOrMissing(ctx context.Context, code string) error {
	var count int64
	if err := p.db.WithContext(ctx).Model(&models.Room{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return game.ErrRoomNotFound
	}
	return ErrConflict
}

// resetMarks leaves only the free center marked.
func resetMarks(tx *gorm.DB, playerID string) error {
	if err := tx.Where("player_id = ?", playerID).Delete(&models.Mark{}).Error; err != nil {
		return err
	}
	return tx.Create(&models.Mark{PlayerID: playerID, CellIndex: game.FreeCell}).Error
}

func winnerNames(tx *gorm.DB, code string, out *[]string) error {
	return tx.Model(&models.Winner{}).
		Where("room_code = ?", code).
		Order("id").
		Pluck("name", out).Error
}

func statusStrings(set []game.Status) []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}

func roomToRow(r *game.Room) (models.Room, error) {
	pattern, err := json.Marshal(r.Pattern)
	if err != nil {
		return models.Room{}, err
	}
	row := models.Room{
		Code:             r.ID,
		HostConnectionID: r.HostConnectionID,
		Status:           string(r.Status),
		CurrentNumber:    r.CurrentNumber,
		WinningPattern:   datatypes.JSON(pattern),
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
	}
	for i, pl := range r.Players {
		pr, err := playerToRow(r.ID, pl)
		if err != nil {
			return models.Room{}, err
		}
		// Keep join order stable even when rows share a timestamp.
		pr.CreatedAt = r.CreatedAt.Add(time.Duration(i) * time.Microsecond)
		row.Players = append(row.Players, pr)
	}
	return row, nil
}

func playerToRow(code string, pl game.Player) (models.Player, error) {
	row := models.Player{
		ID:           pl.ID,
		RoomCode:     code,
		Name:         pl.Name,
		ConnectionID: pl.ConnectionID,
		IsHost:       pl.IsHost,
	}
	if pl.Card != nil {
		data, err := json.Marshal(pl.Card)
		if err != nil {
			return models.Player{}, fmt.Errorf("encode card for %s: %w", pl.ID, err)
		}
		row.Card = datatypes.JSON(data)
	}
	for _, cell := range pl.Marked.Indices() {
		row.Marks = append(row.Marks, models.Mark{PlayerID: pl.ID, CellIndex: cell})
	}
	return row, nil
}

func rowToRoom(row *models.Room) (*game.Room, error) {
	var pattern game.CellSet
	if len(row.WinningPattern) > 0 {
		if err := json.Unmarshal(row.WinningPattern, &pattern); err != nil {
			return nil, fmt.Errorf("decode pattern for room %s: %w", row.Code, err)
		}
	}
	r := &game.Room{
		ID:               row.Code,
		HostConnectionID: row.HostConnectionID,
		Status:           game.Status(row.Status),
		CurrentNumber:    row.CurrentNumber,
		Pattern:          pattern,
		CreatedAt:        row.CreatedAt,
		ExpiresAt:        row.ExpiresAt,
	}
	for _, d := range row.Draws {
		r.NumbersDrawn = append(r.NumbersDrawn, d.Number)
	}
	for _, w := range row.Winners {
		r.Winners = append(r.Winners, w.Name)
	}
	for _, pr := range row.Players {
		pl := game.Player{
			ID:           pr.ID,
			Name:         pr.Name,
			ConnectionID: pr.ConnectionID,
			IsHost:       pr.IsHost,
		}
		card, err := decodeCard(pr)
		if err != nil {
			return nil, err
		}
		pl.Card = card
		for _, m := range pr.Marks {
			pl.Marked = pl.Marked.Add(m.CellIndex)
		}
		r.Players = append(r.Players, pl)
	}
	return r, nil
}

// decodeCard returns nil for the host, who holds no card.
func decodeCard(pr models.Player) (*game.Card, error) {
	if len(pr.Card) == 0 || string(pr.Card) == "null" {
		return nil, nil
	}
	var card game.Card
	if err := json.Unmarshal(pr.Card, &card); err != nil {
		return nil, fmt.Errorf("decode card for %s: %w", pr.ID, err)
	}
	return &card, nil
}

// Package storage is the persistence collaborator: finished games go into
// Postgres and the leaderboard aggregate reads them back. The live core
// never depends on a write succeeding.
package storage

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dropfour/connect_four/game"
)

// GameRecord is one finished match.
type GameRecord struct {
	ID                string `gorm:"primaryKey"`
	PlayerX           string
	PlayerXIdentity   string
	PlayerO           string
	PlayerOIdentity   string
	WinnerIdentity    string
	WinnerDisplayName string
	Status            string
	StartedAt         time.Time
	FinishedAt        time.Time
}

func (GameRecord) TableName() string {
	return "games"
}

type LeaderboardRow struct {
	Player string `json:"player"`
	Wins   int64  `json:"wins"`
}

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveFinishedGame(ctx context.Context, m *game.Match) error {
	rec := newGameRecord(m)
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Leaderboard ranks players by wins. Draws and forfeits-to-nobody carry an
// empty winner and are excluded.
func (s *Store) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := s.db.WithContext(ctx).
		Model(&GameRecord{}).
		Select("winner_display_name AS player, COUNT(*) AS wins").
		Where("winner_display_name <> ''").
		Group("winner_display_name").
		Order("wins DESC").
		Scan(&rows).Error
	return rows, err
}

func newGameRecord(m *game.Match) GameRecord {
	return GameRecord{
		ID:                m.ID,
		PlayerX:           m.Players[game.MarkX].DisplayName,
		PlayerXIdentity:   m.Players[game.MarkX].Identity,
		PlayerO:           m.Players[game.MarkO].DisplayName,
		PlayerOIdentity:   m.Players[game.MarkO].Identity,
		WinnerIdentity:    m.Winner.Identity,
		WinnerDisplayName: m.Winner.DisplayName,
		Status:            string(m.Status),
		StartedAt:         m.StartedAt,
		FinishedAt:        time.Now(),
	}
}

// Package store persists champion reference data and confirmed match results
// in Postgres through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/result"
)

var ErrMatchNotFound = fmt.Errorf("%w: match", drafterr.ErrNotFound)

type ChampionRecord struct {
	Key       string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	LocalName string
	ImageURL  string
	UpdatedAt time.Time
}

func (ChampionRecord) TableName() string { return "champions" }

// Match is one confirmed draft, keyed by the result's match id. Result keeps
// the full projection as jsonb; picks and bans are also stored as rows for
// querying. Several matches may share a session code.
type Match struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   string       `gorm:"index;not null" json:"session_id"`
	Adjusted    bool         `gorm:"not null;default:false" json:"adjusted"`
	ConfirmedAt time.Time    `gorm:"not null" json:"confirmed_at"`
	Result      result.Final `gorm:"serializer:json;type:jsonb" json:"result"`
	Picks       []MatchPick  `gorm:"constraint:OnDelete:CASCADE" json:"picks,omitempty"`
	Bans        []MatchBan   `gorm:"constraint:OnDelete:CASCADE" json:"bans,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

type MatchPick struct {
	ID       uint        `gorm:"primaryKey" json:"-"`
	MatchID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"-"`
	Team     engine.Team `gorm:"not null" json:"team"`
	Role     engine.Role `gorm:"not null" json:"role"`
	Champion string      `gorm:"not null" json:"champion"`
	PlayerID string      `json:"player_id,omitempty"`
}

type MatchBan struct {
	ID       uint        `gorm:"primaryKey" json:"-"`
	MatchID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"-"`
	Team     engine.Team `gorm:"not null" json:"team"`
	Ordinal  int         `gorm:"not null" json:"ordinal"`
	Champion string      `gorm:"not null" json:"champion"`
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to Postgres (pgx underneath) and migrates the schema.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&ChampionRecord{}, &Match{}, &MatchPick{}, &MatchBan{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SeedChampions upserts champions by key.
func (s *Store) SeedChampions(ctx context.Context, champs []catalog.Champion) error {
	if len(champs) == 0 {
		return nil
	}
	rows := make([]ChampionRecord, 0, len(champs))
	for _, c := range catalog.NewMemory(champs...).All() {
		rows = append(rows, ChampionRecord{Key: c.Key, Name: c.Name, LocalName: c.LocalName, ImageURL: c.ImageURL})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "local_name", "image_url", "updated_at"}),
	}).CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("seed champions: %w", err)
	}
	return nil
}

// Catalog loads every champion into an in-memory catalog.
func (s *Store) Catalog(ctx context.Context) (*catalog.Memory, error) {
	var rows []ChampionRecord
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load champions: %w", err)
	}
	champs := make([]catalog.Champion, 0, len(rows))
	for _, r := range rows {
		champs = append(champs, catalog.Champion{Key: r.Key, Name: r.Name, LocalName: r.LocalName, ImageURL: r.ImageURL})
	}
	return catalog.NewMemory(champs...), nil
}

// Record archives a confirmed result. Recording the same match twice keeps
// the first row.
func (s *Store) Record(ctx context.Context, final result.Final) error {
	m, err := matchFromResult(final)
	if err != nil {
		return err
	}
	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
			Omit("Picks", "Bans").Create(&m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		if len(m.Picks) > 0 {
			if err := tx.Create(&m.Picks).Error; err != nil {
				return err
			}
		}
		if len(m.Bans) > 0 {
			if err := tx.Create(&m.Bans).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record match %s: %w", final.SessionID, err)
	}
	if !inserted {
		s.log.Warn("match already archived", zap.String("session_id", final.SessionID), zap.String("match_id", m.ID.String()))
		return nil
	}
	s.log.Info("match archived", zap.String("session_id", final.SessionID), zap.String("match_id", m.ID.String()))
	return nil
}

// MatchBySession returns the latest match played under a session code.
func (s *Store) MatchBySession(ctx context.Context, sessionID string) (Match, error) {
	var m Match
	err := s.db.WithContext(ctx).Preload("Picks").Preload("Bans").
		Where("session_id = ?", sessionID).Order("confirmed_at desc").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Match{}, fmt.Errorf("%w: %s", ErrMatchNotFound, sessionID)
	}
	if err != nil {
		return Match{}, err
	}
	return m, nil
}

func (s *Store) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	var ms []Match
	err := s.db.WithContext(ctx).Order("confirmed_at desc").Limit(limit).Find(&ms).Error
	return ms, err
}

// MatchesByPlayer lists the matches a participant was seated in, newest first.
func (s *Store) MatchesByPlayer(ctx context.Context, playerID string, limit int) ([]Match, error) {
	db := s.db.WithContext(ctx)
	played := db.Model(&MatchPick{}).Select("match_id").Where("player_id = ?", playerID)
	var ms []Match
	err := db.Preload("Picks").Preload("Bans").
		Where("id IN (?)", played).
		Order("confirmed_at desc").Limit(limit).Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("matches for %s: %w", playerID, err)
	}
	return ms, nil
}

func matchFromResult(final result.Final) (Match, error) {
	if !final.Confirmed || final.ConfirmedAt == nil {
		return Match{}, fmt.Errorf("%w: result is not confirmed", drafterr.ErrInvalidPhase)
	}
	id, err := uuid.Parse(final.MatchID)
	if err != nil {
		return Match{}, fmt.Errorf("%w: match id %q", drafterr.ErrInvalidInput, final.MatchID)
	}
	m := Match{
		ID:          id,
		SessionID:   final.SessionID,
		Adjusted:    final.Adjusted,
		ConfirmedAt: *final.ConfirmedAt,
		Result:      final.Clone(),
	}
	for _, team := range engine.Teams {
		for _, role := range engine.Roles {
			champ, ok := final.Picks[team][role]
			if !ok {
				continue
			}
			m.Picks = append(m.Picks, MatchPick{
				MatchID:  id,
				Team:     team,
				Role:     role,
				Champion: champ,
				PlayerID: final.Lineup[team][role].ID,
			})
		}
		for i, champ := range final.Bans[team] {
			m.Bans = append(m.Bans, MatchBan{MatchID: id, Team: team, Ordinal: i + 1, Champion: champ})
		}
	}
	return m, nil
}

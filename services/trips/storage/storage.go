package storage

import (
	"context"
	"errors"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/database"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

var ErrNotFound = errors.New("not found")

type Storage interface {
	Migrate(ctx context.Context) error

	// CreateTrip inserts trip unless a trip with the same client temp id
	// exists. It returns the stored trip and whether this call created it.
	CreateTrip(ctx context.Context, trip *entity.Trip) (*entity.Trip, bool, error)
	GetTrip(ctx context.Context, id string) (*entity.Trip, error)
	GetTripByClientTempID(ctx context.Context, clientTempID string) (*entity.Trip, error)
	GetTripByAccessCode(ctx context.Context, code string) (*entity.Trip, error)
	AccessCodeExists(ctx context.Context, code string) (bool, error)
	UpdateTripProgress(ctx context.Context, trip *entity.Trip) error
	// FinalizeTrip confirms the trip and removes its draft in one transaction.
	FinalizeTrip(ctx context.Context, id, editorID string, at time.Time) error

	UpsertDraft(ctx context.Context, draft *entity.Draft) error
	GetDraftByTrip(ctx context.Context, tripID string) (*entity.Draft, error)
	ListDrafts(ctx context.Context, creatorID string, now time.Time) ([]*entity.Draft, error)
	DeleteDraft(ctx context.Context, tripID string) error
	ExtendDraft(ctx context.Context, tripID string, expiresAt time.Time) error
}

type storage struct {
	drv     *entsql.Driver
	dialect string
}

func New(drv *entsql.Driver) Storage {
	return &storage{
		drv:     drv,
		dialect: drv.Dialect(),
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		client_temp_id TEXT UNIQUE,
		access_code TEXT UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		trip_type TEXT NOT NULL,
		status TEXT NOT NULL,
		creation_status TEXT NOT NULL,
		is_draft INTEGER NOT NULL DEFAULT 1,
		current_step INTEGER NOT NULL DEFAULT 1,
		completion_percentage INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		step_data TEXT NOT NULL DEFAULT '{}',
		creator_id TEXT NOT NULL,
		last_edited_by TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trip_drafts (
		id TEXT PRIMARY KEY,
		trip_id TEXT NOT NULL UNIQUE,
		creator_id TEXT NOT NULL,
		trip_type TEXT NOT NULL,
		current_step INTEGER NOT NULL DEFAULT 1,
		completion_percentage INTEGER NOT NULL DEFAULT 0,
		draft_data TEXT NOT NULL DEFAULT '{}',
		access_token TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trip_drafts_creator_idx ON trip_drafts (creator_id, updated_at)`,
}

func (s *storage) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, s.drv, schema)
}

func (s *storage) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

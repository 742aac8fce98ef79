package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/database"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
)

var ErrNotFound = errors.New("not found")

type Storage interface {
	Migrate(ctx context.Context) error

	ListNotes(ctx context.Context, activityID string) ([]*entity.Note, error)
	GetNote(ctx context.Context, id string) (*entity.Note, error)
	// GetOwnNote returns the live note of user for the activity and privacy.
	GetOwnNote(ctx context.Context, activityID, userID string, private bool) (*entity.Note, error)
	// CreateNote inserts note unless the user already has one for the same
	// activity and privacy. It returns the stored note and whether this call
	// created it.
	CreateNote(ctx context.Context, note *entity.Note) (*entity.Note, bool, error)
	// UpdateNote replaces the content and records the previous content in
	// the history table in one transaction.
	UpdateNote(ctx context.Context, note *entity.Note, previous json.RawMessage, editedBy, historyID string) error
	DeleteNote(ctx context.Context, id, userID string) error
	ListHistory(ctx context.Context, noteID string) ([]*entity.HistoryEntry, error)
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

const (
	notesTable   = "activity_notes"
	historyTable = "note_history"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS activity_notes (
		id TEXT PRIMARY KEY,
		activity_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		company_access TEXT NOT NULL DEFAULT '',
		is_private INTEGER NOT NULL DEFAULT 0,
		created_by_name TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE (activity_id, user_id, is_private)
	)`,
	`CREATE TABLE IF NOT EXISTS note_history (
		id TEXT PRIMARY KEY,
		note_id TEXT NOT NULL,
		previous_content TEXT NOT NULL,
		edited_by TEXT NOT NULL,
		edited_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS note_history_note_idx ON note_history (note_id, edited_at)`,
}

var noteColumns = []string{
	"id", "activity_id", "user_id", "content", "company_access", "is_private",
	"created_by_name", "created_at", "updated_at",
}

type noteRow struct {
	ID            string `sql:"id"`
	ActivityID    string `sql:"activity_id"`
	UserID        string `sql:"user_id"`
	Content       string `sql:"content"`
	CompanyAccess string `sql:"company_access"`
	IsPrivate     int64  `sql:"is_private"`
	CreatedByName string `sql:"created_by_name"`
	CreatedAt     int64  `sql:"created_at"`
	UpdatedAt     int64  `sql:"updated_at"`
}

func (r *noteRow) entity() *entity.Note {
	n := &entity.Note{
		ID:            r.ID,
		ActivityID:    r.ActivityID,
		UserID:        r.UserID,
		Content:       json.RawMessage(r.Content),
		IsPrivate:     r.IsPrivate != 0,
		CreatedByName: r.CreatedByName,
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:     time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.CompanyAccess != "" {
		n.CompanyAccess = json.RawMessage(r.CompanyAccess)
	}
	return n
}

type historyRow struct {
	ID              string `sql:"id"`
	NoteID          string `sql:"note_id"`
	PreviousContent string `sql:"previous_content"`
	EditedBy        string `sql:"edited_by"`
	EditedAt        int64  `sql:"edited_at"`
}

func (s *storage) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *storage) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, s.drv, schema)
}

func privacy(private bool) int {
	if private {
		return 1
	}
	return 0
}

func (s *storage) selectNotes(ctx context.Context, where *entsql.Predicate) ([]*entity.Note, error) {
	q, args := s.builder().Select(noteColumns...).
		From(entsql.Table(notesTable)).
		Where(where).
		OrderBy(entsql.Desc("created_at")).
		Query()

	var rows []noteRow
	if err := database.Query(ctx, s.drv, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}

	notes := make([]*entity.Note, 0, len(rows))
	for i := range rows {
		notes = append(notes, rows[i].entity())
	}
	return notes, nil
}

func (s *storage) ListNotes(ctx context.Context, activityID string) ([]*entity.Note, error) {
	return s.selectNotes(ctx, entsql.EQ("activity_id", activityID))
}

func (s *storage) GetNote(ctx context.Context, id string) (*entity.Note, error) {
	notes, err := s.selectNotes(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return notes[0], nil
}

func (s *storage) GetOwnNote(ctx context.Context, activityID, userID string, private bool) (*entity.Note, error) {
	notes, err := s.selectNotes(ctx, entsql.And(
		entsql.EQ("activity_id", activityID),
		entsql.EQ("user_id", userID),
		entsql.EQ("is_private", privacy(private)),
	))
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note for %s/%s: %w", activityID, userID, ErrNotFound)
	}
	return notes[0], nil
}

func (s *storage) CreateNote(ctx context.Context, note *entity.Note) (*entity.Note, bool, error) {
	q, args := s.builder().Insert(notesTable).
		Columns(noteColumns...).
		Values(
			note.ID, note.ActivityID, note.UserID, string(note.Content),
			string(note.CompanyAccess), privacy(note.IsPrivate), note.CreatedByName,
			note.CreatedAt.UnixMilli(), note.UpdatedAt.UnixMilli(),
		).
		OnConflict(
			entsql.ConflictColumns("activity_id", "user_id", "is_private"),
			entsql.DoNothing(),
		).
		Query()

	affected, err := database.Exec(ctx, s.drv, q, args)
	if err != nil {
		logger.ErrorErr(ctx, "failed to create note", err, "activity_id", note.ActivityID)
		return nil, false, fmt.Errorf("failed to create note: %w", err)
	}

	stored, err := s.GetOwnNote(ctx, note.ActivityID, note.UserID, note.IsPrivate)
	if err != nil {
		return nil, false, err
	}
	return stored, affected > 0 && stored.ID == note.ID, nil
}

func (s *storage) UpdateNote(ctx context.Context, note *entity.Note, previous json.RawMessage, editedBy, historyID string) error {
	return database.InTx(ctx, s.drv, func(tx dialect.Tx) error {
		q, args := s.builder().Update(notesTable).
			Set("content", string(note.Content)).
			Set("company_access", string(note.CompanyAccess)).
			Set("updated_at", note.UpdatedAt.UnixMilli()).
			Where(entsql.EQ("id", note.ID)).
			Query()

		affected, err := database.Exec(ctx, tx, q, args)
		if err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("note %s: %w", note.ID, ErrNotFound)
		}

		q, args = s.builder().Insert(historyTable).
			Columns("id", "note_id", "previous_content", "edited_by", "edited_at").
			Values(historyID, note.ID, string(previous), editedBy, note.UpdatedAt.UnixMilli()).
			Query()
		if _, err := database.Exec(ctx, tx, q, args); err != nil {
			return fmt.Errorf("failed to record note history: %w", err)
		}
		return nil
	})
}

func (s *storage) DeleteNote(ctx context.Context, id, userID string) error {
	q, args := s.builder().Delete(notesTable).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("user_id", userID),
		)).
		Query()

	affected, err := database.Exec(ctx, s.drv, q, args)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *storage) ListHistory(ctx context.Context, noteID string) ([]*entity.HistoryEntry, error) {
	q, args := s.builder().Select("id", "note_id", "previous_content", "edited_by", "edited_at").
		From(entsql.Table(historyTable)).
		Where(entsql.EQ("note_id", noteID)).
		OrderBy(entsql.Desc("edited_at")).
		Query()

	var rows []historyRow
	if err := database.Query(ctx, s.drv, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query note history: %w", err)
	}

	history := make([]*entity.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, &entity.HistoryEntry{
			ID:              r.ID,
			NoteID:          r.NoteID,
			PreviousContent: json.RawMessage(r.PreviousContent),
			EditedBy:        r.EditedBy,
			EditedAt:        time.UnixMilli(r.EditedAt).UTC(),
		})
	}
	return history, nil
}

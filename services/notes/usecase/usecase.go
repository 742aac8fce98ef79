package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/gen"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("note not found")
)

type Usecase interface {
	// List returns the notes of an activity visible to userID: every public
	// note plus the caller's own private ones, newest first.
	List(ctx context.Context, userID, activityID string) (*entity.ListNotesResponse, error)
	// Save upserts the caller's live note for the activity and privacy.
	Save(ctx context.Context, userID, userName, activityID string, req *entity.SaveNoteRequest) (*entity.Note, error)
	Delete(ctx context.Context, userID, noteID string) error
	History(ctx context.Context, userID, noteID string) (*entity.HistoryResponse, error)
}

type usecase struct {
	storage storage.Storage
	ids     gen.UUIDGenerator
	now     func() time.Time
}

func New(storage storage.Storage) Usecase {
	return &usecase{
		storage: storage,
		ids:     gen.UUID(),
		now:     time.Now,
	}
}

func (u *usecase) List(ctx context.Context, userID, activityID string) (*entity.ListNotesResponse, error) {
	if activityID == "" {
		return nil, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}

	notes, err := u.storage.ListNotes(ctx, activityID)
	if err != nil {
		return nil, err
	}

	visible := make([]*entity.Note, 0, len(notes))
	for _, n := range notes {
		if n.IsPrivate && n.UserID != userID {
			continue
		}
		visible = append(visible, n)
	}

	return &entity.ListNotesResponse{Notes: visible}, nil
}

func (u *usecase) Save(ctx context.Context, userID, userName, activityID string, req *entity.SaveNoteRequest) (*entity.Note, error) {
	if activityID == "" {
		return nil, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	now := u.now().UTC()
	name := req.CreatedByName
	if name == "" {
		name = userName
	}

	existing, err := u.storage.GetOwnNote(ctx, activityID, userID, req.IsPrivate)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		stored, created, err := u.storage.CreateNote(ctx, &entity.Note{
			ID:            u.ids.String(),
			ActivityID:    activityID,
			UserID:        userID,
			Content:       req.Content,
			CompanyAccess: req.CompanyAccess,
			IsPrivate:     req.IsPrivate,
			CreatedByName: name,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return nil, err
		}
		if created {
			logger.Info(ctx, "note created",
				slog.String("note_id", stored.ID),
				slog.String("activity_id", activityID))
			return stored, nil
		}
		existing = stored
	}

	previous := existing.Content
	existing.Content = req.Content
	if len(req.CompanyAccess) > 0 {
		existing.CompanyAccess = req.CompanyAccess
	}
	existing.UpdatedAt = now

	if err := u.storage.UpdateNote(ctx, existing, previous, userID, u.ids.String()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	logger.Debug(ctx, "note updated",
		slog.String("note_id", existing.ID),
		slog.String("activity_id", activityID))
	return existing, nil
}

func (u *usecase) Delete(ctx context.Context, userID, noteID string) error {
	if noteID == "" {
		return fmt.Errorf("%w: note id is required", ErrInvalidInput)
	}

	// only the owner's delete matches a row
	if err := u.storage.DeleteNote(ctx, noteID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	logger.Info(ctx, "note deleted", slog.String("note_id", noteID))
	return nil
}

func (u *usecase) History(ctx context.Context, userID, noteID string) (*entity.HistoryResponse, error) {
	note, err := u.storage.GetNote(ctx, noteID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if note.UserID != userID {
		return nil, ErrNotFound
	}

	history, err := u.storage.ListHistory(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return &entity.HistoryResponse{History: history}, nil
}

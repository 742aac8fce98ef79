package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/database"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

const draftsTable = "trip_drafts"

var draftColumns = []string{
	"id", "trip_id", "creator_id", "trip_type", "current_step", "completion_percentage",
	"draft_data", "access_token", "created_at", "updated_at", "expires_at",
}

type draftRow struct {
	ID                   string `sql:"id"`
	TripID               string `sql:"trip_id"`
	CreatorID            string `sql:"creator_id"`
	TripType             string `sql:"trip_type"`
	CurrentStep          int64  `sql:"current_step"`
	CompletionPercentage int64  `sql:"completion_percentage"`
	DraftData            string `sql:"draft_data"`
	AccessToken          string `sql:"access_token"`
	CreatedAt            int64  `sql:"created_at"`
	UpdatedAt            int64  `sql:"updated_at"`
	ExpiresAt            int64  `sql:"expires_at"`
}

func (r *draftRow) entity() *entity.Draft {
	return &entity.Draft{
		ID:                   r.ID,
		TripID:               r.TripID,
		CreatorID:            r.CreatorID,
		TripType:             entity.TripType(r.TripType),
		CurrentStep:          int(r.CurrentStep),
		CompletionPercentage: int(r.CompletionPercentage),
		DraftData:            json.RawMessage(r.DraftData),
		AccessToken:          r.AccessToken,
		CreatedAt:            fromMillis(r.CreatedAt),
		UpdatedAt:            fromMillis(r.UpdatedAt),
		ExpiresAt:            fromMillis(r.ExpiresAt),
	}
}

func (s *storage) UpsertDraft(ctx context.Context, d *entity.Draft) error {
	q, args := s.builder().Insert(draftsTable).
		Columns(draftColumns...).
		Values(
			d.ID, d.TripID, d.CreatorID, string(d.TripType), d.CurrentStep,
			d.CompletionPercentage, stepData(d.DraftData), d.AccessToken,
			millis(d.CreatedAt), millis(d.UpdatedAt), millis(d.ExpiresAt),
		).
		OnConflict(
			entsql.ConflictColumns("trip_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("current_step")
				u.SetExcluded("completion_percentage")
				u.SetExcluded("draft_data")
				u.SetExcluded("access_token")
				u.SetExcluded("updated_at")
				u.SetExcluded("expires_at")
			}),
		).
		Query()

	if _, err := database.Exec(ctx, s.drv, q, args); err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}
	return nil
}

func (s *storage) GetDraftByTrip(ctx context.Context, tripID string) (*entity.Draft, error) {
	q, args := s.builder().Select(draftColumns...).
		From(entsql.Table(draftsTable)).
		Where(entsql.EQ("trip_id", tripID)).
		Limit(1).
		Query()

	var rows []draftRow
	if err := database.Query(ctx, s.drv, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("draft for trip %s: %w", tripID, ErrNotFound)
	}
	return rows[0].entity(), nil
}

// ListDrafts returns the creator's unexpired drafts, most recently updated first.
func (s *storage) ListDrafts(ctx context.Context, creatorID string, now time.Time) ([]*entity.Draft, error) {
	q, args := s.builder().Select(draftColumns...).
		From(entsql.Table(draftsTable)).
		Where(entsql.And(
			entsql.EQ("creator_id", creatorID),
			entsql.GT("expires_at", millis(now)),
		)).
		OrderBy(entsql.Desc("updated_at")).
		Query()

	var rows []draftRow
	if err := database.Query(ctx, s.drv, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	drafts := make([]*entity.Draft, 0, len(rows))
	for i := range rows {
		drafts = append(drafts, rows[i].entity())
	}
	return drafts, nil
}

func (s *storage) DeleteDraft(ctx context.Context, tripID string) error {
	q, args := s.builder().Delete(draftsTable).
		Where(entsql.EQ("trip_id", tripID)).
		Query()

	affected, err := database.Exec(ctx, s.drv, q, args)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("draft for trip %s: %w", tripID, ErrNotFound)
	}
	return nil
}

func (s *storage) ExtendDraft(ctx context.Context, tripID string, expiresAt time.Time) error {
	q, args := s.builder().Update(draftsTable).
		Set("expires_at", millis(expiresAt)).
		Where(entsql.EQ("trip_id", tripID)).
		Query()

	if _, err := database.Exec(ctx, s.drv, q, args); err != nil {
		return fmt.Errorf("failed to extend draft: %w", err)
	}
	return nil
}

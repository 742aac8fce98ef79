package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/database"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

const tripsTable = "trips"

var tripColumns = []string{
	"id", "client_temp_id", "access_code", "title", "description", "trip_type",
	"status", "creation_status", "is_draft", "current_step", "completion_percentage",
	"start_date", "end_date", "step_data", "creator_id", "last_edited_by",
	"created_at", "updated_at",
}

type tripRow struct {
	ID                   string            `sql:"id"`
	ClientTempID         entsql.NullString `sql:"client_temp_id"`
	AccessCode           entsql.NullString `sql:"access_code"`
	Title                string            `sql:"title"`
	Description          string            `sql:"description"`
	TripType             string            `sql:"trip_type"`
	Status               string            `sql:"status"`
	CreationStatus       string            `sql:"creation_status"`
	IsDraft              int64             `sql:"is_draft"`
	CurrentStep          int64             `sql:"current_step"`
	CompletionPercentage int64             `sql:"completion_percentage"`
	StartDate            string            `sql:"start_date"`
	EndDate              string            `sql:"end_date"`
	StepData             string            `sql:"step_data"`
	CreatorID            string            `sql:"creator_id"`
	LastEditedBy         string            `sql:"last_edited_by"`
	CreatedAt            int64             `sql:"created_at"`
	UpdatedAt            int64             `sql:"updated_at"`
}

func (r *tripRow) entity() *entity.Trip {
	return &entity.Trip{
		ID:                   r.ID,
		ClientTempID:         r.ClientTempID.String,
		AccessCode:           r.AccessCode.String,
		Title:                r.Title,
		Description:          r.Description,
		TripType:             entity.TripType(r.TripType),
		Status:               r.Status,
		CreationStatus:       r.CreationStatus,
		IsDraft:              r.IsDraft != 0,
		CurrentStep:          int(r.CurrentStep),
		CompletionPercentage: int(r.CompletionPercentage),
		StartDate:            r.StartDate,
		EndDate:              r.EndDate,
		StepData:             json.RawMessage(r.StepData),
		CreatorID:            r.CreatorID,
		LastEditedBy:         r.LastEditedBy,
		CreatedAt:            fromMillis(r.CreatedAt),
		UpdatedAt:            fromMillis(r.UpdatedAt),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stepData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func (s *storage) CreateTrip(ctx context.Context, trip *entity.Trip) (*entity.Trip, bool, error) {
	log := logger.FromContext(ctx)

	q, args := s.builder().Insert(tripsTable).
		Columns(tripColumns...).
		Values(
			trip.ID, nullable(trip.ClientTempID), nullable(trip.AccessCode), trip.Title,
			trip.Description, string(trip.TripType), trip.Status, trip.CreationStatus,
			boolInt(trip.IsDraft), trip.CurrentStep, trip.CompletionPercentage,
			trip.StartDate, trip.EndDate, stepData(trip.StepData), trip.CreatorID,
			trip.LastEditedBy, millis(trip.CreatedAt), millis(trip.UpdatedAt),
		).
		OnConflict(entsql.ConflictColumns("client_temp_id"), entsql.DoNothing()).
		Query()

	affected, err := database.Exec(ctx, s.drv, q, args)
	if err != nil {
		log.Error("failed to create trip", "error", err)
		return nil, false, fmt.Errorf("failed to create trip: %w", err)
	}

	if trip.ClientTempID == "" {
		return trip, true, nil
	}

	stored, err := s.GetTripByClientTempID(ctx, trip.ClientTempID)
	if err != nil {
		return nil, false, err
	}
	created := affected > 0 && stored.ID == trip.ID
	log.Debug("created trip", "trip_id", stored.ID, "created", created)

	return stored, created, nil
}

func (s *storage) getTripBy(ctx context.Context, column, value string) (*entity.Trip, error) {
	q, args := s.builder().Select(tripColumns...).
		From(entsql.Table(tripsTable)).
		Where(entsql.EQ(column, value)).
		Limit(1).
		Query()

	var rows []tripRow
	if err := database.Query(ctx, s.drv, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to get trip by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("trip %s=%s: %w", column, value, ErrNotFound)
	}

	return rows[0].entity(), nil
}

func (s *storage) GetTrip(ctx context.Context, id string) (*entity.Trip, error) {
	return s.getTripBy(ctx, "id", id)
}

func (s *storage) GetTripByClientTempID(ctx context.Context, clientTempID string) (*entity.Trip, error) {
	return s.getTripBy(ctx, "client_temp_id", clientTempID)
}

func (s *storage) GetTripByAccessCode(ctx context.Context, code string) (*entity.Trip, error) {
	return s.getTripBy(ctx, "access_code", code)
}

func (s *storage) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	q, args := s.builder().Select("id").
		From(entsql.Table(tripsTable)).
		Where(entsql.EQ("access_code", code)).
		Limit(1).
		Query()

	var ids []string
	if err := database.Query(ctx, s.drv, q, args, &ids); err != nil {
		return false, fmt.Errorf("failed to check access code: %w", err)
	}
	return len(ids) > 0, nil
}

func (s *storage) UpdateTripProgress(ctx context.Context, trip *entity.Trip) error {
	q, args := s.builder().Update(tripsTable).
		Set("title", trip.Title).
		Set("description", trip.Description).
		Set("start_date", trip.StartDate).
		Set("end_date", trip.EndDate).
		Set("current_step", trip.CurrentStep).
		Set("completion_percentage", trip.CompletionPercentage).
		Set("step_data", stepData(trip.StepData)).
		Set("creation_status", trip.CreationStatus).
		Set("is_draft", boolInt(trip.IsDraft)).
		Set("last_edited_by", trip.LastEditedBy).
		Set("updated_at", millis(trip.UpdatedAt)).
		Where(entsql.EQ("id", trip.ID)).
		Query()

	affected, err := database.Exec(ctx, s.drv, q, args)
	if err != nil {
		logger.ErrorErr(ctx, "failed to update trip", err, "trip_id", trip.ID)
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("trip %s: %w", trip.ID, ErrNotFound)
	}
	return nil
}

func (s *storage) FinalizeTrip(ctx context.Context, id, editorID string, at time.Time) error {
	return database.InTx(ctx, s.drv, func(tx dialect.Tx) error {
		q, args := s.builder().Update(tripsTable).
			Set("status", entity.StatusConfirmed).
			Set("is_draft", 0).
			Set("current_step", 5).
			Set("completion_percentage", 100).
			Set("creation_status", entity.CreationPublished).
			Set("last_edited_by", editorID).
			Set("updated_at", millis(at)).
			Where(entsql.And(
				entsql.EQ("id", id),
				entsql.In("status", entity.StatusDraft, entity.StatusPlanning),
			)).
			Query()

		affected, err := database.Exec(ctx, tx, q, args)
		if err != nil {
			return fmt.Errorf("failed to finalize trip: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("trip %s: %w", id, ErrNotFound)
		}

		q, args = s.builder().Delete(draftsTable).
			Where(entsql.EQ("trip_id", id)).
			Query()
		if _, err := database.Exec(ctx, tx, q, args); err != nil {
			return fmt.Errorf("failed to delete draft: %w", err)
		}
		return nil
	})
}

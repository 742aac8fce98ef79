package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/gen"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("trip not found")
	ErrForbidden    = errors.New("permission denied")
	ErrConflict     = errors.New("conflict")
)

const (
	DefaultDraftTTL      = 30 * 24 * time.Hour
	maxAccessCodeRetries = 5
)

type Usecase interface {
	ProgressiveSave(ctx context.Context, userID string, req *entity.ProgressiveSaveRequest) (*entity.ProgressiveSaveResponse, error)
	Finalize(ctx context.Context, userID, tripID string) (*entity.FinalizeResponse, error)
	ListDrafts(ctx context.Context, userID string) (*entity.ListDraftsResponse, error)
	DeleteDraft(ctx context.Context, userID, tripID string) error
	Resume(ctx context.Context, userID, accessCode string) (*entity.ResumeResponse, error)
}

type Options struct {
	// PublicBaseURL prefixes continue links. Empty keeps them relative.
	PublicBaseURL string
	DraftTTL      time.Duration
	Now           func() time.Time
	IDs           gen.UUIDGenerator
	AccessCodes   func() string
}

type usecase struct {
	storage storage.Storage
	cache   storage.IdempotencyCache
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	ids     gen.UUIDGenerator
	codes   func() string
}

func New(storage storage.Storage, cache storage.IdempotencyCache, opts Options) Usecase {
	u := &usecase{
		storage: storage,
		cache:   cache,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		ttl:     opts.DraftTTL,
		now:     opts.Now,
		ids:     opts.IDs,
		codes:   opts.AccessCodes,
	}
	if u.ttl <= 0 {
		u.ttl = DefaultDraftTTL
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.ids == nil {
		u.ids = gen.UUID()
	}
	if u.codes == nil {
		u.codes = gen.AccessCode
	}
	return u
}

func CompletionPercentage(step int, tripType entity.TripType) int {
	return tripType.CompletionPercentage(step)
}

func (u *usecase) continueURL(code string) string {
	if code == "" {
		return ""
	}
	return u.baseURL + "/trips/continue/" + code
}

func (u *usecase) ProgressiveSave(ctx context.Context, userID string, req *entity.ProgressiveSaveRequest) (*entity.ProgressiveSaveResponse, error) {
	log := logger.FromContext(ctx).With(
		slog.String("user_id", userID),
		slog.String("trip_id", req.TripID),
		slog.Int("current_step", req.CurrentStep),
	)

	if !req.TripType.Valid() {
		return nil, fmt.Errorf("%w: unknown trip type %q", ErrInvalidInput, req.TripType)
	}
	if req.CurrentStep < 1 || req.CurrentStep > req.TripType.TotalSteps() {
		return nil, fmt.Errorf("%w: step %d out of range for %s", ErrInvalidInput, req.CurrentStep, req.TripType)
	}

	if req.TripID != "" {
		trip, err := u.getTrip(ctx, req.TripID)
		if err != nil {
			return nil, err
		}
		return u.update(ctx, userID, trip, req)
	}

	if req.ClientTempID == "" {
		return nil, fmt.Errorf("%w: clientTempId is required to create a trip", ErrInvalidInput)
	}

	existing, err := u.findByClientTempID(ctx, req.ClientTempID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("replayed create resolved to existing trip", slog.String("existing_trip_id", existing.ID))
		return u.update(ctx, userID, existing, req)
	}

	return u.create(ctx, userID, req)
}

// findByClientTempID consults the idempotency cache first and falls back to
// the unique index. A nil trip means the token has not produced a trip yet.
func (u *usecase) findByClientTempID(ctx context.Context, clientTempID string) (*entity.Trip, error) {
	tripID, ok, err := u.cache.Lookup(ctx, clientTempID)
	if err != nil {
		logger.Warn(ctx, "idempotency cache unavailable", slog.String("error", err.Error()))
	}
	if ok {
		trip, err := u.storage.GetTrip(ctx, tripID)
		if err == nil {
			return trip, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		_ = u.cache.Forget(ctx, clientTempID)
	}

	trip, err := u.storage.GetTripByClientTempID(ctx, clientTempID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.remember(ctx, clientTempID, trip.ID)
	return trip, nil
}

func (u *usecase) remember(ctx context.Context, clientTempID, tripID string) {
	if err := u.cache.Remember(ctx, clientTempID, tripID); err != nil {
		logger.Warn(ctx, "failed to cache client temp id", slog.String("error", err.Error()))
	}
}

func (u *usecase) create(ctx context.Context, userID string, req *entity.ProgressiveSaveRequest) (*entity.ProgressiveSaveResponse, error) {
	code, err := u.accessCode(ctx, req.AccessCode)
	if err != nil {
		return nil, err
	}

	now := u.now().UTC()
	fields := extractStepFields(req.StepData)
	if fields.Title == "" {
		fields.Title = fmt.Sprintf("New %s Trip", req.TripType)
	}
	today := now.Format(time.DateOnly)
	if fields.StartDate == "" {
		fields.StartDate = today
	}
	if fields.EndDate == "" {
		fields.EndDate = fields.StartDate
	}

	trip := &entity.Trip{
		ID:                   u.ids.String(),
		ClientTempID:         req.ClientTempID,
		AccessCode:           code,
		Title:                fields.Title,
		Description:          fields.Description,
		TripType:             req.TripType,
		Status:               entity.StatusDraft,
		CreationStatus:       entity.CreationStatus(req.CurrentStep),
		IsDraft:              true,
		CurrentStep:          req.CurrentStep,
		CompletionPercentage: CompletionPercentage(req.CurrentStep, req.TripType),
		StartDate:            fields.StartDate,
		EndDate:              fields.EndDate,
		StepData:             req.StepData,
		CreatorID:            userID,
		LastEditedBy:         userID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	stored, created, err := u.storage.CreateTrip(ctx, trip)
	if err != nil {
		return nil, err
	}
	u.remember(ctx, req.ClientTempID, stored.ID)

	if !created {
		// lost a race against a concurrent create with the same token
		return u.update(ctx, userID, stored, req)
	}

	u.saveDraft(ctx, stored)
	logger.Info(ctx, "trip created",
		slog.String("trip_id", stored.ID),
		slog.String("access_code", stored.AccessCode),
		slog.String("trip_type", string(stored.TripType)))

	return &entity.ProgressiveSaveResponse{
		Success:     true,
		TripID:      stored.ID,
		AccessCode:  stored.AccessCode,
		ContinueURL: u.continueURL(stored.AccessCode),
		SavedAt:     now,
		Message:     "Trip created successfully! You can continue editing later using the provided link.",
		Created:     true,
	}, nil
}

func (u *usecase) update(ctx context.Context, userID string, trip *entity.Trip, req *entity.ProgressiveSaveRequest) (*entity.ProgressiveSaveResponse, error) {
	if trip.CreatorID != userID {
		return nil, ErrForbidden
	}
	if trip.Finalized() {
		return nil, fmt.Errorf("%w: trip %s is already finalized", ErrConflict, trip.ID)
	}
	if trip.TripType != req.TripType {
		return nil, fmt.Errorf("%w: trip type is fixed to %s once saved", ErrConflict, trip.TripType)
	}

	now := u.now().UTC()
	fields := extractStepFields(req.StepData)
	if fields.Title != "" {
		trip.Title = fields.Title
	}
	if fields.Description != "" {
		trip.Description = fields.Description
	}
	if fields.StartDate != "" {
		trip.StartDate = fields.StartDate
	}
	if fields.EndDate != "" {
		trip.EndDate = fields.EndDate
	}

	trip.CurrentStep = req.CurrentStep
	trip.CompletionPercentage = CompletionPercentage(req.CurrentStep, req.TripType)
	trip.CreationStatus = entity.CreationStatus(req.CurrentStep)
	trip.IsDraft = req.CurrentStep < 4
	trip.StepData = req.StepData
	trip.LastEditedBy = userID
	trip.UpdatedAt = now

	if err := u.storage.UpdateTripProgress(ctx, trip); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.saveDraft(ctx, trip)

	logger.Debug(ctx, "trip progress saved",
		slog.String("trip_id", trip.ID),
		slog.Int("current_step", trip.CurrentStep))

	return &entity.ProgressiveSaveResponse{
		Success:     true,
		TripID:      trip.ID,
		AccessCode:  trip.AccessCode,
		ContinueURL: u.continueURL(trip.AccessCode),
		SavedAt:     now,
		Message:     fmt.Sprintf("Progress saved at step %d", trip.CurrentStep),
	}, nil
}

// saveDraft mirrors the trip into its draft row. Failures are logged and do
// not fail the save.
func (u *usecase) saveDraft(ctx context.Context, trip *entity.Trip) {
	now := u.now().UTC()
	token := ""
	if trip.AccessCode != "" {
		token = "trip_" + trip.AccessCode
	}

	err := u.storage.UpsertDraft(ctx, &entity.Draft{
		ID:                   u.ids.String(),
		TripID:               trip.ID,
		CreatorID:            trip.CreatorID,
		TripType:             trip.TripType,
		CurrentStep:          trip.CurrentStep,
		CompletionPercentage: trip.CompletionPercentage,
		DraftData:            trip.StepData,
		AccessToken:          token,
		CreatedAt:            now,
		UpdatedAt:            now,
		ExpiresAt:            now.Add(u.ttl),
	})
	if err != nil {
		logger.Warn(ctx, "failed to update trip draft",
			slog.String("trip_id", trip.ID),
			slog.String("error", err.Error()))
	}
}

// accessCode honours a well-formed, unused proposal and otherwise generates
// one, retrying on collisions before falling back to a TRIP_ code.
func (u *usecase) accessCode(ctx context.Context, proposed string) (string, error) {
	proposed = strings.ToUpper(strings.TrimSpace(proposed))
	if proposed != "" && gen.ValidAccessCode(proposed) {
		taken, err := u.storage.AccessCodeExists(ctx, proposed)
		if err != nil {
			return "", err
		}
		if !taken {
			return proposed, nil
		}
		logger.Debug(ctx, "proposed access code taken", slog.String("access_code", proposed))
	}

	for range maxAccessCodeRetries {
		code := u.codes()
		taken, err := u.storage.AccessCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	logger.Warn(ctx, "access code retries exhausted, using fallback")
	return gen.FallbackAccessCode(), nil
}

func (u *usecase) getTrip(ctx context.Context, id string) (*entity.Trip, error) {
	trip, err := u.storage.GetTrip(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return trip, err
}

func (u *usecase) Finalize(ctx context.Context, userID, tripID string) (*entity.FinalizeResponse, error) {
	trip, err := u.getTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.CreatorID != userID {
		return nil, ErrForbidden
	}
	if trip.Finalized() {
		return nil, fmt.Errorf("%w: trip %s is already finalized", ErrConflict, trip.ID)
	}

	if err := u.storage.FinalizeTrip(ctx, trip.ID, userID, u.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: trip %s is already finalized", ErrConflict, trip.ID)
		}
		return nil, err
	}

	if trip.ClientTempID != "" {
		if err := u.cache.Forget(ctx, trip.ClientTempID); err != nil {
			logger.Warn(ctx, "failed to drop client temp id", slog.String("error", err.Error()))
		}
	}

	logger.Info(ctx, "trip finalized", slog.String("trip_id", trip.ID))
	return &entity.FinalizeResponse{
		Success: true,
		TripID:  trip.ID,
		Message: "Trip finalized successfully",
	}, nil
}

func (u *usecase) ListDrafts(ctx context.Context, userID string) (*entity.ListDraftsResponse, error) {
	drafts, err := u.storage.ListDrafts(ctx, userID, u.now().UTC())
	if err != nil {
		return nil, err
	}

	resp := &entity.ListDraftsResponse{Drafts: make([]entity.DraftSummary, 0, len(drafts))}
	for _, d := range drafts {
		trip, err := u.storage.GetTrip(ctx, d.TripID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		resp.Drafts = append(resp.Drafts, entity.DraftSummary{
			TripID:               trip.ID,
			Title:                trip.Title,
			TripType:             d.TripType,
			AccessCode:           trip.AccessCode,
			CurrentStep:          d.CurrentStep,
			CompletionPercentage: d.CompletionPercentage,
			ContinueURL:          u.continueURL(trip.AccessCode),
			UpdatedAt:            d.UpdatedAt,
			ExpiresAt:            d.ExpiresAt,
		})
	}
	return resp, nil
}

func (u *usecase) DeleteDraft(ctx context.Context, userID, tripID string) error {
	draft, err := u.storage.GetDraftByTrip(ctx, tripID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("draft: %w", ErrNotFound)
	}
	if err != nil {
		return err
	}
	if draft.CreatorID != userID {
		return ErrForbidden
	}

	if err := u.storage.DeleteDraft(ctx, tripID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("draft: %w", ErrNotFound)
		}
		return err
	}
	return nil
}

func (u *usecase) Resume(ctx context.Context, userID, accessCode string) (*entity.ResumeResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(accessCode))
	if code == "" {
		return nil, fmt.Errorf("%w: access code is required", ErrInvalidInput)
	}

	trip, err := u.storage.GetTripByAccessCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	draft, err := u.storage.GetDraftByTrip(ctx, trip.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	canEdit := trip.CreatorID == userID && !trip.Finalized()
	permissions := []string{"view"}
	if trip.CreatorID == userID {
		permissions = []string{"view", "edit", "admin"}
	}

	step := trip.CurrentStep
	if step < 1 && draft != nil {
		step = draft.CurrentStep
	}
	if step < 1 {
		step = 1
	}

	if canEdit && draft != nil {
		if err := u.storage.ExtendDraft(ctx, trip.ID, u.now().UTC().Add(u.ttl)); err != nil {
			logger.Warn(ctx, "failed to extend draft", slog.String("trip_id", trip.ID), slog.String("error", err.Error()))
		}
	}

	message := "Trip loaded successfully - view only access"
	if canEdit {
		message = "Trip loaded successfully - you can continue editing"
	}

	return &entity.ResumeResponse{
		Success: true,
		Trip: entity.ResumeTrip{
			ID:                   trip.ID,
			Title:                trip.Title,
			Description:          trip.Description,
			TripType:             trip.TripType,
			Status:               trip.Status,
			AccessCode:           trip.AccessCode,
			StartDate:            trip.StartDate,
			EndDate:              trip.EndDate,
			CompletionPercentage: trip.CompletionPercentage,
			StepData:             trip.StepData,
		},
		CurrentStep: step,
		CanEdit:     canEdit,
		Permissions: permissions,
		ContinueURL: u.continueURL(trip.AccessCode),
		Message:     message,
	}, nil
}

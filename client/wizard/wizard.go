// Package wizard decides when the trip-creation form is persisted and keeps
// the server-assigned trip identity in sync with the local form.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/debounce"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/session"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/clock"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

const DefaultDebounceDelay = 3 * time.Second

type API interface {
	ProgressiveSave(ctx context.Context, req *entity.ProgressiveSaveRequest) (*entity.ProgressiveSaveResponse, error)
	FinalizeTrip(ctx context.Context, tripID string) (*entity.FinalizeResponse, error)
	ContinueTrip(ctx context.Context, accessCode string) (*entity.ResumeResponse, error)
}

type Options struct {
	API     API
	Session session.Store
	// SessionKey defaults to session.ClientTempIDKey.
	SessionKey    string
	Clock         clock.Clock
	Log           *slog.Logger
	DebounceDelay time.Duration
	// Context is used by saves the debounce timer starts.
	Context context.Context
	// OnStatus receives a copy of the save status after every change.
	OnStatus func(SaveStatus)
}

type snapshot struct {
	state    State
	revision uint64
	// force bypasses the acknowledged-revision check.
	force bool
}

type Controller struct {
	api      API
	store    session.Store
	key      string
	clock    clock.Clock
	log      *slog.Logger
	delay    time.Duration
	onStatus func(SaveStatus)
	saver    *debounce.Debouncer[snapshot]

	mu       sync.Mutex
	state    State
	status   SaveStatus
	phase    Phase
	readOnly bool
	// revision counts local edits; acked is the newest revision the server
	// acknowledged.
	revision uint64
	acked    uint64
}

func New(opts Options) *Controller {
	c := &Controller{
		api:      opts.API,
		store:    opts.Session,
		key:      opts.SessionKey,
		clock:    clock.OrReal(opts.Clock),
		log:      logger.OrDefault(opts.Log),
		delay:    opts.DebounceDelay,
		onStatus: opts.OnStatus,
		state:    State{CurrentStep: 1},
	}
	if c.store == nil {
		c.store = session.NewMemoryStore()
	}
	if c.key == "" {
		c.key = session.ClientTempIDKey
	}
	if c.delay <= 0 {
		c.delay = DefaultDebounceDelay
	}

	c.saver = debounce.New(c.save, debounce.Options{
		Clock:   c.clock,
		Log:     c.log,
		Context: opts.Context,
	})
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentStep
}

// Dirty reports whether the form has edits the server has not acknowledged.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision != c.acked
}

// CanProceed validates the current step.
func (c *Controller) CanProceed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Validate()
}

func (c *Controller) writableLocked() error {
	switch {
	case c.phase == PhaseFinalized:
		return ErrFinalized
	case c.readOnly:
		return ErrReadOnly
	}
	return nil
}

func (c *Controller) snapshotLocked() snapshot {
	return snapshot{state: c.state.clone(), revision: c.revision}
}

// SetTripType chooses the trip type. It is locked once a trip id exists.
func (c *Controller) SetTripType(t TripType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown trip type %q", t)
	}
	return c.Update(func(s *State) { s.TripType = t })
}

// Update applies an edit. Once the trip has an id the edit schedules a
// debounced save; before that, nothing is sent.
func (c *Controller) Update(edit func(*State)) error {
	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	next := c.state.clone()
	edit(&next)
	if next.TripType != c.state.TripType && c.phase != PhaseDraft {
		c.mu.Unlock()
		return ErrTripTypeLocked
	}
	next.CurrentStep = min(max(next.CurrentStep, 1), next.TotalSteps())

	c.state = next
	c.revision++
	snap := c.snapshotLocked()
	persisted := c.phase == PhasePersisted
	c.mu.Unlock()

	if persisted {
		c.saver.Schedule(snap, c.delay)
	}
	return nil
}

// Advance saves the current step and, once the server acknowledged it,
// moves to the next one. On failure the step and the form are unchanged.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.state.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	from := c.state.CurrentStep
	wasDraft := c.phase == PhaseDraft
	snap := c.snapshotLocked()
	snap.force = true
	c.mu.Unlock()

	if err := c.saver.Flush(ctx, snap); err != nil {
		return err
	}

	c.mu.Lock()
	edited := c.revision > snap.revision
	if c.state.CurrentStep == from && from < c.state.TotalSteps() {
		c.state.CurrentStep = from + 1
		c.revision++
	}
	c.log.Debug("wizard advanced", slog.Int("step", c.state.CurrentStep))
	missed, ok := c.missedEditsLocked(wasDraft && edited)
	c.mu.Unlock()

	if ok {
		c.saver.Schedule(missed, c.delay)
	}
	return nil
}

// missedEditsLocked returns the snapshot to autosave for edits made while
// the first create was in flight. Update left them unscheduled because the
// trip had no id yet.
func (c *Controller) missedEditsLocked(edited bool) (snapshot, bool) {
	if !edited || c.phase != PhasePersisted {
		return snapshot{}, false
	}
	c.log.Debug("scheduling edits made during the first save", slog.Uint64("revision", c.revision))
	return c.snapshotLocked(), true
}

// Back moves one step back without saving.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStep > 1 {
		c.state.CurrentStep--
		c.revision++
	}
}

// Save persists the form now. With Advance it is the only way the first
// create happens.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	wasDraft := c.phase == PhaseDraft
	snap := c.snapshotLocked()
	snap.force = true
	c.mu.Unlock()

	if err := c.saver.Flush(ctx, snap); err != nil {
		return err
	}

	c.mu.Lock()
	missed, ok := c.missedEditsLocked(wasDraft && c.revision > snap.revision)
	c.mu.Unlock()

	if ok {
		c.saver.Schedule(missed, c.delay)
	}
	return nil
}

// Close keeps meaningful progress with a final save and then resets the
// wizard. Trivial progress is discarded without a request. When the final
// save fails nothing is reset: Close can be retried, or Reset discards the
// trip.
func (c *Controller) Close(ctx context.Context) error {
	c.saver.Cancel()

	c.mu.Lock()
	keep := c.state.Meaningful() && c.writableLocked() == nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if keep {
		if err := c.saver.Flush(ctx, snap); err != nil {
			c.log.Warn("final save failed, keeping the wizard", slog.String("error", err.Error()))
			return err
		}
	} else {
		c.log.Debug("closing wizard without saving", slog.Int("step", snap.state.CurrentStep))
	}

	if err := session.ClearClientTempID(c.store, c.key); err != nil {
		c.log.Warn("failed to clear client temp id", slog.String("error", err.Error()))
	}
	c.reset()
	return nil
}

// Reset abandons the wizard: pending saves are dropped and the next trip
// gets a new idempotency token.
func (c *Controller) Reset() error {
	c.saver.Cancel()
	c.reset()
	return session.ClearClientTempID(c.store, c.key)
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.state = State{CurrentStep: 1}
	c.status = SaveStatus{}
	c.phase = PhaseDraft
	c.readOnly = false
	c.revision, c.acked = 0, 0
	status := c.status
	c.mu.Unlock()

	c.notify(status)
}

// Finalize commits the trip. Pending edits are saved first.
func (c *Controller) Finalize(ctx context.Context) (*entity.FinalizeResponse, error) {
	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	tripID := c.status.TripID
	if tripID == "" {
		c.mu.Unlock()
		return nil, ErrNoTrip
	}
	dirty := c.revision != c.acked
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.saver.Cancel()
	if dirty {
		if err := c.saver.Flush(ctx, snap); err != nil {
			return nil, err
		}
	}

	res, err := c.api.FinalizeTrip(ctx, tripID)
	if err != nil {
		c.setError(err)
		return nil, err
	}

	if err := session.ClearClientTempID(c.store, c.key); err != nil {
		c.log.Warn("failed to clear client temp id", slog.String("error", err.Error()))
	}
	c.saver.Cancel()

	c.mu.Lock()
	c.phase = PhaseFinalized
	c.state = State{CurrentStep: 1}
	c.status.Error = ""
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	c.log.Info("trip finalized", slog.String("trip_id", tripID))
	return res, nil
}

// Resume loads a trip from its access code into the wizard.
func (c *Controller) Resume(ctx context.Context, accessCode string) (*entity.ResumeResponse, error) {
	res, err := c.api.ContinueTrip(ctx, accessCode)
	if err != nil {
		return nil, err
	}

	state := State{}
	if len(res.Trip.StepData) > 0 {
		if err := json.Unmarshal(res.Trip.StepData, &state); err != nil {
			return nil, fmt.Errorf("failed to decode step data: %w", err)
		}
	}
	state.TripType = res.Trip.TripType
	if state.Title == "" {
		state.Title = res.Trip.Title
	}
	if state.Description == "" {
		state.Description = res.Trip.Description
	}
	if state.StartDate == "" {
		state.StartDate = res.Trip.StartDate
	}
	if state.EndDate == "" {
		state.EndDate = res.Trip.EndDate
	}
	state.AccessCode = res.Trip.AccessCode
	state.CurrentStep = min(max(res.CurrentStep, 1), state.TotalSteps())

	c.saver.Cancel()
	c.mu.Lock()
	c.state = state
	c.status = SaveStatus{
		TripID:      res.Trip.ID,
		AccessCode:  res.Trip.AccessCode,
		ContinueURL: res.ContinueURL,
	}
	c.phase = PhasePersisted
	if res.Trip.Status != entity.StatusDraft && res.Trip.Status != entity.StatusPlanning {
		c.phase = PhaseFinalized
	}
	c.readOnly = !res.CanEdit
	c.revision++
	c.acked = c.revision
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	return res, nil
}

// save is the debounced effect. Unless forced it skips snapshots the server
// already acknowledged for an existing trip.
func (c *Controller) save(ctx context.Context, snap snapshot) error {
	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !snap.force && c.status.TripID != "" && snap.revision <= c.acked {
		c.mu.Unlock()
		c.log.Debug("save skipped, nothing new", slog.Uint64("revision", snap.revision))
		return nil
	}
	tripID := c.status.TripID
	accessCode := c.status.AccessCode
	c.status.IsSaving = true
	status := c.status
	c.mu.Unlock()
	c.notify(status)

	req, err := c.request(snap.state, tripID, accessCode)
	if err != nil {
		c.setError(err)
		return err
	}

	res, err := c.api.ProgressiveSave(ctx, req)
	if err != nil {
		c.setError(err)
		return err
	}

	c.mu.Lock()
	if c.status.TripID != "" && c.status.TripID != res.TripID {
		c.log.Warn("server returned a different trip id",
			slog.String("had", c.status.TripID),
			slog.String("got", res.TripID))
	}
	c.status.IsSaving = false
	c.status.Error = ""
	c.status.TripID = res.TripID
	c.status.AccessCode = res.AccessCode
	c.status.ContinueURL = res.ContinueURL
	c.status.LastSaved = res.SavedAt
	if c.status.LastSaved.IsZero() {
		c.status.LastSaved = c.clock.Now()
	}
	c.state.AccessCode = res.AccessCode
	if c.phase == PhaseDraft {
		c.phase = PhasePersisted
	}
	c.acked = max(c.acked, snap.revision)
	status = c.status
	c.mu.Unlock()

	c.notify(status)
	c.log.Debug("trip saved",
		slog.String("trip_id", res.TripID),
		slog.Int("step", snap.state.CurrentStep))
	return nil
}

func (c *Controller) request(state State, tripID, accessCode string) (*entity.ProgressiveSaveRequest, error) {
	clientTempID, err := session.LoadOrCreateClientTempID(c.store, c.key)
	if err != nil {
		return nil, err
	}

	stepData, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step data: %w", err)
	}

	if accessCode == "" {
		accessCode = state.AccessCode
	}

	return &entity.ProgressiveSaveRequest{
		TripID:               tripID,
		CurrentStep:          state.CurrentStep,
		StepData:             stepData,
		CompletionPercentage: state.TripType.CompletionPercentage(state.CurrentStep),
		TripType:             state.TripType,
		AccessCode:           accessCode,
		ClientTempID:         clientTempID,
	}, nil
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.status.IsSaving = false
	c.status.Error = err.Error()
	status := c.status
	c.mu.Unlock()

	c.notify(status)
	if !errors.Is(err, context.Canceled) {
		c.log.Warn("trip save failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) notify(status SaveStatus) {
	if c.onStatus != nil {
		c.onStatus(status)
	}
}

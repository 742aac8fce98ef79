package wizard

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

type TripType = entity.TripType

const (
	TripTypeConvention = entity.TripTypeConvention
	TripTypeInLand     = entity.TripTypeInLand
	TripTypeNone       = entity.TripTypeNone
)

var (
	ErrValidationBlocked = errors.New("required fields are missing")
	ErrTripTypeLocked    = errors.New("trip type cannot change after the trip was saved")
	ErrNoTrip            = errors.New("trip has not been saved yet")
	ErrFinalized         = errors.New("trip is finalized")
	ErrReadOnly          = errors.New("trip is view only")
)

// Phase is where the wizard stands relative to the server record.
type Phase int

const (
	// PhaseDraft has no trip id; auto-save is inert.
	PhaseDraft Phase = iota
	// PhasePersisted has a trip id; every save is an update.
	PhasePersisted
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseDraft:
		return "draft"
	case PhasePersisted:
		return "persisted"
	case PhaseFinalized:
		return "finalized"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ItineraryDay struct {
	Date       string   `json:"date"`
	Activities []string `json:"activities,omitempty"`
}

// State is the trip-creation form. It is sent whole as stepData.
type State struct {
	TripType           TripType       `json:"tripType"`
	Title              string         `json:"title,omitempty"`
	Description        string         `json:"description,omitempty"`
	Subject            string         `json:"subject,omitempty"`
	Companies          []Company      `json:"companies,omitempty"`
	Participants       []string       `json:"participants,omitempty"`
	StartDate          string         `json:"startDate,omitempty"`
	EndDate            string         `json:"endDate,omitempty"`
	EstimatedBudget    float64        `json:"estimatedBudget,omitempty"`
	SelectedConvention string         `json:"selectedConvention,omitempty"`
	ItineraryDays      []ItineraryDay `json:"itineraryDays,omitempty"`
	Staff              []string       `json:"staff,omitempty"`
	Drivers            []string       `json:"drivers,omitempty"`
	Vehicles           []string       `json:"vehicles,omitempty"`
	AccessCode         string         `json:"accessCode,omitempty"`
	CurrentStep        int            `json:"currentStep"`
}

func (s State) clone() State {
	s.Companies = slices.Clone(s.Companies)
	s.Participants = slices.Clone(s.Participants)
	s.ItineraryDays = slices.Clone(s.ItineraryDays)
	s.Staff = slices.Clone(s.Staff)
	s.Drivers = slices.Clone(s.Drivers)
	s.Vehicles = slices.Clone(s.Vehicles)
	return s
}

// TotalSteps is the step count for the chosen trip type, 1 before a type
// is chosen.
func (s State) TotalSteps() int {
	if !s.TripType.Valid() {
		return 1
	}
	return s.TripType.TotalSteps()
}

func (s State) hasDates() bool {
	return strings.TrimSpace(s.StartDate) != "" && strings.TrimSpace(s.EndDate) != ""
}

func (s State) hasTitle() bool {
	return strings.TrimSpace(s.Title) != ""
}

// Meaningful reports whether closing the wizard should keep what was typed:
// anything past step 2, or step 2 with companies, participants or a
// selected convention.
func (s State) Meaningful() bool {
	switch {
	case s.CurrentStep > 2:
		return true
	case s.CurrentStep == 2:
		return len(s.Companies) > 0 || len(s.Participants) > 0 || s.SelectedConvention != ""
	}
	return false
}

// Validate returns nil when the current step has what it needs to proceed,
// otherwise ErrValidationBlocked naming the missing fields.
func (s State) Validate() error {
	var missing []string
	if s.CurrentStep <= 1 {
		if !s.TripType.Valid() {
			missing = append(missing, "trip type")
		}
		return blocked(missing)
	}

	switch s.TripType {
	case TripTypeConvention:
		switch s.CurrentStep {
		case 2:
			if s.SelectedConvention == "" {
				missing = append(missing, "convention")
			}
		case 3:
			if !s.hasTitle() {
				missing = append(missing, "title")
			}
			if !s.hasDates() {
				missing = append(missing, "dates")
			}
		case 4:
			if len(s.Staff) == 0 {
				missing = append(missing, "staff")
			}
		}
	case TripTypeInLand:
		switch s.CurrentStep {
		case 2:
			if !s.hasTitle() {
				missing = append(missing, "title")
			}
			if len(s.Companies) == 0 {
				missing = append(missing, "companies")
			}
			if !s.hasDates() {
				missing = append(missing, "dates")
			}
		case 3:
			if len(s.ItineraryDays) == 0 {
				missing = append(missing, "itinerary")
			}
		case 4:
			if len(s.Staff) == 0 {
				missing = append(missing, "staff")
			}
		}
	}

	return blocked(missing)
}

func blocked(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidationBlocked, strings.Join(missing, ", "))
}

type SaveStatus struct {
	IsSaving    bool
	LastSaved   time.Time
	Error       string
	TripID      string
	AccessCode  string
	ContinueURL string
}

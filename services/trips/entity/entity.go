package entity

import (
	"encoding/json"
	"math"
	"time"
)

type TripType string

const (
	TripTypeConvention TripType = "convention"
	TripTypeInLand     TripType = "in_land"
	TripTypeNone       TripType = "none"
)

func (t TripType) Valid() bool {
	switch t {
	case TripTypeConvention, TripTypeInLand, TripTypeNone:
		return true
	}
	return false
}

// TotalSteps is the number of wizard steps for the trip type.
func (t TripType) TotalSteps() int {
	switch t {
	case TripTypeConvention, TripTypeInLand:
		return 5
	default:
		return 1
	}
}

// CompletionPercentage is round(step / totalSteps * 100), with step capped
// at the step count.
func (t TripType) CompletionPercentage(step int) int {
	total := t.TotalSteps()
	if step > total {
		step = total
	}
	if step < 0 {
		step = 0
	}
	return int(math.Round(float64(step) / float64(total) * 100))
}

const (
	StatusDraft     = "draft"
	StatusPlanning  = "planning"
	StatusConfirmed = "confirmed"
)

const (
	CreationDraft          = "draft"
	CreationStep1Completed = "step1_completed"
	CreationStep2Completed = "step2_completed"
	CreationStep3Completed = "step3_completed"
	CreationPublished      = "published"
)

// CreationStatus maps the wizard step a trip was saved at to its creation status.
func CreationStatus(step int) string {
	switch {
	case step <= 1:
		return CreationDraft
	case step == 2:
		return CreationStep1Completed
	case step == 3:
		return CreationStep2Completed
	case step == 4:
		return CreationStep3Completed
	default:
		return CreationPublished
	}
}

type Trip struct {
	ID                   string
	ClientTempID         string
	AccessCode           string
	Title                string
	Description          string
	TripType             TripType
	Status               string
	CreationStatus       string
	IsDraft              bool
	CurrentStep          int
	CompletionPercentage int
	StartDate            string
	EndDate              string
	StepData             json.RawMessage
	CreatorID            string
	LastEditedBy         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Finalized reports whether the trip left the draft/planning states.
func (t *Trip) Finalized() bool {
	return t.Status != StatusDraft && t.Status != StatusPlanning
}

type Draft struct {
	ID                   string
	TripID               string
	CreatorID            string
	TripType             TripType
	CurrentStep          int
	CompletionPercentage int
	DraftData            json.RawMessage
	AccessToken          string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ExpiresAt            time.Time
}

// StepFields are the columns lifted out of the opaque step data.
type StepFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type ProgressiveSaveRequest struct {
	TripID               string          `json:"tripId,omitempty"`
	CurrentStep          int             `json:"currentStep"`
	StepData             json.RawMessage `json:"stepData"`
	CompletionPercentage int             `json:"completionPercentage"`
	TripType             TripType        `json:"tripType"`
	AccessCode           string          `json:"accessCode,omitempty"`
	ClientTempID         string          `json:"clientTempId,omitempty"`
}

type ProgressiveSaveResponse struct {
	Success     bool      `json:"success"`
	TripID      string    `json:"tripId"`
	AccessCode  string    `json:"accessCode"`
	ContinueURL string    `json:"continueUrl"`
	SavedAt     time.Time `json:"savedAt"`
	Message     string    `json:"message"`
	Created     bool      `json:"-"`
}

type FinalizeResponse struct {
	Success bool   `json:"success"`
	TripID  string `json:"tripId"`
	Message string `json:"message"`
}

type DraftSummary struct {
	TripID               string    `json:"tripId"`
	Title                string    `json:"title"`
	TripType             TripType  `json:"tripType"`
	AccessCode           string    `json:"accessCode"`
	CurrentStep          int       `json:"currentStep"`
	CompletionPercentage int       `json:"completionPercentage"`
	ContinueURL          string    `json:"continueUrl"`
	UpdatedAt            time.Time `json:"updatedAt"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

type ListDraftsResponse struct {
	Drafts []DraftSummary `json:"drafts"`
}

type ResumeTrip struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	TripType             TripType        `json:"tripType"`
	Status               string          `json:"status"`
	AccessCode           string          `json:"accessCode"`
	StartDate            string          `json:"startDate"`
	EndDate              string          `json:"endDate"`
	CompletionPercentage int             `json:"completionPercentage"`
	StepData             json.RawMessage `json:"stepData,omitempty"`
}

type ResumeResponse struct {
	Success     bool       `json:"success"`
	Trip        ResumeTrip `json:"trip"`
	CurrentStep int        `json:"currentStep"`
	CanEdit     bool       `json:"canEdit"`
	Permissions []string   `json:"permissions"`
	ContinueURL string     `json:"continueUrl"`
	Message     string     `json:"message"`
}

package usecase

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
)

// extractStepFields lifts the searchable columns out of the wizard's step
// data. Unknown shapes yield empty fields.
func extractStepFields(raw json.RawMessage) entity.StepFields {
	var fields entity.StepFields
	if len(raw) == 0 {
		return fields
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return entity.StepFields{}
	}

	fields.Title = strings.TrimSpace(fields.Title)
	fields.Description = strings.TrimSpace(fields.Description)
	fields.StartDate = normalizeDate(fields.StartDate)
	fields.EndDate = normalizeDate(fields.EndDate)
	return fields
}

// normalizeDate reduces RFC 3339 timestamps and plain dates to YYYY-MM-DD.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(time.DateOnly)
	}
	return ""
}

package entity

import (
	"encoding/json"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/schema"
)

// Note is one user's document for an activity. Content is the client's
// note payload (html, plainText, elements, media, attachments) and is
// stored as-is.
type Note struct {
	ID            string          `json:"id"`
	ActivityID    string          `json:"activity_id"`
	UserID        string          `json:"user_id"`
	Content       json.RawMessage `json:"content"`
	CompanyAccess json.RawMessage `json:"company_access,omitempty"`
	IsPrivate     bool            `json:"is_private"`
	CreatedByName string          `json:"created_by_name"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type HistoryEntry struct {
	ID              string          `json:"id"`
	NoteID          string          `json:"note_id"`
	PreviousContent json.RawMessage `json:"previous_content"`
	EditedBy        string          `json:"edited_by"`
	EditedAt        time.Time       `json:"edited_at"`
}

type SaveNoteRequest struct {
	Content       json.RawMessage `json:"content"`
	CompanyAccess json.RawMessage `json:"company_access,omitempty"`
	IsPrivate     bool            `json:"is_private"`
	CreatedByName string          `json:"created_by_name,omitempty"`
}

type ListNotesResponse struct {
	Notes []*Note `json:"notes"`
}

type HistoryResponse struct {
	History []*HistoryEntry `json:"history"`
}

var SaveNoteSchema = schema.MustCompile("save-note", `{
  "type": "object",
  "required": ["content"],
  "properties": {
    "content": {
      "type": "object",
      "properties": {
        "html": {"type": "string"},
        "plainText": {"type": "string"},
        "elements": {"type": "array"},
        "media": {"type": "array"},
        "attachments": {"type": "array"}
      }
    },
    "company_access": {"type": ["array", "object", "null"]},
    "is_private": {"type": "boolean"},
    "created_by_name": {"type": "string", "maxLength": 200}
  }
}`)

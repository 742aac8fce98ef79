package media

import (
	"fmt"
	"sort"
	"time"
)

type EntryType string

const (
	EntryImage      EntryType = "image"
	EntryAudio      EntryType = "audio"
	EntryTranscript EntryType = "transcript"
)

// Entry is one captured artifact of a notes session. Content holds binary
// data for images and audio; transcripts use Text.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Type         EntryType `json:"type"`
	Content      []byte    `json:"content,omitempty"`
	Text         string    `json:"text,omitempty"`
	MIME         string    `json:"mimeType,omitempty"`
	Description  string    `json:"description,omitempty"`
	RelativeTime string    `json:"relativeTime,omitempty"`
}

// RelativeTime formats d as m:ss, or h:mm:ss from one hour on.
func RelativeTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// SortTimeline orders entries by timestamp, keeping insertion order for ties.
func SortTimeline(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

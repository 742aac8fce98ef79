package entity

import "time"

type TranscribeAudioRequest struct {
	AudioData  []byte
	ActivityID string
	UserID     string
	MIMEType   string
	FileName   string
}

type TranscribeAudioResponse struct {
	Transcription *Transcription
}

type Transcription struct {
	ID         string
	ActivityID string
	UserID     string
	Text       string
	CreatedAt  time.Time
}

type SummaryContext struct {
	ActivityTitle string
	MeetingDate   string
	Companies     []string
}

type SummarizeRequest struct {
	Transcript string
	Context    SummaryContext
}

type SummarizeResponse struct {
	Summary       string
	Fallback      bool
	WordCount     int
	SummaryLength int
}

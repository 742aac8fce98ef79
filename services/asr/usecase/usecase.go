package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/clients/openai"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/consts"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/entity"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/storage"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnavailable         = errors.New("ai service is not configured")
	ErrTranscriptionFailed = errors.New("failed to transcribe audio")
)

// AI is the subset of the OpenAI client the usecase drives.
type AI interface {
	Configured() bool
	Transcribe(ctx context.Context, req *openai.TranscriptionRequest) (string, error)
	Chat(ctx context.Context, req *openai.ChatRequest) (string, error)
}

type Usecase interface {
	TranscribeAudio(ctx context.Context, req *entity.TranscribeAudioRequest) (*entity.TranscribeAudioResponse, error)
	ListTranscriptions(ctx context.Context, activityID string) ([]*entity.Transcription, error)
	SummarizeTranscript(ctx context.Context, req *entity.SummarizeRequest) (*entity.SummarizeResponse, error)
}

type Models struct {
	Transcribe string
	Summary    string
	Language   string
}

type usecase struct {
	storage storage.Storage
	ai      AI
	models  Models
}

func New(storage storage.Storage, ai AI, models Models) Usecase {
	if models.Transcribe == "" {
		models.Transcribe = consts.DefaultTranscribeModel
	}
	if models.Summary == "" {
		models.Summary = consts.DefaultSummaryModel
	}
	if models.Language == "" {
		models.Language = consts.DefaultLanguage
	}
	return &usecase{
		storage: storage,
		ai:      ai,
		models:  models,
	}
}

// AllowedAudio reports whether a MIME type, ignoring parameters such as
// codecs, is accepted for transcription.
func AllowedAudio(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return consts.AllowedMIMETypes[mediaType]
}

func (u *usecase) TranscribeAudio(ctx context.Context, req *entity.TranscribeAudioRequest) (*entity.TranscribeAudioResponse, error) {
	log := logger.FromContext(ctx).With(
		slog.String("activity_id", req.ActivityID),
		slog.String("mime_type", req.MIMEType),
	)

	switch {
	case req.ActivityID == "":
		return nil, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	case len(req.AudioData) == 0:
		return nil, fmt.Errorf("%w: audio file is required", ErrInvalidInput)
	case len(req.AudioData) > consts.MaxAudioSize:
		return nil, fmt.Errorf("%w: audio file too large, maximum size is 25MB", ErrInvalidInput)
	case !AllowedAudio(req.MIMEType):
		return nil, fmt.Errorf("%w: unsupported audio format %q", ErrInvalidInput, req.MIMEType)
	}
	if !u.ai.Configured() {
		return nil, ErrUnavailable
	}

	name := req.FileName
	if name == "" {
		name = "recording" + extensionFor(req.MIMEType)
	}

	text, err := u.ai.Transcribe(ctx, &openai.TranscriptionRequest{
		Model:    u.models.Transcribe,
		Language: u.models.Language,
		FileName: name,
		MIMEType: req.MIMEType,
		Audio:    req.AudioData,
	})
	if err != nil {
		log.Error("transcription failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	transcription, err := u.storage.SaveTranscription(ctx, req.ActivityID, req.UserID, text)
	if err != nil {
		log.Warn("could not save transcription", slog.String("error", err.Error()))
		transcription = &entity.Transcription{ActivityID: req.ActivityID, UserID: req.UserID, Text: text}
	}

	log.Info("audio transcribed", slog.Int("characters", len(text)))
	return &entity.TranscribeAudioResponse{Transcription: transcription}, nil
}

func (u *usecase) ListTranscriptions(ctx context.Context, activityID string) ([]*entity.Transcription, error) {
	if activityID == "" {
		return nil, fmt.Errorf("%w: activity id is required", ErrInvalidInput)
	}
	return u.storage.ListTranscriptions(ctx, activityID)
}

const systemPrompt = `You are an expert meeting notes summarizer. Your task is to create concise, actionable summaries of meeting transcripts.

Guidelines:
1. Extract key points, decisions, and action items
2. Identify important insights and takeaways
3. Maintain professional tone
4. Keep summary focused and relevant
5. Include any mentioned dates, numbers, or specific details
6. If there are multiple speakers, identify different perspectives
7. Highlight any questions or unresolved issues
8. Do not use emojis or special characters - keep text professional and clean

Format the response as a clear, well-structured summary that someone who wasn't in the meeting could understand and act upon. Use only plain text formatting.`

func userPrompt(req *entity.SummarizeRequest) string {
	var b strings.Builder
	b.WriteString("Please summarize the following meeting transcript:\n\n")
	if req.Context.ActivityTitle != "" {
		fmt.Fprintf(&b, "Meeting: %s\n", req.Context.ActivityTitle)
	}
	if req.Context.MeetingDate != "" {
		fmt.Fprintf(&b, "Date: %s\n", req.Context.MeetingDate)
	}
	if len(req.Context.Companies) > 0 {
		fmt.Fprintf(&b, "Companies involved: %s\n", strings.Join(req.Context.Companies, ", "))
	}
	fmt.Fprintf(&b, "\nTranscript:\n%q\n\nPlease provide a comprehensive but concise summary.", req.Transcript)
	return b.String()
}

func (u *usecase) SummarizeTranscript(ctx context.Context, req *entity.SummarizeRequest) (*entity.SummarizeResponse, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is required", ErrInvalidInput)
	}
	if !u.ai.Configured() {
		return nil, ErrUnavailable
	}

	summary, err := u.ai.Chat(ctx, &openai.ChatRequest{
		Model: u.models.Summary,
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:   consts.SummaryMaxTokens,
		Temperature: consts.SummaryTemperature,
	})
	if err != nil {
		logger.Warn(ctx, "ai summary failed, using basic summary", slog.String("error", err.Error()))
		return &entity.SummarizeResponse{
			Summary:  "AI summarization unavailable. Basic summary:\n\n" + BasicSummary(req.Transcript),
			Fallback: true,
		}, nil
	}
	if summary == "" {
		summary = "Unable to generate summary"
	}

	return &entity.SummarizeResponse{
		Summary:       summary,
		WordCount:     len(strings.Fields(req.Transcript)),
		SummaryLength: len(strings.Fields(summary)),
	}, nil
}

func extensionFor(mimeType string) string {
	mediaType, _, _ := mime.ParseMediaType(mimeType)
	switch mediaType {
	case consts.MIMEWebM:
		return ".webm"
	case consts.MIMEMP3, consts.MIMEMPEG:
		return ".mp3"
	case consts.MIMEMP4:
		return ".mp4"
	case consts.MIMEM4A:
		return ".m4a"
	default:
		return ".wav"
	}
}

// Package api is the HTTP client for the trips, notes, media and files
// endpoints of the web gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	filesEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/entity"
	notesEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/entity"
	tripsEntity "github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/entity"
	pb "github.com/Danwoltrs/wolthers-travel-app-sub001/specs/asr"
)

// ErrPersistenceFailed marks every failed call, whether the request never
// reached the server or the server answered with a non-2xx status.
var ErrPersistenceFailed = errors.New("persistence failed")

type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// TranscribeResponse carries the text under both keys the server has used.
type TranscribeResponse struct {
	Transcript    string `json:"transcript"`
	Transcription string `json:"transcription"`
	Success       bool   `json:"success"`
	ID            string `json:"id"`
}

// Text returns the transcript whichever key it came in.
func (r *TranscribeResponse) Text() string {
	if r.Transcript != "" {
		return r.Transcript
	}
	return r.Transcription
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ProgressiveSave(ctx context.Context, req *tripsEntity.ProgressiveSaveRequest) (*tripsEntity.ProgressiveSaveResponse, error) {
	res := &tripsEntity.ProgressiveSaveResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/api/trips/progressive-save", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) FinalizeTrip(ctx context.Context, tripID string) (*tripsEntity.FinalizeResponse, error) {
	res := &tripsEntity.FinalizeResponse{}
	if err := c.doJSON(ctx, http.MethodPatch, "/api/trips/"+url.PathEscape(tripID)+"/finalize", nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) ListDrafts(ctx context.Context) (*tripsEntity.ListDraftsResponse, error) {
	res := &tripsEntity.ListDraftsResponse{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/trips/drafts", nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) DeleteDraft(ctx context.Context, tripID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/trips/drafts/"+url.PathEscape(tripID), nil, nil)
}

func (c *Client) ContinueTrip(ctx context.Context, accessCode string) (*tripsEntity.ResumeResponse, error) {
	res := &tripsEntity.ResumeResponse{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/trips/continue/"+url.PathEscape(accessCode), nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func activityPath(activityID, suffix string) string {
	return "/api/activities/" + url.PathEscape(activityID) + suffix
}

func (c *Client) ListNotes(ctx context.Context, activityID string) ([]*notesEntity.Note, error) {
	res := &notesEntity.ListNotesResponse{}
	if err := c.doJSON(ctx, http.MethodGet, activityPath(activityID, "/notes"), nil, res); err != nil {
		return nil, err
	}
	return res.Notes, nil
}

func (c *Client) SaveNote(ctx context.Context, activityID string, req *notesEntity.SaveNoteRequest) (*notesEntity.Note, error) {
	res := &notesEntity.Note{}
	if err := c.doJSON(ctx, http.MethodPost, activityPath(activityID, "/notes"), req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) DeleteNote(ctx context.Context, activityID, noteID string) error {
	path := activityPath(activityID, "/notes") + "?note_id=" + url.QueryEscape(noteID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) Transcribe(ctx context.Context, activityID, fileName, mimeType string, audio []byte) (*TranscribeResponse, error) {
	res := &TranscribeResponse{}
	if err := c.doMultipart(ctx, activityPath(activityID, "/transcribe"), "audio", fileName, mimeType, audio, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Summarize(ctx context.Context, req *pb.SummarizeRequest) (*pb.SummarizeResult, error) {
	res := &pb.SummarizeResult{}
	if err := c.doJSON(ctx, http.MethodPost, "/api/ai/summarize-transcript", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Upload(ctx context.Context, activityID, fileName, mimeType string, data []byte) (*filesEntity.UploadResponse, error) {
	res := &filesEntity.UploadResponse{}
	fields := map[string]string{"activityId": activityID}
	if err := c.doMultipart(ctx, "/api/files/upload", "file", fileName, mimeType, data, fields, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	return c.sendRequest(ctx, method, path, "application/json", body, out)
}

func (c *Client) doMultipart(ctx context.Context, path, field, fileName, mimeType string, data []byte, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	hdr.Set("Content-Type", mimeType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}

	return c.sendRequest(ctx, http.MethodPost, path, w.FormDataContentType(), &buf, out)
}

func (c *Client) sendRequest(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("sending request", slog.String("method", method), slog.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrPersistenceFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
		c.log.Warn("unexpected status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", se.Message))
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, se)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

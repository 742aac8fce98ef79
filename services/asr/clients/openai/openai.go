package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type TranscriptionRequest struct {
	Model    string
	Language string
	FileName string
	MIMEType string
	Audio    []byte
}

func New(apiKey, baseURL string, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	log.Debug("creating openai client",
		slog.String("base_url", baseURL),
		slog.Bool("api_key_set", apiKey != ""))

	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        log,
	}
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Transcribe sends the audio to the transcription endpoint and returns the
// plain-text transcript.
func (c *Client) Transcribe(ctx context.Context, req *TranscriptionRequest) (string, error) {
	c.log.Info("Transcribe called",
		slog.String("file_name", req.FileName),
		slog.Int("size", len(req.Audio)))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", req.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	fields := map[string]string{
		"model":           req.Model,
		"language":        req.Language,
		"response_format": "text",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	resp, err := c.sendRequest(ctx, "/audio/transcriptions", w.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("failed to read transcription", slog.String("error", err.Error()))
		return "", err
	}

	return strings.TrimSpace(string(text)), nil
}

// Chat runs a chat completion and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	c.log.Debug("Chat called", slog.String("model", req.Model))

	jsonData, err := json.Marshal(req)
	if err != nil {
		c.log.Error("failed to marshal chat request", slog.String("error", err.Error()))
		return "", err
	}

	resp, err := c.sendRequest(ctx, "/chat/completions", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.log.Error("failed to decode chat response", slog.String("error", err.Error()))
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}

func (c *Client) sendRequest(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		c.log.Error("failed to create HTTP request", slog.String("error", err.Error()))
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("HTTP request failed", slog.String("error", err.Error()))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.log.Error("API request failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", string(body)))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

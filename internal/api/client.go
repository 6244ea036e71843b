// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/util"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://localhost:7860"

	// DefaultChatTimeout bounds a single /chat call.
	DefaultChatTimeout = 60 * time.Second

	// MaxMessageChars mirrors the backend's limit on ChatRequest.message.
	MaxMessageChars = 4000

	// MaxHistoryContentChars mirrors the backend's limit on each history entry.
	MaxHistoryContentChars = 8000

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// sharedTransport pools connections to the backend across clients.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        10,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ClassifyResponse is the /classify response body.
type ClassifyResponse struct {
	Prediction model.Prediction `json:"prediction"`
	Disclaimer string           `json:"disclaimer"`
}

// ChatRequest is a single conversational turn sent to /chat.
type ChatRequest struct {
	// Message is the new user message.
	Message string

	// History is the conversation so far. Only role and content are sent.
	History []model.Turn

	// Provider selects the LLM; the zero value means groq.
	Provider Provider

	// Prediction is the current classification context, if any.
	Prediction *model.Prediction
}

// HistoryMessage is a role/content pair as it appears on the wire.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatPayload is the JSON body of /chat.
type chatPayload struct {
	Message    string            `json:"message"`
	History    []HistoryMessage  `json:"history"`
	Provider   Provider          `json:"provider"`
	Prediction *model.Prediction `json:"prediction,omitempty"`
}

// ChatResponse is the /chat response body.
type ChatResponse struct {
	Reply      string `json:"reply"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Disclaimer string `json:"disclaimer"`
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status    string `json:"status"`
	Device    string `json:"device"`
	ModelRepo string `json:"model_repo"`
	ModelFile string `json:"model_file"`
	ImageSize int    `json:"image_size"`
}

// OK reports whether the backend declared itself healthy.
func (h *HealthResponse) OK() bool {
	return h != nil && h.Status == "ok"
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the classification and chat backend.
// A Client is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	chatTimeout time.Duration
}

// NewClient creates a client for the backend at baseURL.
// A trailing slash is stripped; an empty baseURL selects DefaultBaseURL.
// The underlying http.Client has no overall timeout: /classify relies on the
// transport and the caller's context, and /chat applies its own deadline.
func NewClient(baseURL string) *Client {
	c := &Client{
		httpClient:  &http.Client{Transport: sharedTransport},
		chatTimeout: DefaultChatTimeout,
	}
	return c.WithBaseURL(baseURL)
}

// WithBaseURL sets the backend origin.
func (c *Client) WithBaseURL(baseURL string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c.baseURL = baseURL
	return c
}

// WithHTTPClient replaces the HTTP client, e.g. an httptest server's client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithChatTimeout sets the /chat deadline. Non-positive values are ignored.
func (c *Client) WithChatTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.chatTimeout = timeout
	}
	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ChatTimeout returns the /chat deadline.
func (c *Client) ChatTimeout() time.Duration {
	return c.chatTimeout
}

// =============================================================================
// Request/Response Logging (without bodies)
// =============================================================================

func (c *Client) logRequest(req *http.Request) {
	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

func (c *Client) logResponse(req *http.Request, resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %s %s %d (%v)", req.Method, req.URL.Path, resp.StatusCode, duration.Round(time.Millisecond))
}

// do sends req and reads the size-limited body.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	c.logRequest(req)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("API Error: %s %s: %v", req.Method, req.URL.Path, err)
		return nil, nil, err
	}
	defer resp.Body.Close()
	c.logResponse(req, resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return resp, nil, err
	}
	return resp, body, nil
}

// readResponse reads the response body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// =============================================================================
// CLASSIFY
// =============================================================================

// Classify uploads img to /classify as the multipart field "file".
// The returned Prediction is exactly the server payload.
func (c *Client) Classify(ctx context.Context, img model.Image) (*ClassifyResponse, error) {
	body, contentType, err := encodeImageForm(img)
	if err != nil {
		return nil, &ClassificationError{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", body)
	if err != nil {
		return nil, &ClassificationError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, respBody, err := c.do(req)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &ClassificationError{Status: status, Message: err.Error(), Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		return nil, &ClassificationError{
			Status:  resp.StatusCode,
			Message: statusMessage("Classification", resp.StatusCode, respBody),
		}
	}

	var result ClassifyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		err = fmt.Errorf("failed to parse response: %w", err)
		return nil, &ClassificationError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	return &result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeImageForm builds a multipart body with a single "file" part that
// carries the image's own media type.
func encodeImageForm(img model.Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := img.Name
	if name == "" {
		name = "image"
	}
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", mediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// =============================================================================
// CHAT
// =============================================================================

// CheckMessage validates message text against the backend's limits.
func CheckMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageChars {
		return fmt.Errorf("%w: %d characters (maximum %d)", ErrMessageTooLong, n, MaxMessageChars)
	}
	return nil
}

// BuildHistory converts turns to wire history: role and content only, empty
// turns skipped, each entry truncated to MaxHistoryContentChars.
func BuildHistory(turns []model.Turn) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		history = append(history, HistoryMessage{
			Role:    t.Role.String(),
			Content: util.TruncateRunes(content, MaxHistoryContentChars),
		})
	}
	return history
}

// Chat sends one turn to /chat. The call is aborted after the client's chat
// timeout and fails with *ChatTimeoutError.
func (c *Client) Chat(ctx context.Context, r ChatRequest) (*ChatResponse, error) {
	if err := CheckMessage(r.Message); err != nil {
		return nil, &ChatError{Message: err.Error(), Err: err}
	}

	provider := r.Provider
	if provider == "" {
		provider = ProviderGroq
	}
	payload := chatPayload{
		Message:    r.Message,
		History:    BuildHistory(r.History),
		Provider:   provider,
		Prediction: r.Prediction,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		err = fmt.Errorf("failed to marshal request: %w", err)
		return nil, &ChatError{Message: err.Error(), Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &ChatError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, respBody, err := c.do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, &ChatTimeoutError{Timeout: c.chatTimeout}
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &ChatError{Status: status, Message: err.Error(), Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		return nil, &ChatError{
			Status:  resp.StatusCode,
			Message: statusMessage("Chat", resp.StatusCode, respBody),
		}
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		err = fmt.Errorf("failed to parse response: %w", err)
		return nil, &ChatError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	return &result, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// Health queries /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("health check failed: %s", statusMessage("Health check", resp.StatusCode, body))
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &health, nil
}

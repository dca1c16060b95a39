// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chat and document service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the service client.
type ClientConfig struct {
	// BaseURL is the service base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// APIKey is forwarded to the service with every request.
	APIKey string

	// Model is the default model (default: gpt-4.1-mini)
	Model string

	// Timeout for single-shot requests (default: 60s)
	Timeout time.Duration

	// UploadTimeout for document uploads, which include indexing (default: 5m)
	UploadTimeout time.Duration

	// StreamTimeout bounds a whole streaming response; zero means no limit.
	StreamTimeout time.Duration

	// Logger receives request diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       "http://127.0.0.1:8000",
		Model:         model.DefaultModel,
		Timeout:       60 * time.Second,
		UploadTimeout: 5 * time.Minute,
		StreamTimeout: 5 * time.Minute,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the service.
//
// The Client is safe for concurrent use. The API key and model may be changed
// at runtime; requests already in flight keep the values they started with.
//
// Example:
//
//	client := backend.NewClientWithConfig(cfg)
//	err := client.ChatStream(ctx, backend.ChatRequest{History: turns}, func(s string) {
//	    fmt.Print(s)
//	})
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	streamHTTP *http.Client
	uploadHTTP *http.Client
	logger     *zap.Logger

	mu     sync.RWMutex
	apiKey string
	model  string
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = defaults.UploadTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		streamHTTP: &http.Client{Timeout: cfg.StreamTimeout},
		uploadHTTP: &http.Client{Timeout: cfg.UploadTimeout},
		logger:     logger.With(zap.String("component", "backend")),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// SetAPIKey replaces the API key used by subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// SetModel replaces the default model used by subsequent requests.
func (c *Client) SetModel(m string) {
	if m == "" {
		return
	}
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
}

// Model returns the current default model.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

func (c *Client) credentials(override string) (apiKey, modelID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	modelID = c.model
	if override != "" {
		modelID = override
	}
	return c.apiKey, modelID
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health verifies that the service is reachable and reports ok.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil, "")
	if err != nil {
		return &TransportError{Kind: KindUnknown, Op: "health", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify("health", err)
	}
	defer drainAndClose(resp.Body)

	if err := checkStatus("health", resp); err != nil {
		return err
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &TransportError{Kind: KindDecode, Op: "health", Cause: err}
	}
	if body.Status != "ok" {
		return &TransportError{Kind: KindStatus, Op: "health", Status: resp.StatusCode, Message: "status " + body.Status}
	}
	return nil
}

// =============================================================================
// FREE-FORM CHAT
// =============================================================================

// ChatStream sends the history and calls callback once per text fragment, in
// arrival order. Blocks until the response ends or fails. Fragments already
// delivered before a failure are not retracted.
func (c *Client) ChatStream(ctx context.Context, r ChatRequest, callback StreamCallback) error {
	apiKey, modelID := c.credentials(r.Model)

	body, err := json.Marshal(chatPayload{
		Messages: toWire(r.History, r.Quality),
		Model:    modelID,
		APIKey:   apiKey,
		DeepDive: r.Quality == model.QualityDeep,
	})
	if err != nil {
		return &TransportError{Kind: KindUnknown, Op: "chat", Message: "failed to marshal request", Cause: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body), "application/json")
	if err != nil {
		return &TransportError{Kind: KindUnknown, Op: "chat", Cause: err}
	}

	start := time.Now()
	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		c.logger.Warn("chat request failed", zap.String("request_id", req.Header.Get("X-Request-ID")), zap.Error(err))
		return classify("chat", err)
	}
	defer drainAndClose(resp.Body)

	if err := checkStatus("chat", resp); err != nil {
		c.logger.Warn("chat rejected", zap.Int("status", resp.StatusCode), zap.Error(err))
		return err
	}

	reader := NewFragmentReader(resp.Body)
	if err := reader.Process(ctx, callback); err != nil {
		c.logger.Warn("chat stream interrupted",
			zap.Int("fragments", reader.Fragments()),
			zap.Error(err))
		return classify("chat", err)
	}

	c.logger.Debug("chat stream complete",
		zap.String("model", modelID),
		zap.Int("fragments", reader.Fragments()),
		zap.Int("bytes", reader.Bytes()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// =============================================================================
// GROUNDED CHAT
// =============================================================================

// GroundedChat asks a question about an uploaded document.
func (c *Client) GroundedChat(ctx context.Context, r GroundedRequest) (*GroundedAnswer, error) {
	apiKey, modelID := c.credentials(r.Model)
	k := r.TopK
	if k <= 0 {
		k = DefaultTopK
	}

	body, err := json.Marshal(pdfChatPayload{
		SessionID: r.SessionID,
		Query:     r.Query,
		Model:     modelID,
		APIKey:    apiKey,
		K:         k,
	})
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "pdf_chat", Message: "failed to marshal request", Cause: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/pdf_chat", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "pdf_chat", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify("pdf_chat", err)
	}
	defer drainAndClose(resp.Body)

	if err := checkStatus("pdf_chat", resp); err != nil {
		c.logger.Warn("grounded chat rejected",
			zap.String("session_id", r.SessionID),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, err
	}

	var answer GroundedAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, &TransportError{Kind: KindDecode, Op: "pdf_chat", Cause: err}
	}
	return &answer, nil
}

// =============================================================================
// DOCUMENT UPLOAD
// =============================================================================

// UploadDocument sends a document to be indexed and returns the session id.
func (c *Client) UploadDocument(ctx context.Context, r UploadRequest) (*UploadResult, error) {
	apiKey, _ := c.credentials("")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", r.Filename)
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "upload", Cause: err}
	}
	n, err := io.Copy(part, r.Body)
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "upload", Message: "failed to read document", Cause: err}
	}
	if err := mw.WriteField("api_key", apiKey); err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "upload", Cause: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "upload", Cause: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload_pdf", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Op: "upload", Cause: err}
	}

	resp, err := c.uploadHTTP.Do(req)
	if err != nil {
		return nil, classify("upload", err)
	}
	defer drainAndClose(resp.Body)

	if err := checkStatus("upload", resp); err != nil {
		return nil, err
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Kind: KindDecode, Op: "upload", Cause: err}
	}
	if result.SessionID == "" {
		return nil, &TransportError{Kind: KindDecode, Op: "upload", Message: "response has no session_id"}
	}

	c.logger.Info("document indexed",
		zap.String("file", r.Filename),
		zap.Int64("bytes", n),
		zap.String("session_id", result.SessionID))
	return &result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// checkStatus converts a non-2xx response into a TransportError, surfacing
// the service's detail message when present.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	te := &TransportError{Kind: KindStatus, Op: op, Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.Detail != "" {
		te.Message = eb.Detail
	} else if text := strings.TrimSpace(string(data)); text != "" {
		te.Message = text
	} else {
		te.Message = http.StatusText(resp.StatusCode)
	}
	return te
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	r.Close()
}

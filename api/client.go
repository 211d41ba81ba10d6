// Package api implements the typed client for the VidVault REST contract.
// Each method maps to one remote operation and returns a *Error carrying
// the failure kind, so callers can branch on expiry, validation failures,
// and transport trouble without inspecting status codes themselves.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"vidvault"
	"vidvault/internal/retry"
)

// Config holds client configuration including retry and pacing settings.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8000".
	BaseURL string

	// Timeout for individual HTTP requests.
	Timeout time.Duration

	// UserAgent for HTTP requests.
	UserAgent string

	// Retry configuration. Applied to idempotent calls only; mutating
	// calls stay single-shot so optimistic rollback remains deterministic.
	Retry retry.Config

	// RequestsPerSecond paces outgoing calls. 0 disables pacing.
	RequestsPerSecond float64

	// Breaker configures the circuit breaker. A zero FailureThreshold
	// disables it.
	Breaker BreakerConfig
}

// DefaultConfig returns sensible defaults for client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://localhost:8000",
		Timeout:   30 * time.Second,
		UserAgent: "vidvault/1.0",
		Retry:     retry.DefaultConfig(),
	}
}

// Client is the typed HTTP client for the VidVault backend.
type Client struct {
	base    *http.Client
	config  *Config
	limiter *rate.Limiter
	breaker *Breaker
}

// New creates a new client with the given configuration.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		base:    &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		limiter: limiter,
		breaker: NewBreaker(cfg.Breaker),
	}
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}

// Fallback messages shown when the server supplies no detail.
const (
	registerFallback    = "Registration failed. Please try again."
	loginFallback       = "Login failed. Please try again."
	listFallback        = "Failed to load videos."
	importFallback      = "Import failed. Please try again."
	watchStatusFallback = "Failed to update watch status."
)

// Register creates an account. The endpoint takes a JSON body and returns
// nothing of interest beyond success.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body, err := json.Marshal(struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Name: name, Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("encode register request: %w", err)
	}

	_, err = c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/api/auth/register",
		contentType: "application/json",
		body:        body,
		fallback:    registerFallback,
	})
	return err
}

// LoginResult is the parsed success payload of the login endpoint.
type LoginResult struct {
	// Token is the bearer token for subsequent authorized calls.
	Token string
	// TokenType is the server-reported scheme, normally "bearer".
	TokenType string
	// ExpiresIn is the advertised token lifetime, 0 when absent.
	ExpiresIn time.Duration
	// User is the authenticated account.
	User vidvault.User
}

// Login authenticates with email and password. Unlike register, the
// endpoint takes a form-encoded body with the email in the "username"
// field. The asymmetry is the server's contract, not a choice made here.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	resp, err := c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/api/auth/login",
		contentType: "application/x-www-form-urlencoded",
		body:        []byte(form.Encode()),
		fallback:    loginFallback,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		AccessToken string        `json:"access_token"`
		TokenType   string        `json:"token_type"`
		ExpiresIn   int64         `json:"expires_in"`
		User        vidvault.User `json:"user"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, &Error{
			Kind:       KindServerError,
			StatusCode: resp.status,
			Message:    loginFallback,
			Err:        fmt.Errorf("decode login response: %w", err),
		}
	}
	if payload.AccessToken == "" {
		return nil, &Error{
			Kind:       KindServerError,
			StatusCode: resp.status,
			Message:    loginFallback,
			Err:        errors.New("login response missing access_token"),
		}
	}

	return &LoginResult{
		Token:     payload.AccessToken,
		TokenType: payload.TokenType,
		ExpiresIn: time.Duration(payload.ExpiresIn) * time.Second,
		User:      payload.User,
	}, nil
}

// ListVideos fetches the full video collection. It is the only idempotent
// operation, so transient failures are retried with backoff.
func (c *Client) ListVideos(ctx context.Context, token string) ([]vidvault.Video, error) {
	if token == "" {
		return nil, &vidvault.PreconditionError{Op: "api.ListVideos", Reason: "no token supplied"}
	}

	var resp *response
	err := retry.Do(ctx, c.config.Retry, temporaryOnly, func(ctx context.Context) error {
		r, err := c.do(ctx, &request{
			method:   http.MethodGet,
			path:     "/api/videos",
			token:    token,
			fallback: listFallback,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var wire []videoWire
	if err := json.Unmarshal(resp.body, &wire); err != nil {
		return nil, &Error{
			Kind:       KindServerError,
			StatusCode: resp.status,
			Message:    listFallback,
			Err:        fmt.Errorf("decode video list: %w", err),
		}
	}

	videos := make([]vidvault.Video, 0, len(wire))
	for _, w := range wire {
		videos = append(videos, w.video())
	}
	return videos, nil
}

// ImportYouTubePlaylist submits a playlist URL for server-side import.
func (c *Client) ImportYouTubePlaylist(ctx context.Context, token, playlistURL string) error {
	if token == "" {
		return &vidvault.PreconditionError{Op: "api.ImportYouTubePlaylist", Reason: "no token supplied"}
	}

	body, err := json.Marshal(struct {
		PlaylistURL string `json:"playlist_url"`
	}{PlaylistURL: playlistURL})
	if err != nil {
		return fmt.Errorf("encode playlist request: %w", err)
	}

	_, err = c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/api/videos/youtube",
		contentType: "application/json",
		body:        body,
		token:       token,
		fallback:    importFallback,
	})
	return err
}

// ImportInstagramVideo submits an Instagram reel or post URL for import.
func (c *Client) ImportInstagramVideo(ctx context.Context, token, videoURL string) error {
	if token == "" {
		return &vidvault.PreconditionError{Op: "api.ImportInstagramVideo", Reason: "no token supplied"}
	}

	body, err := json.Marshal(struct {
		URL string `json:"url"`
	}{URL: videoURL})
	if err != nil {
		return fmt.Errorf("encode instagram request: %w", err)
	}

	_, err = c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/api/videos/instagram",
		contentType: "application/json",
		body:        body,
		token:       token,
		fallback:    importFallback,
	})
	return err
}

// SetWatchStatus updates one video's watch status. Single-shot: the caller
// owns the optimistic rollback, so the call must not retry behind its back.
func (c *Client) SetWatchStatus(ctx context.Context, token, videoID string, status vidvault.WatchStatus) error {
	if token == "" {
		return &vidvault.PreconditionError{Op: "api.SetWatchStatus", Reason: "no token supplied"}
	}

	body, err := json.Marshal(struct {
		Status string `json:"status"`
	}{Status: string(status)})
	if err != nil {
		return fmt.Errorf("encode watch status request: %w", err)
	}

	_, err = c.do(ctx, &request{
		method:      http.MethodPut,
		path:        "/api/videos/" + url.PathEscape(videoID) + "/watch-status",
		contentType: "application/json",
		body:        body,
		token:       token,
		fallback:    watchStatusFallback,
	})
	return err
}

// request describes one wire call.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
	token       string
	fallback    string
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do issues a single request and classifies the outcome. It never retries;
// retry policy belongs to the individual operations.
func (c *Client) do(ctx context.Context, req *request) (*response, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, &Error{Kind: KindNetwork, Message: req.fallback, Err: err}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, Message: req.fallback, Err: err}
		}
	}

	var body io.Reader
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.config.BaseURL+req.path, body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: req.fallback, Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	httpResp, err := c.base.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &Error{
			Kind:    KindNetwork,
			Message: req.fallback,
			Err:     fmt.Errorf("http request failed: %w", err),
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &Error{
			Kind:    KindNetwork,
			Message: req.fallback,
			Err:     fmt.Errorf("read response body: %w", err),
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		apiErr := &Error{
			StatusCode: httpResp.StatusCode,
			Message:    detailMessage(respBody, req.fallback),
			RetryAfter: parseRetryAfter(httpResp.Header),
		}
		switch httpResp.StatusCode {
		case http.StatusUnauthorized:
			apiErr.Kind = KindUnauthorized
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			apiErr.Kind = KindBadRequest
		default:
			apiErr.Kind = KindServerError
		}
		// Only transient failures count toward the circuit; a client
		// mistake says nothing about the server's health.
		if apiErr.Temporary() {
			c.breaker.RecordFailure()
		}
		return nil, apiErr
	}

	c.breaker.RecordSuccess()
	return &response{
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   respBody,
	}, nil
}

// temporaryOnly is the retry classifier for idempotent calls: transport
// failures and transient server statuses retry, everything else is final.
func temporaryOnly(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// detailMessage extracts the server's {"detail": ...} message, falling back
// to the per-operation message when absent or unparseable.
func detailMessage(body []byte, fallback string) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fallback
}

// parseRetryAfter extracts the Retry-After header value.
// Returns the duration to wait, or 0 if not present.
func parseRetryAfter(header http.Header) time.Duration {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// Try parsing as seconds (integer)
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return 0
}

// videoWire is the video shape on the wire.
type videoWire struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	Platform    string `json:"platform"`
	Genre       string `json:"genre"`
	SavedAt     string `json:"savedAt"`
	WatchStatus string `json:"watchStatus"`
}

func (w videoWire) video() vidvault.Video {
	return vidvault.Video{
		ID:           w.ID,
		Title:        w.Title,
		ThumbnailURL: w.Thumbnail,
		Platform:     vidvault.Platform(w.Platform),
		Genre:        w.Genre,
		SavedAt:      parseSavedAt(w.SavedAt),
		WatchStatus:  vidvault.WatchStatus(w.WatchStatus),
	}
}

// parseSavedAt accepts RFC 3339 as well as the timezone-less ISO form the
// backend emits for naive datetimes. Unparseable values yield the zero time
// rather than failing the whole list.
func parseSavedAt(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidvault"
	"vidvault/api"
	"vidvault/internal/apitest"
	"vidvault/internal/retry"
	"vidvault/session"
)

// These tests run the real client against the in-process fake backend,
// so the whole wire path is exercised: form encoding, bearer headers,
// JWT issuing, bcrypt checks, and detail extraction.

func newIntegrationClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	cfg := api.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second
	cfg.Retry = retry.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}
	client := api.New(cfg)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegrationRegisterLoginBrowse(t *testing.T) {
	server := apitest.NewServer(t)
	client := newIntegrationClient(t, server.URL)
	ctx := context.Background()

	if err := client.Register(ctx, "Ada", "Ada@Example.com", "Secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// The address is taken now, case-insensitively.
	err := client.Register(ctx, "Ada", "ada@example.com", "Secret1")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.KindBadRequest {
		t.Fatalf("second Register() error = %v, want bad request", err)
	}
	if apiErr.Message != "Email already registered" {
		t.Errorf("Message = %q", apiErr.Message)
	}

	result, err := client.Login(ctx, "ada@example.com", "Secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" || result.TokenType != "bearer" {
		t.Fatalf("LoginResult = %+v", result)
	}
	if result.ExpiresIn != 30*time.Minute {
		t.Errorf("ExpiresIn = %v, want 30m", result.ExpiresIn)
	}
	if result.User.Email != "ada@example.com" || result.User.Name != "Ada" {
		t.Errorf("User = %+v", result.User)
	}

	// The issued token is a real JWT whose exp claim matches expires_in.
	expiry, ok := session.TokenExpiry(result.Token)
	if !ok {
		t.Fatal("TokenExpiry() found no expiry in the issued token")
	}
	if until := time.Until(expiry); until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("token expiry %v from now, want about 30m", until)
	}

	videos, err := client.ListVideos(ctx, result.Token)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(videos) != 0 {
		t.Fatalf("ListVideos() = %d videos, want none yet", len(videos))
	}

	server.StubPlaylist("PLmix",
		apitest.Video{ID: "v1", Title: "Bach Fugue", Platform: "youtube", Genre: "music"},
		apitest.Video{ID: "v2", Title: "Goldberg Variations", Platform: "youtube", Genre: "music"},
	)
	if err := client.ImportYouTubePlaylist(ctx, result.Token, "https://www.youtube.com/playlist?list=PLmix"); err != nil {
		t.Fatalf("ImportYouTubePlaylist() error = %v", err)
	}

	videos, err = client.ListVideos(ctx, result.Token)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("ListVideos() = %d videos, want 2", len(videos))
	}
	if videos[0].SavedAt.IsZero() {
		t.Error("SavedAt did not parse")
	}

	if err := client.SetWatchStatus(ctx, result.Token, "v1", vidvault.StatusWatched); err != nil {
		t.Fatalf("SetWatchStatus() error = %v", err)
	}
	stored := server.Videos("ada@example.com")
	if stored[0].WatchStatus != "watched" {
		t.Errorf("server watchStatus = %q, want watched", stored[0].WatchStatus)
	}
}

func TestIntegrationLoginFailures(t *testing.T) {
	server := apitest.NewServer(t)
	server.SeedUser(t, "ada@example.com", "Ada", "Secret1")
	client := newIntegrationClient(t, server.URL)
	ctx := context.Background()

	_, err := client.Login(ctx, "nobody@example.com", "Secret1")
	if !api.IsUnauthorized(err) || api.Message(err) != "Email not registered" {
		t.Errorf("unknown email: error = %v", err)
	}

	_, err = client.Login(ctx, "ada@example.com", "wrong-pass")
	if !api.IsUnauthorized(err) || api.Message(err) != "Incorrect password" {
		t.Errorf("wrong password: error = %v", err)
	}
}

func TestIntegrationLoginLockout(t *testing.T) {
	server := apitest.NewServer(t)
	server.SeedUser(t, "ada@example.com", "Ada", "Secret1")
	server.MaxLoginAttempts = 2
	client := newIntegrationClient(t, server.URL)
	ctx := context.Background()

	for range 2 {
		if _, err := client.Login(ctx, "ada@example.com", "wrong"); err == nil {
			t.Fatal("Login() with bad password succeeded")
		}
	}

	_, err := client.Login(ctx, "ada@example.com", "Secret1")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Fatalf("locked-out Login() error = %v, want 429", err)
	}
	if apiErr.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", apiErr.RetryAfter)
	}
	if !apiErr.Temporary() {
		t.Error("Temporary() = false for a lockout")
	}
}

func TestIntegrationExpiredToken(t *testing.T) {
	server := apitest.NewServer(t)
	server.SeedUser(t, "ada@example.com", "Ada", "Secret1")
	client := newIntegrationClient(t, server.URL)

	token := server.ExpiredToken(t, "ada@example.com")
	_, err := client.ListVideos(context.Background(), token)
	if !api.IsUnauthorized(err) {
		t.Fatalf("ListVideos() error = %v, want unauthorized", err)
	}
	if api.Message(err) != "Token has expired" {
		t.Errorf("Message = %q", api.Message(err))
	}
}

func TestIntegrationImportRejections(t *testing.T) {
	server := apitest.NewServer(t)
	server.SeedUser(t, "ada@example.com", "Ada", "Secret1")
	client := newIntegrationClient(t, server.URL)
	ctx := context.Background()
	token := server.IssueToken(t, "ada@example.com", time.Minute)

	err := client.ImportYouTubePlaylist(ctx, token, "https://www.youtube.com/watch?v=abc")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.KindBadRequest {
		t.Fatalf("playlist URL without id: error = %v, want bad request", err)
	}
	if apiErr.Message != "Invalid YouTube playlist URL" {
		t.Errorf("Message = %q", apiErr.Message)
	}

	err = client.ImportInstagramVideo(ctx, token, "https://example.com/not-instagram")
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid Instagram URL" {
		t.Fatalf("bad reel URL: error = %v", err)
	}
}

func TestIntegrationImportInstagramReel(t *testing.T) {
	server := apitest.NewServer(t)
	server.SeedUser(t, "ada@example.com", "Ada", "Secret1")
	client := newIntegrationClient(t, server.URL)
	ctx := context.Background()
	token := server.IssueToken(t, "ada@example.com", time.Minute)

	if err := client.ImportInstagramVideo(ctx, token, "https://www.instagram.com/reel/Cxyz_123/"); err != nil {
		t.Fatalf("ImportInstagramVideo() error = %v", err)
	}

	videos, err := client.ListVideos(ctx, token)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("ListVideos() = %d videos, want 1", len(videos))
	}
	if videos[0].Platform != vidvault.PlatformInstagram {
		t.Errorf("Platform = %q, want instagram", videos[0].Platform)
	}
}

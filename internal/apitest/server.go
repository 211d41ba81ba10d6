// Package apitest runs an in-process VidVault backend for tests. It
// speaks the consumed REST contract, bcrypt-checks passwords, and issues
// HS256 tokens, so client code exercises the same wire behavior the real
// server produces. It is test infrastructure, not a product backend.
package apitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Video is the wire shape the fake backend serves. SavedAt is a string
// so tests can serve both RFC 3339 and naive timestamps.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	Platform    string `json:"platform"`
	Genre       string `json:"genre"`
	SavedAt     string `json:"savedAt"`
	WatchStatus string `json:"watchStatus"`
	UserID      string `json:"userId"`
}

type account struct {
	email string
	name  string
	hash  []byte
}

// Server is a fake VidVault backend bound to a httptest server.
type Server struct {
	// URL is the base URL test clients should be pointed at.
	URL string

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// MaxLoginAttempts locks an account behind 429 responses after that
	// many consecutive bad passwords. 0 disables the lockout.
	MaxLoginAttempts int

	httpServer *httptest.Server
	secret     []byte

	mu        sync.Mutex
	users     map[string]account
	videos    map[string][]Video
	playlists map[string][]Video
	failures  map[string]int
}

// NewServer starts a fake backend and registers its shutdown with t.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		TokenTTL:  30 * time.Minute,
		secret:    []byte("apitest-secret"),
		users:     make(map[string]account),
		videos:    make(map[string][]Video),
		playlists: make(map[string][]Video),
		failures:  make(map[string]int),
	}
	s.httpServer = httptest.NewServer(s.router())
	s.URL = s.httpServer.URL
	t.Cleanup(s.httpServer.Close)
	return s
}

// SeedUser registers an account directly, bypassing the register
// endpoint and its password rules.
func (s *Server) SeedUser(t *testing.T, email, name, password string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	email = strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = account{email: email, name: name, hash: hash}
}

// SeedVideo adds a video to email's collection. Empty SavedAt and
// WatchStatus fields are filled with defaults.
func (s *Server) SeedVideo(email string, v Video) {
	email = strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeVideoLocked(email, v)
}

// StubPlaylist installs the videos an import of playlist id will add.
func (s *Server) StubPlaylist(id string, videos ...Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[id] = append([]Video(nil), videos...)
}

// RemoveVideo deletes a video from email's collection, simulating a
// remote deletion between a refresh and a later write.
func (s *Server) RemoveVideo(email, id string) {
	email = strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.videos[email][:0]
	for _, v := range s.videos[email] {
		if v.ID != id {
			kept = append(kept, v)
		}
	}
	s.videos[email] = kept
}

// Videos returns a snapshot of email's collection.
func (s *Server) Videos(email string) []Video {
	email = strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Video(nil), s.videos[email]...)
}

// IssueToken signs a token for email with the given lifetime. A negative
// ttl produces an already-expired token.
func (s *Server) IssueToken(t *testing.T, email string, ttl time.Duration) string {
	t.Helper()

	s.mu.Lock()
	name := s.users[strings.ToLower(email)].name
	s.mu.Unlock()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strings.ToLower(email),
		"name": name,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(ttl)),
		"type": "access",
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// ExpiredToken signs a token for email whose expiry is in the past.
func (s *Server) ExpiredToken(t *testing.T, email string) string {
	return s.IssueToken(t, email, -time.Minute)
}

func (s *Server) storeVideoLocked(email string, v Video) {
	if v.SavedAt == "" {
		v.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if v.WatchStatus == "" {
		v.WatchStatus = "unwatched"
	}
	v.UserID = email
	s.videos[email] = append(s.videos[email], v)
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/api/videos", s.handleListVideos)
		r.Post("/api/videos/youtube", s.handleImportPlaylist)
		r.Post("/api/videos/instagram", s.handleImportReel)
		r.Put("/api/videos/{id}/watch-status", s.handleWatchStatus)
	})

	return r
}

type contextKey struct{}

// requireUser authenticates the bearer token and rejects with the same
// detail strings the real server uses.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			respondDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		parsed, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				respondDetail(w, http.StatusUnauthorized, "Token has expired")
				return
			}
			respondDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		email, err := parsed.Claims.GetSubject()
		if err != nil || email == "" {
			respondDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
			return
		}

		s.mu.Lock()
		_, known := s.users[email]
		s.mu.Unlock()
		if !known {
			respondDetail(w, http.StatusUnauthorized, "User not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), email)))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	// Shape checks reject before business rules, like the real server's
	// model validation does.
	if len(req.Name) < 2 {
		respondDetail(w, http.StatusUnprocessableEntity, "Name must be at least 2 characters")
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondDetail(w, http.StatusUnprocessableEntity, "Invalid email address")
		return
	}
	if len(req.Password) < 6 {
		respondDetail(w, http.StatusUnprocessableEntity, "Password must be at least 6 characters")
		return
	}

	email := strings.ToLower(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[email]; taken {
		respondDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if !strings.ContainsFunc(req.Password, unicode.IsDigit) {
		respondDetail(w, http.StatusBadRequest, "Password must contain at least one number")
		return
	}
	if !strings.ContainsFunc(req.Password, unicode.IsUpper) {
		respondDetail(w, http.StatusBadRequest, "Password must contain at least one uppercase letter")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Failed to create user account")
		return
	}
	s.users[email] = account{email: email, name: req.Name, hash: hash}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "User created successfully",
		"email":   email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.PostFormValue("username")))
	password := r.PostFormValue("password")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MaxLoginAttempts > 0 && s.failures[email] >= s.MaxLoginAttempts {
		w.Header().Set("Retry-After", "30")
		respondDetail(w, http.StatusTooManyRequests, "Too many login attempts. Please try again in 30 seconds")
		return
	}

	u, ok := s.users[email]
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Email not registered")
		return
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		s.failures[email]++
		respondDetail(w, http.StatusUnauthorized, "Incorrect password")
		return
	}
	delete(s.failures, email)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  email,
		"name": u.name,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(s.TokenTTL)),
		"type": "access",
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Could not create access token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": signed,
		"token_type":   "bearer",
		"expires_in":   int(s.TokenTTL.Seconds()),
		"user": map[string]string{
			"email": email,
			"name":  u.name,
		},
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())

	s.mu.Lock()
	videos := append([]Video{}, s.videos[email]...)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, videos)
}

func (s *Server) handleImportPlaylist(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())

	var req struct {
		PlaylistURL string `json:"playlist_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	idx := strings.LastIndex(req.PlaylistURL, "list=")
	if idx == -1 {
		respondDetail(w, http.StatusBadRequest, "Invalid YouTube playlist URL")
		return
	}
	id := req.PlaylistURL[idx+len("list="):]
	if amp := strings.IndexByte(id, '&'); amp != -1 {
		id = id[:amp]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stub, known := s.playlists[id]
	if !known {
		respondDetail(w, http.StatusBadRequest, "Failed to fetch playlist. Please check the URL and try again.")
		return
	}
	if len(stub) == 0 {
		respondDetail(w, http.StatusNotFound, "No videos found in playlist")
		return
	}
	for _, v := range stub {
		s.storeVideoLocked(email, v)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Successfully added %d videos from playlist", len(stub)),
	})
}

var reelPattern = regexp.MustCompile(`^https?://(?:www\.)?instagram\.com/(?:reel|p)/([a-zA-Z0-9_-]+)/?`)

func (s *Server) handleImportReel(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	m := reelPattern.FindStringSubmatch(req.URL)
	if m == nil {
		respondDetail(w, http.StatusBadRequest, "Invalid Instagram URL")
		return
	}
	reelID := m[1]

	s.mu.Lock()
	s.storeVideoLocked(email, Video{
		ID:       "ig-" + reelID,
		Title:    "Reel " + reelID,
		Platform: "instagram",
		Genre:    "other",
	})
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully added Instagram video",
	})
}

func (s *Server) handleWatchStatus(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if req.Status != "watched" && req.Status != "unwatched" {
		respondDetail(w, http.StatusBadRequest, "Invalid watch status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.videos[email] {
		if v.ID == id {
			s.videos[email][i].WatchStatus = req.Status
			respondJSON(w, http.StatusOK, map[string]string{"message": "Watch status updated"})
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Video not found")
}

func withEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKey{}, email)
}

func emailFrom(ctx context.Context) string {
	email, _ := ctx.Value(contextKey{}).(string)
	return email
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

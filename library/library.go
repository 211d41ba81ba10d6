// Package library holds the in-memory video collection and keeps it in
// step with the server: wholesale refreshes, lazy filtered views, and
// optimistic watch-status writes that roll back when the server says no.
package library

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"vidvault"
	"vidvault/api"
	"vidvault/session"
)

// ErrVideoNotFound indicates the requested video is not in the collection.
var ErrVideoNotFound = errors.New("library: video not found")

// Client is the slice of the API surface the library needs.
type Client interface {
	ListVideos(ctx context.Context, token string) ([]vidvault.Video, error)
	SetWatchStatus(ctx context.Context, token, videoID string, status vidvault.WatchStatus) error
}

// Library is the client-side video collection. The slice is copy-on-write:
// every mutation installs a fresh slice, so iterators ranging an older
// snapshot never observe a partial update.
type Library struct {
	api      Client
	sessions *session.Manager
	notify   vidvault.NotifyFunc
	logger   *slog.Logger

	mu       sync.RWMutex
	videos   []vidvault.Video
	inflight map[string]uuid.UUID
}

// New constructs a Library. notify may be nil, which drops signals.
func New(apiClient Client, sessions *session.Manager, notify vidvault.NotifyFunc, logger *slog.Logger) *Library {
	if apiClient == nil {
		panic("library: api client must not be nil")
	}
	if sessions == nil {
		panic("library: session manager must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		api:      apiClient,
		sessions: sessions,
		notify:   notify,
		logger:   logger,
		inflight: make(map[string]uuid.UUID),
	}
}

// Refresh replaces the collection with the server's truth. On failure the
// existing collection is kept as-is; a 401 additionally ends the session
// and emits a redirect signal.
func (l *Library) Refresh(ctx context.Context) error {
	token, ok := l.sessions.Token()
	if !ok {
		return &vidvault.PreconditionError{Op: "library.Refresh", Reason: "not logged in"}
	}

	videos, err := l.api.ListVideos(ctx, token)
	if err != nil {
		if api.IsUnauthorized(err) {
			l.expire(ctx)
		}
		return err
	}

	l.mu.Lock()
	l.videos = videos
	l.mu.Unlock()

	l.logger.Debug("library refreshed", "videos", len(videos))
	return nil
}

// SetWatchStatus flips one video's status optimistically: the collection
// changes first, the server is told second, and a failed call restores the
// status captured before the write. A later write to the same video
// supersedes the rollback, so a stale failure cannot undo a newer value.
func (l *Library) SetWatchStatus(ctx context.Context, videoID string, status vidvault.WatchStatus) error {
	token, ok := l.sessions.Token()
	if !ok {
		return &vidvault.PreconditionError{Op: "library.SetWatchStatus", Reason: "not logged in"}
	}

	l.mu.Lock()
	idx := l.indexOfLocked(videoID)
	if idx < 0 {
		l.mu.Unlock()
		return ErrVideoNotFound
	}
	prev := l.videos[idx].WatchStatus

	writeID := uuid.New()
	l.inflight[videoID] = writeID

	next := make([]vidvault.Video, len(l.videos))
	copy(next, l.videos)
	next[idx].WatchStatus = status
	l.videos = next
	l.mu.Unlock()

	err := l.api.SetWatchStatus(ctx, token, videoID, status)

	l.mu.Lock()
	if l.inflight[videoID] == writeID {
		delete(l.inflight, videoID)
		if err != nil {
			l.revertLocked(videoID, prev)
		}
	}
	l.mu.Unlock()

	if err != nil {
		if api.IsUnauthorized(err) {
			l.expire(ctx)
		}
		return err
	}
	return nil
}

// revertLocked restores a video's status after a failed write. The video
// may have vanished in a concurrent refresh; then there is nothing to
// restore.
func (l *Library) revertLocked(videoID string, prev vidvault.WatchStatus) {
	idx := l.indexOfLocked(videoID)
	if idx < 0 {
		return
	}
	next := make([]vidvault.Video, len(l.videos))
	copy(next, l.videos)
	next[idx].WatchStatus = prev
	l.videos = next
}

func (l *Library) indexOfLocked(videoID string) int {
	for i := range l.videos {
		if l.videos[i].ID == videoID {
			return i
		}
	}
	return -1
}

// expire ends the session after the server rejected our token.
func (l *Library) expire(ctx context.Context) {
	l.logger.Info("session expired, clearing stored credentials")
	if err := l.sessions.Clear(ctx); err != nil {
		l.logger.Warn("clear expired session", "error", err)
	}
	l.signal(vidvault.SignalRedirectToLogin)
}

func (l *Library) signal(sig vidvault.Signal) {
	if l.notify != nil {
		l.notify(sig)
	}
}

// Package importer runs the submit-and-refresh workflow for bringing
// videos into the library. One job at a time moves through validating,
// submitting, awaiting the server, refreshing the library, and settling
// as done or failed; every transition is observable through a callback.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidvault"
	"vidvault/api"
	"vidvault/session"
)

// ErrCanceled marks a job that was stopped by the user.
var ErrCanceled = errors.New("importer: import canceled")

// Source identifies where an import pulls from.
type Source string

const (
	// SourceYouTube imports a whole playlist.
	SourceYouTube Source = "youtube"
	// SourceInstagram imports a single reel or post.
	SourceInstagram Source = "instagram"
)

// Client is the slice of the API surface the workflow needs.
type Client interface {
	ImportYouTubePlaylist(ctx context.Context, token, playlistURL string) error
	ImportInstagramVideo(ctx context.Context, token, videoURL string) error
}

// Refresher reloads the video collection after a successful import.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Job is a snapshot of one import. Snapshots are values; holding one
// never observes later transitions.
type Job struct {
	// ID uniquely identifies the job.
	ID uuid.UUID
	// URL is the submitted URL, trimmed.
	URL string
	// Source says which import endpoint the job uses.
	Source Source
	// Phase is the job's position in the lifecycle.
	Phase Phase
	// Err is the error a failed job settled with.
	Err error
	// StartedAt is when the job was accepted.
	StartedAt time.Time
	// FinishedAt is when the job settled, zero while running.
	FinishedAt time.Time
}

// UpdateFunc observes job transitions. Callbacks receive a snapshot and
// run outside the workflow lock.
type UpdateFunc func(Job)

// Workflow owns the single import slot. Starting a job while another is
// active is rejected; cancellation settles the local job and orphans the
// in-flight request, whose late result is then ignored.
type Workflow struct {
	api      Client
	library  Refresher
	sessions *session.Manager
	notify   vidvault.NotifyFunc
	onUpdate UpdateFunc
	logger   *slog.Logger

	mu         sync.Mutex
	job        Job
	generation uint64
	cancel     context.CancelFunc
}

// New constructs a Workflow. notify and onUpdate may be nil.
func New(apiClient Client, library Refresher, sessions *session.Manager, notify vidvault.NotifyFunc, onUpdate UpdateFunc, logger *slog.Logger) *Workflow {
	if apiClient == nil {
		panic("importer: api client must not be nil")
	}
	if library == nil {
		panic("importer: library must not be nil")
	}
	if sessions == nil {
		panic("importer: session manager must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		api:      apiClient,
		library:  library,
		sessions: sessions,
		notify:   notify,
		onUpdate: onUpdate,
		logger:   logger,
		job:      Job{Phase: PhaseIdle},
	}
}

// Start begins a YouTube playlist import.
func (w *Workflow) Start(ctx context.Context, playlistURL string) error {
	return w.start(ctx, playlistURL, SourceYouTube, "Please enter a playlist URL")
}

// StartInstagram begins an Instagram reel or post import.
func (w *Workflow) StartInstagram(ctx context.Context, videoURL string) error {
	return w.start(ctx, videoURL, SourceInstagram, "Please enter a video URL")
}

func (w *Workflow) start(ctx context.Context, rawURL string, source Source, emptyMessage string) error {
	w.mu.Lock()
	if w.job.Phase.IsActive() {
		w.mu.Unlock()
		return &vidvault.PreconditionError{Op: "importer.Start", Reason: "an import is already running"}
	}

	w.generation++
	gen := w.generation

	job := Job{
		ID:        uuid.New(),
		URL:       strings.TrimSpace(rawURL),
		Source:    source,
		Phase:     PhaseValidating,
		StartedAt: time.Now(),
	}
	w.job = job
	w.mu.Unlock()
	w.emit(job)

	if job.URL == "" {
		err := &vidvault.ValidationError{Field: "url", Message: emptyMessage}
		w.settle(gen, job, err)
		return err
	}

	token, ok := w.sessions.Token()
	if !ok {
		err := &vidvault.PreconditionError{Op: "importer.Start", Reason: "not logged in"}
		w.settle(gen, job, err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		cancel()
		return ErrCanceled
	}
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(runCtx, cancel, gen, job, token)
	return nil
}

// Cancel stops the active job. A request already with the server is not
// un-sent; the server may still import, and the next refresh would show
// the result. Locally the job settles as failed with ErrCanceled, and any
// late response is dropped. Cancel without an active job is a no-op.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	if !w.job.Phase.IsActive() {
		w.mu.Unlock()
		return
	}

	// Orphan the running goroutine: its generation is now stale, so none
	// of its transitions can land.
	w.generation++
	cancel := w.cancel
	w.cancel = nil

	job := w.job
	job.Phase = PhaseFailed
	job.Err = ErrCanceled
	job.FinishedAt = time.Now()
	w.job = job
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.logger.Info("import canceled", "jobId", job.ID, "url", job.URL)
	w.emit(job)
}

// Job returns a snapshot of the current or last settled job.
func (w *Workflow) Job() Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job
}

func (w *Workflow) run(ctx context.Context, cancel context.CancelFunc, gen uint64, job Job, token string) {
	defer cancel()

	job.Phase = PhaseSubmitting
	if !w.install(gen, job) {
		return
	}

	job.Phase = PhaseAwaitingResult
	if !w.install(gen, job) {
		return
	}

	if err := w.submit(ctx, job, token); err != nil {
		if api.IsUnauthorized(err) {
			w.expire()
		}
		w.logger.Warn("import submit failed", "jobId", job.ID, "source", job.Source, "error", err)
		w.settle(gen, job, err)
		return
	}

	job.Phase = PhaseRefreshing
	if !w.install(gen, job) {
		return
	}

	if err := w.library.Refresh(ctx); err != nil {
		// A 401 here was already handled by the library.
		w.logger.Warn("post-import refresh failed", "jobId", job.ID, "error", err)
		w.settle(gen, job, err)
		return
	}

	job.Phase = PhaseDone
	job.FinishedAt = time.Now()
	w.install(gen, job)
	w.logger.Info("import finished", "jobId", job.ID, "source", job.Source)
}

func (w *Workflow) submit(ctx context.Context, job Job, token string) error {
	switch job.Source {
	case SourceInstagram:
		return w.api.ImportInstagramVideo(ctx, token, job.URL)
	default:
		return w.api.ImportYouTubePlaylist(ctx, token, job.URL)
	}
}

// install publishes a job transition unless the job has been superseded.
func (w *Workflow) install(gen uint64, job Job) bool {
	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		return false
	}
	w.job = job
	if job.Phase.IsTerminal() {
		w.cancel = nil
	}
	w.mu.Unlock()

	w.emit(job)
	return true
}

// settle marks the job failed with err, unless superseded.
func (w *Workflow) settle(gen uint64, job Job, err error) {
	job.Phase = PhaseFailed
	job.Err = err
	job.FinishedAt = time.Now()
	w.install(gen, job)
}

// expire ends the session after the server rejected our token mid-import.
func (w *Workflow) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.logger.Info("session expired during import, clearing stored credentials")
	if err := w.sessions.Clear(ctx); err != nil {
		w.logger.Warn("clear expired session", "error", err)
	}
	w.signal(vidvault.SignalRedirectToLogin)
}

func (w *Workflow) emit(job Job) {
	if w.onUpdate != nil {
		w.onUpdate(job)
	}
}

func (w *Workflow) signal(sig vidvault.Signal) {
	if w.notify != nil {
		w.notify(sig)
	}
}

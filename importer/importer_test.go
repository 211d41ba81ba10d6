package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vidvault"
	"vidvault/api"
	"vidvault/session"
)

type fakeImportClient struct {
	mu             sync.Mutex
	youtubeFunc    func(ctx context.Context, token, url string) error
	instagramFunc  func(ctx context.Context, token, url string) error
	youtubeCalls   int
	instagramCalls int
}

func (f *fakeImportClient) ImportYouTubePlaylist(ctx context.Context, token, url string) error {
	f.mu.Lock()
	f.youtubeCalls++
	fn := f.youtubeFunc
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, token, url)
}

func (f *fakeImportClient) ImportInstagramVideo(ctx context.Context, token, url string) error {
	f.mu.Lock()
	f.instagramCalls++
	fn := f.instagramFunc
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, token, url)
}

func (f *fakeImportClient) counts() (youtube, instagram int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.youtubeCalls, f.instagramCalls
}

type fakeRefresher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type signalRecorder struct {
	mu      sync.Mutex
	signals []vidvault.Signal
}

func (r *signalRecorder) notify(sig vidvault.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

func (r *signalRecorder) all() []vidvault.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]vidvault.Signal(nil), r.signals...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loggedInSessions(t *testing.T) *session.Manager {
	t.Helper()

	sessions := session.NewManager(session.NewMemoryStore(), testLogger())
	err := sessions.SetSession(context.Background(), session.Session{
		Token: "tok-abc",
		User:  vidvault.User{Name: "Ada", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sessions
}

// collectPhases drains updates until the job settles.
func collectPhases(t *testing.T, updates <-chan Job) []Phase {
	t.Helper()

	var phases []Phase
	deadline := time.After(5 * time.Second)
	for {
		select {
		case j := <-updates:
			phases = append(phases, j.Phase)
			if j.Phase.IsTerminal() {
				return phases
			}
		case <-deadline:
			t.Fatalf("job did not settle, phases so far: %v", phases)
		}
	}
}

func assertPhases(t *testing.T, got, want []Phase) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
}

func TestStartRunsToDone(t *testing.T) {
	client := &fakeImportClient{
		youtubeFunc: func(ctx context.Context, token, url string) error {
			if token != "tok-abc" {
				t.Errorf("token = %q, want tok-abc", token)
			}
			if url != "https://www.youtube.com/playlist?list=PLabc" {
				t.Errorf("url = %q", url)
			}
			return nil
		},
	}
	refresher := &fakeRefresher{}
	updates := make(chan Job, 16)

	w := New(client, refresher, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	// Surrounding whitespace is trimmed before anything else happens.
	err := w.Start(context.Background(), "  https://www.youtube.com/playlist?list=PLabc  ")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	phases := collectPhases(t, updates)
	assertPhases(t, phases, []Phase{PhaseValidating, PhaseSubmitting, PhaseAwaitingResult, PhaseRefreshing, PhaseDone})

	job := w.Job()
	if job.Err != nil {
		t.Errorf("Job().Err = %v, want nil", job.Err)
	}
	if job.FinishedAt.IsZero() {
		t.Error("finished job should have FinishedAt set")
	}
	if refresher.count() != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.count())
	}
}

func TestStartEmptyURL(t *testing.T) {
	client := &fakeImportClient{}
	refresher := &fakeRefresher{}
	updates := make(chan Job, 16)

	w := New(client, refresher, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	err := w.Start(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected validation error for empty URL")
	}

	var valErr *vidvault.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if valErr.Field != "url" {
		t.Errorf("Field = %q, want url", valErr.Field)
	}
	if valErr.Message != "Please enter a playlist URL" {
		t.Errorf("Message = %q", valErr.Message)
	}

	phases := collectPhases(t, updates)
	assertPhases(t, phases, []Phase{PhaseValidating, PhaseFailed})

	// The failure is local: nothing touched the network or the library.
	if yt, ig := client.counts(); yt != 0 || ig != 0 {
		t.Errorf("remote calls = %d/%d, want none", yt, ig)
	}
	if refresher.count() != 0 {
		t.Errorf("refresh calls = %d, want none", refresher.count())
	}
}

func TestStartInstagramEmptyURL(t *testing.T) {
	w := New(&fakeImportClient{}, &fakeRefresher{}, loggedInSessions(t), nil, nil, testLogger())

	err := w.StartInstagram(context.Background(), "")

	var valErr *vidvault.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if valErr.Message != "Please enter a video URL" {
		t.Errorf("Message = %q", valErr.Message)
	}
}

func TestStartRequiresLogin(t *testing.T) {
	client := &fakeImportClient{}
	sessions := session.NewManager(session.NewMemoryStore(), testLogger())

	w := New(client, &fakeRefresher{}, sessions, nil, nil, testLogger())

	err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLabc")

	var pre *vidvault.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected *PreconditionError, got %v", err)
	}
	if yt, _ := client.counts(); yt != 0 {
		t.Errorf("remote should not be called, got %d calls", yt)
	}
	if w.Job().Phase != PhaseFailed {
		t.Errorf("Phase = %v, want failed", w.Job().Phase)
	}
}

func TestStartRejectsWhileBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan error, 1)

	client := &fakeImportClient{
		youtubeFunc: func(ctx context.Context, token, url string) error {
			close(started)
			return <-release
		},
	}
	updates := make(chan Job, 16)

	w := New(client, &fakeRefresher{}, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	if err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLabc"); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	<-started

	err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLother")
	var pre *vidvault.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("second Start = %v, want *PreconditionError", err)
	}

	// The other entry point shares the single slot.
	if err := w.StartInstagram(context.Background(), "https://www.instagram.com/reel/C1/"); !errors.As(err, &pre) {
		t.Fatalf("StartInstagram while busy = %v, want *PreconditionError", err)
	}

	release <- nil
	phases := collectPhases(t, updates)
	if phases[len(phases)-1] != PhaseDone {
		t.Errorf("first job should still finish, phases = %v", phases)
	}
}

func TestSubmitUnauthorized(t *testing.T) {
	client := &fakeImportClient{
		youtubeFunc: func(ctx context.Context, token, url string) error {
			return &api.Error{Kind: api.KindUnauthorized, StatusCode: 401, Message: "Could not validate credentials"}
		},
	}
	sessions := loggedInSessions(t)
	recorder := &signalRecorder{}
	updates := make(chan Job, 16)

	w := New(client, &fakeRefresher{}, sessions, recorder.notify, func(j Job) { updates <- j }, testLogger())

	if err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLabc"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	phases := collectPhases(t, updates)
	if phases[len(phases)-1] != PhaseFailed {
		t.Fatalf("phases = %v, want failed terminal", phases)
	}

	if !api.IsUnauthorized(w.Job().Err) {
		t.Errorf("Job().Err = %v, want unauthorized", w.Job().Err)
	}
	if sessions.IsAuthenticated() {
		t.Error("session should be cleared after 401")
	}
	signals := recorder.all()
	if len(signals) != 1 || signals[0] != vidvault.SignalRedirectToLogin {
		t.Errorf("signals = %v, want [redirect-to-login]", signals)
	}
}

func TestRefreshFailureFailsJob(t *testing.T) {
	refreshErr := &api.Error{Kind: api.KindServerError, StatusCode: 500, Message: "Failed to load videos."}
	refresher := &fakeRefresher{err: refreshErr}
	updates := make(chan Job, 16)

	w := New(&fakeImportClient{}, refresher, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	if err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLabc"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	phases := collectPhases(t, updates)
	assertPhases(t, phases, []Phase{PhaseValidating, PhaseSubmitting, PhaseAwaitingResult, PhaseRefreshing, PhaseFailed})

	if !errors.Is(w.Job().Err, refreshErr) {
		t.Errorf("Job().Err = %v, want the refresh error", w.Job().Err)
	}
}

func TestCancelSettlesJobAndDropsLateResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan error, 1)

	client := &fakeImportClient{
		youtubeFunc: func(ctx context.Context, token, url string) error {
			close(started)
			select {
			case err := <-release:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	refresher := &fakeRefresher{}
	updates := make(chan Job, 16)

	w := New(client, refresher, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	if err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLabc"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started

	w.Cancel()

	job := w.Job()
	if job.Phase != PhaseFailed {
		t.Fatalf("Phase after cancel = %v, want failed", job.Phase)
	}
	if !errors.Is(job.Err, ErrCanceled) {
		t.Errorf("Err = %v, want ErrCanceled", job.Err)
	}
	if job.FinishedAt.IsZero() {
		t.Error("canceled job should have FinishedAt set")
	}

	// A late success must not resurrect the job: its generation is stale,
	// so the refresh step can never run.
	release <- nil
	if got := w.Job(); !errors.Is(got.Err, ErrCanceled) || got.Phase != PhaseFailed {
		t.Errorf("late result changed the job: %+v", got)
	}
	if refresher.count() != 0 {
		t.Errorf("refresh calls = %d, want none after cancel", refresher.count())
	}
}

func TestCancelWhileIdle(t *testing.T) {
	w := New(&fakeImportClient{}, &fakeRefresher{}, loggedInSessions(t), nil, nil, testLogger())

	w.Cancel()

	if w.Job().Phase != PhaseIdle {
		t.Errorf("Phase = %v, want idle", w.Job().Phase)
	}
}

func TestStartInstagramRoutesToInstagramEndpoint(t *testing.T) {
	client := &fakeImportClient{
		instagramFunc: func(ctx context.Context, token, url string) error {
			if url != "https://www.instagram.com/reel/C1/" {
				t.Errorf("url = %q", url)
			}
			return nil
		},
	}
	updates := make(chan Job, 16)

	w := New(client, &fakeRefresher{}, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	if err := w.StartInstagram(context.Background(), "https://www.instagram.com/reel/C1/"); err != nil {
		t.Fatalf("StartInstagram failed: %v", err)
	}

	phases := collectPhases(t, updates)
	if phases[len(phases)-1] != PhaseDone {
		t.Fatalf("phases = %v, want done terminal", phases)
	}

	yt, ig := client.counts()
	if yt != 0 || ig != 1 {
		t.Errorf("calls = %d youtube / %d instagram, want 0/1", yt, ig)
	}
	if w.Job().Source != SourceInstagram {
		t.Errorf("Source = %v, want instagram", w.Job().Source)
	}
}

func TestStartAfterSettledJob(t *testing.T) {
	updates := make(chan Job, 16)
	w := New(&fakeImportClient{}, &fakeRefresher{}, loggedInSessions(t), nil, func(j Job) { updates <- j }, testLogger())

	// First job fails validation.
	if err := w.Start(context.Background(), ""); err == nil {
		t.Fatal("expected validation error")
	}
	collectPhases(t, updates)

	// The slot is free again.
	if err := w.Start(context.Background(), "https://www.youtube.com/playlist?list=PLabc"); err != nil {
		t.Fatalf("Start after settled job failed: %v", err)
	}
	phases := collectPhases(t, updates)
	if phases[len(phases)-1] != PhaseDone {
		t.Errorf("phases = %v, want done terminal", phases)
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"vidvault"
	"vidvault/api"
	"vidvault/auth"
	"vidvault/config"
	"vidvault/importer"
	"vidvault/internal/retry"
	"vidvault/library"
	"vidvault/session"
	"vidvault/youtube"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "register":
		cmdRegister(args)
	case "login":
		cmdLogin(args)
	case "logout":
		cmdLogout(args)
	case "whoami":
		cmdWhoami(args)
	case "list":
		cmdList(args)
	case "genres":
		cmdGenres(args)
	case "import":
		cmdImport(args)
	case "import-reel":
		cmdImportReel(args)
	case "watch":
		cmdWatchStatus(args, vidvault.StatusWatched)
	case "unwatch":
		cmdWatchStatus(args, vidvault.StatusUnwatched)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `vidvault - save videos now, watch them later

Usage:
  vidvault register                        Create an account and sign in
  vidvault login                           Sign in
  vidvault logout                          Sign out and forget the session
  vidvault whoami                          Show the signed-in account
  vidvault list [flags]                    List saved videos
  vidvault genres                          List genres present in the library
  vidvault import [flags] <playlist-url>   Import a YouTube playlist
  vidvault import-reel <reel-url>          Save an Instagram reel
  vidvault watch <video-id>                Mark a video watched
  vidvault unwatch <video-id>              Mark a video unwatched
  vidvault help                            Show this help message

Examples:
  vidvault login --email ada@example.com
  vidvault list --search bach --platform youtube
  vidvault import --preview "https://www.youtube.com/playlist?list=PLxxxx"
  vidvault watch dQw4w9WgXcQ

For help on specific command: vidvault <command> -h
`)
}

// app is the composition root: config, logger, API client, session store.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	store    session.Store
	sessions *session.Manager
}

func newApp() *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session store: %v\n", err)
		os.Exit(1)
	}

	apiCfg := api.DefaultConfig()
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.Timeout = cfg.Timeout
	apiCfg.RequestsPerSecond = cfg.RequestsPerSecond
	apiCfg.Retry = retry.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: retry.DefaultConfig().JitterFraction,
	}
	apiCfg.Breaker = api.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		RecoveryTimeout:  cfg.BreakerCooldown,
	}
	client := api.New(apiCfg)

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    store,
		sessions: session.NewManager(store, logger),
	}
}

func openStore(cfg *config.Config) (session.Store, error) {
	if cfg.SessionBackend == config.SessionBackendFile {
		return session.NewFileStore(cfg.SessionFile()), nil
	}
	return session.OpenSQLite(cfg.SessionFile())
}

func (a *app) close() {
	a.client.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing session store", "error", err)
	}
}

func (a *app) restore(ctx context.Context) {
	if err := a.sessions.Restore(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error restoring session: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) requireLogin(ctx context.Context) {
	a.restore(ctx)
	if !a.sessions.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, "Not signed in. Run: vidvault login")
		os.Exit(1)
	}
}

// printSignal renders navigation signals as hints on stderr.
func printSignal(s vidvault.Signal) {
	switch s {
	case vidvault.SignalRedirectToLogin:
		fmt.Fprintln(os.Stderr, "Session expired. Run: vidvault login")
	case vidvault.SignalGoToLogin:
		fmt.Fprintln(os.Stderr, "Run: vidvault login")
	}
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (prompted when omitted)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault register [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	a := newApp()
	defer a.close()
	ctx := context.Background()

	form := &auth.RegisterForm{}
	form.SetName(valueOrPrompt(*name, "Name: "))
	form.SetEmail(valueOrPrompt(*email, "Email: "))
	if *password != "" {
		form.SetPassword(*password)
		form.SetConfirm(*password)
	} else {
		form.SetPassword(valueOrPrompt("", "Password: "))
		form.SetConfirm(valueOrPrompt("", "Confirm password: "))
	}

	flow := auth.New(a.client, a.sessions, printSignal, a.logger)
	out, err := flow.Register(ctx, form)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", out.Message)
		os.Exit(1)
	}
	if out.Next == vidvault.SignalGoToLogin {
		// Account exists but the automatic sign-in failed.
		fmt.Println(out.Message)
		return
	}

	u, _ := a.sessions.User()
	fmt.Printf("Welcome, %s! Signed in as %s.\n", u.Name, u.Email)
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (prompted when omitted)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault login [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	a := newApp()
	defer a.close()
	ctx := context.Background()

	form := &auth.LoginForm{}
	form.SetEmail(valueOrPrompt(*email, "Email: "))
	form.SetPassword(valueOrPrompt(*password, "Password: "))

	flow := auth.New(a.client, a.sessions, printSignal, a.logger)
	out, err := flow.Login(ctx, form)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", out.Message)
		os.Exit(1)
	}

	u, _ := a.sessions.User()
	fmt.Printf("Signed in as %s <%s>.\n", u.Name, u.Email)
}

func cmdLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault logout\n")
	}
	fs.Parse(args)

	a := newApp()
	defer a.close()
	ctx := context.Background()
	a.restore(ctx)

	flow := auth.New(a.client, a.sessions, nil, a.logger)
	if err := flow.Logout(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error signing out: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signed out.")
}

func cmdWhoami(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault whoami\n")
	}
	fs.Parse(args)

	a := newApp()
	defer a.close()
	ctx := context.Background()
	a.restore(ctx)

	if !a.sessions.IsAuthenticated() {
		fmt.Println("Not signed in.")
		return
	}

	u, _ := a.sessions.User()
	fmt.Printf("%s <%s>\n", u.Name, u.Email)
	if exp, ok := a.sessions.ExpiresAt(); ok {
		fmt.Printf("Session expires %s\n", exp.Local().Format(time.RFC1123))
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	search := fs.String("search", "", "Keep only titles containing this term")
	genre := fs.String("genre", "all", "Keep only this genre")
	platform := fs.String("platform", "all", "Keep only this platform: youtube, instagram, or all")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault list [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	a := newApp()
	defer a.close()
	ctx := context.Background()
	a.requireLogin(ctx)

	lib := library.New(a.client, a.sessions, printSignal, a.logger)
	if err := lib.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", api.Message(err))
		os.Exit(1)
	}

	filter := vidvault.Filter{
		SearchTerm: *search,
		Genre:      *genre,
		Platform:   *platform,
	}

	count := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPLATFORM\tGENRE\tSTATUS\tSAVED")
	for v := range lib.ApplyFilter(filter) {
		count++
		saved := ""
		if !v.SavedAt.IsZero() {
			saved = v.SavedAt.Local().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			truncate(v.Title, 50),
			v.Platform,
			v.Genre,
			v.WatchStatus,
			saved,
		)
	}
	w.Flush()

	if count == 0 {
		fmt.Println("No videos found.")
		return
	}
	fmt.Fprintf(os.Stderr, "\nTotal: %d videos\n", count)
}

func cmdGenres(args []string) {
	fs := flag.NewFlagSet("genres", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault genres\n")
	}
	fs.Parse(args)

	a := newApp()
	defer a.close()
	ctx := context.Background()
	a.requireLogin(ctx)

	lib := library.New(a.client, a.sessions, printSignal, a.logger)
	if err := lib.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", api.Message(err))
		os.Exit(1)
	}

	genres := lib.DistinctGenres()
	if len(genres) == 0 {
		fmt.Println("No genres yet.")
		return
	}
	for _, g := range genres {
		fmt.Println(g)
	}
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	preview := fs.Bool("preview", false, "Look the playlist up before importing (needs youtube_api_key)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault import [flags] <playlist-url>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing playlist-url\n")
		fs.Usage()
		os.Exit(1)
	}
	playlistURL := argv[0]

	a := newApp()
	defer a.close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a.requireLogin(ctx)

	if *preview {
		printPreview(ctx, a, playlistURL)
	}

	lib := library.New(a.client, a.sessions, printSignal, a.logger)
	runImport(ctx, a, lib, func(w *importer.Workflow) error {
		return w.Start(ctx, playlistURL)
	})
	fmt.Printf("Imported. Library now holds %d videos.\n", lib.Len())
}

func cmdImportReel(args []string) {
	fs := flag.NewFlagSet("import-reel", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault import-reel <reel-url>\n")
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing reel-url\n")
		fs.Usage()
		os.Exit(1)
	}
	reelURL := argv[0]

	a := newApp()
	defer a.close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a.requireLogin(ctx)

	lib := library.New(a.client, a.sessions, printSignal, a.logger)
	runImport(ctx, a, lib, func(w *importer.Workflow) error {
		return w.StartInstagram(ctx, reelURL)
	})
	fmt.Println("Reel saved.")
}

// printPreview resolves the playlist via the Data API when a key is
// configured. Preview trouble never blocks the import.
func printPreview(ctx context.Context, a *app, playlistURL string) {
	if a.cfg.YouTubeAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Preview needs youtube_api_key in the config; skipping.")
		return
	}

	pc, err := youtube.NewPreviewClient(ctx, a.cfg.YouTubeAPIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: preview unavailable: %v\n", err)
		return
	}
	p, err := pc.PreviewPlaylist(ctx, playlistURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: preview failed: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Playlist: %s by %s (%d videos)\n", p.Title, p.ChannelTitle, p.ItemCount)
}

// runImport drives one workflow run to its terminal phase, narrating
// progress on stderr. It exits the process when the job fails.
func runImport(ctx context.Context, a *app, lib *library.Library, start func(*importer.Workflow) error) {
	done := make(chan importer.Job, 1)
	w := importer.New(a.client, lib, a.sessions, printSignal, func(job importer.Job) {
		switch job.Phase {
		case importer.PhaseSubmitting:
			fmt.Fprintln(os.Stderr, "Submitting...")
		case importer.PhaseRefreshing:
			fmt.Fprintln(os.Stderr, "Accepted, refreshing library...")
		}
		if job.Phase.IsTerminal() {
			select {
			case done <- job:
			default:
			}
		}
	}, a.logger)

	if err := start(w); err != nil {
		var vErr *vidvault.ValidationError
		if errors.As(err, &vErr) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", vErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	job := <-done
	if job.Phase == importer.PhaseFailed {
		fmt.Fprintf(os.Stderr, "Import failed: %s\n", api.Message(job.Err))
		os.Exit(1)
	}
}

func cmdWatchStatus(args []string, status vidvault.WatchStatus) {
	name := "watch"
	if status == vidvault.StatusUnwatched {
		name = "unwatch"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidvault %s <video-id>\n", name)
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-id\n")
		fs.Usage()
		os.Exit(1)
	}
	videoID := argv[0]

	a := newApp()
	defer a.close()
	ctx := context.Background()
	a.requireLogin(ctx)

	lib := library.New(a.client, a.sessions, printSignal, a.logger)
	if err := lib.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", api.Message(err))
		os.Exit(1)
	}

	if err := lib.SetWatchStatus(ctx, videoID, status); err != nil {
		if errors.Is(err, library.ErrVideoNotFound) {
			fmt.Fprintf(os.Stderr, "No video with id %q in your library.\n", videoID)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", api.Message(err))
		}
		os.Exit(1)
	}
	fmt.Printf("Marked %s %s.\n", videoID, status)
}

var stdin = bufio.NewReader(os.Stdin)

func valueOrPrompt(value, label string) string {
	if value != "" {
		return value
	}
	fmt.Fprint(os.Stderr, label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

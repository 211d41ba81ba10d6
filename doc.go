// Package vidvault holds the client-side state engine for a VidVault
// video-bookmarking account: the session, the video library, and the
// import and authentication workflows that mutate them.
//
// It talks to a VidVault server over its REST API and keeps the local
// view consistent with it: optimistic writes roll back on failure, a 401
// from any authorized call clears the session, and navigation intents
// are emitted as signals instead of being rendered.
//
// Overview
//
// The root package defines the shared vocabulary:
//
//   - Video, User, Filter: the library records and how views narrow them
//   - Signal, NotifyFunc: presentation-facing navigation events
//   - ValidationError, PreconditionError: local failures that never
//     reach the network
//
// The behavior lives in the sub-packages:
//
//   - api: typed REST client with retries, rate limiting, and a
//     circuit breaker
//   - session: durable token/user storage (SQLite or JSON file) behind
//     an in-memory manager
//   - library: the video collection, lazy filtering, and optimistic
//     watch-status writes
//   - importer: the bounded import workflow for playlists and reels
//   - auth: login and register-then-auto-login flows
//   - youtube: optional playlist preview via the YouTube Data API
//
// Quick Start
//
// Wire the components and restore the previous session:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client := api.New(api.DefaultConfig())
//	defer client.Close()
//
//	store, err := session.OpenSQLite(cfg.SessionFile())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	sessions := session.NewManager(store, logger)
//	if err := sessions.Restore(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Browse the library:
//
//	lib := library.New(client, sessions, notify, logger)
//	if err := lib.Refresh(ctx); err != nil {
//		log.Fatal(err)
//	}
//	for v := range lib.ApplyFilter(vidvault.Filter{SearchTerm: "bach"}) {
//		fmt.Println(v.Title)
//	}
//
// Import a playlist:
//
//	imports := importer.New(client, lib, sessions, notify, onUpdate, logger)
//	if err := imports.Start(ctx, playlistURL); err != nil {
//		log.Fatal(err)
//	}
//
// Configuration
//
// vidvault uses a configuration system that loads settings from multiple
// sources:
//
//   1. Environment variables (highest priority)
//   2. Config file (vidvault.json or ~/.config/vidvault/vidvault.json)
//   3. Default values (lowest priority)
//
// Environment variables:
//
//   - VIDVAULT_BASE_URL: Root URL of the VidVault server
//   - VIDVAULT_TIMEOUT: Per-request HTTP timeout
//   - VIDVAULT_SESSION_BACKEND: Session storage, sqlite or file
//   - VIDVAULT_SESSION_PATH: Session file location override
//   - VIDVAULT_REQUESTS_PER_SECOND: Client-side API pacing
//   - VIDVAULT_MAX_RETRIES: Maximum retry attempts
//   - VIDVAULT_INITIAL_BACKOFF: Initial retry backoff duration
//   - VIDVAULT_MAX_BACKOFF: Maximum retry backoff duration
//   - VIDVAULT_BREAKER_THRESHOLD: Failures before the circuit opens
//   - VIDVAULT_BREAKER_COOLDOWN: How long the circuit stays open
//   - VIDVAULT_YOUTUBE_API_KEY: Enables playlist previews
//   - VIDVAULT_LOG_LEVEL: debug, info, warn, or error
//
// Error Handling
//
// All operations return errors that work with the standard errors
// package.
//
// Checking for local validation failures:
//
//	var vErr *vidvault.ValidationError
//	if errors.As(err, &vErr) {
//		highlight(vErr.Field, vErr.Message)
//	}
//
// Branching on what the server said:
//
//	var apiErr *api.Error
//	if errors.As(err, &apiErr) && apiErr.Kind == api.KindNetwork {
//		fmt.Println("server unreachable, try again")
//	}
//
// A 401 never needs handling at call sites: the session layer clears the
// stored session and emits SignalRedirectToLogin.
//
package vidvault

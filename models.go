package vidvault

import "time"

// Platform identifies the source site of a saved video.
type Platform string

const (
	// PlatformYouTube marks videos imported from YouTube playlists.
	PlatformYouTube Platform = "youtube"
	// PlatformInstagram marks videos saved from Instagram reels or posts.
	PlatformInstagram Platform = "instagram"
)

// WatchStatus is the per-video flag tracking whether the user has viewed it.
type WatchStatus string

const (
	// StatusWatched marks a video the user has viewed.
	StatusWatched WatchStatus = "watched"
	// StatusUnwatched marks a video the user has not viewed yet.
	StatusUnwatched WatchStatus = "unwatched"
)

// User identifies the authenticated account.
type User struct {
	// ID is the server-assigned identifier, when the server provides one.
	ID string `json:"id,omitempty"`
	// Name is the display name chosen at registration.
	Name string `json:"name"`
	// Email is the account email, used as the login username.
	Email string `json:"email"`
}

// Video is a saved video in the user's library.
// All fields are populated at creation; only WatchStatus changes afterward.
type Video struct {
	// ID is the platform-scoped video identifier.
	ID string `json:"id"`
	// Title is the video title as reported by the platform.
	Title string `json:"title"`
	// ThumbnailURL points at the preview image. Wire name is "thumbnail".
	ThumbnailURL string `json:"thumbnail"`
	// Platform is the source site (youtube or instagram).
	Platform Platform `json:"platform"`
	// Genre is the server-classified genre label.
	Genre string `json:"genre"`
	// SavedAt is when the video was added to the library.
	SavedAt time.Time `json:"savedAt"`
	// WatchStatus is watched or unwatched.
	WatchStatus WatchStatus `json:"watchStatus"`
}

// FilterAll is the wildcard value for the genre and platform filters.
const FilterAll = "all"

// Filter narrows the library view. The zero value matches everything.
type Filter struct {
	// SearchTerm is matched against titles, case-insensitively.
	// An empty term matches every video.
	SearchTerm string
	// Genre keeps only videos with an equal genre.
	// FilterAll or empty disables the check.
	Genre string
	// Platform keeps only videos from an equal platform.
	// FilterAll or empty disables the check.
	Platform string
}

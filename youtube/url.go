package youtube

import (
	"errors"
	"strings"
)

// ErrInvalidURL means the URL carries no playlist id.
var ErrInvalidURL = errors.New("youtube: invalid playlist URL")

// ErrPlaylistNotFound means the Data API knows no playlist with that id.
var ErrPlaylistNotFound = errors.New("youtube: playlist not found")

// ExtractPlaylistID pulls the playlist id out of a YouTube URL. It takes
// everything after the last "list=" up to the next "&", the same rule
// the server applies when it imports the playlist.
func ExtractPlaylistID(rawURL string) (string, error) {
	idx := strings.LastIndex(rawURL, "list=")
	if idx == -1 {
		return "", ErrInvalidURL
	}
	id := rawURL[idx+len("list="):]
	if amp := strings.IndexByte(id, '&'); amp != -1 {
		id = id[:amp]
	}
	if id == "" {
		return "", ErrInvalidURL
	}
	return id, nil
}

// Package youtube resolves playlist URLs against the YouTube Data API so
// a user can see what a playlist holds before importing it. The preview
// is advisory and API-key-gated; imports never depend on it.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"vidvault/internal/retry"
)

// Preview describes a playlist before import.
type Preview struct {
	// ID is the playlist id extracted from the URL.
	ID string
	// Title is the playlist title.
	Title string
	// ChannelTitle is the channel that owns the playlist.
	ChannelTitle string
	// ItemCount is the number of videos in the playlist.
	ItemCount int64
}

// PreviewClient looks up playlists using the YouTube Data API v3.
type PreviewClient struct {
	service *yt.Service

	// RetryConfig controls retries for transient API failures.
	RetryConfig retry.Config
}

// NewPreviewClient creates a client authenticated with apiKey. Extra
// options are applied after the key, so callers can point the service at
// a different endpoint.
func NewPreviewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*PreviewClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube: api key required")
	}

	service, err := yt.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &PreviewClient{
		service:     service,
		RetryConfig: retry.DefaultConfig(),
	}, nil
}

// PreviewPlaylist resolves the playlist behind rawURL to its title and
// size. It returns ErrInvalidURL when no playlist id can be extracted
// and ErrPlaylistNotFound when the API has no such playlist.
func (p *PreviewClient) PreviewPlaylist(ctx context.Context, rawURL string) (*Preview, error) {
	id, err := ExtractPlaylistID(rawURL)
	if err != nil {
		return nil, err
	}

	var preview *Preview
	err = retry.Do(ctx, p.RetryConfig, previewErrorClassifier, func(ctx context.Context) error {
		call := p.service.Playlists.List([]string{"snippet", "contentDetails"}).
			Id(id).
			MaxResults(1).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return ErrPlaylistNotFound
		}

		item := resp.Items[0]
		preview = &Preview{ID: id}
		if item.Snippet != nil {
			preview.Title = item.Snippet.Title
			preview.ChannelTitle = item.Snippet.ChannelTitle
		}
		if item.ContentDetails != nil {
			preview.ItemCount = item.ContentDetails.ItemCount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return preview, nil
}

// previewErrorClassifier treats server-side trouble and rate limiting as
// transient. Missing playlists, bad keys, and exhausted quota are
// permanent; retrying cannot fix them.
func previewErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPlaylistNotFound) || errors.Is(err, ErrInvalidURL) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests
	}

	return retry.IsRetryable(err)
}

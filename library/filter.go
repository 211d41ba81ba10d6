package library

import (
	"iter"
	"sort"
	"strings"

	"vidvault"
)

// ApplyFilter returns a lazy view of the collection. Nothing is evaluated
// until the sequence is ranged; each restart re-reads the collection as it
// is at that moment. The filter never mutates the library.
func (l *Library) ApplyFilter(f vidvault.Filter) iter.Seq[vidvault.Video] {
	return func(yield func(vidvault.Video) bool) {
		l.mu.RLock()
		videos := l.videos
		l.mu.RUnlock()

		for _, v := range videos {
			if !matches(v, f) {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// matches applies all filter dimensions; an empty dimension (or the "all"
// wildcard) matches everything.
func matches(v vidvault.Video, f vidvault.Filter) bool {
	if term := strings.ToLower(f.SearchTerm); term != "" {
		if !strings.Contains(strings.ToLower(v.Title), term) {
			return false
		}
	}
	if f.Genre != "" && f.Genre != vidvault.FilterAll && v.Genre != f.Genre {
		return false
	}
	if f.Platform != "" && f.Platform != vidvault.FilterAll && string(v.Platform) != f.Platform {
		return false
	}
	return true
}

// Videos returns a copy of the current collection.
func (l *Library) Videos() []vidvault.Video {
	l.mu.RLock()
	defer l.mu.RUnlock()

	videos := make([]vidvault.Video, len(l.videos))
	copy(videos, l.videos)
	return videos
}

// Len returns the number of videos in the collection.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.videos)
}

// DistinctGenres returns the sorted set of genres present in the
// collection. Videos without a genre do not contribute.
func (l *Library) DistinctGenres() []string {
	l.mu.RLock()
	videos := l.videos
	l.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, v := range videos {
		if v.Genre == "" {
			continue
		}
		seen[v.Genre] = struct{}{}
	}

	genres := make([]string, 0, len(seen))
	for g := range seen {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

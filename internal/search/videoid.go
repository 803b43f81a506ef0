package search

import (
	"net/url"
	"strings"
)

// ExtractVideoID pulls the stable video id out of a YouTube link. The id is
// the dedup key for the whole store, so every link shape the results page
// can hand back needs to normalize to the same value.
func ExtractVideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			if id := u.Query().Get("v"); validVideoID(id) {
				return id, true
			}
			return "", false
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id := strings.TrimPrefix(u.Path, prefix)
				if i := strings.IndexByte(id, '/'); i >= 0 {
					id = id[:i]
				}
				if validVideoID(id) {
					return id, true
				}
			}
		}
		return "", false
	case "youtu.be":
		id := strings.TrimPrefix(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		if validVideoID(id) {
			return id, true
		}
		return "", false
	default:
		return "", false
	}
}

func validVideoID(id string) bool {
	if len(id) != 11 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// WatchURL is the canonical link stored for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// ResultsURL builds the results-page URL for a title query. The "song"
// prefix biases results toward music uploads.
func ResultsURL(title string) string {
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape("song: "+title)
}

package util

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/alanbriolat/channel-archiver/generic"
)

var (
	ErrNotVideoURL = errors.New("not a video URL")
)

const DefaultBaseURL = "https://www.youtube.com"

// Video IDs are exactly 11 characters from the URL-safe base64 alphabet.
var contentIDPattern = regexp.MustCompile(`v=([a-zA-Z0-9_-]{11})`)

// Query parameters that only describe where a video was viewed from, not which video it is.
var playlistParams = []string{"list", "index", "pp", "start_radio"}

// ExtractContentID finds the video ID in the v= query parameter of a URL. The result is None if there is no such
// parameter, in which case the URL is still a valid job but has no known identity.
func ExtractContentID(s string) generic.Option[string] {
	match := contentIDPattern.FindStringSubmatch(s)
	if match == nil {
		return generic.None[string]()
	}
	return generic.Some(match[1])
}

// VideoURL builds the canonical watch URL for a video ID.
func VideoURL(id string) string {
	return fmt.Sprintf("%s/watch?v=%s", DefaultBaseURL, id)
}

// AbsoluteURL resolves a (possibly site-relative) href against base.
func AbsoluteURL(base string, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// StripPlaylistParams removes playlist-position query parameters, so the same video discovered through different
// collections always has the same URL. Other query parameters are kept in their original order.
func StripPlaylistParams(s string) (string, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if parsedURL.RawQuery == "" {
		return s, nil
	}
	kept := make([]string, 0)
	for _, part := range strings.Split(parsedURL.RawQuery, "&") {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		if !isPlaylistParam(key) {
			kept = append(kept, part)
		}
	}
	parsedURL.RawQuery = strings.Join(kept, "&")
	return parsedURL.String(), nil
}

// NormalizeVideoURL turns an href found on a collection page into the URL a job is stored under.
func NormalizeVideoURL(base string, href string) (string, error) {
	if !strings.Contains(href, "/watch?v=") {
		return "", ErrNotVideoURL
	}
	abs, err := AbsoluteURL(base, href)
	if err != nil {
		return "", err
	}
	return StripPlaylistParams(abs)
}

// IsPlaylistURL returns true for URLs that reference a playlist rather than a single video or channel.
func IsPlaylistURL(s string) bool {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return false
	}
	return parsedURL.Query().Get("list") != "" && (parsedURL.Path == "/playlist" || parsedURL.Path == "/watch")
}

// IsChannelURL returns true for URLs that reference a channel page, e.g. https://www.youtube.com/@name/videos.
func IsChannelURL(s string) bool {
	parsedURL, err := url.Parse(s)
	if err != nil || !parsedURL.IsAbs() {
		return false
	}
	path := parsedURL.Path
	for _, prefix := range []string{"/@", "/channel/", "/c/", "/user/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isPlaylistParam(key string) bool {
	for _, p := range playlistParams {
		if key == p {
			return true
		}
	}
	return false
}

package learning

import (
	"regexp"
	"strings"
)

var youtubeID = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([A-Za-z0-9_-]{11})`)

// IsYouTubeURL reports whether url points to a YouTube video.
func IsYouTubeURL(url string) bool {
	return youtubeID.MatchString(url)
}

// YouTubeEmbedURL converts a YouTube watch or share URL into an embeddable
// player URL with branding minimized. Returns "" when no video id is found.
func YouTubeEmbedURL(url string) string {
	m := youtubeID.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return "https://www.youtube.com/embed/" + m[1] + "?rel=0&modestbranding=1"
}

// Source resolves a lesson content URL to an absolute playable source:
// YouTube links become embed URLs, relative paths are joined with the asset
// base, absolute URLs pass through.
func Source(url, base string) string {
	if url == "" {
		return ""
	}
	if embed := YouTubeEmbedURL(url); embed != "" {
		return embed
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(url, "/")
}

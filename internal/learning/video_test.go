package learning

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestYouTubeEmbedURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ?rel=0&modestbranding=1"},
		{"https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ?rel=0&modestbranding=1"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ?rel=0&modestbranding=1"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ?rel=0&modestbranding=1"},
		{"https://vimeo.com/12345", ""},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, YouTubeEmbedURL(tc.in), "input %q", tc.in)
	}
}

func TestIsYouTubeURL(t *testing.T) {
	require.True(t, IsYouTubeURL("https://youtu.be/dQw4w9WgXcQ"))
	require.False(t, IsYouTubeURL("https://example.com/video.mp4"))
}

func TestSource(t *testing.T) {
	base := "http://localhost:4000"
	require.Equal(t,
		"https://www.youtube.com/embed/dQw4w9WgXcQ?rel=0&modestbranding=1",
		Source("https://youtu.be/dQw4w9WgXcQ", base))
	require.Equal(t,
		"https://cdn.example.com/lesson.mp4",
		Source("https://cdn.example.com/lesson.mp4", base))
	require.Equal(t,
		"http://localhost:4000/uploads/lesson.mp4",
		Source("/uploads/lesson.mp4", base))
	require.Equal(t, "", Source("", base))
}

package courseschema

import "testing"

func TestDeriveVideoFromYouTubeShortLink(t *testing.T) {
	video := DeriveVideo(map[string]any{"videoUrl": "https://youtu.be/abc123"})
	if video == nil {
		t.Fatal("expected video to be derived")
	}
	if video.Type != VideoTypeYouTube {
		t.Fatalf("expected youtube, got %q", video.Type)
	}
	if video.EmbedURL != "https://www.youtube.com/embed/abc123" {
		t.Fatalf("unexpected embed url %q", video.EmbedURL)
	}
	if video.ThumbnailURL != "https://img.youtube.com/vi/abc123/hqdefault.jpg" {
		t.Fatalf("unexpected thumbnail %q", video.ThumbnailURL)
	}
	if video.SourceType != VideoSourceEmbed || video.Provider != "youtube" {
		t.Fatalf("unexpected source %q / provider %q", video.SourceType, video.Provider)
	}
}

func TestDeriveVideoLocations(t *testing.T) {
	cases := []struct {
		name    string
		content map[string]any
		url     string
		typ     VideoType
		embed   string
	}{
		{
			name:    "nested watch link",
			content: map[string]any{"video": map[string]any{"url": "https://www.youtube.com/watch?v=XyZ_9&t=3"}},
			url:     "https://www.youtube.com/watch?v=XyZ_9&t=3",
			typ:     VideoTypeYouTube,
			embed:   "https://www.youtube.com/embed/XyZ_9",
		},
		{
			name:    "vimeo src",
			content: map[string]any{"src": "https://vimeo.com/76979871"},
			url:     "https://vimeo.com/76979871",
			typ:     VideoTypeVimeo,
			embed:   "https://player.vimeo.com/video/76979871",
		},
		{
			name:    "loom passes through",
			content: map[string]any{"videoSrc": "https://www.loom.com/share/abc"},
			url:     "https://www.loom.com/share/abc",
			typ:     VideoTypeLoom,
			embed:   "https://www.loom.com/share/abc",
		},
		{
			name:    "mp4 resource",
			content: map[string]any{"resources": []any{"notes.pdf", map[string]any{"url": "/media/intro.MP4"}}},
			url:     "/media/intro.MP4",
			typ:     VideoTypeNative,
			embed:   "/media/intro.MP4",
		},
		{
			name:    "external host",
			content: map[string]any{"videoUrl": "https://cdn.example.com/v.m3u8"},
			url:     "https://cdn.example.com/v.m3u8",
			typ:     VideoTypeExternal,
			embed:   "https://cdn.example.com/v.m3u8",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			video := DeriveVideo(tc.content)
			if video == nil {
				t.Fatal("expected video to be derived")
			}
			if video.URL != tc.url || video.Type != tc.typ || video.EmbedURL != tc.embed {
				t.Fatalf("unexpected video %+v", video)
			}
		})
	}
}

func TestDeriveVideoWithoutCandidate(t *testing.T) {
	if video := DeriveVideo(map[string]any{"textContent": "hello"}); video != nil {
		t.Fatalf("expected no video, got %+v", video)
	}
}

func TestDeriveVideoReadsDurationAndTitle(t *testing.T) {
	video := DeriveVideo(map[string]any{
		"videoUrl":      "/media/a.mp4",
		"videoDuration": "90",
		"videoTitle":    "Intro",
		"poster":        "/media/a.jpg",
	})
	if video.DurationSeconds == nil || *video.DurationSeconds != 90 {
		t.Fatalf("expected 90 seconds, got %v", video.DurationSeconds)
	}
	if video.Title != "Intro" || video.ThumbnailURL != "/media/a.jpg" {
		t.Fatalf("unexpected title %q / thumbnail %q", video.Title, video.ThumbnailURL)
	}
}

func TestEmbedURLKeepsExistingEmbed(t *testing.T) {
	url := "https://www.youtube-nocookie.com/embed/abc"
	if got := EmbedURL(VideoTypeYouTube, url); got != url {
		t.Fatalf("expected embed url to be kept, got %q", got)
	}
}

func TestDeriveVideoIgnoresOutOfRangeDuration(t *testing.T) {
	video := DeriveVideo(map[string]any{"videoUrl": "/media/a.mp4", "videoDuration": 1e19})
	if video.DurationSeconds != nil {
		t.Fatalf("expected no duration, got %d", *video.DurationSeconds)
	}
}

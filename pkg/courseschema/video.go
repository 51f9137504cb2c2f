package courseschema

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	youtubeWatchRE  = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]+)`)
	youtubeShortRE  = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]+)`)
	youtubeShortsRE = regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]+)`)
	youtubeEmbedRE  = regexp.MustCompile(`youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]+)`)
	vimeoIDRE       = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// DeriveVideo synthesizes the canonical video object from whichever legacy
// location holds a playable URL: video.url, video.src, videoUrl, src,
// videoSrc, or the first .mp4 entry of resources. It returns nil when the
// record has no candidate URL.
func DeriveVideo(content map[string]any) *VideoMetadata {
	nested, _ := asMap(content["video"])
	if nested == nil {
		nested = map[string]any{}
	}

	url, ok := nonEmptyString(nested, "url", "src")
	if !ok {
		url, ok = nonEmptyString(content, "videoUrl", "src", "videoSrc")
	}
	if !ok {
		url, ok = firstMP4Resource(content["resources"])
	}
	if !ok {
		return nil
	}
	url = strings.TrimSpace(url)

	videoType := DetectVideoProvider(url)
	video := &VideoMetadata{
		Type:       videoType,
		URL:        url,
		EmbedURL:   EmbedURL(videoType, url),
		Provider:   string(videoType),
		SourceType: sourceTypeFor(videoType),
	}

	if thumb, ok := nonEmptyString(nested, "thumbnailUrl", "thumbnail", "poster"); ok {
		video.ThumbnailURL = thumb
	} else if thumb, ok := nonEmptyString(content, "thumbnailUrl", "thumbnail", "poster"); ok {
		video.ThumbnailURL = thumb
	} else if videoType == VideoTypeYouTube {
		if id, ok := youtubeID(url); ok {
			video.ThumbnailURL = "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
		}
	}

	for _, candidate := range []any{nested["durationSeconds"], nested["duration"], content["videoDuration"]} {
		if seconds, ok := wholeSeconds(candidate); ok {
			video.DurationSeconds = intPtr(seconds)
			break
		}
	}

	if title, ok := nonEmptyString(nested, "title"); ok {
		video.Title = title
	} else if title, ok := nonEmptyString(content, "videoTitle"); ok {
		video.Title = title
	}

	return video
}

// DetectVideoProvider infers the provider from URL substrings.
func DetectVideoProvider(url string) VideoType {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "youtu"):
		return VideoTypeYouTube
	case strings.Contains(lower, "vimeo.com"):
		return VideoTypeVimeo
	case strings.Contains(lower, "loom.com"):
		return VideoTypeLoom
	case strings.HasPrefix(lower, "http"):
		return VideoTypeExternal
	default:
		return VideoTypeNative
	}
}

// EmbedURL rewrites YouTube and Vimeo page links to their player URLs. Other
// providers, and links that are already embeddable, pass through unchanged.
func EmbedURL(videoType VideoType, url string) string {
	switch videoType {
	case VideoTypeYouTube:
		if youtubeEmbedRE.MatchString(url) {
			return url
		}
		if id, ok := youtubeID(url); ok {
			return "https://www.youtube.com/embed/" + id
		}
	case VideoTypeVimeo:
		if m := vimeoIDRE.FindStringSubmatch(url); m != nil {
			return "https://player.vimeo.com/video/" + m[1]
		}
	}
	return url
}

func youtubeID(url string) (string, bool) {
	for _, re := range []*regexp.Regexp{youtubeShortRE, youtubeEmbedRE, youtubeShortsRE, youtubeWatchRE} {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func sourceTypeFor(videoType VideoType) string {
	switch videoType {
	case VideoTypeYouTube, VideoTypeVimeo, VideoTypeLoom:
		return VideoSourceEmbed
	case VideoTypeNative:
		return VideoSourceFile
	default:
		return VideoSourceURL
	}
}

func firstMP4Resource(v any) (string, bool) {
	list, ok := asSlice(v)
	if !ok {
		return "", false
	}
	for _, item := range list {
		candidate, ok := item.(string)
		if !ok {
			if m, isMap := asMap(item); isMap {
				candidate, ok = nonEmptyString(m, "url", "href", "src")
			}
		}
		if ok && strings.Contains(strings.ToLower(candidate), ".mp4") {
			return candidate, true
		}
	}
	return "", false
}

func wholeSeconds(v any) (int, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 0 || n > maxWholeNumber {
			return 0, false
		}
		return n, true
	}
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || math.Round(f) > maxWholeNumber {
		return 0, false
	}
	return int(math.Round(f)), true
}

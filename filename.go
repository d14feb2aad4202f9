package channel_archiver

import (
	"crypto/sha1"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Characters that are reserved on at least one common filesystem.
var reservedFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename strips reserved characters and surrounding whitespace, and limits the result to maxLength
// characters. The result may be empty.
func SanitizeFilename(name string, maxLength int) string {
	name = reservedFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxLength {
		name = strings.TrimSpace(string([]rune(name)[:maxLength]))
	}
	return name
}

// FallbackName is used as a filename stem when nothing better is available: the content ID if known, otherwise a
// digest of the source URL.
func FallbackName(contentID string, sourceURL string) string {
	if contentID != "" {
		return contentID
	}
	return fmt.Sprintf("%x", sha1.Sum([]byte(sourceURL)))[:16]
}

// FallbackTitle is the title recorded when the real title can't be fetched.
func FallbackTitle(contentID string, sourceURL string) string {
	return "video_" + FallbackName(contentID, sourceURL)
}

// Naming selects the filename stem for one download.
type Naming struct {
	// Use the video title (true) or the content ID (false).
	UseTitle bool
	// If non-empty, overrides both.
	CustomName string
}

// TargetName picks the filename stem for a download: the custom name if given, else the title if requested, else the
// content ID. The chosen name is sanitized; if nothing usable remains the fallback name is used instead.
func TargetName(choice Naming, title string, contentID string, sourceURL string, maxLength int) string {
	var name string
	switch {
	case choice.CustomName != "":
		name = SanitizeFilename(choice.CustomName, maxLength)
	case choice.UseTitle:
		name = SanitizeFilename(title, maxLength)
	default:
		name = SanitizeFilename(contentID, maxLength)
	}
	if name == "" {
		name = FallbackName(contentID, sourceURL)
	}
	return name
}

// TargetPath joins the output directory, filename stem and extension.
func TargetPath(dir string, name string, ext string) string {
	return filepath.Join(dir, name+"."+strings.TrimPrefix(ext, "."))
}

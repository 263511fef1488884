package media

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxBaseLength      = 50
	maxExtensionLength = 10
	fallbackBase       = "media"
	fallbackExtension  = "bin"
)

// FilenameGenerator derives storage-safe object names. Two calls with the same
// hint never collide: every name carries a millisecond timestamp and a random token.
type FilenameGenerator struct {
	now   func() time.Time
	token func() string
}

// NewFilenameGenerator returns a generator backed by the wall clock and uuid tokens.
func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{
		now:   time.Now,
		token: randomToken,
	}
}

// Generate builds "<base>_<millis>_<token>.<ext>" where base is the sanitized hint.
func (g *FilenameGenerator) Generate(hint, ext string) string {
	now := time.Now
	token := randomToken
	if g != nil {
		if g.now != nil {
			now = g.now
		}
		if g.token != nil {
			token = g.token
		}
	}
	base := SanitizeBase(hint)
	return base + "_" + strconv.FormatInt(now().UnixMilli(), 10) + "_" + token() + "." + SanitizeExtension(ext)
}

// SanitizeBase keeps [A-Za-z0-9._-], replaces everything else with '_', collapses
// underscore runs, trims separators at both ends and bounds the length.
func SanitizeBase(hint string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range hint {
		if isSafeRune(r) && r != '_' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	base := strings.Trim(b.String(), "._-")
	if len(base) > maxBaseLength {
		// All runes are ASCII here, so byte truncation is safe.
		base = strings.TrimRight(base[:maxBaseLength], "._-")
	}
	if base == "" {
		return fallbackBase
	}
	return base
}

// SanitizeExtension lower-cases ext and keeps only ASCII letters and digits.
func SanitizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == maxExtensionLength {
			break
		}
	}
	if b.Len() == 0 {
		return fallbackExtension
	}
	return b.String()
}

// ExtensionFor chooses an extension from the resolved provider file path, then the
// mime type, then the media type default.
func ExtensionFor(filePath, mime string, mediaType MediaType) string {
	if ext := strings.TrimPrefix(path.Ext(filePath), "."); ext != "" {
		return SanitizeExtension(ext)
	}
	if ext := extensionFromMime(mime); ext != "" {
		return ext
	}
	switch mediaType {
	case MediaTypePhoto:
		return "jpg"
	case MediaTypeVideo, MediaTypeAnimation:
		return "mp4"
	case MediaTypeVoice:
		return "ogg"
	case MediaTypeAudio:
		return "mp3"
	case MediaTypeSticker:
		return "webp"
	default:
		return fallbackExtension
	}
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	default:
		return false
	}
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

package transcribe

import (
	"fmt"
	"mime"
	"strings"
)

// DefaultExtension is used for audio whose declared type is missing or not
// recognized.
const DefaultExtension = "webm"

var extensionsByType = map[string]string{
	"audio/webm":      "webm",
	"video/webm":      "webm",
	"audio/ogg":       "ogg",
	"audio/opus":      "ogg",
	"audio/oga":       "ogg",
	"application/ogg": "ogg",
	"audio/mpeg":      "mp3",
	"audio/mp3":       "mp3",
	"audio/mpga":      "mp3",
	"audio/mp4":       "m4a",
	"audio/m4a":       "m4a",
	"audio/x-m4a":     "m4a",
	"audio/aac":       "m4a",
	"video/mp4":       "mp4",
	"audio/wav":       "wav",
	"audio/wave":      "wav",
	"audio/x-wav":     "wav",
	"audio/vnd.wave":  "wav",
	"audio/flac":      "flac",
	"audio/x-flac":    "flac",
}

// UploadExtension maps a declared MIME type to the file extension sent to
// the speech service. Parameters such as codecs are ignored.
func UploadExtension(mimeType string) (string, error) {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return DefaultExtension, nil
	}

	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", newError(KindUnsupportedFormat, 0, fmt.Errorf("malformed content type %q: %w", mimeType, err))
	}
	if ext, ok := extensionsByType[mediaType]; ok {
		return ext, nil
	}

	top, _, _ := strings.Cut(mediaType, "/")
	switch top {
	case "audio", "video":
		return DefaultExtension, nil
	case "application":
		if mediaType == "application/octet-stream" {
			return DefaultExtension, nil
		}
	}
	return "", newError(KindUnsupportedFormat, 0, fmt.Errorf("content type %q is not audio", mediaType))
}

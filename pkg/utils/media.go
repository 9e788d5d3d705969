package utils

import (
	"path/filepath"
	"strings"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".ogg": true,
	".oga": true, ".flac": true, ".opus": true, ".webm": true,
}

// IsAudioFile reports whether an attachment looks like audio, by content type
// when present, falling back to the file extension.
func IsAudioFile(filename, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(filename))]
}

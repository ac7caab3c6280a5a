package filestore

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMimeType is used when neither the caller nor the filename gives
// us anything better.
const DefaultMimeType = "application/octet-stream"

// IsImage reports whether a mime type should get a preview link.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// ResolveMime picks the content type for a file: explicit value first,
// then extension inference, then the generic fallback.
func ResolveMime(explicit, filename string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return DefaultMimeType
}

// safeExt extracts a usable extension from an attacker-supplied
// filename. Anything that is not a short dot-led suffix of word
// characters is dropped.
func safeExt(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if !ok {
			return ""
		}
	}
	return strings.ToLower(ext)
}

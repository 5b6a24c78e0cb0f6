package fingerprint

import (
	"mime"
	"path/filepath"
	"strings"
)

// MediaTable maps allow-listed extensions (lowercase, no leading dot) to
// media types. Extensions outside the allow-list never resolve.
type MediaTable struct {
	types map[string]string
}

// NewMediaTable resolves each allow-listed extension through overrides first
// and the platform MIME table second. Extensions that resolve to nothing are
// returned in unknown and stay unmapped.
func NewMediaTable(extensions []string, overrides map[string]string) (table *MediaTable, unknown []string) {
	table = &MediaTable{types: make(map[string]string, len(extensions))}

	normalized := make(map[string]string, len(overrides))
	for ext, mediaType := range overrides {
		normalized[normalizeExt(ext)] = mediaType
	}

	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if ext == "" {
			continue
		}

		mediaType, ok := normalized[ext]
		if !ok || mediaType == "" {
			mediaType = mime.TypeByExtension("." + ext)
		}
		if mediaType == "" {
			unknown = append(unknown, ext)
			continue
		}

		// Drop parameters such as "; charset=utf-8"
		if base, _, err := mime.ParseMediaType(mediaType); err == nil {
			mediaType = base
		}
		table.types[ext] = mediaType
	}

	return table, unknown
}

// Lookup returns the media type for path, or nil when the extension is not
// allow-listed or has no known type.
func (t *MediaTable) Lookup(path string) *string {
	if t == nil {
		return nil
	}

	mediaType, ok := t.types[normalizeExt(filepath.Ext(path))]
	if !ok {
		return nil
	}
	return &mediaType
}

// Len returns the number of mapped extensions.
func (t *MediaTable) Len() int {
	return len(t.types)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

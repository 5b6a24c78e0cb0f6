package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// Fingerprint is the metadata of one file at one point in time.
type Fingerprint struct {
	Path        string
	ContentHash string
	Owner       string
	Group       string
	Size        int64
	Permissions string
	ModifiedAt  time.Time
	MediaType   *string
}

// Extractor computes fingerprints against a fixed media table.
type Extractor struct {
	media *MediaTable
}

func NewExtractor(media *MediaTable) *Extractor {
	return &Extractor{media: media}
}

// Extract reads path fully to compute its content hash.
func (e *Extractor) Extract(path string) (*Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, classify(path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, classify(path, err)
	}
	if info.IsDir() {
		return nil, &ExtractionError{Kind: Unreadable, Path: path, Err: errors.New("is a directory")}
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return nil, classify(path, err)
	}

	owner, group := ownership(info)

	return &Fingerprint{
		Path:        path,
		ContentHash: hex.EncodeToString(hash.Sum(nil)),
		Owner:       owner,
		Group:       group,
		Size:        info.Size(),
		Permissions: FormatPermissions(info.Mode()),
		ModifiedAt:  info.ModTime().UTC(),
		MediaType:   e.media.Lookup(path),
	}, nil
}

// FormatPermissions renders the permission bits as an octal string, "0644".
func FormatPermissions(mode fs.FileMode) string {
	return fmt.Sprintf("%#o", mode.Perm())
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &ExtractionError{Kind: NotFound, Path: path, Err: err}
	}
	return &ExtractionError{Kind: Unreadable, Path: path, Err: err}
}

// Package upload stores report images on local disk or in S3 and enforces
// the upload limits.
package upload

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"hydro360/internal/logging"
	"hydro360/internal/metrics"
)

const (
	MaxFileSize  = 5 << 20
	MaxFiles     = 5
	FieldName    = "images"
	sniffLen     = 512
	maxFormBytes = MaxFiles*MaxFileSize + 1<<20
)

// AllowedTypes are the declared content types accepted for images.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/jpg"}

// LimitError is an upload rejection whose message is shown to the client verbatim.
type LimitError struct {
	Message string
}

func (e *LimitError) Error() string { return e.Message }

var (
	ErrFileTooLarge = &LimitError{Message: fmt.Sprintf("File too large. Maximum size is %dMB", MaxFileSize>>20)}
	ErrTooManyFiles = &LimitError{Message: fmt.Sprintf("Too many files. Maximum is %d files", MaxFiles)}
	ErrFileType     = &LimitError{Message: "File type not allowed"}
)

// Store persists uploaded files and returns the URL they are served from.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
	Backend() string
}

// File is one validated image waiting to be stored.
type File struct {
	Name        string // generated storage name
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// NewName builds a storage name of the form images-<unix-ms>-<random><ext>.
// The extension follows the validated content type, never the client's file name.
func NewName(contentType string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%d%s", FieldName, now.UnixMilli(), rand.Int64N(1e9), extFor(contentType))
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}

// SaveAll stores every file and returns their URLs in order. When one save
// fails the files already stored are removed again.
func SaveAll(ctx context.Context, s Store, files []File) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := saveOne(ctx, s, f)
		metrics.RecordUpload(s.Backend(), err == nil)
		if err != nil {
			DeleteAll(ctx, s, urls)
			return nil, fmt.Errorf("store %s: %w", f.Name, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func saveOne(ctx context.Context, s Store, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.Save(ctx, f.Name, f.ContentType, rc, f.Size)
}

// DeleteAll removes stored files, logging failures instead of returning them.
func DeleteAll(ctx context.Context, s Store, urls []string) {
	for _, u := range urls {
		if err := s.Delete(ctx, u); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("url", u).Msg("delete upload")
		}
	}
}

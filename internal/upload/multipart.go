package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"
)

// IsMultipart reports whether r carries a multipart/form-data body.
func IsMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// ParseMultipart caps the request body and parses it as multipart form data.
// A body over the cap is reported as ErrFileTooLarge.
func ParseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return ErrFileTooLarge
		}
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return nil
}

// FilesFromForm validates the image parts of form and names them for storage.
func FilesFromForm(form *multipart.Form, now time.Time) ([]File, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[FieldName]
	if len(headers) > MaxFiles {
		return nil, ErrTooManyFiles
	}
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > MaxFileSize {
			return nil, ErrFileTooLarge
		}
		declared := normalizeType(fh.Header.Get("Content-Type"))
		if !slices.Contains(AllowedTypes, declared) {
			return nil, ErrFileType
		}
		sniffed, err := sniff(fh)
		if err != nil {
			return nil, err
		}
		if sniffed != declared {
			return nil, ErrFileType
		}
		files = append(files, File{
			Name:        NewName(declared, now),
			ContentType: declared,
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files, nil
}

// CleanupForm removes temporary files left by ParseMultipart.
func CleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func normalizeType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	mt = strings.ToLower(mt)
	if mt == "image/jpg" {
		return "image/jpeg"
	}
	return mt
}

func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return normalizeType(http.DetectContentType(buf[:n])), nil
}

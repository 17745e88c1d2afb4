package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jrsteele09/go-moto-client/apierror"
	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/transport"
	"github.com/spf13/afero"
)

// File is an in-memory file ready to be uploaded.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Open reads path from fs and detects its content type from the data, not the extension.
func Open(fs afero.Fs, path string) (File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FromBytes(filepath.Base(path), data), nil
}

// FromBytes wraps data under name and detects its content type.
func FromBytes(name string, data []byte) File {
	return File{Name: name, ContentType: mimetype.Detect(data).String(), Data: data}
}

// IsImage reports whether the detected content type is an image.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

// Part converts f into a multipart file part under field.
func (f File) Part(field string) transport.FilePart {
	contentType, _, _ := strings.Cut(f.ContentType, ";")
	return transport.FilePart{Field: field, Name: f.Name, ContentType: contentType, Data: f.Data}
}

// Parts converts files into multipart parts under field. An empty list or a file that is not an
// image fails with a ValidationFailed error keyed by field, so nothing is uploaded.
func Parts(field string, files ...File) ([]transport.FilePart, error) {
	if len(files) == 0 {
		return nil, &apierror.Error{Kind: apierror.ValidationFailed, Fields: map[string]string{field: "No file was submitted."}}
	}
	parts := make([]transport.FilePart, 0, len(files))
	for _, f := range files {
		if !f.IsImage() {
			return nil, &apierror.Error{
				Kind:   apierror.ValidationFailed,
				Err:    ierrors.ErrNotImage,
				Fields: map[string]string{field: fmt.Sprintf("%s is not an image (%s).", f.Name, f.ContentType)},
			}
		}
		parts = append(parts, f.Part(field))
	}
	return parts, nil
}

var backendMedia = regexp.MustCompile(`^https?://[^/]+/media/`)

// NormalizeURL rewrites absolute media URLs that point at the API's development port
// (http://host:8000/media/...) to the site relative /media/... path. Other URLs are unchanged.
func NormalizeURL(raw string) string {
	if !strings.Contains(raw, ":8000/media/") {
		return raw
	}
	return backendMedia.ReplaceAllString(raw, "/media/")
}

package receipts

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"
)

// Archive stores uploaded receipt images and returns a URI for them.
type Archive interface {
	Store(ctx context.Context, image []byte, contentType string) (string, error)
}

// NopArchive discards images. It is used when no bucket is configured.
type NopArchive struct{}

// Store implements Archive and returns an empty URI.
func (NopArchive) Store(context.Context, []byte, string) (string, error) {
	return "", nil
}

// DetectContentType sniffs the image type, falling back to image/jpeg for
// anything that does not look like an image.
func DetectContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// ExtensionFor returns the file extension for common receipt image types.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	}
	return ""
}

// ObjectName builds "<prefix>/YYYY/MM/DD/<id><ext>".
func ObjectName(prefix string, t time.Time, id, contentType string) string {
	return path.Join(prefix, t.UTC().Format("2006/01/02"), id+ExtensionFor(contentType))
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("ParseGCSURI: invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ParseGCSURI: invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// FilenameFromGCSURI extracts the base name of the object, e.g.
// "gs://bucket/folder/file.jpg" → "file.jpg".
func FilenameFromGCSURI(uri string) string {
	_, object, err := ParseGCSURI(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "gs://")
	}
	return path.Base(object)
}

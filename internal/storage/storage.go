// Package storage persists user uploads and generated outputs.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Image kinds used in object keys.
const (
	TypePerson = "person"
	TypeChild  = "child"
	TypeOutput = "output"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrObjectNotFound  = errors.New("object not found")
)

// allowedContentTypes mirrors what browsers upload for photos.
var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/heic": "heic",
	"image/heif": "heif",
}

// Object describes a stored file.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	URL         string
}

// Store saves uploads under a per-user prefix and serves them by public URL.
type Store interface {
	Save(ctx context.Context, userID snowflake.ID, imageType, contentType string, data []byte) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	// PublicURL maps an object key to the URL clients fetch it from.
	PublicURL(key string) string
	// OwnedBy reports whether the key sits under the user's prefix.
	OwnedBy(key string, userID snowflake.ID) bool
}

// ExtensionFor resolves the file extension for an allowed content type.
func ExtensionFor(contentType string) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return ext, nil
}

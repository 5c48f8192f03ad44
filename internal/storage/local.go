package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/timehug/timehug/internal/clock"
	"github.com/timehug/timehug/internal/config"
	"go.uber.org/zap"
)

// localStore writes objects under root/bucket on the local filesystem.
type localStore struct {
	log           *zap.Logger
	root          string
	bucket        string
	publicBaseURL string
	maxSize       int64
	clock         clock.Clock
}

func NewLocal(log *zap.Logger, cfg config.Config, clk clock.Clock) Store {
	return &localStore{
		log:           log.Named("storage.local"),
		root:          cfg.Storage.Root,
		bucket:        cfg.Storage.Bucket,
		publicBaseURL: strings.TrimRight(cfg.Storage.PublicBaseURL, "/"),
		maxSize:       cfg.Storage.MaxUploadSize,
		clock:         clk,
	}
}

func (s *localStore) Save(ctx context.Context, userID snowflake.ID, imageType, contentType string, data []byte) (*Object, error) {
	if userID == 0 {
		return nil, ErrInvalidKey
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(data), s.maxSize)
	}

	ext, err := ExtensionFor(normalizeContentType(contentType))
	if err != nil {
		return nil, err
	}

	imageType = strings.TrimSpace(imageType)
	switch imageType {
	case TypePerson, TypeChild, TypeOutput:
	default:
		return nil, ErrInvalidKey
	}

	key := fmt.Sprintf("%s/%s_%d.%s", userID.String(), imageType, s.clock.Now().UnixMilli(), ext)
	path := filepath.Join(s.root, s.bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}

	s.log.Debug("object stored",
		zap.String("key", key),
		zap.Int("size_bytes", len(data)),
	)
	return &Object{
		Key:         key,
		ContentType: normalizeContentType(contentType),
		Size:        int64(len(data)),
		URL:         s.PublicURL(key),
	}, nil
}

func (s *localStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, "", err
	}

	path := filepath.Join(s.root, s.bucket, filepath.FromSlash(clean))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(clean))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (s *localStore) PublicURL(key string) string {
	return s.publicBaseURL + "/" + s.bucket + "/" + key
}

func (s *localStore) OwnedBy(key string, userID snowflake.ID) bool {
	clean, err := cleanKey(key)
	if err != nil {
		return false
	}
	return strings.HasPrefix(clean, userID.String()+"/")
}

func normalizeContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if media, _, err := mime.ParseMediaType(contentType); err == nil {
		return media
	}
	return contentType
}

// cleanKey rejects traversal outside the bucket prefix.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == "." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"github.com/timehug/timehug/internal/clock"
	"github.com/timehug/timehug/internal/config"
	"go.uber.org/zap/zaptest"
)

func TestSaveAndGetRoundTrip(t *testing.T) {
	store, node := setupLocalStore(t, 1024)
	ctx := context.Background()
	userID := node.Generate()

	object, err := store.Save(ctx, userID, TypePerson, "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.Equal(t, userID.String()+"/person_1748779200000.jpg", object.Key)
	require.Equal(t, "http://localhost:8080/storage/generations/"+object.Key, object.URL)

	data, contentType, err := store.Get(ctx, object.Key)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), data)
	require.Equal(t, "image/jpeg", contentType)
}

func TestSaveRejectsOversize(t *testing.T) {
	store, node := setupLocalStore(t, 4)

	_, err := store.Save(context.Background(), node.Generate(), TypePerson, "image/png", []byte("too big"))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestSaveRejectsUnsupportedContentType(t *testing.T) {
	store, node := setupLocalStore(t, 1024)

	_, err := store.Save(context.Background(), node.Generate(), TypeChild, "application/pdf", []byte("%PDF"))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSaveRejectsUnknownImageType(t *testing.T) {
	store, node := setupLocalStore(t, 1024)

	_, err := store.Save(context.Background(), node.Generate(), "avatar", "image/png", []byte("png"))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestGetRejectsTraversal(t *testing.T) {
	store, _ := setupLocalStore(t, 1024)
	ctx := context.Background()

	_, _, err := store.Get(ctx, "../outside.txt")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, _, err = store.Get(ctx, "/etc/passwd")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, _, err = store.Get(ctx, "user/../../secret.png")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestGetMissingObject(t *testing.T) {
	store, node := setupLocalStore(t, 1024)

	_, _, err := store.Get(context.Background(), node.Generate().String()+"/person_1.jpg")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOwnedBy(t *testing.T) {
	store, node := setupLocalStore(t, 1024)
	owner := node.Generate()
	other := node.Generate()

	key := owner.String() + "/person_1.jpg"
	require.True(t, store.OwnedBy(key, owner))
	require.False(t, store.OwnedBy(key, other))
	require.False(t, store.OwnedBy("../"+key, owner))
}

func setupLocalStore(t *testing.T, maxSize int64) (Store, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Storage: config.StorageConfig{
			Root:          t.TempDir(),
			Bucket:        "generations",
			PublicBaseURL: "http://localhost:8080/storage",
			MaxUploadSize: maxSize,
		},
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewLocal(zaptest.NewLogger(t), cfg, fakeClock), node
}

package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/boltdb/bolt"
	"github.com/nicolagi/cloudbank/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreImplementations(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(*testing.T) (storage.ObjectStore, func())
	}{
		{
			name: "ObjectStore implementation backed by a map",
			setup: func(*testing.T) (s storage.ObjectStore, teardown func()) {
				return storage.NewInMemoryStore("test-bucket"), func() {
					// Nothing to do.
				}
			},
		},
		{
			name: "ObjectStore implementation backed by a host filesystem directory",
			setup: func(t *testing.T) (s storage.ObjectStore, teardown func()) {
				dir, err := os.MkdirTemp("", "test-cloudbank-storage-")
				require.Nil(t, err)
				return storage.NewDiskStore(dir), func() {
					_ = os.RemoveAll(dir)
				}
			},
		},
		{
			name: "ObjectStore implementation backed by a BoltDB",
			setup: func(t *testing.T) (s storage.ObjectStore, teardown func()) {
				dir, err := os.MkdirTemp("", "test-cloudbank-storage-")
				require.Nil(t, err)
				db, err := bolt.Open(filepath.Join(dir, "store.db"), 0600, nil)
				require.Nil(t, err)
				store, err := storage.NewBoltStore(db, "test-bucket")
				require.Nil(t, err)
				return store, func() {
					_ = db.Close()
					_ = os.RemoveAll(dir)
				}
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, teardown := tc.setup(t)
			defer teardown()
			testStore(t, store)
		})
	}
}

func testStore(t *testing.T, store storage.ObjectStore) {
	ctx := context.Background()
	t.Run("what you put is what you get", func(t *testing.T) {
		err := store.Put(ctx, "uploads/hello.txt", []byte("hello"), "text/plain")
		require.Nil(t, err)
		value, err := store.Get(ctx, "uploads/hello.txt")
		require.Nil(t, err)
		assert.Equal(t, []byte("hello"), value)
	})
	t.Run("error on not existing key", func(t *testing.T) {
		value, err := store.Get(ctx, "uploads/no-such-object")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		assert.Nil(t, value)
	})
	t.Run("stat error on not existing key", func(t *testing.T) {
		_, err := store.Stat(ctx, "uploads/no-such-object")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
	t.Run("stat reports size and content type", func(t *testing.T) {
		err := store.Put(ctx, "uploads/stat-me.nc", []byte("0123456789"), "application/x-netcdf")
		require.Nil(t, err)
		info, err := store.Stat(ctx, "uploads/stat-me.nc")
		require.Nil(t, err)
		assert.Equal(t, "uploads/stat-me.nc", info.Key)
		assert.EqualValues(t, 10, info.Size)
		assert.Equal(t, "application/x-netcdf", info.ContentType)
	})
	t.Run("list filters by prefix", func(t *testing.T) {
		require.Nil(t, store.Put(ctx, "uploads/a.txt", []byte("a"), "text/plain"))
		require.Nil(t, store.Put(ctx, "uploads/b.txt", []byte("b"), "text/plain"))
		require.Nil(t, store.Put(ctx, "metadata/a.txt.json", []byte("{}"), "application/json"))
		infos, err := store.List(ctx, "uploads/")
		require.Nil(t, err)
		var keys []string
		for _, info := range infos {
			keys = append(keys, info.Key)
		}
		assert.Contains(t, keys, "uploads/a.txt")
		assert.Contains(t, keys, "uploads/b.txt")
		assert.NotContains(t, keys, "metadata/a.txt.json")
	})
	t.Run("list with unmatched prefix is empty", func(t *testing.T) {
		infos, err := store.List(ctx, "nothing-here/")
		require.Nil(t, err)
		assert.Empty(t, infos)
	})
	t.Run("storage path carries scheme, name and key", func(t *testing.T) {
		url := store.URL("uploads/a.txt")
		assert.Regexp(t, `^[a-z]+://.+/uploads/a\.txt$`, url)
	})
	t.Run("mutating value should not affect stored objects", func(t *testing.T) {
		before := []byte("old value")
		require.Nil(t, store.Put(ctx, "uploads/mutate.txt", before, "text/plain"))
		copy(before, "new")
		after, err := store.Get(ctx, "uploads/mutate.txt")
		require.Nil(t, err)
		assert.Equal(t, []byte("old value"), after)
	})
}

func TestInMemoryStoreURL(t *testing.T) {
	store := storage.NewInMemoryStore("cocky-kare")
	assert.Equal(t, "gs://cocky-kare/uploads/a.nc", store.URL("uploads/a.nc"))
}

func TestValidateBucketName(t *testing.T) {
	for _, name := range []string{"my-bucket", "b42", "0sounds-odd-but-legal0"} {
		assert.Nil(t, storage.ValidateBucketName(name))
	}
	for _, name := range []string{"Bad", "x", "-leading", "trailing-", "under_score"} {
		assert.NotNil(t, storage.ValidateBucketName(name), name)
	}
	assert.True(t, errors.Is(storage.ValidateBucketName(""), storage.ErrNotConfigured))
}

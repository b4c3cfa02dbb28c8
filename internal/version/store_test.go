package version

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	vcserrors "vcs/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, string) {
	dir := filepath.Join(t.TempDir(), ".vcs", "versions")
	store, err := New(dir, Options{Author: "tester"})
	require.NoError(t, err)
	return store, dir
}

func TestVersionStore(t *testing.T) {
	store, dir := setupTestStore(t)

	t.Run("Create", func(t *testing.T) {
		hashes := map[string]string{"a.txt": "h1", "b.txt": "h2"}
		id, err := store.Create("first", hashes)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		_, err = os.Stat(filepath.Join(dir, id))
		require.NoError(t, err)

		v := store.Get(id)
		require.NotNil(t, v)
		assert.Equal(t, "first", v.Message)
		assert.Equal(t, "tester", v.Author)
		assert.Equal(t, hashes, v.FileHashes)
		assert.False(t, v.Timestamp.IsZero())

		// The caller's map is copied.
		hashes["c.txt"] = "h3"
		assert.Len(t, store.Get(id).FileHashes, 2)
	})

	t.Run("Create rejects empty message", func(t *testing.T) {
		before := len(store.History())
		_, err := store.Create("  ", nil)
		assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeInvalidInput))
		assert.Len(t, store.History(), before)
	})

	t.Run("Get unknown", func(t *testing.T) {
		assert.Nil(t, store.Get("does-not-exist"))
		_, err := store.Lookup("does-not-exist")
		assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeNotFound))
	})

	t.Run("returned versions are copies", func(t *testing.T) {
		id, err := store.Create("copy", map[string]string{"x": "1"})
		require.NoError(t, err)
		v := store.Get(id)
		v.FileHashes["x"] = "mutated"
		assert.Equal(t, "1", store.Get(id).FileHashes["x"])
	})
}

func TestVersionStoreHistory(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.Nil(t, store.Current())

	var ids []string
	for _, msg := range []string{"one", "two", "three"} {
		id, err := store.Create(msg, nil)
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(time.Millisecond)
	}

	history := store.History()
	require.Len(t, history, 3)
	for i, v := range history {
		assert.Equal(t, ids[i], v.ID)
	}
	assert.Equal(t, ids[2], store.Current().ID)
	assert.Len(t, store.ByAuthor("tester"), 3)
	assert.Empty(t, store.ByAuthor("someone-else"))

	found := store.Find(func(v *Version) bool { return v.Message == "two" })
	require.NotNil(t, found)
	assert.Equal(t, ids[1], found.ID)
}

func TestVersionStoreReload(t *testing.T) {
	store, dir := setupTestStore(t)

	first, err := store.Create("first", map[string]string{"a.txt": "h1"})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := store.Create("second", map[string]string{"a.txt": "h2"})
	require.NoError(t, err)

	// A corrupted record and a record whose id does not match its name are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "renamed"), []byte(`{"id":"other"}`), 0644))

	reloaded, err := New(dir, Options{Author: "tester"})
	require.NoError(t, err)

	history := reloaded.History()
	require.Len(t, history, 2)
	assert.Equal(t, first, history[0].ID)
	assert.Equal(t, second, history[1].ID)

	orig := store.Get(second)
	got := reloaded.Get(second)
	require.NotNil(t, got)
	assert.True(t, orig.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, orig.FileHashes, got.FileHashes)
	assert.Equal(t, orig.Author, got.Author)
}

func TestVersionStoreConcurrentCreate(t *testing.T) {
	store, _ := setupTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create("parallel", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history := store.History()
	assert.Len(t, history, 20)
	for _, v := range history {
		assert.NotNil(t, store.Get(v.ID))
	}
}

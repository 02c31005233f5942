package cache

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackctl/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.Init(logging.LevelError, "text", io.Discard)
	m.Run()
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "stackctl.tokens", Tokens(""))
	assert.Equal(t, "stackctl.tokens", Tokens(DefaultComponent))
	assert.Equal(t, "other.tokens", Tokens("other"))
	assert.Equal(t, "mysite.meta.cache", Meta("mysite"))
	assert.Equal(t, "mysite.web.open.cache", Open("mysite", "web"))
	assert.Equal(t, "mysite.db.configured", Configured("mysite", "db"))
}

// storeUnderTest runs the same behavioral checks against any Store.
func storeUnderTest(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		_, found, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set then get", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", []byte("v1"), SetOptions{Persist: true}))
		value, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v1"), value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", []byte("v1"), SetOptions{}))
		require.NoError(t, s.Set(ctx, "k", []byte("v2"), SetOptions{}))
		value, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v2"), value)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", []byte("v"), SetOptions{Persist: true}))
		require.NoError(t, s.Delete(ctx, "k"))
		_, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLiteStore(t *testing.T) {
	storeUnderTest(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore_PersistenceAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "kept", []byte("durable"), SetOptions{Persist: true}))
	require.NoError(t, s.Set(ctx, "scratch", []byte("transient"), SetOptions{}))
	require.NoError(t, s.Close())

	// Reopening purges session entries but keeps persistent ones.
	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	value, found, err := s.Get(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("durable"), value)

	_, found, err = s.Get(ctx, "scratch")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	original := []byte("value")
	require.NoError(t, s.Set(ctx, "k", original, SetOptions{}))
	original[0] = 'X'

	got, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value"), got)

	got[0] = 'Y'
	again, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), again)
}

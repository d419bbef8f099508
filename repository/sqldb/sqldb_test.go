package sqldb

import (
	"path/filepath"
	"testing"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	db, err := New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestDatabase(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Get([]byte("missing"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.Put([]byte("k"), []byte("v1")))
	require.NoError(t, db.Put([]byte("k"), []byte("v2")))
	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, db.Delete([]byte("k")))
	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBatchIsAtomic(t *testing.T) {
	db := setupTestDB(t)

	b := db.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Delete([]byte("a")))
	require.NoError(t, b.Write())

	_, err := db.Get([]byte("a"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	v, err := db.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

func TestRepositoryOnSQLite(t *testing.T) {
	db, err := repository.OpenDatabase(repository.SQLiteBackend, map[string]any{
		"path": filepath.Join(t.TempDir(), "repo.db"),
	})
	require.NoError(t, err)
	repo, err := repository.New(db)
	require.NoError(t, err)
	defer repo.Close()

	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	snap.PutRaw([]byte("x"), []byte("1"))
	require.NoError(t, snap.Commit())
	r1 := repo.Head()

	snap, err = repo.Begin(r1)
	require.NoError(t, err)
	snap.PutRaw([]byte("x"), []byte("2"))
	require.NoError(t, snap.Commit())

	old, err := repo.Begin(r1)
	require.NoError(t, err)
	v, err := old.GetRaw([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

package leveldb

import (
	"testing"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase(t *testing.T) {
	db, err := New("")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Get([]byte("missing"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	b := db.NewBatch()
	require.NoError(t, b.Delete([]byte("k")))
	require.NoError(t, b.Put([]byte("n"), []byte("1")))
	require.NoError(t, b.Write())

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, has)
	has, err = db.Has([]byte("n"))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRepositoryOnDisk(t *testing.T) {
	dir := t.TempDir()

	db, err := repository.OpenDatabase(repository.LevelDBBackend, map[string]any{"path": dir})
	require.NoError(t, err)
	repo, err := repository.New(db)
	require.NoError(t, err)

	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	snap.PutRaw([]byte("key"), []byte("value"))
	require.NoError(t, snap.Commit())
	head := repo.Head()
	require.NoError(t, repo.Close())

	db, err = New(dir)
	require.NoError(t, err)
	repo, err = repository.New(db)
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, head, repo.Head())

	snap, err = repo.Begin(head)
	require.NoError(t, err)
	v, err := snap.GetRaw([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)
}

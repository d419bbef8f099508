package repository

import (
	"testing"

	"github.com/govm-net/contractvm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	repo, err := New(NewMemoryDatabase())
	require.NoError(t, err)
	return repo
}

func TestNestedSnapshotVisibility(t *testing.T) {
	repo := newTestRepository(t)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	snap.PutRaw([]byte("a"), []byte("1"))

	child := snap.StartTracking()
	v, err := child.GetRaw([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	child.PutRaw([]byte("b"), []byte("2"))
	v, err = snap.GetRaw([]byte("b"))
	require.NoError(t, err)
	assert.Nil(t, v, "child writes are invisible before commit")

	require.NoError(t, child.Commit())
	v, err = snap.GetRaw([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

func TestDiscardLeavesParentUntouched(t *testing.T) {
	repo := newTestRepository(t)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	snap.PutRaw([]byte("a"), []byte("1"))
	before := snap.Root()

	child := snap.StartTracking()
	child.PutRaw([]byte("a"), []byte("changed"))
	child.DeleteRaw([]byte("a"))
	child.PutRaw([]byte("z"), []byte("9"))
	// dropped without commit

	assert.Equal(t, before, snap.Root())
	v, err := snap.GetRaw([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 1, snap.Pending())
}

func TestCommitTwiceIsCommitOnce(t *testing.T) {
	repo := newTestRepository(t)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)

	child := snap.StartTracking()
	child.PutRaw([]byte("k"), []byte("v"))
	require.NoError(t, child.Commit())
	once := snap.Root()
	require.NoError(t, child.Commit())
	assert.Equal(t, once, snap.Root())

	require.NoError(t, snap.Commit())
	head := repo.Head()
	assert.Equal(t, once, head)
	require.NoError(t, snap.Commit())
	assert.Equal(t, head, repo.Head())
}

func TestRootIsDeterministic(t *testing.T) {
	roots := make([]core.Hash, 2)
	for i := range roots {
		repo := newTestRepository(t)
		snap, err := repo.Begin(core.ZeroHash)
		require.NoError(t, err)
		// different insertion order, same content
		if i == 0 {
			snap.PutRaw([]byte("x"), []byte("1"))
			snap.PutRaw([]byte("y"), []byte("2"))
		} else {
			snap.PutRaw([]byte("y"), []byte("2"))
			snap.PutRaw([]byte("x"), []byte("1"))
		}
		require.NoError(t, snap.Commit())
		roots[i] = repo.Head()
	}
	assert.Equal(t, roots[0], roots[1])
	assert.NotEqual(t, core.ZeroHash, roots[0])
}

func TestBeginFromAncestorRoot(t *testing.T) {
	db := NewMemoryDatabase()
	repo, err := New(db)
	require.NoError(t, err)

	s1, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	s1.PutRaw([]byte("k"), []byte("1"))
	require.NoError(t, s1.Commit())
	r1 := repo.Head()

	s2, err := repo.Begin(r1)
	require.NoError(t, err)
	s2.PutRaw([]byte("k"), []byte("2"))
	s2.PutRaw([]byte("m"), []byte("new"))
	require.NoError(t, s2.Commit())
	r2 := repo.Head()
	require.NotEqual(t, r1, r2)

	old, err := repo.Begin(r1)
	require.NoError(t, err)
	v, err := old.GetRaw([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	v, err = old.GetRaw([]byte("m"))
	require.NoError(t, err)
	assert.Nil(t, v)

	// fork from r1
	old.PutRaw([]byte("x"), []byte("5"))
	require.NoError(t, old.Commit())
	fork := repo.Head()
	assert.NotEqual(t, r2, fork)

	cur, err := repo.Begin(fork)
	require.NoError(t, err)
	for key, want := range map[string][]byte{"k": []byte("1"), "m": nil, "x": []byte("5")} {
		v, err := cur.GetRaw([]byte(key))
		require.NoError(t, err)
		assert.Equal(t, want, v, key)
	}

	// reopening the database keeps the head
	reopened, err := New(db)
	require.NoError(t, err)
	assert.Equal(t, fork, reopened.Head())
}

func TestBeginUnknownRoot(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Begin(core.Keccak256Hash([]byte("nope")))
	assert.ErrorIs(t, err, ErrUnknownRoot)
}

func TestStaleSnapshotCommit(t *testing.T) {
	repo := newTestRepository(t)
	a, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	b, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)

	a.PutRaw([]byte("k"), []byte("a"))
	require.NoError(t, a.Commit())

	b.PutRaw([]byte("k"), []byte("b"))
	assert.ErrorIs(t, b.Commit(), ErrStaleSnapshot)
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, ListRegistered(), MemoryBackend)
	assert.Error(t, Register(MemoryBackend, nil))

	db, err := OpenDatabase("", nil)
	require.NoError(t, err)
	_, ok := db.(*MemoryDatabase)
	assert.True(t, ok)

	_, err = OpenDatabase("nosuch", nil)
	assert.Error(t, err)
	assert.Error(t, SetDefault("nosuch"))
}

func TestMemoryBatch(t *testing.T) {
	db := NewMemoryDatabase()
	require.NoError(t, db.Put([]byte("gone"), []byte("x")))
	b := db.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Delete([]byte("gone")))

	has, err := db.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, has, "batch is not applied before Write")

	require.NoError(t, b.Write())
	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	_, err = db.Get([]byte("gone"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"a"}, db.Keys())
}

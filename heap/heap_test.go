package heap

import (
	"math/big"
	"testing"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = core.AddressFromString("1234567890abcdef1234567890abcdef12345678")

// countingStore wraps a snapshot and counts reads and writes
type countingStore struct {
	snap   *repository.Snapshot
	gets   int
	puts   int
	putLog []string
}

func (c *countingStore) Get(addr core.Address, key []byte) ([]byte, error) {
	c.gets++
	return c.snap.Get(addr, key)
}

func (c *countingStore) Put(addr core.Address, key, value []byte) error {
	c.puts++
	c.putLog = append(c.putLog, string(key))
	return c.snap.Put(addr, key, value)
}

func setupStore(t *testing.T) *countingStore {
	repo, err := repository.New(repository.NewMemoryDatabase())
	require.NoError(t, err)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	return &countingStore{snap: snap}
}

func newTestHeap(t *testing.T, store Storage) *Heap {
	types, err := code.NewTypeRegistry(64)
	require.NoError(t, err)
	return New(store, testContract, types, WithMaxArrayLength(1<<20))
}

func TestFieldDefaultsAndPersistence(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)

	c := h.ContractObject("Counter")
	v, err := h.GetField(c, "count", "I")
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
	v, err = h.GetField(c, "owner", "Ljava/lang/String;")
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = h.GetField(c, "total", "J")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, h.PutField(c, "count", int32(42)))
	require.NoError(t, h.PutField(c, "name", "counter"))
	require.NoError(t, h.PutField(c, "ratio", 0.5))
	_, err = h.Flush([]*ObjectHandle{c})
	require.NoError(t, err)

	h2 := newTestHeap(t, store)
	c2 := h2.ContractObject("Counter")
	v, err = h2.GetField(c2, "count", "I")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
	v, err = h2.GetField(c2, "name", "Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, "counter", v)
	v, err = h2.GetField(c2, "ratio", "D")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
}

func TestLazyHydrationLoadsOnce(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)
	c := h.ContractObject("Counter")

	_, err := h.GetField(c, "a", "I")
	require.NoError(t, err)
	_, err = h.GetField(c, "b", "I")
	require.NoError(t, err)
	require.NoError(t, h.PutField(c, "a", int32(1)))
	assert.Equal(t, 1, store.gets)
}

func TestArrayChunkBoundary(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)
	c := h.ContractObject("Holder")

	arr, err := h.NewArray("[I", 3000)
	require.NoError(t, err)
	require.NoError(t, h.PutField(c, "data", arr))
	require.NoError(t, h.SetElement(arr, 1023, int32(7)))
	require.NoError(t, h.SetElement(arr, 1024, int32(8)))

	v, err := h.GetElement(arr, 1023)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
	v, err = h.GetElement(arr, 2999)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	stats, err := h.Flush([]*ObjectHandle{c})
	require.NoError(t, err)
	// chunk 2 was read but not written
	assert.Equal(t, 2, stats.ChunkWrites)

	h2 := newTestHeap(t, store)
	c2 := h2.ContractObject("Holder")
	ref, err := h2.GetField(c2, "data", "[I")
	require.NoError(t, err)
	arr2, ok := ref.(*ObjectHandle)
	require.True(t, ok)
	assert.Equal(t, 3000, arr2.Length())

	before := store.gets
	v, err = h2.GetElement(arr2, 1024)
	require.NoError(t, err)
	assert.Equal(t, int32(8), v)
	v, err = h2.GetElement(arr2, 1023)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
	v, err = h2.GetElement(arr2, 1500)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
	assert.Equal(t, before+2, store.gets, "one read per touched chunk")
}

func TestUnreachableAllocationsAreNotWritten(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)
	c := h.ContractObject("Holder")

	kept, err := h.NewObject("Item")
	require.NoError(t, err)
	require.NoError(t, h.PutField(kept, "n", int32(1)))
	require.NoError(t, h.PutField(c, "item", kept))

	garbage, err := h.NewObject("Item")
	require.NoError(t, err)
	require.NoError(t, h.PutField(garbage, "n", int32(2)))
	assert.True(t, h.IsNew(garbage))

	stats, err := h.Flush([]*ObjectHandle{c})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FieldWrites)
	assert.Equal(t, 1, stats.CounterWrites)

	data, err := store.snap.Get(testContract, KeyGenerator{}.FieldKey(garbage))
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, h.IsNew(kept))
}

func TestUnchangedObjectsAreNotWritten(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)
	c := h.ContractObject("Holder")
	require.NoError(t, h.PutField(c, "x", int32(1)))
	_, err := h.Flush([]*ObjectHandle{c})
	require.NoError(t, err)

	h2 := newTestHeap(t, store)
	c2 := h2.ContractObject("Holder")
	_, err = h2.GetField(c2, "x", "I")
	require.NoError(t, err)
	stats, err := h2.Flush([]*ObjectHandle{c2})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FieldWrites)
	assert.Equal(t, 0, stats.CounterWrites)
}

func TestDirtyPersistedObjectWrittenWithoutLoadedPath(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)
	c := h.ContractObject("Holder")
	item, err := h.NewObject("Item")
	require.NoError(t, err)
	require.NoError(t, h.PutField(c, "a", item))
	require.NoError(t, h.PutField(c, "b", item))
	_, err = h.Flush([]*ObjectHandle{c})
	require.NoError(t, err)

	h2 := newTestHeap(t, store)
	c2 := h2.ContractObject("Holder")
	ref, err := h2.GetField(c2, "a", "LItem;")
	require.NoError(t, err)
	item2 := ref.(*ObjectHandle)
	require.NoError(t, h2.PutField(item2, "n", int32(5)))
	// cut the loaded path; "b" still points at the item in storage
	require.NoError(t, h2.PutField(c2, "a", nil))
	_, err = h2.Flush([]*ObjectHandle{c2})
	require.NoError(t, err)

	h3 := newTestHeap(t, store)
	c3 := h3.ContractObject("Holder")
	ref, err = h3.GetField(c3, "b", "LItem;")
	require.NoError(t, err)
	v, err := h3.GetField(ref.(*ObjectHandle), "n", "I")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)
}

func TestObjectCounterPersists(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)
	c := h.ContractObject("Holder")
	a, err := h.NewObject("Item")
	require.NoError(t, err)
	assert.Equal(t, "1", a.ID)
	require.NoError(t, h.PutField(c, "a", a))
	_, err = h.Flush([]*ObjectHandle{c})
	require.NoError(t, err)

	h2 := newTestHeap(t, store)
	b, err := h2.NewObject("Item")
	require.NoError(t, err)
	assert.Equal(t, "2", b.ID)
}

func TestHandlesAreInterned(t *testing.T) {
	h := newTestHeap(t, setupStore(t))
	assert.Same(t, h.StaticObject("A"), h.StaticObject("A"))
	assert.NotSame(t, h.StaticObject("A"), h.StaticObject("B"))
	assert.True(t, h.StaticObject("A").IsStatic())
	assert.Equal(t, "static:A|A", h.StaticObject("A").Key())
}

func TestMultiArray(t *testing.T) {
	h := newTestHeap(t, setupStore(t))
	arr, err := h.NewMultiArray("[[J", []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, arr.Length())
	inner, err := h.GetElement(arr, 1)
	require.NoError(t, err)
	innerArr := inner.(*ObjectHandle)
	assert.Equal(t, "[J", innerArr.Desc)
	assert.Equal(t, 3, innerArr.Length())
	v, err := h.GetElement(innerArr, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	// only the outer dimension allocated
	partial, err := h.NewMultiArray("[[I", []int{4})
	require.NoError(t, err)
	v, err = h.GetElement(partial, 0)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestArrayErrors(t *testing.T) {
	h := newTestHeap(t, setupStore(t))

	_, err := h.NewArray("[I", -1)
	assert.ErrorIs(t, err, ErrNegativeSize)
	_, err = h.NewArray("[I", 1<<21)
	assert.ErrorIs(t, err, ErrArrayTooLarge)

	arr, err := h.NewArray("[I", 2)
	require.NoError(t, err)
	_, err = h.GetElement(arr, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, h.SetElement(arr, -1, int32(1)), ErrIndexOutOfRange)
	_, err = h.GetElement(nil, 0)
	assert.ErrorIs(t, err, ErrNullReference)
	_, err = h.GetField(nil, "x", "I")
	assert.ErrorIs(t, err, ErrNullReference)

	obj, err := h.NewObject("Item")
	require.NoError(t, err)
	_, err = h.ArrayLength(obj)
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestMaterializedValues(t *testing.T) {
	store := setupStore(t)
	h := newTestHeap(t, store)

	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	bi, err := h.NewBigInteger(n)
	require.NoError(t, err)
	got, err := h.BigInteger(bi)
	require.NoError(t, err)
	assert.Equal(t, 0, n.Cmp(got))

	sa, err := h.NewStringArray([]string{"a", "b"})
	require.NoError(t, err)
	strs, err := h.StringArray(sa)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs)

	ba, err := h.NewByteArray([]byte{0x00, 0x7f, 0x80, 0xff})
	require.NoError(t, err)
	v, err := h.GetElement(ba, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
	raw, err := h.ByteArray(ba)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x7f, 0x80, 0xff}, raw)

	addr, err := h.NewAddress(testContract.String())
	require.NoError(t, err)
	s, err := h.AddressString(addr)
	require.NoError(t, err)
	assert.Equal(t, testContract.String(), s)
}

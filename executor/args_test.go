package executor

import (
	"math/big"
	"testing"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/heap"
	"github.com/govm-net/contractvm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArgsHeap(t *testing.T) (*heap.Heap, *code.TypeRegistry) {
	t.Helper()
	repo, err := repository.New(repository.NewMemoryDatabase())
	require.NoError(t, err)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)
	types, err := code.NewTypeRegistry(64)
	require.NoError(t, err)
	return heap.New(snap, holderA, types), types
}

func TestConvertPrimitives(t *testing.T) {
	h, types := newArgsHeap(t)
	mt, err := types.Method("(ZBSCIJFDLjava/lang/String;)V")
	require.NoError(t, err)

	args, err := convertArgs(h, mt, []string{"true", "-8", "300", "é", "-5", "9000000000", "1.5", "2.25", "text"})
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), int32(-8), int32(300), int32('é'), int32(-5), int64(9000000000), float32(1.5), 2.25, "text"}, args)

	tests := []struct {
		desc string
		arg  string
	}{
		{"(Z)V", "yes"},
		{"(B)V", "128"},
		{"(S)V", "40000"},
		{"(C)V", "ab"},
		{"(I)V", "1.0"},
		{"(J)V", ""},
		{"(Ljava/lang/Object;)V", "x"},
	}
	for _, tt := range tests {
		mt, err := types.Method(tt.desc)
		require.NoError(t, err)
		_, err = convertArgs(h, mt, []string{tt.arg})
		assert.ErrorIs(t, err, core.ErrInvalidArgument, "%s %q", tt.desc, tt.arg)
	}
}

func TestConvertObjectsAndArrays(t *testing.T) {
	h, types := newArgsHeap(t)
	mt, err := types.Method("(Ljava/math/BigInteger;Lio/contract/sdk/Address;[I[Ljava/lang/String;[[J)V")
	require.NoError(t, err)

	args, err := convertArgs(h, mt, []string{
		"123456789012345678901234567890",
		"0x" + holderB.String(),
		"[1, 2, 3]",
		`["a", "b"]`,
		`[[1], [2, 3]]`,
	})
	require.NoError(t, err)

	n, err := h.BigInteger(args[0].(*heap.ObjectHandle))
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	assert.Equal(t, want, n)

	addr, err := h.AddressString(args[1].(*heap.ObjectHandle))
	require.NoError(t, err)
	assert.Equal(t, holderB.String(), addr)

	ints := args[2].(*heap.ObjectHandle)
	assert.Equal(t, 3, ints.Length())
	v, err := h.GetElement(ints, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	strs, err := h.StringArray(args[3].(*heap.ObjectHandle))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs)

	grid := args[4].(*heap.ObjectHandle)
	row, err := h.GetElement(grid, 1)
	require.NoError(t, err)
	v, err = h.GetElement(row.(*heap.ObjectHandle), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = convertArgs(h, mt, []string{"1", "zz", "[]", "[]", "[]"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = convertArgs(h, mt, []string{"1", holderB.String(), "{}", "[]", "[]"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

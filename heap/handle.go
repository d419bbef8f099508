// Package heap implements the contract object model: handles, field maps
// and chunked arrays, lazily hydrated from and flushed to contract storage.
package heap

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// ChunkSize is the number of array elements stored under one key
const ChunkSize = 1024

// Value is a VM value: int32, int64, float32, float64, string, *ObjectHandle or nil
type Value = any

const (
	// ContractID names the contract instance object
	ContractID = "contract"
	// StaticPrefix prefixes the per class static field object
	StaticPrefix = "static:"
)

// ObjectHandle is a logical reference to a heap object. Handles are
// interned per Heap so equal handles are the same pointer.
type ObjectHandle struct {
	ID   string
	Desc string // class name for objects, descriptor for arrays
	Dims []int  // arrays: Dims[0] is the length
	key  string
}

func handleKey(id, desc string, dims []int) string {
	var b strings.Builder
	b.WriteString(id)
	b.WriteByte('|')
	b.WriteString(desc)
	for _, d := range dims {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(d))
	}
	return b.String()
}

// Key is the identity of the handle: ID, descriptor and dimensions
func (h *ObjectHandle) Key() string {
	return h.key
}

// IsArray reports whether the handle refers to an array
func (h *ObjectHandle) IsArray() bool {
	return strings.HasPrefix(h.Desc, "[")
}

// Length is the array length; zero for objects
func (h *ObjectHandle) Length() int {
	if !h.IsArray() || len(h.Dims) == 0 {
		return 0
	}
	return h.Dims[0]
}

// ClassName is the runtime class of an object, or the descriptor of an array
func (h *ObjectHandle) ClassName() string {
	return h.Desc
}

// IsStatic reports whether the handle holds the static fields of a class
func (h *ObjectHandle) IsStatic() bool {
	return strings.HasPrefix(h.ID, StaticPrefix)
}

func (h *ObjectHandle) String() string {
	return h.key
}

// KeyGenerator builds the storage keys of heap records. All keys are
// relative to the contract's storage namespace.
type KeyGenerator struct{}

// FieldKey format: 'f' + handle key
func (KeyGenerator) FieldKey(h *ObjectHandle) []byte {
	return append([]byte{'f'}, h.key...)
}

// ChunkKey format: 'c' + handle key + '#' + big endian chunk index
func (KeyGenerator) ChunkKey(h *ObjectHandle, chunk int) []byte {
	key := append([]byte{'c'}, h.key...)
	key = append(key, '#')
	return binary.BigEndian.AppendUint32(key, uint32(chunk))
}

// CounterKey is where the object id counter lives
func (KeyGenerator) CounterKey() []byte {
	return []byte("objectCounter")
}

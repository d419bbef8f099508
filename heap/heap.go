package heap

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
)

var (
	ErrNullReference   = errors.New("null reference")
	ErrIndexOutOfRange = errors.New("array index out of range")
	ErrNegativeSize    = errors.New("negative array size")
	ErrArrayTooLarge   = errors.New("array too large")
	ErrNotArray        = errors.New("not an array")
	ErrCorruptState    = errors.New("corrupt heap state")
)

// Storage is the contract storage the heap reads and flushes through.
// *repository.Snapshot satisfies it.
type Storage interface {
	Get(addr core.Address, key []byte) ([]byte, error)
	Put(addr core.Address, key, value []byte) error
}

type chunk struct {
	values []Value
	dirty  bool
}

// object is one arena entry
type object struct {
	fields map[string]Value // nil until hydrated
	dirty  bool
	chunks map[int]*chunk
}

// Heap is the per invocation object model of one contract. It is not safe
// for concurrent use and is discarded after Flush.
type Heap struct {
	store    Storage
	contract core.Address
	types    *code.TypeRegistry
	keys     KeyGenerator

	maxArrayLength int

	handles map[string]*ObjectHandle
	arena   map[*ObjectHandle]*object
	created map[*ObjectHandle]bool

	counter       int64
	counterLoaded bool
	counterDirty  bool
}

// Option configures a Heap
type Option func(*Heap)

// WithMaxArrayLength bounds the length of any single array dimension
func WithMaxArrayLength(n int) Option {
	return func(h *Heap) {
		h.maxArrayLength = n
	}
}

// New creates a heap for the contract at addr
func New(store Storage, addr core.Address, types *code.TypeRegistry, opts ...Option) *Heap {
	h := &Heap{
		store:    store,
		contract: addr,
		types:    types,
		handles:  make(map[string]*ObjectHandle),
		arena:    make(map[*ObjectHandle]*object),
		created:  make(map[*ObjectHandle]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Contract returns the address whose storage backs the heap
func (h *Heap) Contract() core.Address {
	return h.contract
}

func (h *Heap) handle(id, desc string, dims []int) *ObjectHandle {
	key := handleKey(id, desc, dims)
	if hd, ok := h.handles[key]; ok {
		return hd
	}
	hd := &ObjectHandle{ID: id, Desc: desc, Dims: append([]int(nil), dims...), key: key}
	h.handles[key] = hd
	return hd
}

func (h *Heap) nextID() (string, error) {
	if !h.counterLoaded {
		data, err := h.store.Get(h.contract, h.keys.CounterKey())
		if err != nil {
			return "", fmt.Errorf("failed to load object counter: %w", err)
		}
		if data != nil {
			if err := cbor.Unmarshal(data, &h.counter); err != nil {
				return "", fmt.Errorf("%w: object counter: %v", ErrCorruptState, err)
			}
		}
		h.counterLoaded = true
	}
	h.counter++
	h.counterDirty = true
	return strconv.FormatInt(h.counter, 10), nil
}

func (h *Heap) register(hd *ObjectHandle) *ObjectHandle {
	h.created[hd] = true
	h.arena[hd] = &object{fields: make(map[string]Value), chunks: make(map[int]*chunk)}
	return hd
}

// NewObject allocates an instance of class with default field values
func (h *Heap) NewObject(class string) (*ObjectHandle, error) {
	id, err := h.nextID()
	if err != nil {
		return nil, err
	}
	return h.register(h.handle(id, class, nil)), nil
}

// StaticObject returns the handle holding the static fields of class
func (h *Heap) StaticObject(class string) *ObjectHandle {
	return h.handle(StaticPrefix+class, class, nil)
}

// ContractObject returns the handle of the contract instance
func (h *Heap) ContractObject(class string) *ObjectHandle {
	return h.handle(ContractID, class, nil)
}

// NewArray allocates a one dimensional array
func (h *Heap) NewArray(desc string, length int) (*ObjectHandle, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSize, length)
	}
	if h.maxArrayLength > 0 && length > h.maxArrayLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrArrayTooLarge, length, h.maxArrayLength)
	}
	if _, err := h.types.Type(desc); err != nil {
		return nil, err
	}
	id, err := h.nextID()
	if err != nil {
		return nil, err
	}
	return h.register(h.handle(id, desc, []int{length})), nil
}

// NewMultiArray allocates nested arrays for the leading len(dims) dimensions of desc
func (h *Heap) NewMultiArray(desc string, dims []int) (*ObjectHandle, error) {
	for _, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeSize, d)
		}
	}
	arr, err := h.NewArray(desc, dims[0])
	if err != nil {
		return nil, err
	}
	if len(dims) > 1 {
		for i := 0; i < dims[0]; i++ {
			inner, err := h.NewMultiArray(desc[1:], dims[1:])
			if err != nil {
				return nil, err
			}
			if err := h.SetElement(arr, i, inner); err != nil {
				return nil, err
			}
		}
	}
	return arr, nil
}

// IsNew reports whether the handle was allocated by this heap
func (h *Heap) IsNew(hd *ObjectHandle) bool {
	return h.created[hd]
}

func (h *Heap) entry(hd *ObjectHandle) *object {
	obj, ok := h.arena[hd]
	if !ok {
		obj = &object{chunks: make(map[int]*chunk)}
		h.arena[hd] = obj
	}
	return obj
}

// fieldMap hydrates the field map of hd on first touch
func (h *Heap) fieldMap(hd *ObjectHandle) (*object, error) {
	obj := h.entry(hd)
	if obj.fields != nil {
		return obj, nil
	}
	data, err := h.store.Get(h.contract, h.keys.FieldKey(hd))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", hd, err)
	}
	if data == nil {
		obj.fields = make(map[string]Value)
		return obj, nil
	}
	fields, err := h.decodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, hd, err)
	}
	obj.fields = fields
	return obj, nil
}

// GetField reads a field; desc supplies the default for never written fields
func (h *Heap) GetField(hd *ObjectHandle, name, desc string) (Value, error) {
	if hd == nil {
		return nil, ErrNullReference
	}
	obj, err := h.fieldMap(hd)
	if err != nil {
		return nil, err
	}
	if v, ok := obj.fields[name]; ok {
		return v, nil
	}
	t, err := h.types.Type(desc)
	if err != nil {
		return nil, err
	}
	return t.Default(), nil
}

// PutField writes a field and marks the object dirty
func (h *Heap) PutField(hd *ObjectHandle, name string, v Value) error {
	if hd == nil {
		return ErrNullReference
	}
	obj, err := h.fieldMap(hd)
	if err != nil {
		return err
	}
	obj.fields[name] = v
	obj.dirty = true
	return nil
}

// HasField reports whether the field has ever been written
func (h *Heap) HasField(hd *ObjectHandle, name string) (bool, error) {
	if hd == nil {
		return false, ErrNullReference
	}
	obj, err := h.fieldMap(hd)
	if err != nil {
		return false, err
	}
	_, ok := obj.fields[name]
	return ok, nil
}

// ArrayLength returns the length recorded in the handle
func (h *Heap) ArrayLength(hd *ObjectHandle) (int, error) {
	if hd == nil {
		return 0, ErrNullReference
	}
	if !hd.IsArray() {
		return 0, fmt.Errorf("%w: %s", ErrNotArray, hd)
	}
	return hd.Length(), nil
}

func (h *Heap) chunkFor(hd *ObjectHandle, index int) (*chunk, int, error) {
	if hd == nil {
		return nil, 0, ErrNullReference
	}
	if !hd.IsArray() {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotArray, hd)
	}
	length := hd.Length()
	if index < 0 || index >= length {
		return nil, 0, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, index, length)
	}
	ci := index / ChunkSize
	obj := h.entry(hd)
	if c, ok := obj.chunks[ci]; ok {
		return c, index % ChunkSize, nil
	}
	size := length - ci*ChunkSize
	if size > ChunkSize {
		size = ChunkSize
	}
	elem, err := h.types.Type(hd.Desc[1:])
	if err != nil {
		return nil, 0, err
	}
	values := make([]Value, size)
	var stored []Value
	if !h.created[hd] {
		data, err := h.store.Get(h.contract, h.keys.ChunkKey(hd, ci))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load %s chunk %d: %w", hd, ci, err)
		}
		if data != nil {
			if stored, err = h.decodeChunk(data); err != nil {
				return nil, 0, fmt.Errorf("%w: %s chunk %d: %v", ErrCorruptState, hd, ci, err)
			}
		}
	}
	def := elem.Default()
	for i := range values {
		if i < len(stored) {
			values[i] = stored[i]
		} else {
			values[i] = def
		}
	}
	c := &chunk{values: values}
	obj.chunks[ci] = c
	return c, index % ChunkSize, nil
}

// GetElement reads one array element
func (h *Heap) GetElement(hd *ObjectHandle, index int) (Value, error) {
	c, off, err := h.chunkFor(hd, index)
	if err != nil {
		return nil, err
	}
	return c.values[off], nil
}

// SetElement writes one array element and marks its chunk dirty
func (h *Heap) SetElement(hd *ObjectHandle, index int, v Value) error {
	c, off, err := h.chunkFor(hd, index)
	if err != nil {
		return err
	}
	c.values[off] = v
	c.dirty = true
	return nil
}

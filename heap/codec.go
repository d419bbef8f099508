package heap

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("heap: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type valueKind uint8

const (
	kindNull valueKind = iota
	kindInt
	kindLong
	kindFloat
	kindDouble
	kindString
	kindRef
)

// storedValue is the persisted form of one field or element
type storedValue struct {
	K valueKind `cbor:"k"`
	I int64     `cbor:"i,omitempty"`
	F float64   `cbor:"f,omitempty"`
	S string    `cbor:"s,omitempty"` // string value or handle id
	T string    `cbor:"t,omitempty"` // handle descriptor
	D []int     `cbor:"d,omitempty"` // handle dimensions
}

func encodeValue(v Value) (storedValue, error) {
	switch x := v.(type) {
	case nil:
		return storedValue{K: kindNull}, nil
	case int32:
		return storedValue{K: kindInt, I: int64(x)}, nil
	case int64:
		return storedValue{K: kindLong, I: x}, nil
	case float32:
		return storedValue{K: kindFloat, F: float64(x)}, nil
	case float64:
		return storedValue{K: kindDouble, F: x}, nil
	case string:
		return storedValue{K: kindString, S: x}, nil
	case *ObjectHandle:
		if x == nil {
			return storedValue{K: kindNull}, nil
		}
		return storedValue{K: kindRef, S: x.ID, T: x.Desc, D: x.Dims}, nil
	}
	return storedValue{}, fmt.Errorf("unsupported heap value %T", v)
}

func (h *Heap) decodeValue(sv storedValue) (Value, error) {
	switch sv.K {
	case kindNull:
		return nil, nil
	case kindInt:
		return int32(sv.I), nil
	case kindLong:
		return sv.I, nil
	case kindFloat:
		return float32(sv.F), nil
	case kindDouble:
		return sv.F, nil
	case kindString:
		return sv.S, nil
	case kindRef:
		return h.handle(sv.S, sv.T, sv.D), nil
	}
	return nil, fmt.Errorf("unknown stored value kind %d", sv.K)
}

func (h *Heap) encodeFields(fields map[string]Value) ([]byte, error) {
	rec := make(map[string]storedValue, len(fields))
	for name, v := range fields {
		sv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		rec[name] = sv
	}
	return encMode.Marshal(rec)
}

func (h *Heap) decodeFields(data []byte) (map[string]Value, error) {
	var rec map[string]storedValue
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	fields := make(map[string]Value, len(rec))
	for name, sv := range rec {
		v, err := h.decodeValue(sv)
		if err != nil {
			return nil, err
		}
		fields[name] = v
	}
	return fields, nil
}

func (h *Heap) encodeChunk(values []Value) ([]byte, error) {
	rec := make([]storedValue, len(values))
	for i, v := range values {
		sv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		rec[i] = sv
	}
	return encMode.Marshal(rec)
}

func (h *Heap) decodeChunk(data []byte) ([]Value, error) {
	var rec []storedValue
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	values := make([]Value, len(rec))
	for i, sv := range rec {
		v, err := h.decodeValue(sv)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

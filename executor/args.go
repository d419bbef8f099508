package executor

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"unicode/utf16"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/heap"
	"github.com/govm-net/contractvm/vm"
)

// convertArgs turns the textual arguments of an invocation into values of
// the declared parameter types
func convertArgs(h *heap.Heap, mt *code.MethodType, args []string) ([]vm.Value, error) {
	if len(args) != len(mt.Args) {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", core.ErrInvalidArgument, len(mt.Args), len(args))
	}
	out := make([]vm.Value, len(args))
	for i, s := range args {
		v, err := convertArg(h, mt.Args[i], s)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d (%s): %v", core.ErrInvalidArgument, i, mt.Args[i].JavaName(), err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(h *heap.Heap, t *code.VariableType, s string) (vm.Value, error) {
	switch t.Kind {
	case code.KindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		if b {
			return int32(1), nil
		}
		return int32(0), nil
	case code.KindByte:
		n, err := strconv.ParseInt(s, 10, 8)
		return int32(n), err
	case code.KindShort:
		n, err := strconv.ParseInt(s, 10, 16)
		return int32(n), err
	case code.KindInt:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case code.KindChar:
		u := utf16.Encode([]rune(s))
		if len(u) != 1 {
			return nil, fmt.Errorf("want a single character, got %q", s)
		}
		return int32(u[0]), nil
	case code.KindLong:
		return strconv.ParseInt(s, 10, 64)
	case code.KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case code.KindDouble:
		return strconv.ParseFloat(s, 64)
	case code.KindArray:
		return convertArray(h, t, s)
	case code.KindObject:
		return convertObject(h, t, s)
	}
	return nil, fmt.Errorf("unsupported parameter type %s", t.JavaName())
}

func convertObject(h *heap.Heap, t *code.VariableType, s string) (vm.Value, error) {
	switch t.ClassName {
	case heap.StringClass:
		return s, nil
	case heap.BigIntegerClass:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return h.NewBigInteger(n)
	case heap.AddressClass:
		addr, err := core.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		return h.NewAddress(addr.String())
	}
	return nil, fmt.Errorf("unsupported parameter type %s", t.JavaName())
}

// convertArray parses a JSON array. Elements may be JSON strings or bare
// literals; both are converted with the element type's textual rules.
func convertArray(h *heap.Heap, t *code.VariableType, s string) (vm.Value, error) {
	if s == "null" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("want a JSON array: %v", err)
	}
	arr, err := h.NewArray(t.Desc, len(raw))
	if err != nil {
		return nil, err
	}
	for i, r := range raw {
		var elem string
		if err := json.Unmarshal(r, &elem); err != nil {
			// numbers, booleans and nested arrays come through verbatim
			elem = string(r)
		}
		v, err := convertArg(h, t.Elem, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
		if err := h.SetElement(arr, i, v); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

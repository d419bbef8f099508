package vm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/heap"
)

// ErrEncoding is returned for values that cannot be rendered as JSON
var ErrEncoding = errors.New("cannot encode value")

const maxJSONDepth = 16

// jsonEncoder renders heap values as JSON. Object keys follow field
// declaration order, superclass fields first.
type jsonEncoder struct {
	vm      *VM
	buf     bytes.Buffer
	visited map[*heap.ObjectHandle]bool
}

func (vm *VM) newJSONEncoder() *jsonEncoder {
	return &jsonEncoder{vm: vm, visited: make(map[*heap.ObjectHandle]bool)}
}

// toJSON renders v; t is its static type and may be nil
func (vm *VM) toJSON(v Value, t *code.VariableType) (string, error) {
	e := vm.newJSONEncoder()
	if err := e.value(v, t, 0); err != nil {
		return "", err
	}
	return e.buf.String(), nil
}

// encodeEvent renders an event as {"name":...,"data":{...}}
func (vm *VM) encodeEvent(ev *heap.ObjectHandle) (string, error) {
	e := vm.newJSONEncoder()
	e.buf.WriteString(`{"name":`)
	e.str(code.JavaName(ev.ClassName()))
	e.buf.WriteString(`,"data":`)
	if err := e.object(ev, 1); err != nil {
		return "", err
	}
	e.buf.WriteByte('}')
	return e.buf.String(), nil
}

func (e *jsonEncoder) str(s string) {
	b, _ := json.Marshal(s)
	e.buf.Write(b)
}

func (e *jsonEncoder) float(f float64, bitSize int) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		e.str(formatDouble(f, bitSize))
		return
	}
	e.buf.WriteString(strconv.FormatFloat(f, 'g', -1, bitSize))
}

func (e *jsonEncoder) value(v Value, t *code.VariableType, depth int) error {
	if depth > maxJSONDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrEncoding, maxJSONDepth)
	}
	if err := e.vm.charge(e.vm.cfg.Schedule.PerElement); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case string:
		e.str(x)
	case int32:
		switch {
		case t != nil && t.Kind == code.KindBoolean:
			e.buf.WriteString(strconv.FormatBool(x != 0))
		case t != nil && t.Kind == code.KindChar:
			e.str(fromUTF16([]uint16{uint16(x)}))
		default:
			e.buf.WriteString(strconv.FormatInt(int64(x), 10))
		}
	case int64:
		e.buf.WriteString(strconv.FormatInt(x, 10))
	case float32:
		e.float(float64(x), 32)
	case float64:
		e.float(x, 64)
	case *heap.ObjectHandle:
		return e.handle(x, depth)
	default:
		return fmt.Errorf("%w: %T", ErrEncoding, v)
	}
	return nil
}

func (e *jsonEncoder) handle(hd *heap.ObjectHandle, depth int) error {
	if e.visited[hd] {
		return fmt.Errorf("%w: cycle through %s", ErrEncoding, hd)
	}
	e.visited[hd] = true
	defer delete(e.visited, hd)

	if hd.IsArray() {
		return e.array(hd, depth)
	}
	h := e.vm.heap
	switch hd.ClassName() {
	case heap.BigIntegerClass:
		n, err := h.BigInteger(hd)
		if err != nil {
			return err
		}
		e.str(n.String())
		return nil
	case heap.AddressClass:
		s, err := h.AddressString(hd)
		if err != nil {
			return err
		}
		e.str(s)
		return nil
	case integerClass, longClass, booleanClass:
		desc := map[string]string{integerClass: "I", longClass: "J", booleanClass: "Z"}[hd.ClassName()]
		v, err := h.GetField(hd, boxValue, desc)
		if err != nil {
			return err
		}
		return e.value(v, e.vm.cfg.Types.MustType(desc), depth+1)
	}
	if !e.vm.pkg.Contains(hd.ClassName()) {
		s, err := e.vm.stringOf(hd)
		if err != nil {
			return err
		}
		e.str(s)
		return nil
	}
	return e.object(hd, depth)
}

func (e *jsonEncoder) array(hd *heap.ObjectHandle, depth int) error {
	elem, err := e.vm.cfg.Types.Type(hd.Desc[1:])
	if err != nil {
		return err
	}
	n := hd.Length()
	e.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		v, err := e.vm.heap.GetElement(hd, i)
		if err != nil {
			return err
		}
		if err := e.value(v, elem, depth+1); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

// instanceFields lists the non static fields of a package class, superclass first
func (vm *VM) instanceFields(class string) []*code.Field {
	var chain []*code.Class
	for c := vm.pkg.Class(class); c != nil; c = vm.pkg.Class(c.Super) {
		chain = append(chain, c)
		if len(chain) > len(vm.pkg.Classes) {
			break
		}
	}
	var out []*code.Field
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].Fields {
			if !f.IsStatic() {
				out = append(out, f)
			}
		}
	}
	return out
}

func (e *jsonEncoder) object(hd *heap.ObjectHandle, depth int) error {
	e.buf.WriteByte('{')
	for i, f := range e.vm.instanceFields(hd.ClassName()) {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.str(f.Name)
		e.buf.WriteByte(':')
		t, err := e.vm.cfg.Types.Type(f.Desc)
		if err != nil {
			return err
		}
		v, err := e.vm.heap.GetField(hd, f.Name, f.Desc)
		if err != nil {
			return err
		}
		if err := e.value(v, t, depth+1); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// FormatResult renders a returned value as the textual program result.
// Void methods produce the empty string.
func (vm *VM) FormatResult(res *Result) (string, error) {
	t := res.Type
	if t == nil || t.IsVoid() {
		return "", nil
	}
	switch x := res.Value.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case int32:
		switch t.Kind {
		case code.KindBoolean:
			return strconv.FormatBool(x != 0), nil
		case code.KindChar:
			return fromUTF16([]uint16{uint16(x)}), nil
		}
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return formatDouble(float64(x), 32), nil
	case float64:
		return formatDouble(x, 64), nil
	case *heap.ObjectHandle:
		if x.IsArray() || vm.pkg.Contains(x.ClassName()) {
			return vm.toJSON(x, t)
		}
		return vm.stringOf(x)
	}
	return "", fmt.Errorf("%w: %T", ErrEncoding, res.Value)
}

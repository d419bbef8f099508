package vm

import (
	"strconv"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/heap"
)

const maxOperandStack = 1024

// Frame is one activation record: operand stack, locals and program counter
type Frame struct {
	Method *code.Method
	Type   *code.MethodType

	locals []Value
	stack  []Value
	pc     int // next instruction
	cur    int // instruction being executed
}

func newFrame(m *code.Method, mt *code.MethodType) *Frame {
	n := m.MaxLocals
	if n < mt.ArgSlots+1 {
		n = mt.ArgSlots + 1
	}
	return &Frame{
		Method: m,
		Type:   mt,
		locals: make([]Value, n),
		stack:  make([]Value, 0, 8),
	}
}

// setArgs copies this and the arguments into the leading local slots
func (f *Frame) setArgs(this Value, args []Value) {
	slot := 0
	if !f.Method.IsStatic() {
		f.locals[0] = this
		slot = 1
	}
	for i, a := range args {
		f.locals[slot] = a
		slot += f.Type.Args[i].Slots()
	}
}

// Line is the source line of the current instruction, 0 if unknown
func (f *Frame) Line() int {
	if f.cur < len(f.Method.Code) {
		return f.Method.Code[f.cur].Line
	}
	return 0
}

// Peek returns the n-th value from the top without removing it
func (f *Frame) Peek(n int) any {
	if n < 0 || n >= len(f.stack) {
		return nil
	}
	return f.stack[len(f.stack)-1-n]
}

// Len is the operand stack depth
func (f *Frame) Len() int {
	return len(f.stack)
}

func (f *Frame) push(v Value) {
	if len(f.stack) >= maxOperandStack {
		raise(ErrOperandOverflow)
	}
	f.stack = append(f.stack, v)
}

func (f *Frame) pop() Value {
	n := len(f.stack)
	if n == 0 {
		raise(ErrStackUnderflow)
	}
	v := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return v
}

// popN pops n values and returns them in push order
func (f *Frame) popN(n int) []Value {
	if n > len(f.stack) {
		raise(ErrStackUnderflow)
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	for i := len(f.stack) - n; i < len(f.stack); i++ {
		f.stack[i] = nil
	}
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (f *Frame) popInt() int32 {
	v, ok := f.pop().(int32)
	if !ok {
		raisef(ErrTypeMismatch, "want int at %s", f.where())
	}
	return v
}

func (f *Frame) popLong() int64 {
	v, ok := f.pop().(int64)
	if !ok {
		raisef(ErrTypeMismatch, "want long at %s", f.where())
	}
	return v
}

func (f *Frame) popFloat() float32 {
	v, ok := f.pop().(float32)
	if !ok {
		raisef(ErrTypeMismatch, "want float at %s", f.where())
	}
	return v
}

func (f *Frame) popDouble() float64 {
	v, ok := f.pop().(float64)
	if !ok {
		raisef(ErrTypeMismatch, "want double at %s", f.where())
	}
	return v
}

// popRef pops a reference: nil, a string or an object handle
func (f *Frame) popRef() Value {
	v := f.pop()
	if !isReference(v) {
		raisef(ErrTypeMismatch, "want reference at %s", f.where())
	}
	return v
}

// popObject pops a heap reference; nil is returned as a nil handle
func (f *Frame) popObject() *heap.ObjectHandle {
	v := f.pop()
	if v == nil {
		return nil
	}
	hd, ok := v.(*heap.ObjectHandle)
	if !ok {
		raisef(ErrTypeMismatch, "want object at %s", f.where())
	}
	return hd
}

func (f *Frame) load(idx int) Value {
	if idx < 0 || idx >= len(f.locals) {
		raisef(ErrInvalidInstruction, "local %d out of range at %s", idx, f.where())
	}
	return f.locals[idx]
}

func (f *Frame) store(idx int, v Value) {
	width := 1
	if isWide(v) {
		width = 2
	}
	if idx < 0 || idx+width > len(f.locals) {
		raisef(ErrInvalidInstruction, "local %d out of range at %s", idx, f.where())
	}
	f.locals[idx] = v
	if width == 2 {
		f.locals[idx+1] = nil
	}
}

func (f *Frame) where() string {
	return f.Method.String() + "@" + strconv.Itoa(f.cur)
}

// Package vm interprets decoded contract code: a stack machine with
// static and instance methods, objects, arrays and exceptions, metered
// by gas and backed by a lazily hydrated heap.
package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/gas"
	"github.com/govm-net/contractvm/heap"
	"github.com/govm-net/contractvm/security"
	"github.com/govm-net/contractvm/types"
)

// DefaultMaxCallDepth bounds the frame stack of one invocation
const DefaultMaxCallDepth = 512

// Config holds the process wide, read only parts of a VM
type Config struct {
	Schedule     *gas.Schedule
	Types        *code.TypeRegistry
	Natives      *NativeRegistry
	Limits       security.Limits
	MaxCallDepth int
	Logger       *slog.Logger
}

// VM runs one invocation. It is not safe for concurrent use.
type VM struct {
	cfg      Config
	ctx      *Context
	pkg      *code.Package
	heap     *heap.Heap
	host     Host
	meter    *gas.Meter
	logger   *slog.Logger
	maxDepth int

	frames []*Frame
	traces map[*heap.ObjectHandle][]string

	transfers []types.ProgramTransfer
	events    []string
	steps     uint64
}

// New binds a VM to a package, a heap and the invocation context. The gas
// meter is shared by every Run on the VM.
func New(cfg Config, ctx *Context, pkg *code.Package, h *heap.Heap, host Host) *VM {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == nil {
		cfg.Schedule = gas.DefaultSchedule()
	}
	if cfg.Natives == nil {
		cfg.Natives = DefaultNatives()
	}
	maxDepth := cfg.MaxCallDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &VM{
		cfg:      cfg,
		ctx:      ctx,
		pkg:      pkg,
		heap:     h,
		host:     host,
		meter:    gas.NewMeter(ctx.GasLimit),
		logger:   logger,
		maxDepth: maxDepth,
		traces:   make(map[*heap.ObjectHandle][]string),
	}
}

// GasUsed is the gas charged so far
func (vm *VM) GasUsed() uint64 { return vm.meter.Used() }

// Steps is the number of instructions executed so far
func (vm *VM) Steps() uint64 { return vm.steps }

// Transfers are the value transfers recorded so far, in order
func (vm *VM) Transfers() []types.ProgramTransfer { return vm.transfers }

// Events are the emitted event payloads, in order
func (vm *VM) Events() []string { return vm.events }

// Heap returns the heap the VM runs against
func (vm *VM) Heap() *heap.Heap { return vm.heap }

// Context returns the invocation context
func (vm *VM) Context() *Context { return vm.ctx }

// Run executes method to completion. this is ignored for static methods.
func (vm *VM) Run(m *code.Method, this Value, args []Value) (res *Result) {
	res = &Result{}
	mt, err := vm.cfg.Types.Method(m.Desc)
	if err != nil {
		res.Status, res.Err = types.StatusError, err
		return res
	}
	res.Type = mt.Return
	defer func() {
		if r := recover(); r != nil {
			res.Status, res.Value = types.StatusError, nil
			if f, ok := r.(fault); ok {
				res.Err = f.err
			} else {
				vm.logger.Error("vm panic", "method", m.String(), "panic", r, "stack", string(debug.Stack()))
				res.Err = fmt.Errorf("%w: %v", ErrInternal, r)
			}
		}
		vm.frames = vm.frames[:0]
	}()

	v, err := vm.invoke(m, mt, this, args)
	if err != nil {
		return vm.failure(res, err)
	}
	res.Status, res.Value = types.StatusSuccess, v
	return res
}

func (vm *VM) failure(res *Result, err error) *Result {
	var t *Throw
	var rv *revert
	switch {
	case errors.As(err, &t):
		res.Status = types.StatusException
		res.ExceptionClass = t.Object.ClassName()
		res.ExceptionMessage = vm.exceptionMessage(t.Object)
		res.StackTrace = vm.traces[t.Object]
	case errors.As(err, &rv):
		res.Status = types.StatusRevert
		res.RevertMessage = rv.msg
	default:
		res.Status = types.StatusError
		res.Err = err
	}
	return res
}

// invoke runs a bytecode method in a fresh frame and returns its value.
// Natives use it to call back into contract code.
func (vm *VM) invoke(m *code.Method, mt *code.MethodType, this Value, args []Value) (Value, error) {
	if err := vm.pushFrame(m, mt, this, args); err != nil {
		return nil, err
	}
	return vm.loop(len(vm.frames) - 1)
}

func (vm *VM) pushFrame(m *code.Method, mt *code.MethodType, this Value, args []Value) error {
	if len(vm.frames) >= vm.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrStackOverflow, len(vm.frames))
	}
	if !m.HasCode() {
		return fmt.Errorf("%w: %s has no body", ErrUnsupportedMethod, m)
	}
	f := newFrame(m, mt)
	f.setArgs(this, args)
	vm.frames = append(vm.frames, f)
	return nil
}

// loop steps instructions until the frame at index base returns. A thrown
// object that is not caught at or above base is returned as *Throw.
func (vm *VM) loop(base int) (Value, error) {
	for {
		f := vm.frames[len(vm.frames)-1]
		if f.pc >= len(f.Method.Code) {
			return nil, fmt.Errorf("%w: %s runs past its end", ErrInvalidInstruction, f.Method)
		}
		inst := &f.Method.Code[f.pc]
		if err := vm.meter.Charge(vm.cfg.Schedule.Cost(inst, f)); err != nil {
			return nil, err
		}
		vm.steps++

		op := jumpTable[inst.Op]
		if op == nil {
			return nil, fmt.Errorf("%w: %s in %s", ErrInvalidInstruction, inst.Op, f.Method)
		}
		f.cur = f.pc
		f.pc++
		ret, err := op.execute(vm, f, inst)
		if err != nil {
			var t *Throw
			if !errors.As(err, &t) {
				return nil, err
			}
			if !vm.unwind(t, base) {
				return nil, t
			}
			continue
		}
		if ret == nil {
			continue
		}
		// the frame returned
		vm.frames[len(vm.frames)-1] = nil
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == base {
			return ret.value, nil
		}
		if !f.Type.Return.IsVoid() {
			vm.frames[len(vm.frames)-1].push(ret.value)
		}
	}
}

// returned is produced by the return instructions
type returned struct {
	value Value
}

// unwind pops frames above base until one has a handler for t. It reports
// false when the exception escapes base; frames down to base are popped.
func (vm *VM) unwind(t *Throw, base int) bool {
	if _, ok := vm.traces[t.Object]; !ok {
		vm.traces[t.Object] = vm.stackTrace()
	}
	for len(vm.frames) > base {
		f := vm.frames[len(vm.frames)-1]
		for _, h := range f.Method.Handlers {
			if f.cur < h.Start || f.cur >= h.End {
				continue
			}
			if h.Type != "" && !vm.isInstance(t.Object, h.Type) {
				continue
			}
			f.stack = f.stack[:0]
			f.push(t.Object)
			f.pc = h.Handler
			return true
		}
		vm.frames[len(vm.frames)-1] = nil
		vm.frames = vm.frames[:len(vm.frames)-1]
	}
	return false
}

// stackTrace renders the current frames, innermost first
func (vm *VM) stackTrace() []string {
	out := make([]string, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		m := f.Method
		line := "Unknown Source"
		if l := f.Line(); l > 0 {
			line = fmt.Sprintf("line %d", l)
		}
		out = append(out, fmt.Sprintf("at %s.%s(%s)", code.JavaName(m.Class.Name), m.Name, line))
	}
	return out
}

// throwNew allocates a platform exception and returns it as an error
func (vm *VM) throwNew(class, msg string) error {
	obj, err := vm.heap.NewObject(class)
	if err != nil {
		return err
	}
	if err := vm.heap.PutField(obj, throwableMessage, msg); err != nil {
		return err
	}
	return &Throw{Object: obj}
}

func (vm *VM) exceptionMessage(obj *heap.ObjectHandle) string {
	v, err := vm.heap.GetField(obj, throwableMessage, "Ljava/lang/String;")
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (vm *VM) charge(amount uint64) error {
	return vm.meter.Charge(amount)
}

func (vm *VM) checkString(s string) error {
	if err := vm.cfg.Limits.CheckString(s); err != nil {
		return fmt.Errorf("%w: %v", ErrStringTooLong, err)
	}
	return nil
}

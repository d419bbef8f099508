package vm

import (
	"errors"
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/gas"
	"github.com/govm-net/contractvm/heap"
)

// Fatal execution errors. They end the invocation with an error status.
var (
	ErrOutOfGas           = gas.ErrOutOfGas
	ErrStackOverflow      = errors.New("call stack overflow")
	ErrOperandOverflow    = errors.New("operand stack overflow")
	ErrStackUnderflow     = errors.New("operand stack underflow")
	ErrUnsupportedMethod  = core.ErrUnsupportedMethod
	ErrUnsupportedClass   = errors.New("unsupported class")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrTypeMismatch       = errors.New("operand type mismatch")
	ErrNullReference      = heap.ErrNullReference
	ErrIndexOutOfRange    = heap.ErrIndexOutOfRange
	ErrStringTooLong      = errors.New("string too long")
	ErrCallFailed         = errors.New("contract call failed")
	ErrReadOnly           = errors.New("value transfer in read only call")
	ErrInternal           = errors.New("internal error")
)

// fault is raised with panic by the operand stack helpers and recovered
// by the interpreter loop
type fault struct {
	err error
}

func raise(err error) {
	panic(fault{err: err})
}

func raisef(err error, format string, args ...any) {
	panic(fault{err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))})
}

// Throw carries a contract visible exception object while frames unwind
type Throw struct {
	Object *heap.ObjectHandle
}

func (t *Throw) Error() string {
	return "exception " + t.Object.ClassName()
}

// revert is the explicit abort requested through the native bridge
type revert struct {
	msg string
}

func (r *revert) Error() string {
	if r.msg == "" {
		return "reverted"
	}
	return "reverted: " + r.msg
}

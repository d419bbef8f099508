package vm

import (
	"fmt"

	"github.com/govm-net/contractvm/code"
)

func opBranch(f *Frame, inst *code.Instruction) {
	var taken bool
	switch op := inst.Op; {
	case op >= code.IFEQ && op <= code.IFLE:
		taken = compareInt(op-code.IFEQ, f.popInt(), 0)
	case op >= code.IF_ICMPEQ && op <= code.IF_ICMPLE:
		b, a := f.popInt(), f.popInt()
		taken = compareInt(op-code.IF_ICMPEQ, a, b)
	case op == code.IF_ACMPEQ || op == code.IF_ACMPNE:
		b, a := f.popRef(), f.popRef()
		taken = (a == b) == (op == code.IF_ACMPEQ)
	case op == code.IFNULL:
		taken = f.popRef() == nil
	case op == code.IFNONNULL:
		taken = f.popRef() != nil
	}
	if taken {
		f.pc = inst.Target
	}
}

// compareInt evaluates eq, ne, lt, ge, gt, le by their offset in the opcode table
func compareInt(cond code.OpCode, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

func opGoto(f *Frame, inst *code.Instruction) {
	f.pc = inst.Target
}

func opSwitch(f *Frame, inst *code.Instruction) {
	key := f.popInt()
	for _, c := range inst.Cases {
		if c.Key == key {
			f.pc = c.Target
			return
		}
	}
	f.pc = inst.Default
}

func opReturnValue(_ *VM, f *Frame, _ *code.Instruction) (*returned, error) {
	return &returned{value: normalize(f.Type.Return, f.pop())}, nil
}

func opReturn(*VM, *Frame, *code.Instruction) (*returned, error) {
	return &returned{}, nil
}

func opThrow(_ *VM, f *Frame, _ *code.Instruction) error {
	obj := f.popObject()
	if obj == nil {
		return fmt.Errorf("%w: athrow at %s", ErrNullReference, f.where())
	}
	return &Throw{Object: obj}
}

// normalize narrows an int to the declared sub-int type
func normalize(t *code.VariableType, v Value) Value {
	i, ok := v.(int32)
	if !ok {
		return v
	}
	switch t.Kind {
	case code.KindBoolean:
		return i & 1
	case code.KindByte:
		return int32(int8(i))
	case code.KindChar:
		return int32(uint16(i))
	case code.KindShort:
		return int32(int16(i))
	}
	return v
}

package vm

import (
	"fmt"

	"github.com/govm-net/contractvm/code"
)

func opPushImmediate(f *Frame, inst *code.Instruction) {
	f.push(int32(inst.Operand))
}

func opLdc(vm *VM, f *Frame, inst *code.Instruction) error {
	if inst.Const == nil {
		return fmt.Errorf("%w: ldc without constant in %s", ErrInvalidInstruction, f.Method)
	}
	v := inst.Const.Value()
	if s, ok := v.(string); ok {
		if err := vm.checkString(s); err != nil {
			return err
		}
	}
	f.push(v)
	return nil
}

func opLoad(f *Frame, inst *code.Instruction) {
	idx, _ := inst.LocalIndex()
	f.push(f.load(idx))
}

func opStore(f *Frame, inst *code.Instruction) {
	idx, _ := inst.LocalIndex()
	f.store(idx, f.pop())
}

func opIinc(f *Frame, inst *code.Instruction) {
	idx, _ := inst.LocalIndex()
	v, ok := f.load(idx).(int32)
	if !ok {
		raisef(ErrTypeMismatch, "iinc on non int local %d at %s", idx, f.where())
	}
	f.store(idx, v+int32(inst.Delta))
}

// Long and double values occupy a single operand stack entry; the two
// word stack instructions look at the value kind to pick their form.

func opPop(f *Frame, _ *code.Instruction) {
	f.pop()
}

func opPop2(f *Frame, _ *code.Instruction) {
	if v := f.pop(); !isWide(v) {
		f.pop()
	}
}

func opDup(f *Frame, _ *code.Instruction) {
	if f.Len() == 0 {
		raise(ErrStackUnderflow)
	}
	f.push(f.Peek(0))
}

func opDupX1(f *Frame, _ *code.Instruction) {
	v1, v2 := f.pop(), f.pop()
	f.push(v1)
	f.push(v2)
	f.push(v1)
}

func opDupX2(f *Frame, _ *code.Instruction) {
	v1, v2 := f.pop(), f.pop()
	if isWide(v2) {
		f.push(v1)
		f.push(v2)
		f.push(v1)
		return
	}
	v3 := f.pop()
	f.push(v1)
	f.push(v3)
	f.push(v2)
	f.push(v1)
}

func opDup2(f *Frame, _ *code.Instruction) {
	v1 := f.pop()
	if isWide(v1) {
		f.push(v1)
		f.push(v1)
		return
	}
	v2 := f.pop()
	f.push(v2)
	f.push(v1)
	f.push(v2)
	f.push(v1)
}

func opDup2X1(f *Frame, _ *code.Instruction) {
	v1, v2 := f.pop(), f.pop()
	if isWide(v1) {
		f.push(v1)
		f.push(v2)
		f.push(v1)
		return
	}
	v3 := f.pop()
	f.push(v2)
	f.push(v1)
	f.push(v3)
	f.push(v2)
	f.push(v1)
}

func opDup2X2(f *Frame, _ *code.Instruction) {
	v1, v2 := f.pop(), f.pop()
	if isWide(v1) {
		if isWide(v2) {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			return
		}
		v3 := f.pop()
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
		return
	}
	v3 := f.pop()
	if isWide(v3) {
		f.push(v2)
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
		return
	}
	v4 := f.pop()
	f.push(v2)
	f.push(v1)
	f.push(v4)
	f.push(v3)
	f.push(v2)
	f.push(v1)
}

func opSwap(f *Frame, _ *code.Instruction) {
	v1, v2 := f.pop(), f.pop()
	f.push(v1)
	f.push(v2)
}

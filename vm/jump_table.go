package vm

import (
	"github.com/govm-net/contractvm/code"
)

type executionFunc func(vm *VM, f *Frame, inst *code.Instruction) (*returned, error)

type operation struct {
	execute executionFunc
}

// JumpTable maps every opcode to its handler; nil entries are rejected
type JumpTable [256]*operation

var jumpTable = newJumpTable()

// simple adapts a handler that neither returns nor fails
func simple(fn func(f *Frame, inst *code.Instruction)) *operation {
	return &operation{execute: func(vm *VM, f *Frame, inst *code.Instruction) (*returned, error) {
		fn(f, inst)
		return nil, nil
	}}
}

func fallible(fn func(vm *VM, f *Frame, inst *code.Instruction) error) *operation {
	return &operation{execute: func(vm *VM, f *Frame, inst *code.Instruction) (*returned, error) {
		return nil, fn(vm, f, inst)
	}}
}

func newJumpTable() JumpTable {
	var tbl JumpTable

	// constants
	tbl[code.NOP] = simple(func(*Frame, *code.Instruction) {})
	tbl[code.ACONST_NULL] = simple(func(f *Frame, _ *code.Instruction) { f.push(nil) })
	for op := code.ICONST_M1; op <= code.ICONST_5; op++ {
		v := int32(op) - int32(code.ICONST_0)
		tbl[op] = simple(func(f *Frame, _ *code.Instruction) { f.push(v) })
	}
	for op := code.LCONST_0; op <= code.LCONST_1; op++ {
		v := int64(op - code.LCONST_0)
		tbl[op] = simple(func(f *Frame, _ *code.Instruction) { f.push(v) })
	}
	for op := code.FCONST_0; op <= code.FCONST_2; op++ {
		v := float32(op - code.FCONST_0)
		tbl[op] = simple(func(f *Frame, _ *code.Instruction) { f.push(v) })
	}
	for op := code.DCONST_0; op <= code.DCONST_1; op++ {
		v := float64(op - code.DCONST_0)
		tbl[op] = simple(func(f *Frame, _ *code.Instruction) { f.push(v) })
	}
	tbl[code.BIPUSH] = simple(opPushImmediate)
	tbl[code.SIPUSH] = simple(opPushImmediate)
	tbl[code.LDC] = fallible(opLdc)
	tbl[code.LDC_W] = fallible(opLdc)
	tbl[code.LDC2_W] = fallible(opLdc)

	// locals
	for op := code.ILOAD; op <= code.ALOAD; op++ {
		tbl[op] = simple(opLoad)
	}
	for op := code.ILOAD_0; op <= code.ALOAD_3; op++ {
		tbl[op] = simple(opLoad)
	}
	for op := code.ISTORE; op <= code.ASTORE; op++ {
		tbl[op] = simple(opStore)
	}
	for op := code.ISTORE_0; op <= code.ASTORE_3; op++ {
		tbl[op] = simple(opStore)
	}
	tbl[code.IINC] = simple(opIinc)

	// arrays
	for op := code.IALOAD; op <= code.SALOAD; op++ {
		tbl[op] = fallible(opArrayLoad)
	}
	for op := code.IASTORE; op <= code.SASTORE; op++ {
		tbl[op] = fallible(opArrayStore)
	}
	tbl[code.ARRAYLENGTH] = fallible(opArrayLength)
	tbl[code.NEWARRAY] = fallible(opNewArray)
	tbl[code.ANEWARRAY] = fallible(opNewArray)
	tbl[code.MULTIANEWARRAY] = fallible(opMultiNewArray)

	// stack
	tbl[code.POP] = simple(opPop)
	tbl[code.POP2] = simple(opPop2)
	tbl[code.DUP] = simple(opDup)
	tbl[code.DUP_X1] = simple(opDupX1)
	tbl[code.DUP_X2] = simple(opDupX2)
	tbl[code.DUP2] = simple(opDup2)
	tbl[code.DUP2_X1] = simple(opDup2X1)
	tbl[code.DUP2_X2] = simple(opDup2X2)
	tbl[code.SWAP] = simple(opSwap)

	// math
	for op := code.IADD; op <= code.LXOR; op++ {
		tbl[op] = fallible(opMath)
	}
	for op := code.I2L; op <= code.I2S; op++ {
		tbl[op] = simple(opConvert)
	}
	for op := code.LCMP; op <= code.DCMPG; op++ {
		tbl[op] = simple(opCompare)
	}

	// control
	for op := code.IFEQ; op <= code.IF_ACMPNE; op++ {
		tbl[op] = simple(opBranch)
	}
	tbl[code.IFNULL] = simple(opBranch)
	tbl[code.IFNONNULL] = simple(opBranch)
	tbl[code.GOTO] = simple(opGoto)
	tbl[code.GOTO_W] = simple(opGoto)
	tbl[code.TABLESWITCH] = simple(opSwitch)
	tbl[code.LOOKUPSWITCH] = simple(opSwitch)
	for op := code.IRETURN; op <= code.ARETURN; op++ {
		tbl[op] = &operation{execute: opReturnValue}
	}
	tbl[code.RETURN] = &operation{execute: opReturn}
	tbl[code.ATHROW] = fallible(opThrow)

	// objects
	tbl[code.GETSTATIC] = fallible(opGetStatic)
	tbl[code.PUTSTATIC] = fallible(opPutStatic)
	tbl[code.GETFIELD] = fallible(opGetField)
	tbl[code.PUTFIELD] = fallible(opPutField)
	tbl[code.NEW] = fallible(opNew)
	tbl[code.CHECKCAST] = fallible(opCheckCast)
	tbl[code.INSTANCEOF] = &operation{execute: opInstanceOf}

	// invocation
	tbl[code.INVOKEVIRTUAL] = fallible(opInvokeVirtual)
	tbl[code.INVOKEINTERFACE] = fallible(opInvokeVirtual)
	tbl[code.INVOKESPECIAL] = fallible(opInvokeSpecial)
	tbl[code.INVOKESTATIC] = fallible(opInvokeStatic)

	// jsr, ret, invokedynamic, monitorenter, monitorexit and wide stay nil
	return tbl
}

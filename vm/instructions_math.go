package vm

import (
	"math"

	"github.com/govm-net/contractvm/code"
)

const arithmeticException = "java/lang/ArithmeticException"

func opMath(vm *VM, f *Frame, inst *code.Instruction) error {
	switch inst.Op {
	case code.IADD, code.ISUB, code.IMUL, code.IDIV, code.IREM,
		code.ISHL, code.ISHR, code.IUSHR, code.IAND, code.IOR, code.IXOR:
		b, a := f.popInt(), f.popInt()
		if (inst.Op == code.IDIV || inst.Op == code.IREM) && b == 0 {
			return vm.throwNew(arithmeticException, "/ by zero")
		}
		f.push(intOp(inst.Op, a, b))
	case code.LADD, code.LSUB, code.LMUL, code.LDIV, code.LREM,
		code.LAND, code.LOR, code.LXOR:
		b, a := f.popLong(), f.popLong()
		if (inst.Op == code.LDIV || inst.Op == code.LREM) && b == 0 {
			return vm.throwNew(arithmeticException, "/ by zero")
		}
		f.push(longOp(inst.Op, a, b))
	case code.LSHL, code.LSHR, code.LUSHR:
		n, a := f.popInt(), f.popLong()
		s := uint(n) & 0x3f
		switch inst.Op {
		case code.LSHL:
			f.push(a << s)
		case code.LSHR:
			f.push(a >> s)
		default:
			f.push(int64(uint64(a) >> s))
		}
	case code.FADD, code.FSUB, code.FMUL, code.FDIV, code.FREM:
		b, a := f.popFloat(), f.popFloat()
		f.push(float32(floatOp(inst.Op-code.FADD+code.DADD, float64(a), float64(b), true)))
	case code.DADD, code.DSUB, code.DMUL, code.DDIV, code.DREM:
		b, a := f.popDouble(), f.popDouble()
		f.push(floatOp(inst.Op, a, b, false))
	case code.INEG:
		f.push(-f.popInt())
	case code.LNEG:
		f.push(-f.popLong())
	case code.FNEG:
		f.push(-f.popFloat())
	case code.DNEG:
		f.push(-f.popDouble())
	default:
		raisef(ErrInvalidInstruction, "%s", inst.Op)
	}
	return nil
}

func intOp(op code.OpCode, a, b int32) int32 {
	switch op {
	case code.IADD:
		return a + b
	case code.ISUB:
		return a - b
	case code.IMUL:
		return a * b
	case code.IDIV:
		return a / b
	case code.IREM:
		return a % b
	case code.ISHL:
		return a << (uint(b) & 0x1f)
	case code.ISHR:
		return a >> (uint(b) & 0x1f)
	case code.IUSHR:
		return int32(uint32(a) >> (uint(b) & 0x1f))
	case code.IAND:
		return a & b
	case code.IOR:
		return a | b
	}
	return a ^ b
}

func longOp(op code.OpCode, a, b int64) int64 {
	switch op {
	case code.LADD:
		return a + b
	case code.LSUB:
		return a - b
	case code.LMUL:
		return a * b
	case code.LDIV:
		return a / b
	case code.LREM:
		return a % b
	case code.LAND:
		return a & b
	case code.LOR:
		return a | b
	}
	return a ^ b
}

// floatOp evaluates a double opcode; single rounds each result to float32
func floatOp(op code.OpCode, a, b float64, single bool) float64 {
	var r float64
	switch op {
	case code.DADD:
		r = a + b
	case code.DSUB:
		r = a - b
	case code.DMUL:
		r = a * b
	case code.DDIV:
		r = a / b
	default:
		r = math.Mod(a, b)
	}
	if single {
		return float64(float32(r))
	}
	return r
}

func opConvert(f *Frame, inst *code.Instruction) {
	switch inst.Op {
	case code.I2L:
		f.push(int64(f.popInt()))
	case code.I2F:
		f.push(float32(f.popInt()))
	case code.I2D:
		f.push(float64(f.popInt()))
	case code.L2I:
		f.push(int32(f.popLong()))
	case code.L2F:
		f.push(float32(f.popLong()))
	case code.L2D:
		f.push(float64(f.popLong()))
	case code.F2I:
		f.push(f2i(float64(f.popFloat())))
	case code.F2L:
		f.push(f2l(float64(f.popFloat())))
	case code.F2D:
		f.push(float64(f.popFloat()))
	case code.D2I:
		f.push(f2i(f.popDouble()))
	case code.D2L:
		f.push(f2l(f.popDouble()))
	case code.D2F:
		f.push(float32(f.popDouble()))
	case code.I2B:
		f.push(int32(int8(f.popInt())))
	case code.I2C:
		f.push(int32(uint16(f.popInt())))
	case code.I2S:
		f.push(int32(int16(f.popInt())))
	}
}

func opCompare(f *Frame, inst *code.Instruction) {
	switch inst.Op {
	case code.LCMP:
		b, a := f.popLong(), f.popLong()
		switch {
		case a < b:
			f.push(int32(-1))
		case a > b:
			f.push(int32(1))
		default:
			f.push(int32(0))
		}
	case code.FCMPL, code.FCMPG:
		b, a := f.popFloat(), f.popFloat()
		nan := int32(-1)
		if inst.Op == code.FCMPG {
			nan = 1
		}
		f.push(fcmp(float64(a), float64(b), nan))
	case code.DCMPL, code.DCMPG:
		b, a := f.popDouble(), f.popDouble()
		nan := int32(-1)
		if inst.Op == code.DCMPG {
			nan = 1
		}
		f.push(fcmp(a, b, nan))
	}
}

package gas

import (
	"math"
	"testing"

	"github.com/govm-net/contractvm/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceStack []any

func (s sliceStack) Peek(n int) any { return s[len(s)-1-n] }
func (s sliceStack) Len() int       { return len(s) }

func TestStaticCosts(t *testing.T) {
	s := DefaultSchedule()
	tests := []struct {
		op   code.OpCode
		want uint64
	}{
		{code.ICONST_1, s.Constant},
		{code.ILOAD_0, s.Load},
		{code.ASTORE, s.Store},
		{code.IINC, s.Store},
		{code.DUP_X2, s.Stack},
		{code.IMUL, s.Math},
		{code.L2I, s.Conversion},
		{code.LCMP, s.Compare},
		{code.GOTO, s.Control},
		{code.IFNONNULL, s.Control},
		{code.GETFIELD, s.Field},
		{code.NEW, s.Allocation},
		{code.IALOAD, s.Array},
		{code.ARRAYLENGTH, s.Array},
		{code.INVOKESTATIC, s.Invoke},
		{code.ARETURN, s.Return},
		{code.ATHROW, s.Throw},
		{code.INSTANCEOF, s.TypeCheck},
		{code.NOP, 0},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			inst := &code.Instruction{Op: tt.op}
			assert.Equal(t, tt.want, s.Cost(inst, nil))
		})
	}
}

func TestConstantLoadCost(t *testing.T) {
	s := DefaultSchedule()
	s.PerChar = 3

	str := &code.Instruction{Op: code.LDC, Const: &code.Constant{Kind: code.ConstString, Str: "héllo"}}
	assert.Equal(t, uint64(15), s.Cost(str, nil))

	empty := &code.Instruction{Op: code.LDC, Const: &code.Constant{Kind: code.ConstString}}
	assert.Equal(t, uint64(3), s.Cost(empty, nil))

	num := &code.Instruction{Op: code.LDC2_W, Const: &code.Constant{Kind: code.ConstLong, Int: 1 << 40}}
	assert.Equal(t, s.Constant, s.Cost(num, nil))
}

func TestArrayAllocationCost(t *testing.T) {
	s := DefaultSchedule()
	stack := sliceStack{"below", int32(100)}
	inst := &code.Instruction{Op: code.NEWARRAY, Operand: code.TInt}
	assert.Equal(t, 100*s.PerElement, s.Cost(inst, stack))
	assert.Len(t, stack, 2, "cost must not consume operands")

	zero := sliceStack{int32(0)}
	assert.Equal(t, s.PerElement, s.Cost(inst, zero))

	negative := sliceStack{int32(-5)}
	assert.Equal(t, s.PerElement, s.Cost(&code.Instruction{Op: code.ANEWARRAY, Type: "java/lang/String"}, negative))
}

func TestMultiArrayCost(t *testing.T) {
	s := DefaultSchedule()
	s.PerElement = 2
	// dims pushed in order: outer first
	stack := sliceStack{int32(3), int32(4), int32(5)}
	inst := &code.Instruction{Op: code.MULTIANEWARRAY, Type: "[[[I", Operand: 3}
	// 3 outer slots, 12 middle slots, 60 ints
	assert.Equal(t, uint64((3+12+60)*2), s.Cost(inst, stack))

	huge := sliceStack{int32(math.MaxInt32), int32(math.MaxInt32), int32(math.MaxInt32)}
	assert.Equal(t, uint64(math.MaxUint64), s.Cost(inst, huge))
}

func TestMultiArrayTrailingZeroDimension(t *testing.T) {
	s := DefaultSchedule()
	// a million empty inner arrays still cost a million allocations
	inst := &code.Instruction{Op: code.MULTIANEWARRAY, Type: "[[I", Operand: 2}
	stack := sliceStack{int32(1000000), int32(0)}
	assert.Equal(t, uint64(1000000+1)*s.PerElement, s.Cost(inst, stack))

	nested := &code.Instruction{Op: code.MULTIANEWARRAY, Type: "[[[I", Operand: 3}
	deep := sliceStack{int32(1 << 20), int32(1 << 20), int32(0)}
	assert.Equal(t, uint64(1<<20+1<<40+1)*s.PerElement, s.Cost(nested, deep))

	// an empty outer dimension allocates nothing below it
	empty := sliceStack{int32(0), int32(1 << 20)}
	assert.Equal(t, uint64(2)*s.PerElement, s.Cost(inst, empty))
}

func TestSwitchCost(t *testing.T) {
	s := DefaultSchedule()
	s.PerCase = 4
	inst := &code.Instruction{Op: code.LOOKUPSWITCH, Cases: []code.SwitchCase{{Key: 1}, {Key: 2}, {Key: 9}}}
	assert.Equal(t, uint64(12), s.Cost(inst, nil))

	none := &code.Instruction{Op: code.TABLESWITCH}
	assert.Equal(t, uint64(4), s.Cost(none, nil))
}

func TestMeter(t *testing.T) {
	m := NewMeter(10)
	require.NoError(t, m.Charge(4))
	require.NoError(t, m.Charge(6))
	assert.Equal(t, uint64(10), m.Used())
	assert.Equal(t, uint64(0), m.Remaining())

	err := m.Charge(1)
	require.ErrorIs(t, err, ErrOutOfGas)
	assert.Contains(t, err.Error(), "out of gas")
	assert.Equal(t, uint64(10), m.Used(), "failed charge leaves usage unchanged")
}

func TestMeterUnlimited(t *testing.T) {
	m := NewMeter(0)
	require.NoError(t, m.Charge(math.MaxUint64-1))
	assert.ErrorIs(t, m.Charge(2), ErrOutOfGas, "overflow is out of gas")
	assert.Equal(t, uint64(math.MaxUint64-1), m.Used())
}

func TestCategoryNames(t *testing.T) {
	assert.Equal(t, "math", CategoryOf(code.IADD).String())
	assert.Equal(t, "none", CategoryOf(code.WIDE).String())
	assert.Equal(t, "control", CategoryOf(code.TABLESWITCH).String())
}

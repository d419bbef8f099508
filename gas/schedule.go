// Package gas prices instructions and meters gas for one invocation.
package gas

import (
	"math"
	"math/bits"
	"unicode/utf8"

	"github.com/govm-net/contractvm/code"
)

// Category groups opcodes that share a static price
type Category uint8

const (
	CatNone Category = iota
	CatConstant
	CatLoad
	CatStore
	CatStack
	CatMath
	CatConversion
	CatCompare
	CatControl
	CatField
	CatAllocation
	CatArray
	CatInvoke
	CatReturn
	CatThrow
	CatTypeCheck
)

var categoryNames = [...]string{
	CatNone:       "none",
	CatConstant:   "constant",
	CatLoad:       "load",
	CatStore:      "store",
	CatStack:      "stack",
	CatMath:       "math",
	CatConversion: "conversion",
	CatCompare:    "compare",
	CatControl:    "control",
	CatField:      "field",
	CatAllocation: "allocation",
	CatArray:      "array",
	CatInvoke:     "invoke",
	CatReturn:     "return",
	CatThrow:      "throw",
	CatTypeCheck:  "typecheck",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

var categories [256]Category

func init() {
	set := func(c Category, from, to code.OpCode) {
		for op := int(from); op <= int(to); op++ {
			categories[op] = c
		}
	}
	set(CatConstant, code.ACONST_NULL, code.LDC2_W)
	set(CatLoad, code.ILOAD, code.ALOAD_3)
	set(CatArray, code.IALOAD, code.SALOAD)
	set(CatStore, code.ISTORE, code.ASTORE_3)
	set(CatArray, code.IASTORE, code.SASTORE)
	set(CatStack, code.POP, code.SWAP)
	set(CatMath, code.IADD, code.LXOR)
	set(CatStore, code.IINC, code.IINC)
	set(CatConversion, code.I2L, code.I2S)
	set(CatCompare, code.LCMP, code.DCMPG)
	set(CatControl, code.IFEQ, code.LOOKUPSWITCH)
	set(CatReturn, code.IRETURN, code.RETURN)
	set(CatField, code.GETSTATIC, code.PUTFIELD)
	set(CatInvoke, code.INVOKEVIRTUAL, code.INVOKEDYNAMIC)
	set(CatAllocation, code.NEW, code.ANEWARRAY)
	set(CatArray, code.ARRAYLENGTH, code.ARRAYLENGTH)
	set(CatThrow, code.ATHROW, code.ATHROW)
	set(CatTypeCheck, code.CHECKCAST, code.INSTANCEOF)
	set(CatControl, code.MONITORENTER, code.MONITOREXIT)
	set(CatAllocation, code.MULTIANEWARRAY, code.MULTIANEWARRAY)
	set(CatControl, code.IFNULL, code.JSR_W)
	categories[code.WIDE] = CatNone
}

// CategoryOf returns the price category of op
func CategoryOf(op code.OpCode) Category {
	return categories[op]
}

// Schedule is the price list. Zero values are legal and make that category free.
type Schedule struct {
	Constant   uint64 `toml:"constant"`
	Load       uint64 `toml:"load"`
	Store      uint64 `toml:"store"`
	Stack      uint64 `toml:"stack"`
	Math       uint64 `toml:"math"`
	Conversion uint64 `toml:"conversion"`
	Compare    uint64 `toml:"compare"`
	Control    uint64 `toml:"control"`
	Field      uint64 `toml:"field"`
	Allocation uint64 `toml:"allocation"`
	Array      uint64 `toml:"array"`
	Invoke     uint64 `toml:"invoke"`
	Return     uint64 `toml:"return"`
	Throw      uint64 `toml:"throw"`
	TypeCheck  uint64 `toml:"type_check"`

	PerChar    uint64 `toml:"per_char"`
	PerElement uint64 `toml:"per_element"`
	PerCase    uint64 `toml:"per_case"`

	// charged by the native bridge on top of Invoke
	Native   uint64 `toml:"native"`
	Transfer uint64 `toml:"transfer"`
	Call     uint64 `toml:"call"`
	Event    uint64 `toml:"event"`
}

// DefaultSchedule returns the default price list
func DefaultSchedule() *Schedule {
	return &Schedule{
		Constant:   1,
		Load:       1,
		Store:      1,
		Stack:      1,
		Math:       2,
		Conversion: 1,
		Compare:    1,
		Control:    2,
		Field:      5,
		Allocation: 10,
		Array:      3,
		Invoke:     10,
		Return:     1,
		Throw:      10,
		TypeCheck:  2,

		PerChar:    1,
		PerElement: 1,
		PerCase:    1,

		Native:   5,
		Transfer: 100,
		Call:     200,
		Event:    20,
	}
}

// Static returns the fixed price of a category
func (s *Schedule) Static(c Category) uint64 {
	switch c {
	case CatConstant:
		return s.Constant
	case CatLoad:
		return s.Load
	case CatStore:
		return s.Store
	case CatStack:
		return s.Stack
	case CatMath:
		return s.Math
	case CatConversion:
		return s.Conversion
	case CatCompare:
		return s.Compare
	case CatControl:
		return s.Control
	case CatField:
		return s.Field
	case CatAllocation:
		return s.Allocation
	case CatArray:
		return s.Array
	case CatInvoke:
		return s.Invoke
	case CatReturn:
		return s.Return
	case CatThrow:
		return s.Throw
	case CatTypeCheck:
		return s.TypeCheck
	}
	return 0
}

// Stack is the read only view of the operand stack the dynamic costs need.
// Peek(0) is the top of the stack.
type Stack interface {
	Peek(n int) any
	Len() int
}

// Cost prices one instruction. Operands that drive a dynamic price are
// peeked, never popped.
func (s *Schedule) Cost(inst *code.Instruction, stack Stack) uint64 {
	switch inst.Op {
	case code.LDC, code.LDC_W, code.LDC2_W:
		if inst.Const != nil && !inst.Const.IsNumeric() {
			return mul(atLeastOne(uint64(utf8.RuneCountInString(inst.Const.Str))), s.PerChar)
		}
		return s.Constant
	case code.NEWARRAY, code.ANEWARRAY:
		return mul(atLeastOne(peekLength(stack, 0)), s.PerElement)
	case code.MULTIANEWARRAY:
		return mul(multiArrayElements(stack, inst.Operand), s.PerElement)
	case code.TABLESWITCH, code.LOOKUPSWITCH:
		return mul(atLeastOne(uint64(len(inst.Cases))), s.PerCase)
	}
	return s.Static(CategoryOf(inst.Op))
}

// multiArrayElements counts the slots a multianewarray of n dimensions
// allocates: d0 + d0*d1 + ... + d0*...*dn-1, every level at least one.
// The outermost dimension is the deepest operand.
func multiArrayElements(stack Stack, n int) uint64 {
	var total uint64
	level := uint64(1)
	for i := n - 1; i >= 0; i-- {
		level = mul(level, peekLength(stack, i))
		total = add(total, atLeastOne(level))
	}
	return atLeastOne(total)
}

// peekLength reads an int length operand; negative or missing values count as zero
func peekLength(stack Stack, n int) uint64 {
	if stack == nil || n >= stack.Len() {
		return 0
	}
	v, ok := stack.Peek(n).(int32)
	if !ok || v < 0 {
		return 0
	}
	return uint64(v)
}

func atLeastOne(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}

// mul saturates at MaxUint64 so a huge request is simply unaffordable
func mul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

func add(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

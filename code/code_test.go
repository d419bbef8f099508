package code

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/counter.jasm
var counterSource string

func TestAssembleCounter(t *testing.T) {
	p, err := Assemble(counterSource)
	require.NoError(t, err)

	c := p.Class("Counter")
	require.NotNil(t, c)
	assert.Equal(t, ObjectClass, c.Super)
	assert.True(t, p.Implements("Counter", ContractInterface))
	assert.Len(t, p.ContractClasses(), 1)

	add := c.Method("add", "(I)I")
	require.NotNil(t, add)
	assert.True(t, add.Payable())
	assert.False(t, add.View())
	assert.Equal(t, 12, add.Code[0].Line)
	assert.Equal(t, IFGE, add.Code[7].Op)
	assert.Equal(t, 10, add.Code[7].Target)

	get := c.Method("get", "()I")
	require.NotNil(t, get)
	assert.True(t, get.View())
	assert.GreaterOrEqual(t, get.MaxLocals, 1)

	pick := c.Method("pick", "(I)Ljava/lang/String;")
	require.NotNil(t, pick)
	sw := pick.Code[1]
	assert.Equal(t, LOOKUPSWITCH, sw.Op)
	require.Len(t, sw.Cases, 2)
	assert.Equal(t, int32(2), sw.Cases[1].Key)
	assert.Equal(t, 4, sw.Cases[1].Target)
	assert.Equal(t, 6, sw.Default)
	require.Len(t, pick.Handlers, 1)
	assert.Equal(t, ExceptionHandler{Start: 0, End: 8, Handler: 8, Type: "java/lang/RuntimeException"}, pick.Handlers[0])
	assert.GreaterOrEqual(t, pick.MaxLocals, 3)

	hook := c.Method("hook", "()V")
	require.NotNil(t, hook)
	assert.False(t, hook.HasCode())
}

func TestEncodeDecodeIsDeterministic(t *testing.T) {
	p, err := Assemble(counterSource)
	require.NoError(t, err)

	data, err := Encode(p)
	require.NoError(t, err)
	again, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	decoded, err := Decode(data)
	require.NoError(t, err)
	c := decoded.Class("Counter")
	require.NotNil(t, c)
	m := c.Method("<init>", "(I)V")
	require.NotNil(t, m)
	assert.Same(t, c, m.Class)
	assert.Equal(t, p.Class("Counter").Method("<init>", "(I)V").Code, m.Code)

	reencoded, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, reencoded)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)

	bad := &Package{Classes: []*Class{{
		Name: "Bad",
		Methods: []*Method{{
			Name: "run", Desc: "()V", Flags: AccPublic,
			Code: []Instruction{{Op: GOTO, Target: 7}},
		}},
	}}}
	data, err := Encode(bad)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "out of range")
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined label", "class A\nmethod m ()V\ngoto nowhere\nend\n", "undefined label"},
		{"unknown opcode", "class A\nmethod m ()V\nfrobnicate\nend\n", "unknown instruction"},
		{"unterminated", "class A\nmethod m ()V\nreturn\n", "not terminated"},
		{"field outside class", "field x I\n", "outside class"},
		{"operand count", "class A\nmethod m ()V\niload\nend\n", "wants 1 operands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseConstant(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int32(42)},
		{"-7", int32(-7)},
		{"42L", int64(42)},
		{"1.5f", float32(1.5)},
		{"2.5", 2.5},
		{"3d", 3.0},
		{`"a b"`, "a b"},
	}
	for _, tt := range tests {
		c, err := parseConstant(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, c.Value(), tt.in)
	}
}

func TestPackageHierarchy(t *testing.T) {
	p, err := Assemble(`
class Base implements io/contract/sdk/Contract
method public ping ()I
    iconst_1
    ireturn
end
class Derived extends Base
field value J
class MyError extends java/lang/RuntimeException
`)
	require.NoError(t, err)
	assert.NotNil(t, p.FindMethod("Derived", "ping", "()I"))
	assert.Nil(t, p.FindMethod("Derived", "pong", "()I"))
	assert.Equal(t, "java/lang/RuntimeException", p.PlatformAncestor("MyError"))
	assert.Equal(t, []string{"MyError", "java/lang/RuntimeException"}, p.Supers("MyError"))
	assert.True(t, p.Implements("Derived", ContractInterface))
	assert.Len(t, p.ContractClasses(), 2)

	owner, f := p.FindField("Derived", "value")
	require.NotNil(t, f)
	assert.Equal(t, "Derived", owner.Name)
}

func TestOpCodeTable(t *testing.T) {
	assert.Equal(t, "goto", GOTO.String())
	assert.Equal(t, OpCode(0xa7), GOTO)
	assert.Equal(t, OpCode(0xb6), INVOKEVIRTUAL)
	assert.Equal(t, OpCode(0xc5), MULTIANEWARRAY)
	op, ok := OpCodeByName("invokedynamic")
	require.True(t, ok)
	assert.Contains(t, DeniedOpCodes, op)
	assert.False(t, OpCode(0xfe).Defined())
	assert.True(t, IF_ICMPLT.IsBranch())
	assert.True(t, TABLESWITCH.IsSwitch())
}

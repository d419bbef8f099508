package executor

import (
	"testing"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, src string) error {
	t.Helper()
	pkg, err := code.Assemble(src)
	require.NoError(t, err)
	_, err = validatePackage(pkg, vm.DefaultNatives())
	return err
}

func TestValidatorAcceptsHolder(t *testing.T) {
	assert.NoError(t, validate(t, holderSource))
}

func TestValidatorFollowsOverrides(t *testing.T) {
	// Shape.area is abstract; the override in Square calls an unknown native
	src := `
class C implements io/contract/sdk/Contract
method public measure (LShape;)I
    aload_1
    invokevirtual Shape area ()I
    ireturn
end
class Shape
method public abstract area ()I
class Square extends Shape
method public area ()I
    invokestatic java/lang/Runtime gc ()V
    iconst_4
    ireturn
end
`
	err := validate(t, src)
	assert.ErrorIs(t, err, core.ErrUnsupportedMethod)
	assert.Contains(t, err.Error(), "java/lang/Runtime.gc")
}

func TestValidatorIgnoresUnreachableCode(t *testing.T) {
	src := `
class C implements io/contract/sdk/Contract
method public ok ()V
    return
end
method private unused ()V
    invokestatic java/lang/Runtime gc ()V
    return
end
`
	assert.NoError(t, validate(t, src))
}

func TestValidatorChecksPlatformAccess(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"platform static field", "getstatic java/lang/System out Ljava/io/PrintStream;\n    pop", core.ErrUnsupportedMethod},
		{"platform static write", "aconst_null\n    putstatic java/math/BigInteger ONE Ljava/math/BigInteger;", core.ErrUnsupportedMethod},
		{"platform allocation", "new java/lang/Thread\n    pop", core.ErrUnsupportedMethod},
		{"known static field", "getstatic java/math/BigInteger TEN Ljava/math/BigInteger;\n    pop", nil},
		{"jsr", "jsr sub\nsub:", core.ErrInvalidCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class C implements io/contract/sdk/Contract\nmethod public run ()V\n    " + tt.body + "\n    return\nend\n"
			err := validate(t, src)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestValidatorRejectsUnknownSuper(t *testing.T) {
	src := `
class C extends java/util/ArrayList implements io/contract/sdk/Contract
method public run ()V
    return
end
`
	assert.ErrorIs(t, validate(t, src), core.ErrInvalidCode)
}

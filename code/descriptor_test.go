package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		desc      string
		kind      Kind
		className string
		dims      int
		def       any
	}{
		{"I", KindInt, "", 0, int32(0)},
		{"Z", KindBoolean, "", 0, int32(0)},
		{"C", KindChar, "", 0, int32(0)},
		{"J", KindLong, "", 0, int64(0)},
		{"F", KindFloat, "", 0, float32(0)},
		{"D", KindDouble, "", 0, float64(0)},
		{"Ljava/lang/String;", KindObject, "java/lang/String", 0, nil},
		{"[I", KindArray, "", 1, nil},
		{"[[Ljava/math/BigInteger;", KindArray, "", 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			vt, err := ParseType(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, vt.Kind)
			assert.Equal(t, tt.className, vt.ClassName)
			assert.Equal(t, tt.dims, vt.Dimensions)
			assert.Equal(t, tt.def, vt.Default())
			assert.Equal(t, tt.desc, vt.Desc)
		})
	}

	for _, bad := range []string{"", "Q", "L;", "Ljava/lang/String", "[V", "II"} {
		_, err := ParseType(bad)
		assert.Error(t, err, bad)
	}
}

func TestArrayElementType(t *testing.T) {
	vt, err := ParseType("[[J")
	require.NoError(t, err)
	assert.Equal(t, "[J", vt.Elem.Desc)
	assert.Equal(t, KindLong, vt.Elem.Elem.Kind)
	assert.Equal(t, "long[][]", vt.JavaName())
}

func TestParseMethodType(t *testing.T) {
	mt, err := ParseMethodType("(IJLjava/lang/String;[D)Z")
	require.NoError(t, err)
	require.Len(t, mt.Args, 4)
	assert.Equal(t, 1+2+1+1, mt.ArgSlots)
	assert.Equal(t, KindBoolean, mt.Return.Kind)

	mt, err = ParseMethodType("()V")
	require.NoError(t, err)
	assert.Empty(t, mt.Args)
	assert.True(t, mt.Return.IsVoid())

	for _, bad := range []string{"I", "(I", "(V)V", "(I)", "(I)VV"} {
		_, err := ParseMethodType(bad)
		assert.Error(t, err, bad)
	}
}

func TestTypeRegistryCaches(t *testing.T) {
	r, err := NewTypeRegistry(16)
	require.NoError(t, err)

	a, err := r.Type("[I")
	require.NoError(t, err)
	b, err := r.Type("[I")
	require.NoError(t, err)
	assert.Same(t, a, b)

	m1, err := r.Method("(I)V")
	require.NoError(t, err)
	m2, err := r.Method("(I)V")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	_, err = r.Type("X")
	assert.Error(t, err)
}

func TestClassDesc(t *testing.T) {
	assert.Equal(t, "LCounter;", ClassDesc("Counter"))
	assert.Equal(t, "[I", ClassDesc("[I"))
}

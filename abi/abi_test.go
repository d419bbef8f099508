package abi

import (
	_ "embed"
	"testing"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/vault.jasm
var vaultSource string

func extract(t *testing.T, src string) *ABI {
	t.Helper()
	pkg, err := code.Assemble(src)
	require.NoError(t, err)
	abi, err := Extract(pkg)
	require.NoError(t, err)
	return abi
}

func TestExtract(t *testing.T) {
	abi := extract(t, vaultSource)
	assert.Equal(t, "Vault", abi.Contract)

	var names []string
	for _, fn := range abi.Functions {
		names = append(names, fn.Name+fn.Desc)
	}
	assert.Equal(t, []string{
		"deposit(J)V",
		"deposit(JLjava/lang/String;)V",
		"put([Ljava/lang/String;Z)I",
		"describe()Ljava/lang/String;",
		"owner()Lio/contract/sdk/Address;",
	}, names)

	// the override in Vault hides the Base declaration
	fn, err := abi.Find("describe", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Vault", fn.Method.Class.Name)

	require.Len(t, abi.Events, 1)
	assert.Equal(t, Event{Name: "Deposited", Parameters: []Parameter{
		{Name: "who", Type: "io.contract.sdk.Address"},
		{Name: "amount", Type: "java.math.BigInteger"},
	}}, abi.Events[0])
}

func TestFind(t *testing.T) {
	abi := extract(t, vaultSource)

	fn, err := abi.Find("deposit", "", 1)
	require.NoError(t, err)
	assert.True(t, fn.Payable)

	fn, err = abi.Find("deposit", "(JLjava/lang/String;)V", 2)
	require.NoError(t, err)
	assert.False(t, fn.Payable)

	_, err = abi.Find("deposit", "", 3)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = abi.Find("deposit", "(J)V", 2)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = abi.Find("secret", "", 0)
	assert.ErrorIs(t, err, core.ErrMethodNotFound)
	_, err = abi.Find("helper", "", 0)
	assert.ErrorIs(t, err, core.ErrMethodNotFound)
	_, err = abi.Find("<init>", "", 0)
	assert.ErrorIs(t, err, core.ErrMethodNotFound)
}

func TestFindAmbiguous(t *testing.T) {
	abi := extract(t, `
class C implements io/contract/sdk/Contract
method public f (I)V
    return
end
method public f (J)V
    return
end
`)
	_, err := abi.Find("f", "", 1)
	assert.ErrorIs(t, err, ErrAmbiguousMethod)
	fn, err := abi.Find("f", "(J)V", 1)
	require.NoError(t, err)
	assert.Equal(t, "(J)V", fn.Desc)
}

func TestExtractNeedsOneContract(t *testing.T) {
	pkg, err := code.Assemble("class A\nclass B\n")
	require.NoError(t, err)
	_, err = Extract(pkg)
	assert.ErrorIs(t, err, core.ErrInvalidCode)

	pkg, err = code.Assemble("class A implements io/contract/sdk/Contract\nclass B implements io/contract/sdk/Contract\n")
	require.NoError(t, err)
	_, err = Extract(pkg)
	assert.ErrorIs(t, err, core.ErrInvalidCode)
}

func TestMethods(t *testing.T) {
	abi := extract(t, vaultSource)
	methods := abi.Methods()
	require.Len(t, methods, 5)
	assert.Equal(t, types.ProgramMethod{
		Name:       "put",
		Desc:       "([Ljava/lang/String;Z)I",
		ArgTypes:   []string{"java.lang.String[]", "boolean"},
		ReturnType: "int",
	}, methods[2])
	assert.Equal(t, "void", methods[0].ReturnType)
	assert.True(t, methods[4].View)
	assert.Contains(t, abi.String(), `"contract": "Vault"`)
}

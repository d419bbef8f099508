package vm

import (
	_ "embed"
	"fmt"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/heap"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/security"
	"github.com/govm-net/contractvm/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/ops.jasm
var opsSource string

var (
	contractAddr = core.AddressFromString("00000000000000000000000000000000000000c1")
	senderAddr   = core.AddressFromString("00000000000000000000000000000000000000a1")
	otherAddr    = core.AddressFromString("00000000000000000000000000000000000000b2")
)

type fakeHost struct {
	balances map[core.Address]*uint256.Int
	result   *types.ProgramResult
	calls    []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{balances: make(map[core.Address]*uint256.Int)}
}

func (h *fakeHost) Balance(addr core.Address) (*uint256.Int, error) {
	if b, ok := h.balances[addr]; ok {
		return b.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (h *fakeHost) Transfer(from, to core.Address, value *uint256.Int) error {
	bal, _ := h.Balance(from)
	if bal.Lt(value) {
		return core.ErrInsufficientFunds
	}
	h.balances[from] = new(uint256.Int).Sub(bal, value)
	dst, _ := h.Balance(to)
	h.balances[to] = new(uint256.Int).Add(dst, value)
	return nil
}

func (h *fakeHost) IsContract(addr core.Address) (bool, error) {
	return addr == contractAddr, nil
}

func (h *fakeHost) Call(_, to core.Address, method string, args []string, _ *uint256.Int, _ uint64) *types.ProgramResult {
	h.calls = append(h.calls, fmt.Sprintf("%s.%s(%s)", to, method, strings.Join(args, ",")))
	return h.result
}

func (h *fakeHost) BlockHeader(number uint64) (*types.BlockHeader, error) {
	return &types.BlockHeader{Number: number}, nil
}

type testOption func(*Config, *Context)

func newTestVM(t *testing.T, host Host, opts ...testOption) (*VM, *code.Package) {
	t.Helper()
	pkg, err := code.Assemble(opsSource)
	require.NoError(t, err)
	reg, err := code.NewTypeRegistry(256)
	require.NoError(t, err)
	repo, err := repository.New(repository.NewMemoryDatabase())
	require.NoError(t, err)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)

	cfg := Config{Types: reg, Limits: security.DefaultLimits()}
	ctx := &Context{
		Sender:   senderAddr,
		Origin:   senderAddr,
		Contract: contractAddr,
		GasLimit: 1_000_000,
		Block:    types.BlockHeader{Number: 7, Time: 1700000000},
	}
	for _, opt := range opts {
		opt(&cfg, ctx)
	}
	if host == nil {
		host = newFakeHost()
	}
	h := heap.New(snap, contractAddr, reg, heap.WithMaxArrayLength(cfg.Limits.MaxArrayLength))
	return New(cfg, ctx, pkg, h, host), pkg
}

func gasLimit(n uint64) testOption {
	return func(_ *Config, ctx *Context) { ctx.GasLimit = n }
}

func run(t *testing.T, vm *VM, pkg *code.Package, name, desc string, args ...Value) *Result {
	t.Helper()
	m := pkg.Class("T").Method(name, desc)
	require.NotNil(t, m, name+desc)
	return vm.Run(m, nil, args)
}

func TestLoopAndArithmetic(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "sum", "(I)I", int32(10))
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, int32(55), res.Value)

	a := int64(math.MaxInt64)
	res = run(t, vm, pkg, "mix", "(JD)J", a, 2.9)
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, a*3+2, res.Value)

	res = run(t, vm, pkg, "isBig", "(I)Z", int32(5000))
	require.True(t, res.Success())
	s, err := vm.FormatResult(res)
	require.NoError(t, err)
	assert.Equal(t, "true", s)
}

func TestCaughtException(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "safeDiv", "(II)I", int32(7), int32(2))
	require.True(t, res.Success())
	assert.Equal(t, int32(3), res.Value)

	res = run(t, vm, pkg, "safeDiv", "(II)I", int32(7), int32(0))
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, int32(-1), res.Value)
}

func TestUncaughtExceptionHasStackTrace(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "outer", "()V")
	assert.Equal(t, types.StatusException, res.Status)
	assert.Equal(t, "java/lang/IllegalStateException", res.ExceptionClass)
	assert.Equal(t, "java.lang.IllegalStateException: bad state", res.Message())
	assert.Equal(t, []string{"at T.boom(line 5)", "at T.outer(line 9)"}, res.StackTrace)
}

func TestRevertAndRequire(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "fail", "()V")
	assert.Equal(t, types.StatusRevert, res.Status)
	assert.Equal(t, "nope", res.Message())

	res = run(t, vm, pkg, "check", "(I)V", int32(0))
	assert.Equal(t, types.StatusRevert, res.Status)
	assert.Equal(t, "must be positive", res.RevertMessage)

	res = run(t, vm, pkg, "check", "(I)V", int32(1))
	assert.True(t, res.Success())
}

func TestOutOfGas(t *testing.T) {
	vm, pkg := newTestVM(t, nil, gasLimit(100))
	res := run(t, vm, pkg, "sum", "(I)I", int32(1000))
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrOutOfGas)
	assert.LessOrEqual(t, vm.GasUsed(), uint64(100))
}

func TestMultiArrayPaysForEmptyRows(t *testing.T) {
	vm, pkg := newTestVM(t, nil, gasLimit(200))
	res := run(t, vm, pkg, "emptyRows", "(II)I", int32(1000000), int32(0))
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrOutOfGas)
	assert.LessOrEqual(t, vm.GasUsed(), uint64(200))

	vm, pkg = newTestVM(t, nil)
	res = run(t, vm, pkg, "emptyRows", "(II)I", int32(10), int32(0))
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, int32(10), res.Value)
}

func TestGasIsMonotonicAndDeterministic(t *testing.T) {
	gasFor := func(n int32) uint64 {
		vm, pkg := newTestVM(t, nil)
		res := run(t, vm, pkg, "sum", "(I)I", n)
		require.True(t, res.Success())
		return vm.GasUsed()
	}
	assert.Less(t, gasFor(10), gasFor(20))
	assert.Equal(t, gasFor(15), gasFor(15))
}

func TestStringsAndBigIntegers(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "greet", "(Ljava/lang/String;I)Ljava/lang/String;", "bob", int32(7))
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, "HELLO BOB#7", res.Value)

	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	want := new(big.Int).Add(new(big.Int).Mul(n, n), big.NewInt(1))
	res = run(t, vm, pkg, "square", "(Ljava/lang/String;)Ljava/lang/String;", n.String())
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, want.String(), res.Value)

	res = run(t, vm, pkg, "square", "(Ljava/lang/String;)Ljava/lang/String;", "abc")
	assert.Equal(t, types.StatusException, res.Status)
	assert.Equal(t, "java/lang/NumberFormatException", res.ExceptionClass)
}

func TestArrays(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "arr", "(I)I", int32(2000))
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, int32(3999), res.Value)

	res = run(t, vm, pkg, "arr", "(I)I", int32(0))
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrIndexOutOfRange)

	res = run(t, vm, pkg, "arr", "(I)I", int32(-1))
	assert.Equal(t, types.StatusException, res.Status)
	assert.Equal(t, "java/lang/NegativeArraySizeException", res.ExceptionClass)

	res = run(t, vm, pkg, "grid", "()I")
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, int32(13), res.Value)

	res = run(t, vm, pkg, "pair", "()[I")
	require.True(t, res.Success(), res.Message())
	s, err := vm.FormatResult(res)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", s)
}

func TestCallDepthLimit(t *testing.T) {
	vm, pkg := newTestVM(t, nil, func(cfg *Config, _ *Context) { cfg.MaxCallDepth = 32 })
	res := run(t, vm, pkg, "rec", "(I)I", int32(0))
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrStackOverflow)
}

func TestVirtualDispatch(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "speak", "()Ljava/lang/String;")
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, "woof", res.Value)

	res = run(t, vm, pkg, "cast", "()V")
	assert.Equal(t, types.StatusException, res.Status)
	assert.Equal(t, "java/lang/ClassCastException", res.ExceptionClass)
}

func TestUnsupportedMethod(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "missing", "()V")
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrUnsupportedMethod)
}

func TestTransferAndEvent(t *testing.T) {
	host := newFakeHost()
	host.balances[contractAddr] = uint256.NewInt(1000)
	vm, pkg := newTestVM(t, host)

	res := run(t, vm, pkg, "pay", "(Ljava/lang/String;J)V", otherAddr.String(), int64(500))
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, uint256.NewInt(500), host.balances[otherAddr])
	assert.Equal(t, uint256.NewInt(500), host.balances[contractAddr])
	require.Len(t, vm.Transfers(), 1)
	assert.Equal(t, types.ProgramTransfer{From: contractAddr, To: otherAddr, Value: uint256.NewInt(500)}, vm.Transfers()[0])
	require.Len(t, vm.Events(), 1)
	assert.JSONEq(t, `{"name":"Paid","data":{"to":"`+otherAddr.String()+`","amount":"500","ok":true}}`, vm.Events()[0])
}

func TestTransferWithoutFunds(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "pay", "(Ljava/lang/String;J)V", otherAddr.String(), int64(1))
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrInsufficientFunds)
	assert.Empty(t, vm.Transfers())
	assert.Empty(t, vm.Events())
}

func TestReadOnlyRejectsTransfer(t *testing.T) {
	host := newFakeHost()
	host.balances[contractAddr] = uint256.NewInt(1000)
	vm, pkg := newTestVM(t, host, func(_ *Config, ctx *Context) { ctx.ReadOnly = true })

	res := run(t, vm, pkg, "pay", "(Ljava/lang/String;J)V", otherAddr.String(), int64(500))
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrReadOnly)
	assert.Equal(t, uint256.NewInt(1000), host.balances[contractAddr])
	assert.Empty(t, vm.Transfers())
}

func TestCrossContractCall(t *testing.T) {
	host := newFakeHost()
	host.result = &types.ProgramResult{Success: true, Result: "42", GasUsed: 1000}
	vm, pkg := newTestVM(t, host)

	res := run(t, vm, pkg, "ask", "(Ljava/lang/String;)Ljava/lang/String;", otherAddr.String())
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, "42", res.Value)
	assert.Equal(t, []string{otherAddr.String() + ".answer(x)"}, host.calls)
	assert.Greater(t, vm.GasUsed(), uint64(1000))

	host.result = &types.ProgramResult{Status: types.StatusError, ErrorMessage: "boom", GasUsed: 10}
	vm, pkg = newTestVM(t, host)
	res = run(t, vm, pkg, "ask", "(Ljava/lang/String;)Ljava/lang/String;", otherAddr.String())
	assert.Equal(t, types.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, ErrCallFailed)
}

func TestMessageContext(t *testing.T) {
	vm, pkg := newTestVM(t, nil)
	res := run(t, vm, pkg, "whoami", "()Ljava/lang/String;")
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, senderAddr.String(), res.Value)
}

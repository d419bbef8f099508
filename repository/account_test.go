package repository

import (
	"testing"

	"github.com/govm-net/contractvm/core"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = core.AddressFromString("1234567890abcdef1234567890abcdef12345678")
	ownerAddr    = core.AddressFromString("abcdef1234567890abcdef1234567890abcdef12")
)

func TestAccountLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)

	state, err := snap.AccountState(contractAddr)
	require.NoError(t, err)
	assert.Nil(t, state)

	state, err = snap.CreateAccount(contractAddr, ownerAddr, 7)
	require.NoError(t, err)
	assert.Equal(t, ownerAddr, state.Owner)
	assert.False(t, state.Alive())

	_, err = snap.CreateAccount(contractAddr, ownerAddr, 8)
	assert.ErrorIs(t, err, core.ErrContractExists)

	require.NoError(t, snap.SaveCode(contractAddr, []byte("code")))
	assert.ErrorIs(t, snap.SaveCode(contractAddr, []byte("other")), core.ErrContractExists)
	code, err := snap.Code(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, []byte("code"), code)

	n, err := snap.IncrementNonce(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	state, err = snap.AccountState(contractAddr)
	require.NoError(t, err)
	assert.True(t, state.Alive())
	assert.Equal(t, core.Keccak256Hash([]byte("code")), state.CodeHash)
	assert.Equal(t, uint64(7), state.CreatedAt)

	require.NoError(t, snap.SetNonce(contractAddr, 0))
	state, err = snap.AccountState(contractAddr)
	require.NoError(t, err)
	assert.False(t, state.Alive())

	assert.ErrorIs(t, snap.SaveCode(ownerAddr, []byte("x")), core.ErrContractNotFound)
	assert.ErrorIs(t, snap.SetNonce(ownerAddr, 1), core.ErrContractNotFound)
}

func TestBalances(t *testing.T) {
	repo := newTestRepository(t)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)

	require.NoError(t, snap.AddBalance(ownerAddr, uint256.NewInt(100)))
	require.NoError(t, snap.Transfer(ownerAddr, contractAddr, uint256.NewInt(40)))

	bal, err := snap.Balance(ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), bal.Uint64())
	bal, err = snap.Balance(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bal.Uint64())

	err = snap.SubBalance(contractAddr, uint256.NewInt(41))
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	require.NoError(t, snap.SubBalance(contractAddr, uint256.NewInt(40)))
	raw, err := snap.GetRaw(addressKey(balancePrefix, contractAddr, nil))
	require.NoError(t, err)
	assert.Nil(t, raw, "zero balances are not stored")
}

func TestContractStorageIsolation(t *testing.T) {
	repo := newTestRepository(t)
	snap, err := repo.Begin(core.ZeroHash)
	require.NoError(t, err)

	require.NoError(t, snap.Put(contractAddr, []byte("k"), []byte("v1")))
	require.NoError(t, snap.Put(ownerAddr, []byte("k"), []byte("v2")))

	v, err := snap.Get(contractAddr, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, snap.Delete(contractAddr, []byte("k")))
	v, err = snap.Get(contractAddr, []byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = snap.Get(ownerAddr, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

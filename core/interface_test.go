package core

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x1234567890abcdef1234567890abcdef12345678")
	require.NoError(t, err)
	assert.Equal(t, "1234567890abcdef1234567890abcdef12345678", addr.String())

	_, err = ParseAddress("1234")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParseAddress("zz34567890abcdef1234567890abcdef12345678")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, ZeroAddress, AddressFromString("bad"))
}

func TestHashRoundTrip(t *testing.T) {
	h := Keccak256Hash([]byte("abc"))
	assert.Equal(t, h, HashFromString(h.String()))
	assert.Equal(t, ZeroHash, HashFromString("12"))
}

func TestKeccak256(t *testing.T) {
	// keccak256("") well-known value
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(Keccak256()))
	assert.Equal(t, Keccak256([]byte("ab"), []byte("c")), Keccak256([]byte("abc")))
}

func TestBytesToHash(t *testing.T) {
	h := BytesToHash([]byte{1, 2})
	assert.Equal(t, byte(1), h[30])
	assert.Equal(t, byte(2), h[31])
}

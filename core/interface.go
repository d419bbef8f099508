// Package core 定义了执行引擎各模块共享的基础类型
package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address 表示区块链上的地址
type Address [20]byte

// Hash 表示状态根或代码哈希
type Hash [32]byte

var ZeroAddress = Address{}
var ZeroHash = Hash{}

func (addr Address) String() string {
	return hex.EncodeToString(addr[:])
}

func (addr Address) Bytes() []byte {
	return addr[:]
}

func (addr Address) IsZero() bool {
	return addr == ZeroAddress
}

// AddressFromString 解析十六进制地址，失败时返回零地址
func AddressFromString(str string) Address {
	addr, err := ParseAddress(str)
	if err != nil {
		return ZeroAddress
	}
	return addr
}

// ParseAddress converts a hex string (optionally 0x prefixed) to an Address
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(addr) {
		return addr, fmt.Errorf("%w: address %q has wrong length", ErrInvalidArgument, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	copy(addr[:], b)
	return addr, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func HashFromString(str string) Hash {
	str = strings.TrimPrefix(str, "0x")
	b, err := hex.DecodeString(str)
	if err != nil || len(b) != len(Hash{}) {
		return ZeroHash
	}
	return Hash(b)
}

// BytesToHash 取 b 的末尾 32 字节
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

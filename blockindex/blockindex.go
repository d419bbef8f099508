// Package blockindex keeps the block headers that contracts can read
// through the blockhash, timestamp and coinbase natives.
package blockindex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/types"
)

// ErrOutOfOrder is returned when a header does not extend the index
var ErrOutOfOrder = errors.New("block header out of order")

// Store is a block index that also accepts new headers
type Store interface {
	types.BlockIndex
	// Append adds the header following the latest one
	Append(hdr types.BlockHeader) error
	// Latest returns the highest header, nil for an empty index
	Latest() (*types.BlockHeader, error)
	Close() error
}

// Next builds the header that follows prev. A nil prev yields block 1.
func Next(prev *types.BlockHeader, time int64, coinbase core.Address) types.BlockHeader {
	var number uint64 = 1
	var parent core.Hash
	if prev != nil {
		number = prev.Number + 1
		parent = prev.Hash
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], number)
	binary.BigEndian.PutUint64(buf[8:], uint64(time))
	return types.BlockHeader{
		Number:   number,
		Hash:     core.Keccak256Hash(parent[:], buf[:], coinbase[:]),
		Time:     time,
		Coinbase: coinbase,
	}
}

func checkNext(latest *types.BlockHeader, hdr types.BlockHeader) error {
	if latest == nil {
		return nil
	}
	if hdr.Number != latest.Number+1 {
		return fmt.Errorf("%w: got %d after %d", ErrOutOfOrder, hdr.Number, latest.Number)
	}
	if hdr.Time < latest.Time {
		return fmt.Errorf("%w: block %d time %d before %d", ErrOutOfOrder, hdr.Number, hdr.Time, latest.Time)
	}
	return nil
}

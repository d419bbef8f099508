package vm

import (
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/types"
	"github.com/holiman/uint256"
)

// Context is the read only environment of one invocation
type Context struct {
	Sender   core.Address // direct caller
	Origin   core.Address // sender of the top level invocation
	Contract core.Address
	Value    *uint256.Int
	GasPrice uint64
	GasLimit uint64
	Block    types.BlockHeader
	// ReadOnly is set for view methods and everything they call.
	// Nothing may move value while it is set.
	ReadOnly bool
}

// Host is the part of the node the native bridge talks to. Balance
// changes made through it land in the invocation's own snapshot.
type Host interface {
	Balance(addr core.Address) (*uint256.Int, error)
	Transfer(from, to core.Address, value *uint256.Int) error
	IsContract(addr core.Address) (bool, error)
	// Call runs a method of another contract with gasLimit as its budget
	Call(from, to core.Address, method string, args []string, value *uint256.Int, gasLimit uint64) *types.ProgramResult
	BlockHeader(number uint64) (*types.BlockHeader, error)
}

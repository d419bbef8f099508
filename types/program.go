// Package types contains the shapes exchanged between the execution engine
// and the block production / validation layer that drives it
package types

import (
	"github.com/govm-net/contractvm/core"
	"github.com/holiman/uint256"
)

// ProgramStatus classifies how an invocation ended
type ProgramStatus uint8

const (
	// StatusSuccess the invocation ran to completion
	StatusSuccess ProgramStatus = iota
	// StatusError validation or execution error (out of gas, unsupported method, ...)
	StatusError
	// StatusException an uncaught thrown object escaped the top frame
	StatusException
	// StatusRevert the contract explicitly asked for the invocation to be discarded
	StatusRevert
)

func (s ProgramStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusException:
		return "exception"
	case StatusRevert:
		return "revert"
	default:
		return "unknown"
	}
}

// ProgramCreate deploys a new contract
type ProgramCreate struct {
	Sender          core.Address
	ContractAddress core.Address
	Value           *uint256.Int
	GasLimit        uint64
	GasPrice        uint64
	BlockNumber     uint64
	Code            []byte
	Args            []string
}

// ProgramCall invokes a method of a deployed contract.
// MethodDesc is optional; when empty the method is resolved by name alone.
type ProgramCall struct {
	Sender          core.Address
	ContractAddress core.Address
	Value           *uint256.Int
	GasLimit        uint64
	GasPrice        uint64
	BlockNumber     uint64
	MethodName      string
	MethodDesc      string
	Args            []string
}

// ProgramTransfer is a value movement recorded by a contract
type ProgramTransfer struct {
	From  core.Address `json:"from"`
	To    core.Address `json:"to"`
	Value *uint256.Int `json:"value"`
}

// ProgramResult is produced once per invocation
type ProgramResult struct {
	GasUsed      uint64
	Result       string
	Success      bool
	Status       ProgramStatus
	ErrorMessage string
	StackTrace   string
	Transfers    []ProgramTransfer
	Events       []string
	Nonce        uint64
	Balance      *uint256.Int
	StateRoot    core.Hash

	// Err is the error behind a failed result, for errors.Is checks
	Err error `json:"-" cbor:"-"`
}

// ProgramMethod describes an externally invokable method
type ProgramMethod struct {
	Name       string   `json:"name"`
	Desc       string   `json:"desc"`
	ArgTypes   []string `json:"argTypes"`
	ReturnType string   `json:"returnType"`
	View       bool     `json:"view"`
	Payable    bool     `json:"payable"`
}

// BlockHeader is the subset of a block header visible to contracts
type BlockHeader struct {
	Number   uint64
	Hash     core.Hash
	Time     int64
	Coinbase core.Address
}

// BlockIndex resolves block headers. Supplied by the chain's block index.
type BlockIndex interface {
	// BlockHeader returns nil when the block is unknown
	BlockHeader(number uint64) (*BlockHeader, error)
}

// ErrorResult builds a failed result carrying the gas already consumed
func ErrorResult(gasUsed uint64, err error) *ProgramResult {
	return &ProgramResult{
		GasUsed:      gasUsed,
		Status:       StatusError,
		ErrorMessage: err.Error(),
		Balance:      new(uint256.Int),
		Err:          err,
	}
}

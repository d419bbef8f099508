package executor

import (
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/security"
	"github.com/govm-net/contractvm/types"
	"github.com/holiman/uint256"
)

// host connects the native bridge of one running contract to the node.
// Every balance change lands in snap, the running contract's own snapshot,
// and is dropped with it when the invocation fails.
type host struct {
	e        *Executor
	snap     *repository.Snapshot
	tracer   *security.CallTracer
	origin   core.Address
	gasPrice uint64
	block    types.BlockHeader
	readOnly bool
}

func (h *host) Balance(addr core.Address) (*uint256.Int, error) {
	return h.snap.Balance(addr)
}

func (h *host) Transfer(from, to core.Address, value *uint256.Int) error {
	return h.snap.Transfer(from, to, value)
}

func (h *host) IsContract(addr core.Address) (bool, error) {
	state, err := h.snap.AccountState(addr)
	if err != nil {
		return false, err
	}
	return state != nil, nil
}

// Call runs a method of another contract on top of the caller's snapshot.
// The callee's writes reach the caller's snapshot only when it succeeds.
func (h *host) Call(from, to core.Address, method string, args []string, value *uint256.Int, gasLimit uint64) *types.ProgramResult {
	return h.e.call(&invocation{
		snap:     h.snap,
		tracer:   h.tracer,
		sender:   from,
		origin:   h.origin,
		contract: to,
		value:    value,
		nested:   true,
		readOnly: h.readOnly,
		gasLimit: gasLimit,
		gasPrice: h.gasPrice,
		block:    h.block,
		method:   method,
		args:     args,
	})
}

func (h *host) BlockHeader(number uint64) (*types.BlockHeader, error) {
	if h.e.blocks == nil {
		return nil, nil
	}
	hdr, err := h.e.blocks.BlockHeader(number)
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", number, err)
	}
	return hdr, nil
}

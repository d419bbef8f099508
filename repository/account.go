package repository

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/govm-net/contractvm/core"
	"github.com/holiman/uint256"
)

const (
	accountPrefix = 'a'
	balancePrefix = 'b'
	codePrefix    = 'c'
	storagePrefix = 's'
)

// AccountState 合约账户状态
type AccountState struct {
	Nonce     uint64       `cbor:"n"` // liveness counter; 0 means stopped
	Owner     core.Address `cbor:"o"` // creator
	CodeHash  core.Hash    `cbor:"h"`
	CreatedAt uint64       `cbor:"b"` // block number of the create invocation

	Balance *uint256.Int `cbor:"-"`
}

// Alive reports whether the contract still accepts calls
func (a *AccountState) Alive() bool {
	return a.Nonce > 0
}

func addressKey(prefix byte, addr core.Address, suffix []byte) []byte {
	k := make([]byte, 0, 1+len(addr)+len(suffix))
	k = append(k, prefix)
	k = append(k, addr[:]...)
	return append(k, suffix...)
}

// Get reads a contract storage key; missing keys return nil
func (s *Snapshot) Get(addr core.Address, key []byte) ([]byte, error) {
	return s.GetRaw(addressKey(storagePrefix, addr, key))
}

// Put writes a contract storage key
func (s *Snapshot) Put(addr core.Address, key, value []byte) error {
	s.PutRaw(addressKey(storagePrefix, addr, key), value)
	return nil
}

// Delete removes a contract storage key
func (s *Snapshot) Delete(addr core.Address, key []byte) error {
	s.DeleteRaw(addressKey(storagePrefix, addr, key))
	return nil
}

// Code returns the stored code of a contract, nil if none
func (s *Snapshot) Code(addr core.Address) ([]byte, error) {
	return s.GetRaw(addressKey(codePrefix, addr, nil))
}

// SaveCode stores contract code. The account must exist and have no code yet.
func (s *Snapshot) SaveCode(addr core.Address, code []byte) error {
	state, err := s.AccountState(addr)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: %s", core.ErrContractNotFound, addr)
	}
	existing, err := s.Code(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", core.ErrContractExists, addr)
	}
	s.PutRaw(addressKey(codePrefix, addr, nil), code)
	state.CodeHash = core.Keccak256Hash(code)
	return s.putAccount(addr, state)
}

// AccountState returns the contract account at addr, nil if there is none
func (s *Snapshot) AccountState(addr core.Address) (*AccountState, error) {
	data, err := s.GetRaw(addressKey(accountPrefix, addr, nil))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var state AccountState
	if err := cbor.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", addr, err)
	}
	state.Balance, err = s.Balance(addr)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Snapshot) putAccount(addr core.Address, state *AccountState) error {
	data, err := encMode.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode account %s: %w", addr, err)
	}
	s.PutRaw(addressKey(accountPrefix, addr, nil), data)
	return nil
}

// CreateAccount creates a contract account with nonce 0
func (s *Snapshot) CreateAccount(addr, owner core.Address, blockNumber uint64) (*AccountState, error) {
	existing, err := s.AccountState(addr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrContractExists, addr)
	}
	state := &AccountState{Owner: owner, CreatedAt: blockNumber}
	if err := s.putAccount(addr, state); err != nil {
		return nil, err
	}
	state.Balance, err = s.Balance(addr)
	return state, err
}

// SetNonce updates the liveness counter of a contract account
func (s *Snapshot) SetNonce(addr core.Address, nonce uint64) error {
	state, err := s.AccountState(addr)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: %s", core.ErrContractNotFound, addr)
	}
	state.Nonce = nonce
	return s.putAccount(addr, state)
}

// IncrementNonce bumps the liveness counter and returns the new value
func (s *Snapshot) IncrementNonce(addr core.Address) (uint64, error) {
	state, err := s.AccountState(addr)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, fmt.Errorf("%w: %s", core.ErrContractNotFound, addr)
	}
	state.Nonce++
	return state.Nonce, s.putAccount(addr, state)
}

// Balance returns the balance of any address
func (s *Snapshot) Balance(addr core.Address) (*uint256.Int, error) {
	data, err := s.GetRaw(addressKey(balancePrefix, addr, nil))
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(data), nil
}

func (s *Snapshot) setBalance(addr core.Address, v *uint256.Int) {
	if v.IsZero() {
		s.DeleteRaw(addressKey(balancePrefix, addr, nil))
		return
	}
	s.PutRaw(addressKey(balancePrefix, addr, nil), v.Bytes())
}

// AddBalance credits amount to addr
func (s *Snapshot) AddBalance(addr core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal, err := s.Balance(addr)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow for %s", core.ErrInvalidArgument, addr)
	}
	s.setBalance(addr, sum)
	return nil
}

// SubBalance debits amount from addr
func (s *Snapshot) SubBalance(addr core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal, err := s.Balance(addr)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", core.ErrInsufficientFunds, addr, bal, amount)
	}
	s.setBalance(addr, new(uint256.Int).Sub(bal, amount))
	return nil
}

// Transfer moves amount from one address to another
func (s *Snapshot) Transfer(from, to core.Address, amount *uint256.Int) error {
	if err := s.SubBalance(from, amount); err != nil {
		return err
	}
	return s.AddBalance(to, amount)
}

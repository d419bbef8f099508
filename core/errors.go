package core

import (
	"errors"
)

// Common errors shared by the engine packages
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthorized      = errors.New("unauthorized operation")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrContractNotFound  = errors.New("contract not found")
	ErrContractExists    = errors.New("contract already exists")
	ErrContractStopped   = errors.New("contract has been stopped")
	ErrMethodNotFound    = errors.New("method not found")
	ErrNotPayable        = errors.New("method is not payable")
	ErrInvalidCode       = errors.New("invalid contract code")
	ErrUnsupportedMethod = errors.New("unsupported method")
)

package vm

import (
	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/types"
)

// Result is the outcome of one Run
type Result struct {
	Status types.ProgramStatus
	Value  Value
	Type   *code.VariableType // declared return type of the entry method

	Err error // set for StatusError

	ExceptionClass   string // internal name, set for StatusException
	ExceptionMessage string
	StackTrace       []string

	RevertMessage string
}

// Success reports a normal return
func (r *Result) Success() bool {
	return r.Status == types.StatusSuccess
}

// Message is the failure text reported to the caller
func (r *Result) Message() string {
	switch r.Status {
	case types.StatusError:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "error"
	case types.StatusException:
		if r.ExceptionMessage == "" {
			return code.JavaName(r.ExceptionClass)
		}
		return code.JavaName(r.ExceptionClass) + ": " + r.ExceptionMessage
	case types.StatusRevert:
		return r.RevertMessage
	}
	return ""
}

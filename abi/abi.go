// Package abi extracts the externally visible interface of a contract
// package: its invokable methods and the events it can emit.
package abi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/types"
)

var ErrAmbiguousMethod = errors.New("ambiguous method")

// ABI represents the Application Binary Interface of a contract
type ABI struct {
	Contract  string     `json:"contract"`
	Functions []Function `json:"functions,omitempty"`
	Events    []Event    `json:"events,omitempty"`
}

// Function represents an externally invokable method
type Function struct {
	Name    string      `json:"name"`
	Desc    string      `json:"desc"`
	Inputs  []Parameter `json:"inputs,omitempty"`
	Output  string      `json:"output,omitempty"`
	View    bool        `json:"view,omitempty"`
	Payable bool        `json:"payable,omitempty"`

	Method *code.Method     `json:"-"`
	Type   *code.MethodType `json:"-"`
}

// Event represents a class implementing the event marker interface
type Event struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter represents a function parameter or event field
type Parameter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Extract builds the ABI of pkg. The package must hold exactly one
// contract class.
func Extract(pkg *code.Package) (*ABI, error) {
	contracts := pkg.ContractClasses()
	if len(contracts) != 1 {
		return nil, fmt.Errorf("%w: want exactly one contract class, found %d", core.ErrInvalidCode, len(contracts))
	}
	c := contracts[0]
	abi := &ABI{Contract: code.JavaName(c.Name)}

	// nearest declaration wins, walking up the package supers
	seen := make(map[string]bool)
	for _, name := range pkg.Supers(c.Name) {
		cls := pkg.Class(name)
		if cls == nil {
			break
		}
		for _, m := range cls.Methods {
			if !Invokable(m) || seen[m.Key()] {
				continue
			}
			seen[m.Key()] = true
			fn, err := newFunction(m)
			if err != nil {
				return nil, err
			}
			abi.Functions = append(abi.Functions, fn)
		}
	}

	for _, cls := range pkg.Classes {
		if cls.IsInterface() || !pkg.Implements(cls.Name, code.EventInterface) {
			continue
		}
		ev := Event{Name: code.JavaName(cls.Name)}
		for _, name := range reverse(pkg.Supers(cls.Name)) {
			sc := pkg.Class(name)
			if sc == nil {
				continue
			}
			for _, f := range sc.Fields {
				if f.IsStatic() {
					continue
				}
				t, err := code.ParseType(f.Desc)
				if err != nil {
					return nil, fmt.Errorf("%w: %s.%s: %v", core.ErrInvalidCode, cls.Name, f.Name, err)
				}
				ev.Parameters = append(ev.Parameters, Parameter{Name: f.Name, Type: t.JavaName()})
			}
		}
		abi.Events = append(abi.Events, ev)
	}
	return abi, nil
}

// Invokable reports methods callers may invoke from outside: public,
// non static, with a body and not an initializer
func Invokable(m *code.Method) bool {
	return m.IsPublic() && !m.IsStatic() && m.HasCode() &&
		m.Name != code.ConstructorName && m.Name != code.StaticInitName
}

func newFunction(m *code.Method) (Function, error) {
	mt, err := code.ParseMethodType(m.Desc)
	if err != nil {
		return Function{}, fmt.Errorf("%w: %s: %v", core.ErrInvalidCode, m, err)
	}
	fn := Function{
		Name:    m.Name,
		Desc:    m.Desc,
		View:    m.View(),
		Payable: m.Payable(),
		Method:  m,
		Type:    mt,
	}
	for i, t := range mt.Args {
		fn.Inputs = append(fn.Inputs, Parameter{Name: "arg" + strconv.Itoa(i), Type: t.JavaName()})
	}
	if !mt.Return.IsVoid() {
		fn.Output = mt.Return.JavaName()
	}
	return fn, nil
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// Find resolves a function by name and, when given, descriptor. Without
// a descriptor the name must identify one function taking argc arguments;
// a known name without such an overload is an argument error.
func (a *ABI) Find(name, desc string, argc int) (*Function, error) {
	var found *Function
	named := false
	for i := range a.Functions {
		fn := &a.Functions[i]
		if fn.Name != name {
			continue
		}
		named = true
		if desc != "" {
			if fn.Desc == desc {
				found = fn
				break
			}
			continue
		}
		if len(fn.Type.Args) != argc {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s has several overloads taking %d arguments", ErrAmbiguousMethod, name, argc)
		}
		found = fn
	}
	if found == nil && named && desc == "" {
		return nil, fmt.Errorf("%w: no %s taking %d arguments", core.ErrInvalidArgument, name, argc)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s%s", core.ErrMethodNotFound, name, desc)
	}
	if len(found.Type.Args) != argc {
		return nil, fmt.Errorf("%w: %s%s takes %d arguments, got %d", core.ErrInvalidArgument, name, found.Desc, len(found.Type.Args), argc)
	}
	return found, nil
}

// Methods lists the functions in the shape reported to callers
func (a *ABI) Methods() []types.ProgramMethod {
	out := make([]types.ProgramMethod, 0, len(a.Functions))
	for _, fn := range a.Functions {
		pm := types.ProgramMethod{
			Name:       fn.Name,
			Desc:       fn.Desc,
			ArgTypes:   make([]string, len(fn.Inputs)),
			ReturnType: "void",
			View:       fn.View,
			Payable:    fn.Payable,
		}
		for i, p := range fn.Inputs {
			pm.ArgTypes[i] = p.Type
		}
		if fn.Output != "" {
			pm.ReturnType = fn.Output
		}
		out = append(out, pm)
	}
	return out
}

// String returns the JSON representation of the ABI
func (a *ABI) String() string {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling ABI: %v", err)
	}
	return string(data)
}

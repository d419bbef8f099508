package executor

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/govm-net/contractvm/abi"
	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/vm"
)

// deniedOps may not appear anywhere in contract code
var deniedOps = map[code.OpCode]bool{
	code.JSR:           true,
	code.JSR_W:         true,
	code.RET:           true,
	code.INVOKEDYNAMIC: true,
	code.MONITORENTER:  true,
	code.MONITOREXIT:   true,
}

// validator checks a decoded package before it is stored. Every method
// reachable from an entry point must resolve to package code or to the
// native allow list.
type validator struct {
	pkg     *code.Package
	natives *vm.NativeRegistry
}

func validatePackage(pkg *code.Package, natives *vm.NativeRegistry) (*abi.ABI, error) {
	v := &validator{pkg: pkg, natives: natives}
	if err := v.checkHierarchy(); err != nil {
		return nil, err
	}
	if err := v.checkOpcodes(); err != nil {
		return nil, err
	}
	contract, err := abi.Extract(pkg)
	if err != nil {
		return nil, err
	}
	if err := v.checkReachable(); err != nil {
		return nil, err
	}
	return contract, nil
}

func (v *validator) knownClass(name string) bool {
	return v.pkg.Contains(name) || v.natives.IsPlatformClass(name)
}

func (v *validator) checkHierarchy() error {
	for _, c := range v.pkg.Classes {
		if c.Super != "" && !v.knownClass(c.Super) {
			return fmt.Errorf("%w: %s extends unknown class %s", core.ErrInvalidCode, c.Name, c.Super)
		}
		for _, i := range c.Interfaces {
			if !v.knownClass(i) {
				return fmt.Errorf("%w: %s implements unknown interface %s", core.ErrInvalidCode, c.Name, i)
			}
		}
		if v.natives.IsPlatformClass(c.Name) {
			return fmt.Errorf("%w: %s redefines a platform class", core.ErrInvalidCode, c.Name)
		}
	}
	return nil
}

func (v *validator) checkOpcodes() error {
	for _, c := range v.pkg.Classes {
		for _, m := range c.Methods {
			for pc, inst := range m.Code {
				if deniedOps[inst.Op] {
					return fmt.Errorf("%w: %s at %s@%d is not allowed", core.ErrInvalidCode, inst.Op, m, pc)
				}
			}
		}
	}
	return nil
}

// entryPoints are the externally invokable methods of the contract class,
// its constructors and every static initializer
func (v *validator) entryPoints() []*code.Method {
	var out []*code.Method
	for _, c := range v.pkg.Classes {
		for _, m := range c.Methods {
			if !m.HasCode() {
				continue
			}
			if m.Name == code.StaticInitName || abi.Invokable(m) {
				out = append(out, m)
			}
		}
	}
	for _, c := range v.pkg.ContractClasses() {
		out = append(out, c.MethodsNamed(code.ConstructorName)...)
	}
	return out
}

func (v *validator) checkReachable() error {
	visited := mapset.NewThreadUnsafeSet[*code.Method]()
	queue := v.entryPoints()
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if !visited.Add(m) {
			continue
		}
		for pc := range m.Code {
			inst := &m.Code[pc]
			next, err := v.resolve(inst)
			if err != nil {
				return fmt.Errorf("%w at %s@%d", err, m, pc)
			}
			queue = append(queue, next...)
		}
	}
	return nil
}

// resolve checks one instruction and returns the package methods it can reach
func (v *validator) resolve(inst *code.Instruction) ([]*code.Method, error) {
	switch {
	case inst.Op.IsInvoke():
		return v.resolveInvoke(inst)
	case inst.Op == code.GETSTATIC && !v.pkg.Contains(inst.Owner):
		if _, ok := v.natives.StaticField(inst.Owner, inst.Name); !ok {
			return nil, fmt.Errorf("%w: static field %s.%s", core.ErrUnsupportedMethod, inst.Owner, inst.Name)
		}
	case inst.Op == code.PUTSTATIC && !v.pkg.Contains(inst.Owner):
		return nil, fmt.Errorf("%w: assignment to %s.%s", core.ErrUnsupportedMethod, inst.Owner, inst.Name)
	case inst.Op == code.NEW && !v.pkg.Contains(inst.Type):
		if !v.natives.Instantiable(inst.Type) {
			return nil, fmt.Errorf("%w: cannot instantiate %s", core.ErrUnsupportedMethod, inst.Type)
		}
	}
	return nil, nil
}

func (v *validator) resolveInvoke(inst *code.Instruction) ([]*code.Method, error) {
	owner := inst.Owner
	if !v.pkg.Contains(owner) {
		if len(owner) > 0 && owner[0] == '[' {
			owner = code.ObjectClass
		}
		if _, ok := v.natives.Resolve(owner, inst.Name, inst.Desc); !ok {
			return nil, fmt.Errorf("%w: %s.%s%s", core.ErrUnsupportedMethod, inst.Owner, inst.Name, inst.Desc)
		}
		return nil, nil
	}

	var out []*code.Method
	m := v.pkg.FindMethod(owner, inst.Name, inst.Desc)
	if m != nil && m.HasCode() {
		out = append(out, m)
	}
	if inst.Op == code.INVOKEVIRTUAL || inst.Op == code.INVOKEINTERFACE {
		// overrides in subclasses are reachable through dispatch
		for _, c := range v.pkg.Classes {
			if c.Name == owner || c.IsInterface() || !v.pkg.Implements(c.Name, owner) {
				continue
			}
			if o := v.pkg.FindMethod(c.Name, inst.Name, inst.Desc); o != nil && o.HasCode() {
				out = append(out, o)
			}
		}
	}
	if m != nil {
		return out, nil
	}
	if inst.Op != code.INVOKESTATIC {
		if _, ok := v.natives.Resolve(v.pkg.PlatformAncestor(owner), inst.Name, inst.Desc); ok {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s%s", core.ErrUnsupportedMethod, inst.Owner, inst.Name, inst.Desc)
}

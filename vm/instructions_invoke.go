package vm

import (
	"fmt"

	"github.com/govm-net/contractvm/code"
)

func (vm *VM) methodType(desc string) *code.MethodType {
	mt, err := vm.cfg.Types.Method(desc)
	if err != nil {
		raisef(ErrInvalidInstruction, "%v", err)
	}
	return mt
}

func opInvokeStatic(vm *VM, f *Frame, inst *code.Instruction) error {
	mt := vm.methodType(inst.Desc)
	args := f.popN(len(mt.Args))
	if m := vm.pkg.FindMethod(inst.Owner, inst.Name, inst.Desc); m != nil && m.HasCode() {
		return vm.pushFrame(m, mt, nil, args)
	}
	return vm.callNative(f, inst.Owner, inst, mt, args)
}

func opInvokeSpecial(vm *VM, f *Frame, inst *code.Instruction) error {
	mt := vm.methodType(inst.Desc)
	args := f.popN(len(mt.Args))
	this := f.popRef()
	if this == nil {
		return fmt.Errorf("%w: invokespecial %s.%s at %s", ErrNullReference, inst.Owner, inst.Name, f.where())
	}
	if m := vm.pkg.FindMethod(inst.Owner, inst.Name, inst.Desc); m != nil && m.HasCode() {
		return vm.pushFrame(m, mt, this, args)
	}
	return vm.callNative(f, vm.pkg.PlatformAncestor(inst.Owner), inst, mt, append([]Value{this}, args...))
}

func opInvokeVirtual(vm *VM, f *Frame, inst *code.Instruction) error {
	mt := vm.methodType(inst.Desc)
	args := f.popN(len(mt.Args))
	this := f.popRef()
	if this == nil {
		return fmt.Errorf("%w: %s %s.%s at %s", ErrNullReference, inst.Op, inst.Owner, inst.Name, f.where())
	}
	class := classOf(this)
	if vm.pkg.Contains(class) {
		if m := vm.pkg.FindMethod(class, inst.Name, inst.Desc); m != nil && m.HasCode() {
			return vm.pushFrame(m, mt, this, args)
		}
		class = vm.pkg.PlatformAncestor(class)
	}
	if len(class) > 0 && class[0] == '[' {
		class = code.ObjectClass
	}
	return vm.callNative(f, class, inst, mt, append([]Value{this}, args...))
}

// callNative runs the platform implementation of inst resolved from class
// upwards and pushes its result
func (vm *VM) callNative(f *Frame, class string, inst *code.Instruction, mt *code.MethodType, args []Value) error {
	fn, ok := vm.cfg.Natives.Resolve(class, inst.Name, inst.Desc)
	if !ok {
		return fmt.Errorf("%w: %s.%s%s", ErrUnsupportedMethod, inst.Owner, inst.Name, inst.Desc)
	}
	if err := vm.charge(vm.cfg.Schedule.Native); err != nil {
		return err
	}
	v, err := fn(vm, args)
	if err != nil {
		return err
	}
	if !mt.Return.IsVoid() {
		f.push(normalize(mt.Return, v))
	}
	return nil
}

// CallMethod runs a contract method from native code and returns its value
func (vm *VM) CallMethod(m *code.Method, this Value, args ...Value) (Value, error) {
	mt, err := vm.cfg.Types.Method(m.Desc)
	if err != nil {
		return nil, err
	}
	return vm.invoke(m, mt, this, args)
}

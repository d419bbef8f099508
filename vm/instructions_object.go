package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/heap"
)

const (
	negativeArraySizeException = "java/lang/NegativeArraySizeException"
	classCastException         = "java/lang/ClassCastException"
)

// staticHolder returns the object holding a package class's static field
func (vm *VM) staticHolder(owner, name string) (*heap.ObjectHandle, error) {
	cls, _ := vm.pkg.FindField(owner, name)
	if cls == nil {
		return nil, fmt.Errorf("%w: no field %s.%s", ErrInvalidInstruction, owner, name)
	}
	return vm.heap.StaticObject(cls.Name), nil
}

func opGetStatic(vm *VM, f *Frame, inst *code.Instruction) error {
	if !vm.pkg.Contains(inst.Owner) {
		fn, ok := vm.cfg.Natives.StaticField(inst.Owner, inst.Name)
		if !ok {
			return fmt.Errorf("%w: static field %s.%s", ErrUnsupportedMethod, inst.Owner, inst.Name)
		}
		v, err := fn(vm)
		if err != nil {
			return err
		}
		f.push(v)
		return nil
	}
	holder, err := vm.staticHolder(inst.Owner, inst.Name)
	if err != nil {
		return err
	}
	v, err := vm.heap.GetField(holder, inst.Name, inst.Desc)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func opPutStatic(vm *VM, f *Frame, inst *code.Instruction) error {
	if !vm.pkg.Contains(inst.Owner) {
		return fmt.Errorf("%w: assignment to %s.%s", ErrUnsupportedMethod, inst.Owner, inst.Name)
	}
	holder, err := vm.staticHolder(inst.Owner, inst.Name)
	if err != nil {
		return err
	}
	v, err := vm.fieldValue(inst.Desc, f.pop())
	if err != nil {
		return err
	}
	return vm.heap.PutField(holder, inst.Name, v)
}

func opGetField(vm *VM, f *Frame, inst *code.Instruction) error {
	obj := f.popObject()
	if obj == nil {
		return fmt.Errorf("%w: getfield %s at %s", ErrNullReference, inst.Name, f.where())
	}
	v, err := vm.heap.GetField(obj, inst.Name, inst.Desc)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func opPutField(vm *VM, f *Frame, inst *code.Instruction) error {
	v := f.pop()
	obj := f.popObject()
	if obj == nil {
		return fmt.Errorf("%w: putfield %s at %s", ErrNullReference, inst.Name, f.where())
	}
	v, err := vm.fieldValue(inst.Desc, v)
	if err != nil {
		return err
	}
	return vm.heap.PutField(obj, inst.Name, v)
}

// fieldValue narrows v to the field type and checks string limits
func (vm *VM) fieldValue(desc string, v Value) (Value, error) {
	t, err := vm.cfg.Types.Type(desc)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		if err := vm.checkString(s); err != nil {
			return nil, err
		}
	}
	return normalize(t, v), nil
}

func opNew(vm *VM, f *Frame, inst *code.Instruction) error {
	if c := vm.pkg.Class(inst.Type); c != nil {
		if c.IsInterface() || c.Flags.Has(code.AccAbstract) {
			return fmt.Errorf("%w: cannot instantiate %s", ErrInvalidInstruction, inst.Type)
		}
	} else if !vm.cfg.Natives.Instantiable(inst.Type) {
		return fmt.Errorf("%w: %s", ErrUnsupportedClass, inst.Type)
	}
	obj, err := vm.heap.NewObject(inst.Type)
	if err != nil {
		return err
	}
	f.push(obj)
	return nil
}

func arrayDesc(inst *code.Instruction) (string, error) {
	if inst.Op == code.NEWARRAY {
		desc, ok := code.ArrayTypeDesc(inst.Operand)
		if !ok {
			return "", fmt.Errorf("%w: newarray type %d", ErrInvalidInstruction, inst.Operand)
		}
		return desc, nil
	}
	if strings.HasPrefix(inst.Type, "[") {
		return "[" + inst.Type, nil
	}
	return "[" + code.ClassDesc(inst.Type), nil
}

func opNewArray(vm *VM, f *Frame, inst *code.Instruction) error {
	n := f.popInt()
	desc, err := arrayDesc(inst)
	if err != nil {
		return err
	}
	if n < 0 {
		return vm.throwNew(negativeArraySizeException, strconv.Itoa(int(n)))
	}
	arr, err := vm.heap.NewArray(desc, int(n))
	if err != nil {
		return err
	}
	f.push(arr)
	return nil
}

func opMultiNewArray(vm *VM, f *Frame, inst *code.Instruction) error {
	counts := f.popN(inst.Operand)
	dims := make([]int, len(counts))
	for i, c := range counts {
		n, ok := c.(int32)
		if !ok {
			raisef(ErrTypeMismatch, "want int dimension at %s", f.where())
		}
		if n < 0 {
			return vm.throwNew(negativeArraySizeException, strconv.Itoa(int(n)))
		}
		dims[i] = int(n)
	}
	arr, err := vm.heap.NewMultiArray(inst.Type, dims)
	if err != nil {
		return err
	}
	f.push(arr)
	return nil
}

func opArrayLength(vm *VM, f *Frame, _ *code.Instruction) error {
	arr := f.popObject()
	n, err := vm.heap.ArrayLength(arr)
	if err != nil {
		return fmt.Errorf("%w at %s", err, f.where())
	}
	f.push(int32(n))
	return nil
}

func opArrayLoad(vm *VM, f *Frame, _ *code.Instruction) error {
	idx := f.popInt()
	arr := f.popObject()
	v, err := vm.heap.GetElement(arr, int(idx))
	if err != nil {
		return fmt.Errorf("%w at %s", err, f.where())
	}
	f.push(v)
	return nil
}

func opArrayStore(vm *VM, f *Frame, inst *code.Instruction) error {
	v := f.pop()
	idx := f.popInt()
	arr := f.popObject()
	if arr == nil {
		return fmt.Errorf("%w at %s", ErrNullReference, f.where())
	}
	if i, ok := v.(int32); ok {
		switch inst.Op {
		case code.BASTORE:
			if arr.Desc == "[Z" {
				v = i & 1
			} else {
				v = int32(int8(i))
			}
		case code.CASTORE:
			v = int32(uint16(i))
		case code.SASTORE:
			v = int32(int16(i))
		}
	}
	if s, ok := v.(string); ok {
		if err := vm.checkString(s); err != nil {
			return err
		}
	}
	if err := vm.heap.SetElement(arr, int(idx), v); err != nil {
		return fmt.Errorf("%w at %s", err, f.where())
	}
	return nil
}

func opCheckCast(vm *VM, f *Frame, inst *code.Instruction) error {
	if f.Len() == 0 {
		raise(ErrStackUnderflow)
	}
	v := f.Peek(0)
	if v == nil || vm.isInstanceValue(v, inst.Type) {
		return nil
	}
	return vm.throwNew(classCastException, fmt.Sprintf("class %s cannot be cast to class %s",
		code.JavaName(classOf(v)), code.JavaName(inst.Type)))
}

func opInstanceOf(vm *VM, f *Frame, inst *code.Instruction) (*returned, error) {
	v := f.popRef()
	f.push(boolValue(v != nil && vm.isInstanceValue(v, inst.Type)))
	return nil, nil
}

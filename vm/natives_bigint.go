package vm

import (
	"fmt"
	"math/big"

	"github.com/govm-net/contractvm/heap"
)

const (
	bigIntegerClass = heap.BigIntegerClass
	// MaxBigIntegerBits bounds every BigInteger result
	MaxBigIntegerBits = 4096
)

var mask64 = new(big.Int).SetUint64(^uint64(0))

func (vm *VM) bigArg(v Value) (*big.Int, error) {
	return vm.heap.BigInteger(object(v))
}

// newBig materializes n, throwing when it grows past MaxBigIntegerBits
func (vm *VM) newBig(n *big.Int) (Value, error) {
	if n.BitLen() > MaxBigIntegerBits {
		return nil, vm.throwNew(arithmeticException, "BigInteger would overflow supported range")
	}
	return vm.heap.NewBigInteger(n)
}

func registerBigInteger(r *NativeRegistry) {
	const owner = bigIntegerClass
	r.DefineClass(owner, "java/lang/Number", true, "java/lang/Comparable")

	for name, v := range map[string]int64{"ZERO": 0, "ONE": 1, "TWO": 2, "TEN": 10} {
		v := v
		r.RegisterStaticField(owner, name, func(vm *VM) (Value, error) {
			return vm.heap.NewBigInteger(big.NewInt(v))
		})
	}

	r.Register(owner, "<init>", "(Ljava/lang/String;)V", func(vm *VM, args []Value) (Value, error) {
		s := str(args[1])
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, vm.throwNew(numberFormatException, fmt.Sprintf("For input string: %q", s))
		}
		if n.BitLen() > MaxBigIntegerBits {
			return nil, vm.throwNew(arithmeticException, "BigInteger would overflow supported range")
		}
		return nil, vm.heap.PutField(object(args[0]), "value", n.String())
	})
	r.Register(owner, "valueOf", "(J)Ljava/math/BigInteger;", func(vm *VM, args []Value) (Value, error) {
		return vm.heap.NewBigInteger(big.NewInt(i64(args[0])))
	})

	binary := func(op func(vm *VM, a, b *big.Int) (*big.Int, error)) NativeFunc {
		return func(vm *VM, args []Value) (Value, error) {
			a, err := vm.bigArg(args[0])
			if err != nil {
				return nil, err
			}
			b, err := vm.bigArg(args[1])
			if err != nil {
				return nil, err
			}
			n, err := op(vm, a, b)
			if err != nil {
				return nil, err
			}
			return vm.newBig(n)
		}
	}
	const bin = "(Ljava/math/BigInteger;)Ljava/math/BigInteger;"
	r.Register(owner, "add", bin, binary(func(_ *VM, a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Add(a, b), nil
	}))
	r.Register(owner, "subtract", bin, binary(func(_ *VM, a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Sub(a, b), nil
	}))
	r.Register(owner, "multiply", bin, binary(func(vm *VM, a, b *big.Int) (*big.Int, error) {
		if a.BitLen()+b.BitLen() > MaxBigIntegerBits+1 {
			return nil, vm.throwNew(arithmeticException, "BigInteger would overflow supported range")
		}
		return new(big.Int).Mul(a, b), nil
	}))
	r.Register(owner, "divide", bin, binary(func(vm *VM, a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, vm.throwNew(arithmeticException, "BigInteger divide by zero")
		}
		// truncated division like BigInteger.divide
		return new(big.Int).Quo(a, b), nil
	}))
	r.Register(owner, "mod", bin, binary(func(vm *VM, a, b *big.Int) (*big.Int, error) {
		if b.Sign() <= 0 {
			return nil, vm.throwNew(arithmeticException, "BigInteger: modulus not positive")
		}
		return new(big.Int).Mod(a, b), nil
	}))
	r.Register(owner, "remainder", bin, binary(func(vm *VM, a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, vm.throwNew(arithmeticException, "BigInteger divide by zero")
		}
		return new(big.Int).Rem(a, b), nil
	}))
	r.Register(owner, "max", bin, binary(func(_ *VM, a, b *big.Int) (*big.Int, error) {
		if a.Cmp(b) >= 0 {
			return a, nil
		}
		return b, nil
	}))
	r.Register(owner, "min", bin, binary(func(_ *VM, a, b *big.Int) (*big.Int, error) {
		if a.Cmp(b) <= 0 {
			return a, nil
		}
		return b, nil
	}))
	r.Register(owner, "pow", "(I)Ljava/math/BigInteger;", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		e := i32(args[1])
		if e < 0 {
			return nil, vm.throwNew(arithmeticException, "Negative exponent")
		}
		if a.BitLen() > 1 && int64(a.BitLen()-1)*int64(e) > MaxBigIntegerBits {
			return nil, vm.throwNew(arithmeticException, "BigInteger would overflow supported range")
		}
		return vm.newBig(new(big.Int).Exp(a, big.NewInt(int64(e)), nil))
	})
	r.Register(owner, "negate", "()Ljava/math/BigInteger;", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return vm.newBig(new(big.Int).Neg(a))
	})
	r.Register(owner, "abs", "()Ljava/math/BigInteger;", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return vm.newBig(new(big.Int).Abs(a))
	})
	r.Register(owner, "signum", "()I", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return int32(a.Sign()), nil
	})
	r.Register(owner, "compareTo", "(Ljava/math/BigInteger;)I", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		b, err := vm.bigArg(args[1])
		if err != nil {
			return nil, err
		}
		return int32(a.Cmp(b)), nil
	})
	r.Register(owner, "equals", "(Ljava/lang/Object;)Z", func(vm *VM, args []Value) (Value, error) {
		other, ok := args[1].(*heap.ObjectHandle)
		if !ok || other.ClassName() != owner {
			return int32(0), nil
		}
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		b, err := vm.heap.BigInteger(other)
		if err != nil {
			return nil, err
		}
		return boolValue(a.Cmp(b) == 0), nil
	})
	r.Register(owner, "hashCode", "()I", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return stringHash(a.String()), nil
	})
	r.Register(owner, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return a.String(), nil
	})
	r.Register(owner, "longValue", "()J", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return int64(new(big.Int).And(a, mask64).Uint64()), nil
	})
	r.Register(owner, "intValue", "()I", func(vm *VM, args []Value) (Value, error) {
		a, err := vm.bigArg(args[0])
		if err != nil {
			return nil, err
		}
		return int32(new(big.Int).And(a, mask64).Uint64()), nil
	})
}

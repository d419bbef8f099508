package vm

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/heap"
	"github.com/govm-net/contractvm/types"
	"github.com/holiman/uint256"
)

const (
	sdkPackage   = "io/contract/sdk/"
	addressClass = heap.AddressClass
	msgClass     = sdkPackage + "Msg"
	blockClass   = sdkPackage + "Block"
	utilsClass   = sdkPackage + "Utils"

	illegalArgumentException = "java/lang/IllegalArgumentException"
)

func registerSDK(r *NativeRegistry) {
	r.DefineClass(code.ContractInterface, "", false)
	r.DefineClass(code.EventInterface, "", false)
	r.DefineClass(addressClass, objectClass, true)
	r.DefineClass(msgClass, objectClass, false)
	r.DefineClass(blockClass, objectClass, false)
	r.DefineClass(utilsClass, objectClass, false)

	registerMsg(r)
	registerBlock(r)
	registerAddress(r)
	registerUtils(r)
}

func (vm *VM) newAddress(addr core.Address) (Value, error) {
	return vm.heap.NewAddress(addr.String())
}

func (vm *VM) addressArg(v Value) (core.Address, error) {
	s, err := vm.heap.AddressString(object(v))
	if err != nil {
		return core.ZeroAddress, err
	}
	return core.ParseAddress(s)
}

// amountArg converts a BigInteger to a 256 bit amount; null means zero
func (vm *VM) amountArg(v Value) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	n, err := vm.bigArg(v)
	if err != nil {
		return nil, err
	}
	if n.Sign() < 0 {
		return nil, vm.throwNew(illegalArgumentException, "negative value "+n.String())
	}
	amount, overflow := uint256.FromBig(n)
	if overflow {
		return nil, vm.throwNew(illegalArgumentException, "value out of range "+n.String())
	}
	return amount, nil
}

func (vm *VM) newBigFromUint256(v *uint256.Int) (Value, error) {
	if v == nil {
		return vm.heap.NewBigInteger(new(big.Int))
	}
	return vm.heap.NewBigInteger(v.ToBig())
}

func registerMsg(r *NativeRegistry) {
	r.Register(msgClass, "sender", "()Lio/contract/sdk/Address;", func(vm *VM, _ []Value) (Value, error) {
		return vm.newAddress(vm.ctx.Sender)
	})
	r.Register(msgClass, "origin", "()Lio/contract/sdk/Address;", func(vm *VM, _ []Value) (Value, error) {
		return vm.newAddress(vm.ctx.Origin)
	})
	r.Register(msgClass, "address", "()Lio/contract/sdk/Address;", func(vm *VM, _ []Value) (Value, error) {
		return vm.newAddress(vm.ctx.Contract)
	})
	r.Register(msgClass, "value", "()Ljava/math/BigInteger;", func(vm *VM, _ []Value) (Value, error) {
		return vm.newBigFromUint256(vm.ctx.Value)
	})
	r.Register(msgClass, "gasleft", "()J", func(vm *VM, _ []Value) (Value, error) {
		if vm.meter.Limit() == 0 {
			return int64(math.MaxInt64), nil
		}
		return int64(vm.meter.Remaining()), nil
	})
	r.Register(msgClass, "gasprice", "()J", func(vm *VM, _ []Value) (Value, error) {
		return int64(vm.ctx.GasPrice), nil
	})
}

func registerBlock(r *NativeRegistry) {
	r.Register(blockClass, "number", "()J", func(vm *VM, _ []Value) (Value, error) {
		return int64(vm.ctx.Block.Number), nil
	})
	r.Register(blockClass, "timestamp", "()J", func(vm *VM, _ []Value) (Value, error) {
		return vm.ctx.Block.Time, nil
	})
	r.Register(blockClass, "coinbase", "()Lio/contract/sdk/Address;", func(vm *VM, _ []Value) (Value, error) {
		return vm.newAddress(vm.ctx.Block.Coinbase)
	})
	r.Register(blockClass, "blockhash", "(J)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		n := i64(args[0])
		// only strictly earlier blocks are known
		if n < 0 || uint64(n) >= vm.ctx.Block.Number || vm.host == nil {
			return nil, nil
		}
		hdr, err := vm.host.BlockHeader(uint64(n))
		if err != nil {
			return nil, err
		}
		if hdr == nil {
			return nil, nil
		}
		return hdr.Hash.String(), nil
	})
}

func registerAddress(r *NativeRegistry) {
	const owner = addressClass
	r.Register(owner, code.ConstructorName, "(Ljava/lang/String;)V", func(vm *VM, args []Value) (Value, error) {
		s := str(args[1])
		addr, err := core.ParseAddress(s)
		if err != nil {
			return nil, vm.throwNew(illegalArgumentException, "invalid address "+s)
		}
		return nil, vm.heap.PutField(object(args[0]), "address", addr.String())
	})
	r.Register(owner, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return vm.heap.AddressString(object(args[0]))
	})
	r.Register(owner, "hashCode", "()I", func(vm *VM, args []Value) (Value, error) {
		s, err := vm.heap.AddressString(object(args[0]))
		return stringHash(s), err
	})
	r.Register(owner, "equals", "(Ljava/lang/Object;)Z", func(vm *VM, args []Value) (Value, error) {
		other, ok := args[1].(*heap.ObjectHandle)
		if !ok || other.ClassName() != owner {
			return int32(0), nil
		}
		a, err := vm.heap.AddressString(object(args[0]))
		if err != nil {
			return nil, err
		}
		b, err := vm.heap.AddressString(other)
		if err != nil {
			return nil, err
		}
		return boolValue(a == b), nil
	})
	r.Register(owner, "balance", "()Ljava/math/BigInteger;", func(vm *VM, args []Value) (Value, error) {
		addr, err := vm.addressArg(args[0])
		if err != nil {
			return nil, err
		}
		bal, err := vm.host.Balance(addr)
		if err != nil {
			return nil, err
		}
		return vm.newBigFromUint256(bal)
	})
	r.Register(owner, "isContract", "()Z", func(vm *VM, args []Value) (Value, error) {
		addr, err := vm.addressArg(args[0])
		if err != nil {
			return nil, err
		}
		ok, err := vm.host.IsContract(addr)
		return boolValue(ok), err
	})
	r.Register(owner, "transfer", "(Ljava/math/BigInteger;)V", func(vm *VM, args []Value) (Value, error) {
		to, err := vm.addressArg(args[0])
		if err != nil {
			return nil, err
		}
		amount, err := vm.amountArg(args[1])
		if err != nil {
			return nil, err
		}
		return nil, vm.transfer(to, amount)
	})
	const callDesc = "(Ljava/lang/String;[Ljava/lang/String;Ljava/math/BigInteger;)"
	r.Register(owner, "call", callDesc+"V", func(vm *VM, args []Value) (Value, error) {
		_, err := vm.crossCall(args)
		return nil, err
	})
	r.Register(owner, "callWithReturnValue", callDesc+"Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		res, err := vm.crossCall(args)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// transfer moves value out of the running contract. The balance change is
// made in the invocation snapshot and is dropped with it on failure.
func (vm *VM) transfer(to core.Address, amount *uint256.Int) error {
	if err := vm.charge(vm.cfg.Schedule.Transfer); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	if vm.ctx.ReadOnly {
		return fmt.Errorf("%w: transfer %s to %s", ErrReadOnly, amount, to)
	}
	from := vm.ctx.Contract
	if err := vm.host.Transfer(from, to, amount); err != nil {
		return fmt.Errorf("transfer %s to %s failed: %w", amount, to, err)
	}
	vm.transfers = append(vm.transfers, types.ProgramTransfer{From: from, To: to, Value: amount.Clone()})
	return nil
}

// crossCall runs a method of another contract with the remaining gas as its
// budget. A failed callee fails the caller; its gas is charged either way.
func (vm *VM) crossCall(args []Value) (Value, error) {
	to, err := vm.addressArg(args[0])
	if err != nil {
		return nil, err
	}
	method := str(args[1])
	var callArgs []string
	if args[2] != nil {
		if callArgs, err = vm.heap.StringArray(object(args[2])); err != nil {
			return nil, err
		}
	}
	value, err := vm.amountArg(args[3])
	if err != nil {
		return nil, err
	}
	if vm.ctx.ReadOnly && !value.IsZero() {
		return nil, fmt.Errorf("%w: call %s.%s with value %s", ErrReadOnly, to, method, value)
	}
	if err := vm.charge(vm.cfg.Schedule.Call); err != nil {
		return nil, err
	}
	budget := vm.meter.Remaining()
	if vm.meter.Limit() > 0 && budget == 0 {
		return nil, fmt.Errorf("%w: no gas left for call to %s", ErrOutOfGas, to)
	}

	res := vm.host.Call(vm.ctx.Contract, to, method, callArgs, value, budget)
	if err := vm.charge(res.GasUsed); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s.%s: %s", ErrCallFailed, to, method, res.ErrorMessage)
	}
	vm.transfers = append(vm.transfers, res.Transfers...)
	vm.events = append(vm.events, res.Events...)
	if res.Result == "" {
		return nil, nil
	}
	return vm.newString(res.Result)
}

func registerUtils(r *NativeRegistry) {
	const owner = utilsClass
	r.Register(owner, "emit", "(Lio/contract/sdk/Event;)V", func(vm *VM, args []Value) (Value, error) {
		return nil, vm.emit(object(args[0]))
	})
	r.Register(owner, "revert", "()V", func(*VM, []Value) (Value, error) {
		return nil, &revert{}
	})
	r.Register(owner, "revert", "(Ljava/lang/String;)V", func(_ *VM, args []Value) (Value, error) {
		msg, _ := args[0].(string)
		return nil, &revert{msg: msg}
	})
	r.Register(owner, "require", "(Z)V", func(_ *VM, args []Value) (Value, error) {
		if i32(args[0]) == 0 {
			return nil, &revert{msg: "require failed"}
		}
		return nil, nil
	})
	r.Register(owner, "require", "(ZLjava/lang/String;)V", func(_ *VM, args []Value) (Value, error) {
		if i32(args[0]) == 0 {
			msg, _ := args[1].(string)
			return nil, &revert{msg: msg}
		}
		return nil, nil
	})
	r.Register(owner, "encodeHexString", "([B)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		b, err := vm.heap.ByteArray(object(args[0]))
		if err != nil {
			return nil, err
		}
		return vm.newString(hex.EncodeToString(b))
	})
	r.Register(owner, "decodeHex", "(Ljava/lang/String;)[B", func(vm *VM, args []Value) (Value, error) {
		s := str(args[0])
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, vm.throwNew(illegalArgumentException, "invalid hex string")
		}
		if err := vm.charge(uint64(len(b)) * vm.cfg.Schedule.PerElement); err != nil {
			return nil, err
		}
		return vm.heap.NewByteArray(b)
	})
	r.Register(owner, "keccak256", "([B)[B", func(vm *VM, args []Value) (Value, error) {
		b, err := vm.heap.ByteArray(object(args[0]))
		if err != nil {
			return nil, err
		}
		if err := vm.charge(uint64(len(b)) * vm.cfg.Schedule.PerElement); err != nil {
			return nil, err
		}
		return vm.heap.NewByteArray(core.Keccak256(b))
	})
	r.Register(owner, "obj2Json", "(Ljava/lang/Object;)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		s, err := vm.toJSON(args[0], nil)
		if err != nil {
			return nil, err
		}
		return vm.newString(s)
	})
}

// emit appends an event payload to the invocation log
func (vm *VM) emit(ev *heap.ObjectHandle) error {
	if !vm.isInstance(ev, code.EventInterface) {
		return vm.throwNew(illegalArgumentException, code.JavaName(ev.ClassName())+" is not an event")
	}
	payload, err := vm.encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := vm.charge(vm.cfg.Schedule.Event + uint64(len(payload))*vm.cfg.Schedule.PerChar); err != nil {
		return err
	}
	vm.events = append(vm.events, payload)
	vm.logger.Debug("Contract event", "contract", vm.ctx.Contract, "event", payload)
	return nil
}

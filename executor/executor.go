// Package executor is the transactional entry point of the engine: it
// deploys, invokes and stops contracts against repository snapshots and
// reports one ProgramResult per invocation.
package executor

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"github.com/govm-net/contractvm/abi"
	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/config"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/heap"
	"github.com/govm-net/contractvm/metrics"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/security"
	"github.com/govm-net/contractvm/types"
	"github.com/govm-net/contractvm/vm"
)

// compiled is a decoded contract package with its interface
type compiled struct {
	pkg      *code.Package
	abi      *abi.ABI
	contract string // internal name of the contract class
}

func newCompiled(pkg *code.Package, a *abi.ABI) *compiled {
	return &compiled{pkg: pkg, abi: a, contract: pkg.ContractClasses()[0].Name}
}

// roots are the objects a flush starts from: the contract instance and
// the static field holders of every class
func (c *compiled) roots(h *heap.Heap) []*heap.ObjectHandle {
	roots := []*heap.ObjectHandle{h.ContractObject(c.contract)}
	for _, cls := range c.pkg.Classes {
		for _, f := range cls.Fields {
			if f.IsStatic() {
				roots = append(roots, h.StaticObject(cls.Name))
				break
			}
		}
	}
	return roots
}

// Executor is responsible for contract deployment and execution. It holds
// only read only state and may serve invocations on independent snapshots
// concurrently.
type Executor struct {
	repo    *repository.Repository
	cfg     config.Config
	limits  security.Limits
	types   *code.TypeRegistry
	natives *vm.NativeRegistry
	codes   *lru.Cache[core.Hash, *compiled]
	blocks  types.BlockIndex
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics reports invocations to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithBlockIndex supplies the block headers contracts can see
func WithBlockIndex(b types.BlockIndex) Option {
	return func(e *Executor) {
		e.blocks = b
	}
}

// WithNatives replaces the platform library
func WithNatives(r *vm.NativeRegistry) Option {
	return func(e *Executor) {
		e.natives = r
	}
}

// New creates an executor over repo
func New(repo *repository.Repository, cfg config.Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	typeRegistry, err := code.NewTypeRegistry(cfg.TypeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create type registry: %w", err)
	}
	codes, err := lru.New[core.Hash, *compiled](cfg.CodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create code cache: %w", err)
	}
	e := &Executor{
		repo:    repo,
		cfg:     cfg,
		limits:  cfg.Limits(),
		types:   typeRegistry,
		natives: vm.DefaultNatives(),
		codes:   codes,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Begin opens a snapshot bound to prevRoot
func (e *Executor) Begin(prevRoot core.Hash) (*repository.Snapshot, error) {
	return e.repo.Begin(prevRoot)
}

func (e *Executor) vmConfig() vm.Config {
	return vm.Config{
		Schedule:     &e.cfg.Gas,
		Types:        e.types,
		Natives:      e.natives,
		Limits:       e.limits,
		MaxCallDepth: e.cfg.MaxCallDepth,
		Logger:       e.logger,
	}
}

func (e *Executor) newHeap(snap *repository.Snapshot, addr core.Address) *heap.Heap {
	return heap.New(snap, addr, e.types, heap.WithMaxArrayLength(e.cfg.MaxArrayLength))
}

// blockHeader resolves the header of the block an invocation belongs to.
// Without a block index only the number is known.
func (e *Executor) blockHeader(number uint64) types.BlockHeader {
	if e.blocks != nil {
		hdr, err := e.blocks.BlockHeader(number)
		if err != nil {
			e.logger.Warn("failed to read block header", "number", number, "error", err)
		} else if hdr != nil {
			return *hdr
		}
	}
	return types.BlockHeader{Number: number}
}

// finish turns a panic into an error result and records the outcome.
// gasUsed reports what the invocation consumed before the panic.
func (e *Executor) finish(op string, result **types.ProgramResult, gasUsed func() uint64) {
	if r := recover(); r != nil {
		e.logger.Error("executor panic", "op", op, "panic", r, "stack", string(debug.Stack()))
		var gas uint64
		if gasUsed != nil {
			gas = gasUsed()
		}
		*result = types.ErrorResult(gas, fmt.Errorf("%w: %v", vm.ErrInternal, r))
	}
	e.metrics.Observe(op, (*result).Status.String(), (*result).GasUsed)
}

// load returns the decoded code of a deployed contract
func (e *Executor) load(snap *repository.Snapshot, addr core.Address, hash core.Hash) (*compiled, error) {
	if c, ok := e.codes.Get(hash); ok {
		e.metrics.CodeCache(true)
		return c, nil
	}
	e.metrics.CodeCache(false)
	data, err := snap.Code(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to read code of %s: %w", addr, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s has no code", core.ErrContractNotFound, addr)
	}
	pkg, err := code.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCode, err)
	}
	a, err := abi.Extract(pkg)
	if err != nil {
		return nil, err
	}
	c := newCompiled(pkg, a)
	e.codes.Add(hash, c)
	return c, nil
}

// liveAccount returns the account of a contract that still accepts calls
func liveAccount(snap *repository.Snapshot, addr core.Address) (*repository.AccountState, error) {
	state, err := snap.AccountState(addr)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, addr)
	}
	if !state.Alive() {
		return nil, fmt.Errorf("%w: %s", core.ErrContractStopped, addr)
	}
	return state, nil
}

// success builds the result of a finished run; account fields are read
// from snap after the run's writes were merged into it
func (e *Executor) success(snap *repository.Snapshot, addr core.Address, machine *vm.VM, value string) *types.ProgramResult {
	result := &types.ProgramResult{
		GasUsed:   machine.GasUsed(),
		Result:    value,
		Success:   true,
		Status:    types.StatusSuccess,
		Transfers: machine.Transfers(),
		Events:    machine.Events(),
	}
	e.fillAccount(result, snap, addr)
	return result
}

// failure builds the result of a run that did not complete. Nothing the
// run did is reported as applied.
func (e *Executor) failure(snap *repository.Snapshot, addr core.Address, gasUsed uint64, res *vm.Result) *types.ProgramResult {
	result := &types.ProgramResult{
		GasUsed:      gasUsed,
		Status:       res.Status,
		ErrorMessage: res.Message(),
		StackTrace:   strings.Join(res.StackTrace, "\n"),
		Err:          res.Err,
	}
	e.fillAccount(result, snap, addr)
	return result
}

// errorResult reports an error that stopped the invocation outside the
// interpreter
func (e *Executor) errorResult(snap *repository.Snapshot, addr core.Address, gasUsed uint64, err error) *types.ProgramResult {
	result := types.ErrorResult(gasUsed, err)
	e.fillAccount(result, snap, addr)
	return result
}

func (e *Executor) fillAccount(result *types.ProgramResult, snap *repository.Snapshot, addr core.Address) {
	result.Balance = new(uint256.Int)
	result.StateRoot = snap.Root()
	state, err := snap.AccountState(addr)
	if err != nil {
		e.logger.Warn("failed to read account", "address", addr, "error", err)
		return
	}
	if state != nil {
		result.Nonce = state.Nonce
		result.Balance = state.Balance
	}
}

// Create deploys p.Code at p.ContractAddress. The code is decoded and
// validated before any state is touched; static initializers then run in
// package order, followed by the constructor taking len(p.Args) arguments.
func (e *Executor) Create(snap *repository.Snapshot, p *types.ProgramCreate) (result *types.ProgramResult) {
	var machine *vm.VM
	defer e.finish("create", &result, func() uint64 { return gasOf(machine) })
	addr := p.ContractAddress
	value := p.Value
	if value == nil {
		value = new(uint256.Int)
	}

	if err := e.limits.CheckCode(p.Code); err != nil {
		return e.errorResult(snap, addr, 0, fmt.Errorf("%w: %v", core.ErrInvalidCode, err))
	}
	pkg, err := code.Decode(p.Code)
	if err != nil {
		return e.errorResult(snap, addr, 0, fmt.Errorf("%w: %v", core.ErrInvalidCode, err))
	}
	contractABI, err := validatePackage(pkg, e.natives)
	if err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	c := newCompiled(pkg, contractABI)
	ctor, ctorType, err := e.constructor(c, len(p.Args))
	if err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	if !value.IsZero() && (ctor == nil || !ctor.Payable()) {
		return e.errorResult(snap, addr, 0, fmt.Errorf("%w: constructor of %s", core.ErrNotPayable, code.JavaName(c.contract)))
	}
	existing, err := snap.AccountState(addr)
	if err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	if existing != nil {
		return e.errorResult(snap, addr, 0, fmt.Errorf("%w: %s", core.ErrContractExists, addr))
	}

	child := snap.StartTracking()
	if _, err := child.CreateAccount(addr, p.Sender, p.BlockNumber); err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	if err := child.SaveCode(addr, p.Code); err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	if err := child.AddBalance(addr, value); err != nil {
		return e.errorResult(snap, addr, 0, err)
	}

	tracer := security.NewCallTracer(e.cfg.MaxNestedCalls)
	if err := tracer.BeginCall(p.Sender, addr, code.ConstructorName); err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	defer tracer.EndCall()

	block := e.blockHeader(p.BlockNumber)
	h := e.newHeap(child, addr)
	var args []vm.Value
	if ctor != nil {
		if args, err = convertArgs(h, ctorType, p.Args); err != nil {
			return e.errorResult(snap, addr, 0, err)
		}
	}
	ctx := &vm.Context{
		Sender:   p.Sender,
		Origin:   p.Sender,
		Contract: addr,
		Value:    value,
		GasPrice: p.GasPrice,
		GasLimit: p.GasLimit,
		Block:    block,
	}
	machine = vm.New(e.vmConfig(), ctx, pkg, h, &host{
		e:        e,
		snap:     child,
		tracer:   tracer,
		origin:   p.Sender,
		gasPrice: p.GasPrice,
		block:    block,
	})

	for _, cls := range pkg.Classes {
		clinit := cls.Method(code.StaticInitName, "()V")
		if clinit == nil || !clinit.HasCode() {
			continue
		}
		if res := machine.Run(clinit, nil, nil); !res.Success() {
			return e.failure(snap, addr, machine.GasUsed(), res)
		}
	}
	if ctor != nil {
		if res := machine.Run(ctor, h.ContractObject(c.contract), args); !res.Success() {
			return e.failure(snap, addr, machine.GasUsed(), res)
		}
	}

	stats, err := h.Flush(c.roots(h))
	if err != nil {
		return e.errorResult(snap, addr, machine.GasUsed(), fmt.Errorf("failed to flush heap: %w", err))
	}
	if err := child.SetNonce(addr, 1); err != nil {
		return e.errorResult(snap, addr, machine.GasUsed(), err)
	}
	if err := child.Commit(); err != nil {
		return e.errorResult(snap, addr, machine.GasUsed(), err)
	}
	e.codes.Add(core.Keccak256Hash(p.Code), c)

	e.logger.Info("Contract created", "address", addr, "contract", code.JavaName(c.contract),
		"gas", machine.GasUsed(), "objects", stats.Reachable)
	return e.success(snap, addr, machine, "")
}

// constructor picks the constructor of the contract class taking argc
// arguments. A class without constructors accepts no arguments.
func (e *Executor) constructor(c *compiled, argc int) (*code.Method, *code.MethodType, error) {
	ctors := c.pkg.Class(c.contract).MethodsNamed(code.ConstructorName)
	if len(ctors) == 0 {
		if argc != 0 {
			return nil, nil, fmt.Errorf("%w: %s has no constructor taking %d arguments", core.ErrInvalidArgument, code.JavaName(c.contract), argc)
		}
		return nil, nil, nil
	}
	var found *code.Method
	var foundType *code.MethodType
	for _, m := range ctors {
		mt, err := e.types.Method(m.Desc)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", core.ErrInvalidCode, err)
		}
		if len(mt.Args) != argc {
			continue
		}
		if found != nil {
			return nil, nil, fmt.Errorf("%w: several constructors take %d arguments", abi.ErrAmbiguousMethod, argc)
		}
		found, foundType = m, mt
	}
	if found == nil {
		return nil, nil, fmt.Errorf("%w: %s has no constructor taking %d arguments", core.ErrInvalidArgument, code.JavaName(c.contract), argc)
	}
	return found, foundType, nil
}

// invocation is one call of a contract method, top level or nested
type invocation struct {
	snap     *repository.Snapshot // the caller's snapshot
	tracer   *security.CallTracer
	sender   core.Address
	origin   core.Address
	contract core.Address
	value    *uint256.Int
	nested   bool // the sender is a contract whose balance pays the value
	readOnly bool // a view method is on the call chain
	machine  *vm.VM
	gasLimit uint64
	gasPrice uint64
	block    types.BlockHeader
	method   string
	desc     string
	args     []string
}

// Call invokes a method of a deployed contract. Writes, the attached value
// and recorded transfers reach snap only when the run succeeds; view
// methods never write.
func (e *Executor) Call(snap *repository.Snapshot, p *types.ProgramCall) (result *types.ProgramResult) {
	inv := &invocation{
		snap:     snap,
		tracer:   security.NewCallTracer(e.cfg.MaxNestedCalls),
		sender:   p.Sender,
		origin:   p.Sender,
		contract: p.ContractAddress,
		value:    p.Value,
		gasLimit: p.GasLimit,
		gasPrice: p.GasPrice,
		block:    e.blockHeader(p.BlockNumber),
		method:   p.MethodName,
		desc:     p.MethodDesc,
		args:     p.Args,
	}
	defer e.finish("call", &result, func() uint64 { return gasOf(inv.machine) })
	return e.call(inv)
}

func gasOf(machine *vm.VM) uint64 {
	if machine == nil {
		return 0
	}
	return machine.GasUsed()
}

func (e *Executor) call(inv *invocation) *types.ProgramResult {
	addr := inv.contract
	value := inv.value
	if value == nil {
		value = new(uint256.Int)
	}

	state, err := liveAccount(inv.snap, addr)
	if err != nil {
		return e.errorResult(inv.snap, addr, 0, err)
	}
	c, err := e.load(inv.snap, addr, state.CodeHash)
	if err != nil {
		return e.errorResult(inv.snap, addr, 0, err)
	}
	fn, err := c.abi.Find(inv.method, inv.desc, len(inv.args))
	if err != nil {
		return e.errorResult(inv.snap, addr, 0, err)
	}
	if !value.IsZero() && (!fn.Payable || fn.View) {
		return e.errorResult(inv.snap, addr, 0, fmt.Errorf("%w: %s.%s", core.ErrNotPayable, code.JavaName(c.contract), fn.Name))
	}
	if err := inv.tracer.BeginCall(inv.sender, addr, fn.Name); err != nil {
		return e.errorResult(inv.snap, addr, 0, err)
	}
	defer inv.tracer.EndCall()

	child := inv.snap.StartTracking()
	var attached []types.ProgramTransfer
	if !value.IsZero() {
		if inv.nested {
			if err := child.Transfer(inv.sender, addr, value); err != nil {
				return e.errorResult(inv.snap, addr, 0, err)
			}
			attached = append(attached, types.ProgramTransfer{From: inv.sender, To: addr, Value: value.Clone()})
		} else if err := child.AddBalance(addr, value); err != nil {
			return e.errorResult(inv.snap, addr, 0, err)
		}
	}

	readOnly := inv.readOnly || fn.View
	h := e.newHeap(child, addr)
	ctx := &vm.Context{
		Sender:   inv.sender,
		Origin:   inv.origin,
		Contract: addr,
		Value:    value,
		GasPrice: inv.gasPrice,
		GasLimit: inv.gasLimit,
		Block:    inv.block,
		ReadOnly: readOnly,
	}
	machine := vm.New(e.vmConfig(), ctx, c.pkg, h, &host{
		e:        e,
		snap:     child,
		tracer:   inv.tracer,
		origin:   inv.origin,
		gasPrice: inv.gasPrice,
		block:    inv.block,
		readOnly: readOnly,
	})
	inv.machine = machine
	args, err := convertArgs(h, fn.Type, inv.args)
	if err != nil {
		return e.errorResult(inv.snap, addr, 0, err)
	}

	res := machine.Run(fn.Method, h.ContractObject(c.contract), args)
	if !res.Success() {
		e.logger.Debug("Contract call failed", "address", addr, "method", fn.Name,
			"status", res.Status, "message", res.Message())
		return e.failure(inv.snap, addr, machine.GasUsed(), res)
	}
	out, err := machine.FormatResult(res)
	if err != nil {
		return e.errorResult(inv.snap, addr, machine.GasUsed(), err)
	}

	if !fn.View {
		if _, err := h.Flush(c.roots(h)); err != nil {
			return e.errorResult(inv.snap, addr, machine.GasUsed(), fmt.Errorf("failed to flush heap: %w", err))
		}
		if _, err := child.IncrementNonce(addr); err != nil {
			return e.errorResult(inv.snap, addr, machine.GasUsed(), err)
		}
		if err := child.Commit(); err != nil {
			return e.errorResult(inv.snap, addr, machine.GasUsed(), err)
		}
	}

	e.logger.Debug("Contract called", "address", addr, "method", fn.Name, "gas", machine.GasUsed())
	result := e.success(inv.snap, addr, machine, out)
	if fn.View {
		// nothing a view did is applied, so nothing is reported
		result.Transfers = nil
		result.Events = nil
	}
	for _, ev := range result.Events {
		e.logger.Debug("Contract log", "address", addr, "event", ev)
	}
	if len(attached) > 0 {
		result.Transfers = append(attached, result.Transfers...)
	}
	if inv.nested {
		e.metrics.Observe("nested_call", result.Status.String(), result.GasUsed)
	}
	return result
}

// Stop disables a contract for good. Only its creator may stop it.
func (e *Executor) Stop(snap *repository.Snapshot, addr, sender core.Address, blockNumber uint64) (result *types.ProgramResult) {
	defer e.finish("stop", &result, nil)
	state, err := liveAccount(snap, addr)
	if err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	if state.Owner != sender {
		return e.errorResult(snap, addr, 0, fmt.Errorf("%w: %s is not the creator of %s", core.ErrUnauthorized, sender, addr))
	}
	child := snap.StartTracking()
	if err := child.SetNonce(addr, 0); err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	if err := child.Commit(); err != nil {
		return e.errorResult(snap, addr, 0, err)
	}
	e.logger.Info("Contract stopped", "address", addr, "block", blockNumber)
	result = &types.ProgramResult{Success: true, Status: types.StatusSuccess}
	e.fillAccount(result, snap, addr)
	return result
}

// ABI returns the interface of a deployed contract
func (e *Executor) ABI(snap *repository.Snapshot, addr core.Address) (*abi.ABI, error) {
	state, err := snap.AccountState(addr)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, addr)
	}
	c, err := e.load(snap, addr, state.CodeHash)
	if err != nil {
		return nil, err
	}
	return c.abi, nil
}

// ListMethods reports the externally invokable methods of a contract
func (e *Executor) ListMethods(snap *repository.Snapshot, addr core.Address) ([]types.ProgramMethod, error) {
	a, err := e.ABI(snap, addr)
	if err != nil {
		return nil, err
	}
	return a.Methods(), nil
}

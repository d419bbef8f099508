// Package security 提供VM安全性和资源限制相关功能
package security

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/govm-net/contractvm/core"
)

var (
	ErrReentrantCall = errors.New("reentrant contract call")
	ErrCallTooDeep   = errors.New("contract call too deep")
	ErrCodeTooLarge  = errors.New("code too large")
	ErrStringTooLong = errors.New("string too long")
)

// Limits 用于限制合约执行的资源使用
type Limits struct {
	MaxCodeSize     int // 合约代码最大字节数
	MaxArrayLength  int // 单个数组维度的最大长度
	MaxStringLength int // 字符串最大长度（UTF-16单元）
	MaxNestedCalls  int // 跨合约调用最大嵌套层数
}

// DefaultLimits 默认资源限制
func DefaultLimits() Limits {
	return Limits{
		MaxCodeSize:     1 << 20,
		MaxArrayLength:  1 << 20,
		MaxStringLength: 1 << 16,
		MaxNestedCalls:  16,
	}
}

// CheckCode 检查代码大小
func (l Limits) CheckCode(code []byte) error {
	if l.MaxCodeSize > 0 && len(code) > l.MaxCodeSize {
		return fmt.Errorf("%w: %d > %d", ErrCodeTooLarge, len(code), l.MaxCodeSize)
	}
	return nil
}

// CheckString 检查字符串长度
func (l Limits) CheckString(s string) error {
	if l.MaxStringLength <= 0 {
		return nil
	}
	// fast path: byte length bounds the UTF-16 length from above
	if len(s) <= l.MaxStringLength {
		return nil
	}
	if n := len(utf16.Encode([]rune(s))); n > l.MaxStringLength {
		return fmt.Errorf("%w: %d > %d", ErrStringTooLong, n, l.MaxStringLength)
	}
	return nil
}

// CallFrame 表示一个调用栈帧
type CallFrame struct {
	Sender   core.Address
	Contract core.Address
	Function string
}

// CallTracer 用于追踪合约调用链
type CallTracer struct {
	maxDepth  int
	callStack []CallFrame
}

// NewCallTracer 创建调用追踪器；maxDepth为0表示不限制
func NewCallTracer(maxDepth int) *CallTracer {
	return &CallTracer{
		maxDepth:  maxDepth,
		callStack: make([]CallFrame, 0, 4),
	}
}

// BeginCall 记录调用开始。目标合约已在调用链上时拒绝
func (t *CallTracer) BeginCall(sender, contract core.Address, function string) error {
	if t.Contains(contract) {
		return fmt.Errorf("%w: %s.%s", ErrReentrantCall, contract, function)
	}
	if t.maxDepth > 0 && len(t.callStack) >= t.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrCallTooDeep, len(t.callStack))
	}
	t.callStack = append(t.callStack, CallFrame{
		Sender:   sender,
		Contract: contract,
		Function: function,
	})
	return nil
}

// EndCall 记录调用结束
func (t *CallTracer) EndCall() {
	if len(t.callStack) > 0 {
		t.callStack = t.callStack[:len(t.callStack)-1]
	}
}

// Depth 当前调用深度
func (t *CallTracer) Depth() int {
	return len(t.callStack)
}

// Contains 判断合约是否在调用链上
func (t *CallTracer) Contains(contract core.Address) bool {
	for _, f := range t.callStack {
		if f.Contract == contract {
			return true
		}
	}
	return false
}

// Frames 返回调用链的副本，最外层在前
func (t *CallTracer) Frames() []CallFrame {
	return append([]CallFrame(nil), t.callStack...)
}

package gas

import (
	"errors"
	"fmt"
)

// ErrOutOfGas is returned when a charge would exceed the limit
var ErrOutOfGas = errors.New("out of gas")

// Meter 记录一次调用的gas消耗
type Meter struct {
	limit uint64 // 0 means unlimited
	used  uint64
}

// NewMeter 创建gas计量器
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Charge 消耗gas。超出上限时不扣除并返回ErrOutOfGas
func (m *Meter) Charge(amount uint64) error {
	if amount == 0 {
		return nil
	}
	next := m.used + amount
	if next < m.used || (m.limit > 0 && next > m.limit) {
		return fmt.Errorf("%w: gas=%d, need=%d", ErrOutOfGas, m.Remaining(), amount)
	}
	m.used = next
	return nil
}

// Used 获取已使用的gas
func (m *Meter) Used() uint64 {
	return m.used
}

// Limit returns the configured limit, 0 when unlimited
func (m *Meter) Limit() uint64 {
	return m.limit
}

// Remaining 获取剩余gas；无上限时返回0
func (m *Meter) Remaining() uint64 {
	if m.limit == 0 {
		return 0
	}
	return m.limit - m.used
}

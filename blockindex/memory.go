package blockindex

import (
	"sync"

	"github.com/govm-net/contractvm/types"
)

// Memory 内存区块索引
type Memory struct {
	mu      sync.RWMutex
	headers map[uint64]types.BlockHeader
	latest  *types.BlockHeader
}

// NewMemory creates an empty in-memory index
func NewMemory() *Memory {
	return &Memory{headers: make(map[uint64]types.BlockHeader)}
}

// BlockHeader implements types.BlockIndex
func (m *Memory) BlockHeader(number uint64) (*types.BlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hdr, ok := m.headers[number]
	if !ok {
		return nil, nil
	}
	return &hdr, nil
}

func (m *Memory) Append(hdr types.BlockHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkNext(m.latest, hdr); err != nil {
		return err
	}
	m.headers[hdr.Number] = hdr
	m.latest = &hdr
	return nil
}

func (m *Memory) Latest() (*types.BlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, nil
	}
	hdr := *m.latest
	return &hdr, nil
}

func (m *Memory) Close() error {
	return nil
}

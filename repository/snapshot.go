package repository

import (
	"fmt"

	"github.com/govm-net/contractvm/core"
)

type entry struct {
	value   []byte
	deleted bool
}

// baseView is the committed state a snapshot tree reads through
type baseView struct {
	root core.Hash
	head core.Hash        // repository head when the view was taken
	undo map[string]entry // non-nil when based on an ancestor of the head
}

func (b *baseView) get(r *Repository, key string) ([]byte, bool, error) {
	if e, ok := b.undo[key]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return e.value, true, nil
	}
	return r.read(key)
}

// Snapshot is a copy-on-write view of the state. Writes stay local until
// Commit merges them into the parent snapshot, or into the repository for
// a top level snapshot. An uncommitted child is discarded by dropping it.
//
// A snapshot tree is not safe for concurrent use.
type Snapshot struct {
	repo   *Repository
	parent *Snapshot
	base   *baseView // only set on the top level snapshot
	writes map[string]entry
}

func (s *Snapshot) view() *baseView {
	top := s
	for top.parent != nil {
		top = top.parent
	}
	return top.base
}

// StartTracking opens a nested snapshot on top of s
func (s *Snapshot) StartTracking() *Snapshot {
	return &Snapshot{repo: s.repo, parent: s, writes: make(map[string]entry)}
}

// Parent returns the enclosing snapshot, nil at top level
func (s *Snapshot) Parent() *Snapshot {
	return s.parent
}

// Commit merges the writes into the parent. Committing again without new
// writes is a no-op.
func (s *Snapshot) Commit() error {
	if s.parent != nil {
		for k, e := range s.writes {
			s.parent.writes[k] = e
		}
		s.writes = make(map[string]entry)
		return nil
	}
	root, err := s.repo.commit(s)
	if err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	s.base = &baseView{root: root, head: root}
	s.writes = make(map[string]entry)
	return nil
}

// Root returns the state root the snapshot would produce if every pending
// write up the chain were committed.
func (s *Snapshot) Root() core.Hash {
	merged := make(map[string]entry)
	var chain []*Snapshot
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, e := range chain[i].writes {
			merged[k] = e
		}
	}
	return computeRoot(s.view().root, merged)
}

// BaseRoot is the committed root the snapshot tree started from
func (s *Snapshot) BaseRoot() core.Hash {
	return s.view().root
}

// Pending reports the number of uncommitted writes held by s itself
func (s *Snapshot) Pending() int {
	return len(s.writes)
}

// GetRaw reads a key; missing keys return nil without error
func (s *Snapshot) GetRaw(key []byte) ([]byte, error) {
	k := string(key)
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.writes[k]; ok {
			if e.deleted {
				return nil, nil
			}
			return e.value, nil
		}
	}
	v, _, err := s.view().get(s.repo, k)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return v, nil
}

// PutRaw writes a key into this snapshot
func (s *Snapshot) PutRaw(key, value []byte) {
	s.writes[string(key)] = entry{value: append([]byte(nil), value...)}
}

// DeleteRaw removes a key in this snapshot
func (s *Snapshot) DeleteRaw(key []byte) {
	s.writes[string(key)] = entry{deleted: true}
}

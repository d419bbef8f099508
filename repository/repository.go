// Package repository 提供版本化的合约状态存储。
// 每次顶层提交产生一个新的状态根，并记录回滚日志，
// 因此可以从当前状态根或任一祖先状态根开始新的快照。
package repository

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/govm-net/contractvm/core"
)

// ErrUnknownRoot is returned by Begin for roots that are not on the head's history
var ErrUnknownRoot = errors.New("unknown state root")

// ErrStaleSnapshot is returned when committing a snapshot whose base is no longer the head's view
var ErrStaleSnapshot = errors.New("stale snapshot")

var (
	headKey       = []byte("h")
	journalPrefix = []byte("j")
	statePrefix   = []byte("d")
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("repository: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type journalChange struct {
	Key     []byte `cbor:"k"`
	Old     []byte `cbor:"o,omitempty"`
	Existed bool   `cbor:"e,omitempty"`
}

// journal 记录一次提交相对父状态根的旧值
type journal struct {
	Parent  core.Hash       `cbor:"p"`
	Changes []journalChange `cbor:"c"`
}

// Repository is the root of the snapshot tree. Top level commits are serialized.
type Repository struct {
	mu   sync.Mutex
	db   Database
	head core.Hash
}

// New opens a repository on top of db
func New(db Database) (*Repository, error) {
	r := &Repository{db: db}
	head, err := db.Get(headKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to read head root: %w", err)
	default:
		r.head = core.BytesToHash(head)
	}
	return r, nil
}

// Head returns the latest committed state root
func (r *Repository) Head() core.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

// Begin opens a snapshot bound to prevRoot, which must be the head or one of its ancestors.
func (r *Repository) Begin(prevRoot core.Hash) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := &baseView{root: prevRoot, head: r.head}
	if prevRoot != r.head {
		undo, err := r.undoTo(prevRoot)
		if err != nil {
			return nil, err
		}
		base.undo = undo
	}
	return &Snapshot{repo: r, base: base, writes: make(map[string]entry)}, nil
}

// undoTo walks the journal chain from the head back to root and collects,
// per key, the value it had at root.
func (r *Repository) undoTo(root core.Hash) (map[string]entry, error) {
	undo := make(map[string]entry)
	cur := r.head
	for cur != root {
		if cur == core.ZeroHash {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
		}
		j, err := r.readJournal(cur)
		if err != nil {
			return nil, err
		}
		for _, c := range j.Changes {
			undo[string(c.Key)] = entry{value: c.Old, deleted: !c.Existed}
		}
		cur = j.Parent
	}
	return undo, nil
}

func (r *Repository) readJournal(root core.Hash) (*journal, error) {
	data, err := r.db.Get(append(append([]byte{}, journalPrefix...), root[:]...))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal %s: %w", root, err)
	}
	var j journal
	if err := cbor.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode journal %s: %w", root, err)
	}
	return &j, nil
}

func stateKey(key string) []byte {
	return append(append([]byte{}, statePrefix...), key...)
}

func (r *Repository) read(key string) ([]byte, bool, error) {
	v, err := r.db.Get(stateKey(key))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// commit writes a top level snapshot to the database and moves the head
func (r *Repository) commit(s *Snapshot) (core.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(s.writes) == 0 {
		return s.base.root, nil
	}
	if s.base.head != r.head {
		return core.ZeroHash, fmt.Errorf("%w: snapshot taken at %s but head moved to %s", ErrStaleSnapshot, s.base.head, r.head)
	}

	newRoot := computeRoot(s.base.root, s.writes)
	keys := sortedKeys(s.writes)
	batch := r.db.NewBatch()

	// reorganize from the old head back to the snapshot base first
	undoKeys := make([]string, 0, len(s.base.undo))
	for k := range s.base.undo {
		if _, overwritten := s.writes[k]; !overwritten {
			undoKeys = append(undoKeys, k)
		}
	}
	sort.Strings(undoKeys)
	for _, k := range undoKeys {
		if err := applyEntry(batch, k, s.base.undo[k]); err != nil {
			return core.ZeroHash, err
		}
	}

	j := journal{Parent: s.base.root, Changes: make([]journalChange, 0, len(keys))}
	for _, k := range keys {
		old, existed, err := s.base.get(r, k)
		if err != nil {
			return core.ZeroHash, fmt.Errorf("failed to read %x: %w", k, err)
		}
		j.Changes = append(j.Changes, journalChange{Key: []byte(k), Old: old, Existed: existed})
		if err := applyEntry(batch, k, s.writes[k]); err != nil {
			return core.ZeroHash, err
		}
	}
	data, err := encMode.Marshal(&j)
	if err != nil {
		return core.ZeroHash, fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := batch.Put(append(append([]byte{}, journalPrefix...), newRoot[:]...), data); err != nil {
		return core.ZeroHash, err
	}
	if err := batch.Put(headKey, newRoot[:]); err != nil {
		return core.ZeroHash, err
	}
	if err := batch.Write(); err != nil {
		slog.Error("failed to commit state", "root", newRoot, "error", err)
		return core.ZeroHash, fmt.Errorf("failed to write batch: %w", err)
	}
	slog.Debug("state committed", "parent", s.base.root, "root", newRoot, "keys", len(keys))
	r.head = newRoot
	return newRoot, nil
}

func applyEntry(batch Batch, key string, e entry) error {
	if e.deleted {
		return batch.Delete(stateKey(key))
	}
	return batch.Put(stateKey(key), e.value)
}

// computeRoot hashes the parent root with the sorted write set
func computeRoot(parent core.Hash, writes map[string]entry) core.Hash {
	if len(writes) == 0 {
		return parent
	}
	var buf bytes.Buffer
	buf.Write(parent[:])
	var n [binary.MaxVarintLen64]byte
	for _, k := range sortedKeys(writes) {
		e := writes[k]
		buf.Write(n[:binary.PutUvarint(n[:], uint64(len(k)))])
		buf.WriteString(k)
		if e.deleted {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		buf.Write(n[:binary.PutUvarint(n[:], uint64(len(e.value)))])
		buf.Write(e.value)
	}
	return core.Keccak256Hash(buf.Bytes())
}

func sortedKeys(m map[string]entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

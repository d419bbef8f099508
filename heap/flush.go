package heap

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// FlushStats summarizes one flush
type FlushStats struct {
	Reachable     int
	FieldWrites   int
	ChunkWrites   int
	CounterWrites int
}

// Flush writes back every changed object reachable from roots. Objects that
// already existed in storage before this invocation and were changed are
// written as well, since they may be reachable through a path this
// invocation never loaded. Objects allocated by this invocation but not
// reachable are dropped.
func (h *Heap) Flush(roots []*ObjectHandle) (FlushStats, error) {
	var stats FlushStats

	start := make([]*ObjectHandle, 0, len(roots))
	for _, r := range roots {
		if r != nil {
			start = append(start, r)
		}
	}
	for _, hd := range h.sortedArena() {
		if !h.created[hd] && h.isDirty(hd) {
			start = append(start, hd)
		}
	}

	visited := mapset.NewThreadUnsafeSet[*ObjectHandle]()
	var order []*ObjectHandle
	queue := start
	for len(queue) > 0 {
		hd := queue[0]
		queue = queue[1:]
		if !visited.Add(hd) {
			continue
		}
		order = append(order, hd)
		queue = append(queue, h.children(hd)...)
	}
	stats.Reachable = len(order)

	for _, hd := range order {
		obj, ok := h.arena[hd]
		if !ok {
			continue
		}
		if obj.dirty {
			data, err := h.encodeFields(obj.fields)
			if err != nil {
				return stats, fmt.Errorf("failed to encode %s: %w", hd, err)
			}
			if err := h.store.Put(h.contract, h.keys.FieldKey(hd), data); err != nil {
				return stats, fmt.Errorf("failed to store %s: %w", hd, err)
			}
			obj.dirty = false
			stats.FieldWrites++
		}
		for _, ci := range sortedChunkIndexes(obj.chunks) {
			c := obj.chunks[ci]
			if !c.dirty {
				continue
			}
			data, err := h.encodeChunk(c.values)
			if err != nil {
				return stats, fmt.Errorf("failed to encode %s chunk %d: %w", hd, ci, err)
			}
			if err := h.store.Put(h.contract, h.keys.ChunkKey(hd, ci), data); err != nil {
				return stats, fmt.Errorf("failed to store %s chunk %d: %w", hd, ci, err)
			}
			c.dirty = false
			stats.ChunkWrites++
		}
	}

	if h.counterDirty {
		data, err := encMode.Marshal(h.counter)
		if err != nil {
			return stats, err
		}
		if err := h.store.Put(h.contract, h.keys.CounterKey(), data); err != nil {
			return stats, fmt.Errorf("failed to store object counter: %w", err)
		}
		h.counterDirty = false
		stats.CounterWrites++
	}
	// allocations are persisted now
	h.created = make(map[*ObjectHandle]bool)
	return stats, nil
}

func (h *Heap) isDirty(hd *ObjectHandle) bool {
	obj, ok := h.arena[hd]
	if !ok {
		return false
	}
	if obj.dirty {
		return true
	}
	for _, c := range obj.chunks {
		if c.dirty {
			return true
		}
	}
	return false
}

// children lists the handles referenced by the loaded parts of hd
func (h *Heap) children(hd *ObjectHandle) []*ObjectHandle {
	obj, ok := h.arena[hd]
	if !ok {
		return nil
	}
	var out []*ObjectHandle
	if obj.fields != nil {
		names := make([]string, 0, len(obj.fields))
		for name := range obj.fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if ref, ok := obj.fields[name].(*ObjectHandle); ok && ref != nil {
				out = append(out, ref)
			}
		}
	}
	for _, ci := range sortedChunkIndexes(obj.chunks) {
		for _, v := range obj.chunks[ci].values {
			if ref, ok := v.(*ObjectHandle); ok && ref != nil {
				out = append(out, ref)
			}
		}
	}
	return out
}

func (h *Heap) sortedArena() []*ObjectHandle {
	out := make([]*ObjectHandle, 0, len(h.arena))
	for hd := range h.arena {
		out = append(out, hd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func sortedChunkIndexes(chunks map[int]*chunk) []int {
	out := make([]int, 0, len(chunks))
	for ci := range chunks {
		out = append(out, ci)
	}
	sort.Ints(out)
	return out
}

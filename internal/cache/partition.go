package cache

import (
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// ref is a handle to a partition slot. Entities hold refs to one another
// instead of pointers; every traversal resolves through the arena, and a
// ref whose slot has since been recycled resolves to nil.
type ref struct {
	part *Partition
	slot int
	gen  uint32
}

func (r ref) resolve() *Entity {
	if r.part == nil {
		return nil
	}
	return r.part.resolve(r)
}

// Partition holds the attached entities of exactly one concrete type.
//
// Slots are never compacted: detach tombstones the slot and pushes it on
// the free-list, and the slot's generation is bumped so outstanding refs
// stop resolving. Invariant: every non-nil slot holds an entity whose key
// string maps back to that slot in index.
type Partition struct {
	typ   *metadata.EntityType
	slots []*Entity
	gens  []uint32
	free  []int
	index map[string]int
}

func newPartition(t *metadata.EntityType) *Partition {
	return &Partition{
		typ:   t,
		index: make(map[string]int),
	}
}

// Type returns the partition's entity type.
func (p *Partition) Type() *metadata.EntityType { return p.typ }

// Len returns the number of resident entities.
func (p *Partition) Len() int { return len(p.index) }

// insert places e in a recycled slot or appends one, and indexes it.
func (p *Partition) insert(e *Entity, key string) ref {
	var slot int
	if n := len(p.free); n > 0 {
		slot = p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[slot] = e
	} else {
		slot = len(p.slots)
		p.slots = append(p.slots, e)
		p.gens = append(p.gens, 0)
	}
	p.index[key] = slot
	return ref{part: p, slot: slot, gen: p.gens[slot]}
}

// remove tombstones the entity's slot and drops its index entry.
func (p *Partition) remove(e *Entity, key string) {
	r := e.aspect.ref
	if r.part != p || p.resolve(r) != e {
		return
	}
	if slot, ok := p.index[key]; ok && slot == r.slot {
		delete(p.index, key)
	}
	p.slots[r.slot] = nil
	p.gens[r.slot]++
	p.free = append(p.free, r.slot)
}

// rekey moves an index entry. The slot array is untouched.
func (p *Partition) rekey(oldKey, newKey string) {
	slot, ok := p.index[oldKey]
	if !ok {
		return
	}
	delete(p.index, oldKey)
	p.index[newKey] = slot
}

func (p *Partition) find(key string) *Entity {
	slot, ok := p.index[key]
	if !ok {
		return nil
	}
	return p.slots[slot]
}

func (p *Partition) resolve(r ref) *Entity {
	if r.slot < 0 || r.slot >= len(p.slots) || p.gens[r.slot] != r.gen {
		return nil
	}
	return p.slots[r.slot]
}

// Entities returns the resident entities in slot order.
func (p *Partition) Entities() []*Entity {
	out := make([]*Entity, 0, len(p.index))
	for _, e := range p.slots {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// cascadeForeignKey rewrites the foreign keys of every resident whose
// values equal oldVals. Used for dependents that have no inverse
// navigation through which the principal could reach them.
func (p *Partition) cascadeForeignKey(fks []*metadata.DataProperty, oldVals, newVals []value.Value, write func(*Entity, *metadata.DataProperty, value.Value)) {
	for _, e := range p.Entities() {
		if !value.EqualSlices(e.valuesOf(fks), oldVals) {
			continue
		}
		for i, fk := range fks {
			write(e, fk, newVals[i])
		}
	}
}

// mergeOutcome is the result of an identity collision on attach.
type mergeOutcome int

const (
	mergeKeep mergeOutcome = iota
	mergeOverwrite
)

// resolveCollision decides what happens when incoming collides with a
// distinct resident under strategy.
func resolveCollision(resident, incoming *Entity, strategy MergeStrategy) (mergeOutcome, error) {
	if resident.typ != incoming.typ {
		return mergeKeep, newDuplicateIdentityError(incoming.Key())
	}
	switch strategy {
	case SkipMerge:
		return mergeKeep, nil
	case PreserveChanges:
		if resident.aspect.state != Unchanged {
			return mergeKeep, nil
		}
		return mergeOverwrite, nil
	case OverwriteChanges:
		return mergeOverwrite, nil
	default:
		return mergeKeep, newDuplicateIdentityError(incoming.Key())
	}
}

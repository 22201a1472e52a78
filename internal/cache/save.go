package cache

import (
	"context"
	"fmt"

	"github.com/roach88/graphcache/internal/value"
)

// ChangeJournal persists accepted change sets. store.Store implements it.
type ChangeJournal interface {
	WriteChangeSet(ctx context.Context, cs ChangeSet) (string, error)
}

// ChangeEntry is one entity's pending change as handed to a journal.
type ChangeEntry struct {
	Type     string
	Key      string
	State    EntityState
	Values   map[string]value.Value
	Original map[string]value.Value
}

// ChangeSet is the ordered list of changes a save batch commits. Batch
// identifies the save that produced it, so two saves with the same content
// still get distinct ids while a retried commit of one batch does not.
type ChangeSet struct {
	Batch   string
	Entries []ChangeEntry
}

// Canonical renders the change set as plain data for canonical JSON.
func (cs ChangeSet) Canonical() map[string]any {
	entries := make([]any, len(cs.Entries))
	for i, en := range cs.Entries {
		m := map[string]any{
			"type":   en.Type,
			"key":    en.Key,
			"state":  en.State.String(),
			"values": valueMap(en.Values),
		}
		if len(en.Original) > 0 {
			m["original"] = valueMap(en.Original)
		}
		entries[i] = m
	}
	out := map[string]any{"entries": entries}
	if cs.Batch != "" {
		out["batch"] = cs.Batch
	}
	return out
}

// ID returns the content-addressed id of the change set, batch included.
func (cs ChangeSet) ID() (string, error) {
	return value.ContentID(value.DomainChangeSet, cs.Canonical())
}

func valueMap(vals map[string]value.Value) map[string]any {
	out := make(map[string]any, len(vals))
	for k, v := range vals {
		out[k] = v
	}
	return out
}

// KeyMapping replaces a temporary key with the value the store assigned.
type KeyMapping struct {
	Temp EntityKey
	Real any
}

// SaveBatch holds entities between BeginSave and Commit or Abort. While a
// batch is open its entities refuse writes and state transitions.
type SaveBatch struct {
	s        *Session
	id       string
	entities []*Entity
	done     bool
}

// BeginSave opens a save batch over entities, or over every pending change
// when none are given. With save validation enabled, a batch containing
// invalid entities is refused.
func (s *Session) BeginSave(entities ...*Entity) (*SaveBatch, error) {
	if len(entities) == 0 {
		entities = s.Changes()
	}
	for _, e := range entities {
		a := e.aspect
		if a.session != s {
			return nil, newNotAttachedError(e, "")
		}
		if a.beingSaved {
			return nil, newIllegalStateError(e, "entity is already being saved")
		}
	}
	if s.validation.OnSave {
		var invalid []string
		for _, e := range entities {
			if e.aspect.state != Deleted && !e.aspect.ValidateEntity() {
				invalid = append(invalid, e.keyString())
			}
		}
		if len(invalid) > 0 {
			return nil, &Error{
				Code:    ErrCodeValidationFailed,
				Message: fmt.Sprintf("%d entities failed validation: %v", len(invalid), invalid),
			}
		}
	}
	for _, e := range entities {
		e.aspect.beingSaved = true
	}
	b := &SaveBatch{s: s, id: s.guids.NewGuid(), entities: entities}
	s.logger.Debug("save started", "batch", b.id, "entities", len(entities))
	return b, nil
}

// ID returns the batch identifier carried by its change set.
func (b *SaveBatch) ID() string { return b.id }

// Entities returns the entities held by the batch.
func (b *SaveBatch) Entities() []*Entity { return b.entities }

// ChangeSet snapshots the batch's pending changes.
func (b *SaveBatch) ChangeSet() ChangeSet {
	cs := ChangeSet{Batch: b.id, Entries: make([]ChangeEntry, 0, len(b.entities))}
	for _, e := range b.entities {
		cs.Entries = append(cs.Entries, ChangeEntry{
			Type:     e.typ.Name,
			Key:      e.keyString(),
			State:    e.aspect.state,
			Values:   e.Values(),
			Original: e.aspect.OriginalValues(),
		})
	}
	return cs
}

// Commit applies store-assigned keys, journals the change set (when
// journal is non-nil) and accepts every entity. It returns the journal's
// change-set id.
func (b *SaveBatch) Commit(ctx context.Context, journal ChangeJournal, mappings ...KeyMapping) (string, error) {
	if b.done {
		return "", fmt.Errorf("save batch already finished")
	}
	s := b.s

	for _, m := range mappings {
		e, ok := s.FindByKey(m.Temp)
		if !ok {
			return "", fmt.Errorf("key mapping: %s is not resident", m.Temp)
		}
		p := e.typ.KeyProperties()[0]
		if _, err := e.setData(p, m.Real); err != nil {
			return "", fmt.Errorf("key mapping %s: %w", m.Temp, err)
		}
	}

	var id string
	if journal != nil {
		var err error
		id, err = journal.WriteChangeSet(ctx, b.ChangeSet())
		if err != nil {
			return "", fmt.Errorf("journal change set: %w", err)
		}
	}

	b.release()
	for _, e := range b.entities {
		if e.aspect.session != s {
			continue
		}
		if err := e.aspect.accept(); err != nil {
			return id, err
		}
	}
	s.logger.Debug("save committed", "entities", len(b.entities), "changeset", id)
	return id, nil
}

// Abort releases the batch without accepting anything.
func (b *SaveBatch) Abort() {
	if b.done {
		return
	}
	b.release()
	b.s.logger.Debug("save aborted", "entities", len(b.entities))
}

func (b *SaveBatch) release() {
	b.done = true
	for _, e := range b.entities {
		e.aspect.beingSaved = false
	}
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/graphcache/internal/cache"
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/value"
)

// WriteChangeSet journals cs and applies it to the registered entity
// tables in one transaction. It returns the change set's content id.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - the id covers the
// batch stamp, so only a retried write of the same batch is skipped.
//
// Entries of types without a table (see EnsureTable) are journaled only.
func (s *Store) WriteChangeSet(ctx context.Context, cs cache.ChangeSet) (string, error) {
	id, err := cs.ID()
	if err != nil {
		return "", fmt.Errorf("write change set: %w", err)
	}
	body, err := value.MarshalCanonical(cs.Canonical())
	if err != nil {
		return "", fmt.Errorf("write change set: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write change set: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO changesets (id, seq, body)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM changesets), ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(body))
	if err != nil {
		return "", fmt.Errorf("write change set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("change set already journaled", "id", id)
		return id, nil
	}

	for i, en := range cs.Entries {
		if err := writeEntry(ctx, tx, id, i, en); err != nil {
			return "", err
		}
		if err := s.applyEntry(ctx, tx, en); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write change set: %w", err)
	}
	s.logger.Debug("change set written", "id", id, "entries", len(cs.Entries))
	return id, nil
}

func writeEntry(ctx context.Context, tx *sql.Tx, id string, pos int, en cache.ChangeEntry) error {
	valuesJSON, err := marshalValues(en.Values)
	if err != nil {
		return fmt.Errorf("entry %s: %w", en.Key, err)
	}
	originalJSON, err := marshalValues(en.Original)
	if err != nil {
		return fmt.Errorf("entry %s: %w", en.Key, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO changeset_entries
		(changeset_id, position, entity_type, entity_key, state, values_json, original_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, pos, en.Type, en.Key, en.State.String(), valuesJSON, originalJSON)
	if err != nil {
		return fmt.Errorf("entry %s: %w", en.Key, err)
	}
	return nil
}

// applyEntry brings the entity table in line with one entry. A Modified
// entry whose key changed removes the row under its original key first.
func (s *Store) applyEntry(ctx context.Context, tx *sql.Tx, en cache.ChangeEntry) error {
	s.mu.RLock()
	t, ok := s.tables[en.Type]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	switch en.State {
	case cache.Added:
		return upsertRow(ctx, tx, t, en.Values)
	case cache.Modified:
		if old, changed := originalKey(t, en); changed {
			if err := deleteRow(ctx, tx, t, old); err != nil {
				return err
			}
		}
		return upsertRow(ctx, tx, t, en.Values)
	case cache.Deleted:
		return deleteRow(ctx, tx, t, keyValues(t, en.Values))
	default:
		return fmt.Errorf("entry %s: cannot apply state %s", en.Key, en.State)
	}
}

func keyValues(t *metadata.EntityType, vals map[string]value.Value) []value.Value {
	props := t.KeyProperties()
	out := make([]value.Value, len(props))
	for i, p := range props {
		out[i] = vals[p.Name]
	}
	return out
}

// originalKey returns the key an entry was stored under before it was
// modified, and whether it differs from the current one.
func originalKey(t *metadata.EntityType, en cache.ChangeEntry) ([]value.Value, bool) {
	props := t.KeyProperties()
	out := keyValues(t, en.Values)
	changed := false
	for i, p := range props {
		if v, ok := en.Original[p.Name]; ok && !value.Equal(v, out[i]) {
			out[i] = v
			changed = true
		}
	}
	return out, changed
}

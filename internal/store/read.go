package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/graphcache/internal/queryir"
	"github.com/roach88/graphcache/internal/querysql"
)

// JournalEntry is one entity's change as read back from the journal.
// Values are plain Go values (int64, float64, string, bool, nil).
type JournalEntry struct {
	ChangeSetID string         `json:"changeset_id"`
	Seq         int64          `json:"seq"`
	Type        string         `json:"type"`
	Key         string         `json:"key"`
	State       string         `json:"state"`
	Values      map[string]any `json:"values"`
	Original    map[string]any `json:"original,omitempty"`
}

// ChangeSetRecord is a journaled change set.
type ChangeSetRecord struct {
	ID      string         `json:"id"`
	Seq     int64          `json:"seq"`
	Entries []JournalEntry `json:"entries"`
}

// QueryRows compiles q to SQL and returns its rows keyed by output column.
// The query's table must exist.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryRows(ctx context.Context, q queryir.Query) ([]map[string]any, error) {
	stmt, args, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	out := []map[string]any{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, nativeRow(cols, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	s.logger.Debug("rows queried", "sql", stmt, "rows", len(out))
	return out, nil
}

// ReadChangeSets returns every journaled change set in seq order.
func (s *Store) ReadChangeSets(ctx context.Context) ([]ChangeSetRecord, error) {
	entries, err := s.readEntries(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	out := []ChangeSetRecord{}
	for _, en := range entries {
		if n := len(out); n == 0 || out[n-1].ID != en.ChangeSetID {
			out = append(out, ChangeSetRecord{ID: en.ChangeSetID, Seq: en.Seq})
		}
		last := &out[len(out)-1]
		last.Entries = append(last.Entries, en)
	}
	return out, nil
}

// ReadChangeSet returns one change set. found is false if id is unknown.
func (s *Store) ReadChangeSet(ctx context.Context, id string) (rec ChangeSetRecord, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT seq FROM changesets WHERE id = ?`, id).Scan(&rec.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ChangeSetRecord{}, false, nil
	}
	if err != nil {
		return ChangeSetRecord{}, false, fmt.Errorf("read change set: %w", err)
	}
	rec.ID = id
	rec.Entries, err = s.readEntries(ctx, "WHERE e.changeset_id = ?", []any{id})
	if err != nil {
		return ChangeSetRecord{}, false, err
	}
	return rec, true, nil
}

// History returns every journaled change of one entity, oldest first.
// key is the entity's canonical key string, e.g. "Order-500".
func (s *Store) History(ctx context.Context, typeName, key string) ([]JournalEntry, error) {
	return s.readEntries(ctx, "WHERE e.entity_type = ? AND e.entity_key = ?", []any{typeName, key})
}

func (s *Store) readEntries(ctx context.Context, where string, args []any) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.changeset_id, c.seq, e.entity_type, e.entity_key, e.state, e.values_json, e.original_json
		FROM changeset_entries e
		JOIN changesets c ON c.id = e.changeset_id
		`+where+`
		ORDER BY c.seq ASC, e.position ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := []JournalEntry{}
	for rows.Next() {
		var en JournalEntry
		var valuesJSON, originalJSON string
		if err := rows.Scan(&en.ChangeSetID, &en.Seq, &en.Type, &en.Key, &en.State, &valuesJSON, &originalJSON); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if en.Values, err = unmarshalValues(valuesJSON); err != nil {
			return nil, err
		}
		if en.Original, err = unmarshalValues(originalJSON); err != nil {
			return nil, err
		}
		if len(en.Original) == 0 {
			en.Original = nil
		}
		out = append(out, en)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

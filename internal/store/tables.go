package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/querysql"
	"github.com/roach88/graphcache/internal/value"
)

// columnType maps a data type to its SQLite column affinity.
// Datetimes and guids are TEXT in canonical form so they compare and sort
// as strings.
func columnType(dt value.DataType) string {
	switch dt {
	case value.TypeInt, value.TypeBool:
		return "INTEGER"
	case value.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// mappedColumns returns the properties t stores. Unmapped properties live
// only in memory.
func mappedColumns(t *metadata.EntityType) []*metadata.DataProperty {
	var out []*metadata.DataProperty
	for _, p := range t.DataProperties() {
		if !p.Unmapped {
			out = append(out, p)
		}
	}
	return out
}

func columnLayout(t *metadata.EntityType) string {
	cols := mappedColumns(t)
	parts := make([]string, len(cols))
	for i, p := range cols {
		parts[i] = p.Name + " " + columnType(p.Type)
	}
	return strings.Join(parts, ", ")
}

// EnsureTable creates the table for t if it does not exist and registers
// t for QueryRows and WriteChangeSet. An existing table must have been
// created from the same column layout.
func (s *Store) EnsureTable(ctx context.Context, t *metadata.EntityType) error {
	if !t.IsResolved() {
		return fmt.Errorf("ensure table %q: type is not resolved", t.Name)
	}
	layout := columnLayout(t)

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM entity_tables WHERE name = ?`, t.Name).Scan(&existing)
	switch {
	case err == nil:
		if existing != layout {
			return fmt.Errorf("ensure table %q: stored layout %q differs from %q", t.Name, existing, layout)
		}
	case errors.Is(err, sql.ErrNoRows):
		if err := s.createTable(ctx, t, layout); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ensure table %q: %w", t.Name, err)
	}

	s.mu.Lock()
	s.tables[t.Name] = t
	s.mu.Unlock()
	return nil
}

func (s *Store) createTable(ctx context.Context, t *metadata.EntityType, layout string) error {
	cols := mappedColumns(t)
	defs := make([]string, 0, len(cols)+1)
	for _, p := range cols {
		def := querysql.QuoteIdent(p.Name) + " " + columnType(p.Type)
		if !p.Nullable && !p.IsPartOfKey() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	keys := make([]string, 0, len(t.KeyProperties()))
	for _, p := range t.KeyProperties() {
		keys = append(keys, querysql.QuoteIdent(p.Name))
	}
	defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create table %q: %w", t.Name, err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", querysql.QuoteIdent(t.Name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %q: %w", t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO entity_tables (name, columns) VALUES (?, ?)`, t.Name, layout); err != nil {
		return fmt.Errorf("register table %q: %w", t.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create table %q: %w", t.Name, err)
	}
	s.logger.Debug("table created", "table", t.Name, "columns", layout)
	return nil
}

func (s *Store) table(name string) (*metadata.EntityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q is not registered (call EnsureTable)", name)
	}
	return t, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertRow upserts one row of type typeName. Values are coerced to the
// declared property types; missing properties take their defaults.
func (s *Store) InsertRow(ctx context.Context, typeName string, values map[string]any) error {
	t, err := s.table(typeName)
	if err != nil {
		return err
	}
	row := make(map[string]value.Value, len(values))
	for _, p := range mappedColumns(t) {
		raw, ok := values[p.Name]
		if !ok {
			row[p.Name] = p.DefaultValue()
			continue
		}
		v, err := value.Coerce(raw, p.Type)
		if err != nil {
			return fmt.Errorf("insert %s.%s: %w", typeName, p.Name, err)
		}
		row[p.Name] = v
	}
	return upsertRow(ctx, s.db, t, row)
}

func upsertRow(ctx context.Context, db execer, t *metadata.EntityType, row map[string]value.Value) error {
	cols := mappedColumns(t)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, p := range cols {
		names[i] = querysql.QuoteIdent(p.Name)
		marks[i] = "?"
		args[i] = querysql.Param(row[p.Name])
	}
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		querysql.QuoteIdent(t.Name), strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", t.Name, err)
	}
	return nil
}

func deleteRow(ctx context.Context, db execer, t *metadata.EntityType, keyVals []value.Value) error {
	keys := t.KeyProperties()
	conds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, p := range keys {
		conds[i] = querysql.QuoteIdent(p.Name) + " = ?"
		args[i] = querysql.Param(keyVals[i])
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", querysql.QuoteIdent(t.Name), strings.Join(conds, " AND "))
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete %s: %w", t.Name, err)
	}
	return nil
}

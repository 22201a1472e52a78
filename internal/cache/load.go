package cache

import (
	"context"
	"fmt"
)

// Fetcher retrieves raw rows for a navigation, typically from a store.
type Fetcher func(ctx context.Context) ([]map[string]any, error)

// ImportRows materializes raw rows of one type as Unchanged entities.
// Columns that are not data properties are ignored. Rows whose key is
// already resident are merged according to merge; a merge overwrites only
// the properties the row carries.
func (s *Session) ImportRows(typeName string, rows []map[string]any, merge MergeStrategy) ([]*Entity, error) {
	t, err := s.lookupType(typeName)
	if err != nil {
		return nil, err
	}

	s.loading++
	defer func() { s.loading-- }()

	out := make([]*Entity, 0, len(rows))
	for i, row := range rows {
		e, err := NewEntity(t)
		if err != nil {
			return nil, err
		}
		e.columns = make(map[string]bool, len(row))
		for _, p := range t.DataProperties() {
			raw, ok := row[p.Name]
			if !ok {
				continue
			}
			e.columns[p.Name] = true
			if _, err := e.setData(p, raw); err != nil {
				return out, fmt.Errorf("row %d: %w", i, err)
			}
		}
		resident, err := s.attach(e, Unchanged, merge, ActionAttachOnQuery)
		e.columns = nil
		if err != nil {
			return out, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, resident)
	}
	s.logger.Debug("rows imported", "type", typeName, "count", len(out), "strategy", merge.String())
	return out, nil
}

// LoadNavigation fetches the members of owner's navigation and merges them
// into the session with the default merge strategy.
//
// If owner is detached while fetch runs, the result is discarded and
// LoadNavigation returns (nil, nil): a stale result is never an error.
func (s *Session) LoadNavigation(ctx context.Context, owner *Entity, name string, fetch Fetcher) ([]*Entity, error) {
	nav, ok := owner.typ.NavigationProperty(name)
	if !ok {
		return nil, newUnknownPropertyError(owner, name)
	}
	if owner.aspect.session != s {
		return nil, newNotAttachedError(owner, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", nav.QualifiedName(), err)
	}
	if owner.aspect.session != s {
		s.logger.Debug("stale navigation result discarded", "navigation", nav.QualifiedName(), "rows", len(rows))
		return nil, nil
	}

	ents, err := s.ImportRows(nav.TargetType().Name, rows, s.defaultMerge)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", nav.QualifiedName(), err)
	}
	owner.aspect.loaded[nav.Name] = true
	return ents, nil
}

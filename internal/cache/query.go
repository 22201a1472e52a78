package cache

import (
	"context"
	"fmt"

	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/queryir"
	"github.com/roach88/graphcache/internal/value"
)

// TableName returns the table rows of t are read from.
func TableName(t *metadata.EntityType) string { return t.Name }

// selectAll returns a Select over t binding every mapped data property to
// its own name, ordered by key.
func selectAll(t *metadata.EntityType) queryir.Select {
	bindings := make(map[string]string)
	for _, p := range t.DataProperties() {
		if !p.Unmapped {
			bindings[p.Name] = p.Name
		}
	}
	order := make([]string, 0, len(t.KeyProperties()))
	for _, p := range t.KeyProperties() {
		order = append(order, p.Name)
	}
	return queryir.Select{From: TableName(t), Bindings: bindings, OrderBy: order}
}

// KeyQuery builds a query for the rows of t identified by keys. With no
// keys it selects the whole table.
func KeyQuery(t *metadata.EntityType, keys ...EntityKey) queryir.Select {
	q := selectAll(t)
	if len(keys) == 0 {
		return q
	}
	props := t.KeyProperties()
	if len(props) == 1 {
		vals := make([]value.Value, len(keys))
		for i, k := range keys {
			vals[i] = k.values[0]
		}
		q.Filter = queryir.In{Field: props[0].Name, Values: vals}
		return q
	}
	alts := make([]queryir.Predicate, len(keys))
	for i, k := range keys {
		alts[i] = equalsAll(props, k.values)
	}
	if len(alts) == 1 {
		q.Filter = alts[0]
	} else {
		q.Filter = queryir.Or{Predicates: alts}
	}
	return q
}

// NavigationQuery builds the query LoadNavigation needs for owner's
// navigation.
func NavigationQuery(owner *Entity, name string) (queryir.Select, error) {
	nav, ok := owner.typ.NavigationProperty(name)
	if !ok {
		return queryir.Select{}, newUnknownPropertyError(owner, name)
	}
	target := nav.TargetType()

	if fks := nav.ForeignKeyProperties(); len(fks) > 0 {
		key := EntityKey{typ: target, values: owner.valuesOf(fks)}
		return KeyQuery(target, key), nil
	}

	var fks []*metadata.DataProperty
	switch {
	case len(nav.InverseForeignKeyProperties()) > 0:
		fks = nav.InverseForeignKeyProperties()
	case nav.InverseProperty() != nil:
		fks = nav.InverseProperty().ForeignKeyProperties()
	}
	if len(fks) == 0 {
		return queryir.Select{}, fmt.Errorf("navigation %s has no foreign keys to query by", nav.QualifiedName())
	}
	q := selectAll(target)
	q.Filter = equalsAll(fks, owner.Key().values)
	return q, nil
}

func equalsAll(props []*metadata.DataProperty, vals []value.Value) queryir.Predicate {
	if len(props) == 1 {
		return queryir.Equals{Field: props[0].Name, Value: vals[0]}
	}
	preds := make([]queryir.Predicate, len(props))
	for i, p := range props {
		preds[i] = queryir.Equals{Field: p.Name, Value: vals[i]}
	}
	return queryir.And{Predicates: preds}
}

// RowSource answers queries with raw rows. store.Store implements it.
type RowSource interface {
	QueryRows(ctx context.Context, q queryir.Query) ([]map[string]any, error)
}

// ExecuteQuery runs q against src and merges the rows into the session.
func (s *Session) ExecuteQuery(ctx context.Context, src RowSource, q queryir.Select, merge MergeStrategy) ([]*Entity, error) {
	rows, err := src.QueryRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.From, err)
	}
	return s.ImportRows(q.From, rows, merge)
}

// ExecuteQueryLocally evaluates q's filter against resident entities of
// q.From and its subtypes, in slot order. Deleted entities are skipped.
func (s *Session) ExecuteQueryLocally(q queryir.Select) ([]*Entity, error) {
	ents, err := s.Entities(q.From)
	if err != nil {
		return nil, err
	}
	var out []*Entity
	for _, e := range ents {
		if e.aspect.state == Deleted {
			continue
		}
		ok, err := queryir.Match(q.Filter, e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// FetchByKey returns the resident entity for key, querying src when it is
// not resident. found is false when neither has it.
func (s *Session) FetchByKey(ctx context.Context, src RowSource, key EntityKey) (e *Entity, found bool, err error) {
	if e, ok := s.FindByKey(key); ok {
		return e, true, nil
	}
	ents, err := s.ExecuteQuery(ctx, src, KeyQuery(key.typ, key), s.defaultMerge)
	if err != nil || len(ents) == 0 {
		return nil, false, err
	}
	return ents[0], true, nil
}

// LoadNavigationFrom loads owner's navigation from src using
// NavigationQuery.
func (s *Session) LoadNavigationFrom(ctx context.Context, src RowSource, owner *Entity, name string) ([]*Entity, error) {
	q, err := NavigationQuery(owner, name)
	if err != nil {
		return nil, err
	}
	return s.LoadNavigation(ctx, owner, name, func(ctx context.Context) ([]map[string]any, error) {
		return src.QueryRows(ctx, q)
	})
}

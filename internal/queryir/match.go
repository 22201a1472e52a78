package queryir

import (
	"fmt"

	"github.com/roach88/graphcache/internal/value"
)

// Row reads field values. Missing fields read as Null.
type Row interface {
	Get(field string) value.Value
}

// Match reports whether row satisfies p. A nil predicate matches every row.
func Match(p Predicate, row Row) (bool, error) {
	if p == nil {
		return true, nil
	}

	switch pred := p.(type) {
	case Equals:
		return value.Equal(row.Get(pred.Field), pred.Value), nil
	case *Equals:
		return Match(*pred, row)
	case In:
		got := row.Get(pred.Field)
		for _, v := range pred.Values {
			if value.Equal(got, v) {
				return true, nil
			}
		}
		return false, nil
	case *In:
		return Match(*pred, row)
	case And:
		for _, sub := range pred.Predicates {
			ok, err := Match(sub, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *And:
		return Match(*pred, row)
	case Or:
		for _, sub := range pred.Predicates {
			ok, err := Match(sub, row)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case *Or:
		return Match(*pred, row)
	default:
		return false, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/value"
)

type row map[string]value.Value

func (r row) Get(field string) value.Value {
	if v, ok := r[field]; ok {
		return v
	}
	return value.Null{}
}

func TestMatch(t *testing.T) {
	r := row{"id": value.Int(10), "customerID": value.Int(1), "total": value.Float(2.5)}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"nil matches", nil, true},
		{"equals", Equals{Field: "id", Value: value.Int(10)}, true},
		{"equals float", Equals{Field: "total", Value: value.Float(2.5)}, true},
		{"equals miss", &Equals{Field: "id", Value: value.Int(11)}, false},
		{"missing field is null", Equals{Field: "placedAt", Value: value.Null{}}, true},
		{"in", In{Field: "id", Values: []value.Value{value.Int(9), value.Int(10)}}, true},
		{"empty in", &In{Field: "id"}, false},
		{"empty and", And{}, true},
		{"empty or", Or{}, false},
		{"and", And{Predicates: []Predicate{
			Equals{Field: "id", Value: value.Int(10)},
			Equals{Field: "customerID", Value: value.Int(2)},
		}}, false},
		{"or", &Or{Predicates: []Predicate{
			Equals{Field: "id", Value: value.Int(1)},
			&And{Predicates: []Predicate{Equals{Field: "customerID", Value: value.Int(1)}}},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.pred, r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/value"
)

func TestValidate_PortableQuery(t *testing.T) {
	query := Select{
		From: "Order",
		Filter: And{Predicates: []Predicate{
			Equals{Field: "customerID", Value: value.Int(1)},
			Or{Predicates: []Predicate{
				In{Field: "id", Values: []value.Value{value.Int(10), value.Int(11)}},
				Equals{Field: "total", Value: value.Float(2.5)},
			}},
		}},
		Bindings: map[string]string{"id": "id"},
		OrderBy:  []string{"id"},
	}
	query.Filter = And{Predicates: []Predicate{query.Filter, Equals{Field: "placedAt", Value: value.Null{}}}}

	result := Validate(query)
	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)

	result = Validate(&query)
	assert.True(t, result.IsPortable, "pointer types should be portable")
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "nil query",
			query: nil,
			want:  []string{"nil query"},
		},
		{
			name:  "empty bindings",
			query: Select{From: "Order"},
			want:  []string{"Empty bindings"},
		},
		{
			name: "null in list",
			query: Select{
				From:     "Order",
				Filter:   &In{Field: "customerID", Values: []value.Value{value.Int(1), value.Null{}}},
				Bindings: map[string]string{"id": "id"},
			},
			want: []string{"Field 'customerID' lists NULL"},
		},
		{
			name: "empty in and nested null",
			query: Select{
				From: "Order",
				Filter: Or{Predicates: []Predicate{
					In{Field: "id"},
					&And{Predicates: []Predicate{In{Field: "total", Values: []value.Value{value.Null{}}}}},
				}},
				Bindings: map[string]string{"id": "id"},
			},
			want: []string{"Field 'id' has an empty IN list", "Field 'total' lists NULL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.IsPortable)
			require.Len(t, result.Warnings, len(tt.want))
			for i, w := range tt.want {
				assert.Contains(t, result.Warnings[i], w)
			}
		})
	}
}

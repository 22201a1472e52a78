package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/queryir"
	"github.com/roach88/graphcache/internal/value"
)

func TestCompile_SimpleSelect(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		From: "Order",
		Bindings: map[string]string{
			"id":         "id",
			"customerID": "owner",
		},
		Filter:  queryir.Equals{Field: "customerID", Value: value.Int(1)},
		OrderBy: []string{"id"},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "customerID" AS "owner", "id" FROM "Order" WHERE "customerID" = ? ORDER BY "id" COLLATE BINARY ASC, rowid ASC`,
		sql)
	assert.Equal(t, []any{int64(1)}, params)

	ptrSQL, ptrParams, err := compiler.Compile(&query)
	require.NoError(t, err)
	assert.Equal(t, sql, ptrSQL)
	assert.Equal(t, params, ptrParams)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler()

	testCases := []struct {
		name  string
		query queryir.Query
	}{
		{
			name:  "no filter, no order",
			query: queryir.Select{From: "Tag", Bindings: map[string]string{"id": "id"}},
		},
		{
			name:  "empty bindings",
			query: queryir.Select{From: "Tag"},
		},
		{
			name: "composite order",
			query: queryir.Select{
				From:     "OrderLine",
				Bindings: map[string]string{"orderID": "orderID"},
				OrderBy:  []string{"orderID", "lineNo"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, _, err := compiler.Compile(tc.query)
			require.NoError(t, err)
			assert.Contains(t, sql, "ORDER BY")
			assert.Contains(t, sql, "rowid ASC")
		})
	}
}

func TestCompile_Predicates(t *testing.T) {
	compiler := NewSQLCompiler()

	tests := []struct {
		name   string
		filter queryir.Predicate
		where  string
		params []any
	}{
		{
			name:   "null equals",
			filter: queryir.Equals{Field: "customerID", Value: value.Null{}},
			where:  `"customerID" IS NULL`,
		},
		{
			name:   "in",
			filter: &queryir.In{Field: "id", Values: []value.Value{value.Int(1), value.Int(2)}},
			where:  `"id" IN (?, ?)`,
			params: []any{int64(1), int64(2)},
		},
		{
			name:   "empty in",
			filter: queryir.In{Field: "id"},
			where:  `1 = 0`,
		},
		{
			name: "composite key alternatives",
			filter: queryir.Or{Predicates: []queryir.Predicate{
				queryir.And{Predicates: []queryir.Predicate{
					queryir.Equals{Field: "orderID", Value: value.Int(7)},
					queryir.Equals{Field: "lineNo", Value: value.Int(1)},
				}},
				queryir.And{Predicates: []queryir.Predicate{
					queryir.Equals{Field: "orderID", Value: value.Int(7)},
					queryir.Equals{Field: "lineNo", Value: value.Int(2)},
				}},
			}},
			where:  `(("orderID" = ?) AND ("lineNo" = ?)) OR (("orderID" = ?) AND ("lineNo" = ?))`,
			params: []any{int64(7), int64(1), int64(7), int64(2)},
		},
		{
			name:   "single operand is not parenthesized",
			filter: &queryir.And{Predicates: []queryir.Predicate{queryir.Equals{Field: "label", Value: value.String("x")}}},
			where:  `"label" = ?`,
			params: []any{"x"},
		},
		{
			name:   "empty or",
			filter: queryir.Or{},
			where:  `1 = 0`,
		},
		{
			name:   "empty and",
			filter: queryir.And{},
			where:  `1 = 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := compiler.Compile(queryir.Select{
				From:     "T",
				Bindings: map[string]string{"id": "id"},
				Filter:   tt.filter,
			})
			require.NoError(t, err)
			assert.Equal(t, `SELECT "id" FROM "T" WHERE `+tt.where+` ORDER BY rowid ASC`, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler()
	dangerous := "'; DROP TABLE Customer; --"

	sql, params, err := compiler.Compile(queryir.Select{
		From:     "Customer",
		Bindings: map[string]string{"id": "id"},
		Filter:   queryir.Equals{Field: "name", Value: value.String(dangerous)},
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{dangerous}, params)
}

func TestCompile_Params(t *testing.T) {
	ts, err := value.Coerce("2026-03-01T10:00:00Z", value.TypeDateTime)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T10:00:00Z", Param(ts))
	assert.Equal(t, true, Param(value.Bool(true)))
	assert.Equal(t, 2.5, Param(value.Float(2.5)))
	assert.Nil(t, Param(value.Null{}))
}

func TestCompile_Errors(t *testing.T) {
	compiler := NewSQLCompiler()

	_, _, err := compiler.Compile(nil)
	assert.Error(t, err)

	_, _, err = compiler.Compile(queryir.Select{})
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Order"`, QuoteIdent("Order"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}

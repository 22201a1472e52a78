package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/graphcache/internal/queryir"
	"github.com/roach88/graphcache/internal/value"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
// Identifiers are always quoted: entity names such as Order collide with
// SQL keywords.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if q.From == "" {
		return "", nil, fmt.Errorf("select without a table")
	}
	selectClause := c.compileBindings(q.Bindings)

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		selectClause,
		QuoteIdent(q.From),
		whereClause,
		c.stableOrderKey(q))

	return sql, params, nil
}

// compileBindings converts bindings map to SELECT column list.
// Example: {"customerID": "owner"} → "customerID" AS "owner"
// Keys are sorted for deterministic output.
func (c *SQLCompiler) compileBindings(bindings map[string]string) string {
	if len(bindings) == 0 {
		return "*"
	}

	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, sourceField := range keys {
		col := bindings[sourceField]
		if sourceField == col {
			parts = append(parts, QuoteIdent(sourceField))
		} else {
			parts = append(parts, fmt.Sprintf("%s AS %s", QuoteIdent(sourceField), QuoteIdent(col)))
		}
	}

	return strings.Join(parts, ", ")
}

// stableOrderKey returns the ORDER BY clause body. rowid breaks ties so
// rows with equal ordering columns still come back in insertion order.
// COLLATE BINARY keeps text ordering independent of SQLite build options.
func (c *SQLCompiler) stableOrderKey(q queryir.Select) string {
	parts := make([]string, 0, len(q.OrderBy)+1)
	for _, col := range q.OrderBy {
		parts = append(parts, QuoteIdent(col)+" COLLATE BINARY ASC")
	}
	parts = append(parts, "rowid ASC")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field" = ?, or IS NULL
// for a Null literal.
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if value.IsNull(eq.Value) {
		return QuoteIdent(eq.Field) + " IS NULL", nil, nil
	}
	return QuoteIdent(eq.Field) + " = ?", []any{Param(eq.Value)}, nil
}

// compileIn compiles an In predicate. An empty list matches nothing.
func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	marks := make([]string, len(in.Values))
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		marks[i] = "?"
		params[i] = Param(v)
	}
	return fmt.Sprintf("%s IN (%s)", QuoteIdent(in.Field), strings.Join(marks, ", ")), params, nil
}

// compileJunction joins sub-predicates with sep. Each operand is
// parenthesized so nested And/Or keep their precedence.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	sqlParts := make([]string, 0, len(preds))
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if len(preds) > 1 {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, sep), allParams, nil
}

// QuoteIdent quotes an SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Param converts a value to the driver parameter the store writes for it.
// Times are RFC 3339 text so they sort chronologically as strings.
func Param(v value.Value) any {
	return value.Native(v)
}

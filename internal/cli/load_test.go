package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRows(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// loadedDB returns a database holding two customers and one order.
func loadedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "cache.db")
	customers := writeRows(t, `
- {id: 1, name: Ann, email: ann@example.com}
- {id: 2, name: Bob}
`)
	orders := writeRows(t, `[{"id": 10, "customerID": 1, "total": 12.5}]`)

	_, err := execute(t, "load", shopSchema(t), customers, "--db", db, "--type", "Customer")
	require.NoError(t, err)
	_, err = execute(t, "load", shopSchema(t), orders, "--db", db, "--type", "Order")
	require.NoError(t, err)
	return db
}

// ============================================================================
// load
// ============================================================================

func TestLoad_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	rows := writeRows(t, "- {id: 1, name: Ann}\n- {id: 2, name: Bob}\n")

	out, err := execute(t, "load", shopSchema(t), rows, "--db", db, "--type", "Customer")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Loaded 2 Customer row(s) (changeset ")
}

func TestLoad_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	rows := writeRows(t, "- {id: 7, name: Cy, creditLimit: 250}\n")

	out, err := execute(t, "--format", "json", "load", shopSchema(t), rows, "--db", db, "--type", "Customer")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   LoadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Customer", resp.Data.Type)
	assert.Len(t, resp.Data.ChangeSetID, 64)
	require.Len(t, resp.Data.Entities, 1)
	assert.Equal(t, "Customer-7", resp.Data.Entities[0].Key)
	assert.Equal(t, "Unchanged", resp.Data.Entities[0].State)
	assert.Equal(t, float64(250), resp.Data.Entities[0].Values["creditLimit"])
}

func TestLoad_ValidationFailure(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	rows := writeRows(t, "- {id: 3, name: \"\"}\n")

	out, err := execute(t, "load", shopSchema(t), rows, "--db", db, "--type", "Customer")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [VALIDATION_FAILED]")
	assert.Contains(t, out, "Customer-3: name.required: 'name' is required")

	out, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No change sets found.")
}

func TestLoad_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")

	tests := []struct {
		name     string
		rows     string
		typeName string
		code     int
		wantErr  string
	}{
		{"missing key", "- {name: Ann}\n", "Customer", ExitCommandError, `row 0: key property "id" is missing`},
		{"unknown type", "- {id: 1}\n", "Invoice", ExitCommandError, `unknown entity type "Invoice"`},
		{"unknown property", "- {id: 1, colour: red}\n", "Customer", ExitFailure, "UNKNOWN_PROPERTY"},
		{"bad value", "- {id: one}\n", "Customer", ExitFailure, "INVALID_VALUE"},
		{"not a list", "id: 1\n", "Customer", ExitCommandError, "failed to read rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "load", shopSchema(t), writeRows(t, tt.rows), "--db", db, "--type", tt.typeName)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ============================================================================
// query
// ============================================================================

func TestQuery_Filter(t *testing.T) {
	db := loadedDB(t)

	out, err := execute(t, "query", shopSchema(t), "Customer", "name=Ann", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 Customer entit(ies)")
	assert.Contains(t, out, "Customer-1 [Unchanged]")
	assert.Contains(t, out, `"email":"ann@example.com"`)
	assert.NotContains(t, out, "Customer-2")
}

func TestQuery_NullFilterAndAll(t *testing.T) {
	db := loadedDB(t)

	out, err := execute(t, "query", shopSchema(t), "Customer", "email=null", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Customer-2 [Unchanged]")
	assert.NotContains(t, out, "Customer-1 ")

	out, err = execute(t, "query", shopSchema(t), "Customer", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 Customer entit(ies)")
}

func TestQuery_IncludeNavigation(t *testing.T) {
	db := loadedDB(t)

	out, err := execute(t, "--format", "json", "query", shopSchema(t), "Customer", "id=1", "--include", "orders", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entities, 1)
	require.Len(t, resp.Data.Included, 1)
	assert.Equal(t, "Order-10", resp.Data.Included[0].Key)
	assert.Equal(t, 12.5, resp.Data.Included[0].Values["total"])
}

func TestQuery_BadFilter(t *testing.T) {
	db := loadedDB(t)

	for _, arg := range []string{"name", "colour=red", "id=abc"} {
		t.Run(arg, func(t *testing.T) {
			_, err := execute(t, "query", shopSchema(t), "Customer", arg, "--db", db)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "invalid filter")
		})
	}
}

// ============================================================================
// history
// ============================================================================

func TestHistory_ListAndEntity(t *testing.T) {
	db := loadedDB(t)

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "#1 ")
	assert.Contains(t, out, "(2 entries)")
	assert.Contains(t, out, "#2 ")
	assert.Contains(t, out, "(1 entries)")

	out, err = execute(t, "history", "--db", db, "Order-10")
	require.NoError(t, err)
	assert.Contains(t, out, "  #2 Added Order-10 ")
	assert.Contains(t, out, `"total":12.5`)

	out, err = execute(t, "history", "--db", db, "Customer-9")
	require.NoError(t, err)
	assert.Contains(t, out, "No history for Customer-9.")
}

func TestHistory_ChangeSet(t *testing.T) {
	db := loadedDB(t)

	out, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Data, 2)

	out, err = execute(t, "history", "--db", db, "--changeset", list.Data[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "#1 "+list.Data[0].ID)
	assert.Contains(t, out, "Added Customer-1")
	assert.Contains(t, out, "Added Customer-2")

	_, err = execute(t, "history", "--db", db, "--changeset", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHistory_InvalidKey(t *testing.T) {
	_, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "x.db"), "Customer1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected Type-value")
}

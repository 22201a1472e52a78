package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(src), 0644))
	return dir
}

func TestValidate_ValidSchema(t *testing.T) {
	out, err := execute(t, "validate", shopSchema(t))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Schema valid: 10 entity type(s) in 1 file(s)")
	assert.Contains(t, out, "  Customer key=[id] properties=5 navigations=3\n")
	assert.Contains(t, out, "  OrderLine key=[orderID lineNo]")
	assert.Contains(t, out, "base=Person")
	assert.Contains(t, out, "auto_key")
}

func TestValidate_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", shopSchema(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Files)
	require.Len(t, resp.Data.Types, 10)

	byName := make(map[string]TypeSummary)
	for _, ts := range resp.Data.Types {
		byName[ts.Name] = ts
	}
	assert.Equal(t, TypeSummary{Name: "Order", Key: []string{"id"}, AutoKey: true, Properties: 4, Navigations: 2}, byName["Order"])
	assert.Equal(t, "Employee", byName["Manager"].Base)
	assert.Equal(t, []string{"id"}, byName["Manager"].Key)
}

func TestValidate_SchemaErrors(t *testing.T) {
	dir := writeSchema(t, `package bad

entity: Widget: {
	key: ["uid"]
	properties: id: "int"
}

entity: Gadget: {
	key: ["id"]
	properties: id: "int"
	navigations: owner: {target: "Nowhere", scalar: true}
}
`)

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "schema has 2 error(s)")
	assert.Contains(t, out, "E102")
	assert.Contains(t, out, "E110")
}

func TestValidate_CycleWarning(t *testing.T) {
	dir := writeSchema(t, `package cyclic

entity: A: {
	key: ["id"]
	properties: {id: "int", bID: "int"}
	navigations: b: {target: "B", scalar: true, foreign_keys: ["bID"]}
}

entity: B: {
	key: ["id"]
	properties: {id: "int", aID: "int"}
	navigations: a: {target: "A", scalar: true, foreign_keys: ["aID"]}
}
`)

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema valid: 2 entity type(s)")
	assert.Contains(t, out, "⚠")
}

func TestValidate_MissingDirectory(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", "/nonexistent/schema")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E005", resp.Error.Code)
}

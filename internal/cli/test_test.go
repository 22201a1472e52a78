package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renameScenario = `
name: rename
description: "Rename and accept a customer"
schema: %s
steps:
  - op: create
    as: ann
    type: Customer
    values: { id: 1, name: Ann }
  - op: attach
    ref: ann
    state: Unchanged
  - op: set
    ref: ann
    property: name
    value: Bob
  - op: accept
    ref: ann
assertions:
  - type: state
    ref: ann
    expect: %s
`

// scenariosDir writes scenario files named by the map keys.
func scenariosDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_Pass(t *testing.T) {
	dir := scenariosDir(t, map[string]string{
		"rename.yaml": fmt.Sprintf(renameScenario, shopSchema(t), "Unchanged"),
	})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ rename")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_FailJSON(t *testing.T) {
	dir := scenariosDir(t, map[string]string{
		"rename.yaml": fmt.Sprintf(renameScenario, shopSchema(t), "Modified"),
	})

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string     `json:"code"`
			Message string     `json:"message"`
			Details TestResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Error.Details.Failed)
	require.Len(t, resp.Error.Details.Scenarios, 1)
	assert.Contains(t, resp.Error.Details.Scenarios[0].Errors[0], "Assertion failed: state")
}

func TestTestCommand_GoldenUpdateAndCompare(t *testing.T) {
	dir := scenariosDir(t, map[string]string{
		"rename.yaml": fmt.Sprintf(renameScenario, shopSchema(t), "Unchanged"),
	})

	out, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ rename (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "rename.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"rename"`)
	assert.Contains(t, string(golden), `"action":"AcceptChanges"`)

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "trace matches the golden file it just wrote")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := scenariosDir(t, map[string]string{
		"rename.yaml":      fmt.Sprintf(renameScenario, shopSchema(t), "Unchanged"),
		"rename_fail.yaml": fmt.Sprintf(renameScenario, shopSchema(t), "Deleted"),
	})

	out, err := execute(t, "test", "--filter", "rename", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	files, err := findScenarioFiles(dir, "rename*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := scenariosDir(t, map[string]string{
		"broken.yaml": "name: broken\n",
	})

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_MetricsOut(t *testing.T) {
	dir := scenariosDir(t, map[string]string{
		"rename.yaml": fmt.Sprintf(renameScenario, shopSchema(t), "Unchanged"),
	})
	metricsPath := filepath.Join(t.TempDir(), "events.prom")

	_, err := execute(t, "test", "--metrics-out", metricsPath, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `graphcache_events_total{kind="entity_changed"} 3`)
	assert.Contains(t, string(data), `graphcache_events_total{kind="property_changed"} 1`)
	assert.Contains(t, string(data), `graphcache_entity_actions_total{action="AcceptChanges",state="Unchanged"} 1`)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "x.golden"), goldenFilePath(filepath.Join("a", "b", "x.yaml")))
}

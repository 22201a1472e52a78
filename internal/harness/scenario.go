package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a cache conformance scenario: a schema, a sequence of
// steps and assertions on the final graph.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a directory of CUE metadata files.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema,omitempty"`

	// SchemaSource is inline CUE metadata, used when Schema is empty.
	SchemaSource string `yaml:"schema_source,omitempty"`

	// Options configure the session.
	Options Options `yaml:"options,omitempty"`

	// Steps run in order. A step that fails without expect_error stops the
	// scenario.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final graph and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Options configure the session a scenario runs against.
type Options struct {
	ValidateOnAttach         bool   `yaml:"validate_on_attach,omitempty"`
	ValidateOnPropertyChange bool   `yaml:"validate_on_property_change,omitempty"`
	SkipValidationOnSave     bool   `yaml:"skip_validation_on_save,omitempty"`
	SuppressEventsDuringLoad bool   `yaml:"suppress_events_during_load,omitempty"`
	DefaultMerge             string `yaml:"default_merge,omitempty"`
}

// Step is one cache operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// As names the entity a create step builds.
	As string `yaml:"as,omitempty"`

	// Ref names the entity the step acts on.
	Ref string `yaml:"ref,omitempty"`

	// Type is the entity type for create, import and query.
	Type string `yaml:"type,omitempty"`

	// Values are initial data values for create.
	Values map[string]any `yaml:"values,omitempty"`

	// Rows are raw rows for import.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Bind names the entities import and query return, in order.
	Bind []string `yaml:"bind,omitempty"`

	// Property is the data property or navigation being written.
	Property string `yaml:"property,omitempty"`

	// Value is the raw value for set.
	Value any `yaml:"value,omitempty"`

	// Target names the entity for set_nav, add and remove. An empty
	// target clears a scalar navigation.
	Target string `yaml:"target,omitempty"`

	// State is the entity state for attach and set_state.
	State string `yaml:"state,omitempty"`

	// Merge is the merge strategy for attach and import.
	Merge string `yaml:"merge,omitempty"`

	// Where is an equality filter for query, one field per entry.
	Where map[string]any `yaml:"where,omitempty"`

	// Local runs a query against resident entities instead of the store.
	Local bool `yaml:"local,omitempty"`

	// Keys are store-assigned keys applied by save.
	Keys []KeyAssignment `yaml:"keys,omitempty"`

	// ExpectError is the cache error code the step must fail with, or
	// "any" for any error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// KeyAssignment maps the entity named Ref to its store-assigned key.
type KeyAssignment struct {
	Ref   string `yaml:"ref"`
	Value any    `yaml:"value"`
}

// Step operations.
const (
	OpCreate    = "create"
	OpAttach    = "attach"
	OpAddEntity = "add_entity"
	OpSet       = "set"
	OpSetNav    = "set_nav"
	OpAdd       = "add"
	OpRemove    = "remove"
	OpDelete    = "delete"
	OpDetach    = "detach"
	OpAccept    = "accept"
	OpReject    = "reject"
	OpSetState  = "set_state"
	OpValidate  = "validate"
	OpClear     = "clear"
	OpImport    = "import"
	OpQuery     = "query"
	OpSave      = "save"
)

// Assertion validates the final graph or trace.
type Assertion struct {
	// Type selects the check; see the Assert constants.
	Type string `yaml:"type"`

	// Ref names the entity under test.
	Ref string `yaml:"ref,omitempty"`

	// Property names a data property or navigation.
	Property string `yaml:"property,omitempty"`

	// Target names the expected collection member.
	Target string `yaml:"target,omitempty"`

	// Expect is the expected state, value, entity name or boolean.
	Expect any `yaml:"expect,omitempty"`

	// Count is the expected number for the counting assertions.
	Count *int `yaml:"count,omitempty"`

	// Kind is the event kind for event_count.
	Kind string `yaml:"kind,omitempty"`

	// Table is the store table for store_rows.
	Table string `yaml:"table,omitempty"`
}

// Assertion type constants.
const (
	AssertState              = "state"
	AssertProperty           = "property"
	AssertOriginalValue      = "original_value"
	AssertNav                = "nav"
	AssertCollectionContains = "collection_contains"
	AssertCollectionCount    = "collection_count"
	AssertUnresolvedCount    = "unresolved_count"
	AssertResidentCount      = "resident_count"
	AssertHasChanges         = "has_changes"
	AssertValidationErrors   = "validation_errors"
	AssertEventCount         = "event_count"
	AssertStoreRows          = "store_rows"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema directory not found: %s", scenario.Schema)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" && s.SchemaSource == "" {
		return fmt.Errorf("schema or schema_source is required")
	}
	if s.Schema != "" && s.SchemaSource != "" {
		return fmt.Errorf("schema and schema_source are mutually exclusive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the fields each operation needs.
func validateStep(index int, st *Step) error {
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("steps[%d]: %s is required for %s", index, field, st.Op)
		}
		return nil
	}

	switch st.Op {
	case OpCreate:
		if err := need(st.As != "", "as"); err != nil {
			return err
		}
		return need(st.Type != "", "type")
	case OpAttach, OpSetState:
		if err := need(st.Ref != "", "ref"); err != nil {
			return err
		}
		return need(st.State != "", "state")
	case OpAddEntity, OpDelete, OpDetach, OpAccept, OpReject, OpValidate:
		return need(st.Ref != "", "ref")
	case OpSet, OpSetNav:
		if err := need(st.Ref != "", "ref"); err != nil {
			return err
		}
		return need(st.Property != "", "property")
	case OpAdd, OpRemove:
		if err := need(st.Ref != "", "ref"); err != nil {
			return err
		}
		if err := need(st.Property != "", "property"); err != nil {
			return err
		}
		return need(st.Target != "", "target")
	case OpImport, OpQuery:
		return need(st.Type != "", "type")
	case OpSave:
		for j, k := range st.Keys {
			if k.Ref == "" {
				return fmt.Errorf("steps[%d].keys[%d]: ref is required", index, j)
			}
		}
		return nil
	case OpClear:
		return nil
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, field, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertState:
		if err := need(a.Ref != "", "ref"); err != nil {
			return err
		}
		return need(a.Expect != nil, "expect")
	case AssertProperty, AssertOriginalValue, AssertNav:
		if err := need(a.Ref != "", "ref"); err != nil {
			return err
		}
		return need(a.Property != "", "property")
	case AssertCollectionContains:
		if err := need(a.Ref != "", "ref"); err != nil {
			return err
		}
		if err := need(a.Property != "", "property"); err != nil {
			return err
		}
		return need(a.Target != "", "target")
	case AssertCollectionCount:
		if err := need(a.Ref != "", "ref"); err != nil {
			return err
		}
		if err := need(a.Property != "", "property"); err != nil {
			return err
		}
		return need(a.Count != nil, "count")
	case AssertValidationErrors:
		if err := need(a.Ref != "", "ref"); err != nil {
			return err
		}
		return need(a.Count != nil, "count")
	case AssertUnresolvedCount, AssertResidentCount:
		return need(a.Count != nil, "count")
	case AssertHasChanges:
		if _, ok := a.Expect.(bool); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a boolean for has_changes", index)
		}
		return nil
	case AssertEventCount:
		if err := need(a.Kind != "", "kind"); err != nil {
			return err
		}
		return need(a.Count != nil, "count")
	case AssertStoreRows:
		if err := need(a.Table != "", "table"); err != nil {
			return err
		}
		return need(a.Count != nil, "count")
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
}

package cache

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/graphcache/internal/value"
)

// BundleVersion is written into every exported bundle.
const BundleVersion = 1

// Export serializes entities, with their states and original values, as a
// canonical JSON bundle. With no entities it exports the whole session.
func (s *Session) Export(entities ...*Entity) ([]byte, error) {
	if len(entities) == 0 {
		entities = s.all()
	}
	items := make([]any, 0, len(entities))
	for _, e := range entities {
		if e.aspect.session != s {
			return nil, newNotAttachedError(e, "")
		}
		item := map[string]any{
			"type":   e.typ.Name,
			"state":  e.aspect.state.String(),
			"values": valueMap(e.values),
		}
		if len(e.aspect.original) > 0 {
			item["original"] = valueMap(e.aspect.original)
		}
		items = append(items, item)
	}
	return value.MarshalCanonical(map[string]any{
		"version":  BundleVersion,
		"entities": items,
	})
}

type bundle struct {
	Version  int            `json:"version"`
	Entities []bundleEntity `json:"entities"`
}

type bundleEntity struct {
	Type     string         `json:"type"`
	State    string         `json:"state"`
	Values   map[string]any `json:"values"`
	Original map[string]any `json:"original"`
}

// ImportBundle attaches the entities of a bundle produced by Export.
// Entities whose key is resident are merged with merge.
func (s *Session) ImportBundle(data []byte, merge MergeStrategy) ([]*Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var b bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", b.Version)
	}

	s.loading++
	defer func() { s.loading-- }()

	out := make([]*Entity, 0, len(b.Entities))
	for i, be := range b.Entities {
		state, ok := ParseEntityState(be.State)
		if !ok || state == Detached {
			return out, fmt.Errorf("entity %d: invalid state %q", i, be.State)
		}
		e, err := s.CreateEntity(be.Type, plainNumbers(be.Values))
		if err != nil {
			return out, fmt.Errorf("entity %d: %w", i, err)
		}
		resident, err := s.attach(e, state, merge, ActionAttachOnImport)
		if err != nil {
			return out, fmt.Errorf("entity %d: %w", i, err)
		}
		if resident == e {
			for name, raw := range plainNumbers(be.Original) {
				p, ok := e.typ.DataProperty(name)
				if !ok {
					return out, fmt.Errorf("entity %d: %w", i, newUnknownPropertyError(e, name))
				}
				v, err := value.Coerce(raw, p.Type)
				if err != nil {
					return out, fmt.Errorf("entity %d: %w", i, newInvalidValueError(e, name, err))
				}
				e.aspect.original[name] = v
			}
		}
		out = append(out, resident)
	}
	s.logger.Debug("bundle imported", "entities", len(out), "strategy", merge.String())
	return out, nil
}

// plainNumbers turns json.Number into strings, which coercion parses for
// every numeric type without float rounding.
func plainNumbers(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if n, ok := v.(json.Number); ok {
			out[k] = n.String()
			continue
		}
		out[k] = v
	}
	return out
}

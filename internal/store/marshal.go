package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/graphcache/internal/value"
)

// marshalValues converts a property map to canonical JSON TEXT for storage.
// A nil map is stored as {}.
func marshalValues(vals map[string]value.Value) (string, error) {
	m := make(map[string]any, len(vals))
	for k, v := range vals {
		m[k] = v
	}
	data, err := value.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses stored JSON TEXT into plain Go values.
// Numbers are decoded via json.Number so integers above 2^53 keep their
// precision; integral numbers become int64, the rest float64.
func unmarshalValues(data string) (map[string]any, error) {
	out := map[string]any{}
	if data == "" || data == "{}" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	for k, v := range out {
		if n, ok := v.(json.Number); ok {
			out[k] = numberValue(n)
		}
	}
	return out, nil
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

// nativeRow converts a scanned SQLite row to plain Go values.
// TEXT columns may arrive as []byte.
func nativeRow(cols []string, raw []any) map[string]any {
	row := make(map[string]any, len(cols))
	for i, c := range cols {
		switch v := raw[i].(type) {
		case []byte:
			row[c] = string(v)
		default:
			row[c] = v
		}
	}
	return row
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/graphcache/internal/cache"
	"github.com/roach88/graphcache/internal/compiler"
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/store"
	"github.com/roach88/graphcache/internal/value"
)

// workspace is a session over a compiled schema and an opened store.
type workspace struct {
	reg     *metadata.Registry
	store   *store.Store
	session *cache.Session
}

// loadRegistry compiles the schema directory, failing on the first error.
func loadRegistry(dir string) (*metadata.Registry, error) {
	res, errs := compiler.LoadSchema(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return res.Registry, nil
}

// openWorkspace compiles schemaDir, opens dbPath, registers a table per
// entity type and creates a session logging to logger.
func openWorkspace(ctx context.Context, schemaDir, dbPath string, logger *slog.Logger) (*workspace, error) {
	reg, err := loadRegistry(schemaDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	st, err := store.Open(dbPath, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	for _, t := range reg.Types() {
		if err := st.EnsureTable(ctx, t); err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to prepare table %s", t.Name), err)
		}
	}

	session, err := cache.NewSession(reg, cache.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create session", err)
	}
	return &workspace{reg: reg, store: st, session: session}, nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// entityView is the output form of one entity.
type entityView struct {
	Key    string         `json:"key"`
	State  string         `json:"state"`
	Values map[string]any `json:"values"`
}

func viewOf(e *cache.Entity) entityView {
	vals := make(map[string]any)
	for name, v := range e.Values() {
		vals[name] = value.Native(v)
	}
	return entityView{Key: e.Key().String(), State: e.Aspect().State().String(), Values: vals}
}

// String renders the view as one text line with canonical JSON values.
func (v entityView) String() string {
	data, err := value.MarshalCanonical(v.Values)
	if err != nil {
		return fmt.Sprintf("%s [%s] <%v>", v.Key, v.State, err)
	}
	return fmt.Sprintf("%s [%s] %s", v.Key, v.State, data)
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/graphcache/internal/cache"
	"github.com/roach88/graphcache/internal/compiler"
	"github.com/roach88/graphcache/internal/metadata"
	"github.com/roach88/graphcache/internal/queryir"
	"github.com/roach88/graphcache/internal/store"
	"github.com/roach88/graphcache/internal/testutil"
	"github.com/roach88/graphcache/internal/value"
)

// Harness executes one scenario against a fresh session and store.
type Harness struct {
	session *cache.Session
	store   *store.Store
	reg     *metadata.Registry
	refs    map[string]*cache.Entity
	logger  *slog.Logger

	// defaultMerge applies to import and query steps without a merge.
	defaultMerge cache.MergeStrategy
}

// LoadRegistry compiles the scenario's metadata.
func LoadRegistry(scenario *Scenario) (*metadata.Registry, error) {
	var (
		res  *compiler.LoadResult
		errs []error
	)
	if scenario.Schema != "" {
		res, errs = compiler.LoadSchema(scenario.Schema, compiler.LoadModeCollectAll)
	} else {
		res, errs = compiler.LoadSchemaSource(scenario.Name+".cue", scenario.SchemaSource, compiler.LoadModeCollectAll)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load schema: %w", errors.Join(errs...))
	}
	return res.Registry, nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and guid generator. Logs are discarded.
//
// Execution flow:
// 1. Compile the schema and create a session
// 2. Create the scenario store with one table per entity type
// 3. Execute steps, checking expected errors
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.DiscardHandler))
}

// RunWithLogger is Run with session and store logs sent to logger. Extra
// observers are subscribed to the session after the tracer.
func RunWithLogger(scenario *Scenario, logger *slog.Logger, observers ...cache.Observer) (*Result, error) {
	ctx := context.Background()

	reg, err := LoadRegistry(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	for _, t := range reg.Types() {
		if err := st.EnsureTable(ctx, t); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	opts, err := sessionOptions(scenario.Options, logger)
	if err != nil {
		return nil, err
	}
	session, err := cache.NewSession(reg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	result := NewResult()
	session.Subscribe(&tracer{result: result})
	for _, o := range observers {
		session.Subscribe(o)
	}

	h := &Harness{
		session:      session,
		store:        st,
		reg:          reg,
		refs:         make(map[string]*cache.Entity),
		logger:       logger,
		defaultMerge: cache.PreserveChanges,
	}
	if scenario.Options.DefaultMerge != "" {
		h.defaultMerge, _ = cache.ParseMergeStrategy(scenario.Options.DefaultMerge)
	}

	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		if msg := checkExpectedError(step, err); msg != "" {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Op, msg))
			if step.ExpectError == "" {
				return result, nil
			}
		}
		h.logger.Debug("step completed", "step", i, "op", step.Op, "error", err)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}
	return result, nil
}

func sessionOptions(o Options, logger *slog.Logger) ([]cache.Option, error) {
	validation := cache.ValidationOptions{
		OnAttach:         o.ValidateOnAttach,
		OnPropertyChange: o.ValidateOnPropertyChange,
		OnSave:           !o.SkipValidationOnSave,
	}
	opts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithClock(testutil.NewDeterministicClock()),
		cache.WithKeyGenerator(testutil.NewSequentialGuidGenerator()),
		cache.WithValidation(validation),
		cache.WithEventSuppressionDuringLoad(o.SuppressEventsDuringLoad),
	}
	if o.DefaultMerge != "" {
		m, ok := cache.ParseMergeStrategy(o.DefaultMerge)
		if !ok {
			return nil, fmt.Errorf("unknown merge strategy %q", o.DefaultMerge)
		}
		opts = append(opts, cache.WithDefaultMergeStrategy(m))
	}
	return opts, nil
}

// checkExpectedError returns a failure message, or "" when err is what the
// step expected.
func checkExpectedError(step Step, err error) string {
	switch {
	case step.ExpectError == "" && err == nil:
		return ""
	case step.ExpectError == "":
		return fmt.Sprintf("unexpected error: %v", err)
	case err == nil:
		return fmt.Sprintf("expected error %s, got none", step.ExpectError)
	case step.ExpectError == "any":
		return ""
	}
	var cerr *cache.Error
	if errors.As(err, &cerr) && string(cerr.Code) == step.ExpectError {
		return ""
	}
	return fmt.Sprintf("expected error %s, got: %v", step.ExpectError, err)
}

func (h *Harness) ref(name string) (*cache.Entity, error) {
	e, ok := h.refs[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity name %q", name)
	}
	return e, nil
}

func (h *Harness) bind(names []string, ents []*cache.Entity) error {
	if len(names) > len(ents) {
		return fmt.Errorf("bind: %d names for %d entities", len(names), len(ents))
	}
	for i, name := range names {
		h.refs[name] = ents[i]
	}
	return nil
}

func (h *Harness) mergeStrategy(name string) (cache.MergeStrategy, error) {
	if name == "" {
		return h.defaultMerge, nil
	}
	m, ok := cache.ParseMergeStrategy(name)
	if !ok {
		return 0, fmt.Errorf("unknown merge strategy %q", name)
	}
	return m, nil
}

// execute runs one step.
func (h *Harness) execute(ctx context.Context, st Step) error {
	s := h.session

	switch st.Op {
	case OpCreate:
		e, err := s.CreateEntity(st.Type, st.Values)
		if err != nil {
			return err
		}
		h.refs[st.As] = e
		return nil

	case OpClear:
		s.Clear()
		return nil

	case OpImport:
		merge, err := h.mergeStrategy(st.Merge)
		if err != nil {
			return err
		}
		ents, err := s.ImportRows(st.Type, st.Rows, merge)
		if err != nil {
			return err
		}
		return h.bind(st.Bind, ents)

	case OpQuery:
		ents, err := h.query(ctx, st)
		if err != nil {
			return err
		}
		return h.bind(st.Bind, ents)

	case OpSave:
		return h.save(ctx, st)
	}

	e, err := h.ref(st.Ref)
	if err != nil {
		return err
	}

	switch st.Op {
	case OpAttach:
		state, ok := cache.ParseEntityState(st.State)
		if !ok {
			return fmt.Errorf("unknown state %q", st.State)
		}
		merge := cache.Disallowed
		if st.Merge != "" {
			if merge, err = h.mergeStrategy(st.Merge); err != nil {
				return err
			}
		}
		resident, err := s.Attach(e, state, merge)
		if err != nil {
			return err
		}
		h.refs[st.Ref] = resident
		return nil
	case OpAddEntity:
		_, err := s.AddEntity(e)
		return err
	case OpSet:
		return e.Set(st.Property, st.Value)
	case OpSetNav:
		if st.Target == "" {
			return e.Set(st.Property, nil)
		}
		target, err := h.ref(st.Target)
		if err != nil {
			return err
		}
		return e.Set(st.Property, target)
	case OpAdd, OpRemove:
		target, err := h.ref(st.Target)
		if err != nil {
			return err
		}
		if st.Op == OpAdd {
			return e.AddTo(st.Property, target)
		}
		return e.RemoveFrom(st.Property, target)
	case OpDelete:
		return s.Delete(e)
	case OpDetach:
		_, err := s.Detach(e)
		return err
	case OpAccept:
		return e.Aspect().AcceptChanges()
	case OpReject:
		return e.Aspect().RejectChanges()
	case OpSetState:
		state, ok := cache.ParseEntityState(st.State)
		if !ok {
			return fmt.Errorf("unknown state %q", st.State)
		}
		return e.Aspect().SetState(state)
	case OpValidate:
		e.Aspect().ValidateEntity()
		return nil
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

// query runs an Equals-conjunction over st.Where.
func (h *Harness) query(ctx context.Context, st Step) ([]*cache.Entity, error) {
	t, ok := h.reg.Type(st.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", st.Type)
	}
	q := cache.KeyQuery(t)

	var preds []queryir.Predicate
	for _, field := range slices.Sorted(maps.Keys(st.Where)) {
		p, ok := t.DataProperty(field)
		if !ok {
			return nil, fmt.Errorf("query: %s has no property %q", t.Name, field)
		}
		v, err := value.Coerce(st.Where[field], p.Type)
		if err != nil {
			return nil, fmt.Errorf("query %s.%s: %w", t.Name, field, err)
		}
		preds = append(preds, queryir.Equals{Field: field, Value: v})
	}
	switch len(preds) {
	case 0:
	case 1:
		q.Filter = preds[0]
	default:
		q.Filter = queryir.And{Predicates: preds}
	}

	if st.Local {
		return h.session.ExecuteQueryLocally(q)
	}
	merge, err := h.mergeStrategy(st.Merge)
	if err != nil {
		return nil, err
	}
	return h.session.ExecuteQuery(ctx, h.store, q, merge)
}

// save commits every pending change into the scenario store.
func (h *Harness) save(ctx context.Context, st Step) error {
	var mappings []cache.KeyMapping
	for _, k := range st.Keys {
		e, err := h.ref(k.Ref)
		if err != nil {
			return err
		}
		mappings = append(mappings, cache.KeyMapping{Temp: e.Key(), Real: k.Value})
	}

	batch, err := h.session.BeginSave()
	if err != nil {
		return err
	}
	id, err := batch.Commit(ctx, h.store, mappings...)
	if err != nil {
		batch.Abort()
		return err
	}
	h.logger.Debug("scenario save committed", "changeset", id)
	return nil
}

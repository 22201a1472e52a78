package harness

import (
	"github.com/roach88/graphcache/internal/cache"
	"github.com/roach88/graphcache/internal/value"
)

// TraceEvent is one cache event in trace form. Entities are rendered as
// their canonical key strings at the time the event was published.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Entity   string `json:"entity"`
	Property string `json:"property,omitempty"`

	// Data property writes.
	Old value.Value `json:"old,omitempty"`
	New value.Value `json:"new,omitempty"`

	// Scalar navigation writes.
	Navigation bool   `json:"-"`
	OldTarget  string `json:"old_target,omitempty"`
	NewTarget  string `json:"new_target,omitempty"`

	// Entity changes.
	Action string `json:"action,omitempty"`
	State  string `json:"state,omitempty"`

	// Relationship members or validation errors.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every event the session published, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// tracer records events into a Result.
type tracer struct {
	result *Result
}

func keyOf(e *cache.Entity) string {
	if e == nil {
		return ""
	}
	return e.Key().String()
}

func keysOf(es []*cache.Entity) []string {
	if len(es) == 0 {
		return nil
	}
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = keyOf(e)
	}
	return out
}

func validationStrings(errs []cache.ValidationError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, v := range errs {
		out[i] = v.String()
	}
	return out
}

// Observe implements cache.Observer.
func (t *tracer) Observe(ev cache.Event) {
	te := TraceEvent{Seq: ev.Sequence(), Kind: ev.Kind().String()}
	switch e := ev.(type) {
	case cache.EntityChanged:
		te.Entity = keyOf(e.Entity)
		te.Action = e.Action.String()
		te.State = e.State.String()
	case cache.PropertyChanged:
		te.Entity = keyOf(e.Entity)
		te.Property = e.Property
		if e.Old == nil && e.New == nil {
			te.Navigation = true
			te.OldTarget = keyOf(e.OldTarget)
			te.NewTarget = keyOf(e.NewTarget)
		} else {
			te.Old, te.New = e.Old, e.New
		}
	case cache.RelationshipChanged:
		te.Entity = keyOf(e.Owner)
		te.Property = e.Navigation
		te.Added = keysOf(e.Added)
		te.Removed = keysOf(e.Removed)
	case cache.ValidationErrorsChanged:
		te.Entity = keyOf(e.Entity)
		te.Added = validationStrings(e.Added)
		te.Removed = validationStrings(e.Removed)
	}
	t.result.Trace = append(t.result.Trace, te)
}

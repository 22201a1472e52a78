package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/graphcache/internal/cache"
	"github.com/roach88/graphcache/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Subject  string       // Entity or table under test
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Subject != "" {
		fmt.Fprintf(&buf, " (%s)", e.Subject)
	}
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Kind, ev.Entity)
			if ev.Property != "" {
				fmt.Fprintf(&buf, ".%s", ev.Property)
			}
			if ev.Action != "" {
				fmt.Fprintf(&buf, " %s -> %s", ev.Action, ev.State)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// evaluateAssertions runs every assertion and returns failure messages.
// Empty if all pass.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a, result.Trace); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, trace []TraceEvent) error {
	fail := func(subject, expected, actual string) error {
		return &AssertionError{Type: a.Type, Subject: subject, Expected: expected, Actual: actual, Trace: trace}
	}

	switch a.Type {
	case AssertUnresolvedCount:
		if n := h.session.Unresolved().Len(); n != *a.Count {
			return fail("", fmt.Sprintf("%d unresolved references", *a.Count), fmt.Sprintf("%d", n))
		}
		return nil
	case AssertResidentCount:
		if n := h.session.Len(); n != *a.Count {
			return fail("", fmt.Sprintf("%d resident entities", *a.Count), fmt.Sprintf("%d", n))
		}
		return nil
	case AssertHasChanges:
		want := a.Expect.(bool)
		if got := h.session.HasChanges(); got != want {
			return fail("", fmt.Sprintf("has_changes=%t", want), fmt.Sprintf("has_changes=%t", got))
		}
		return nil
	case AssertEventCount:
		n := 0
		for _, ev := range trace {
			if ev.Kind == a.Kind {
				n++
			}
		}
		if n != *a.Count {
			return fail(a.Kind, fmt.Sprintf("%d events", *a.Count), fmt.Sprintf("%d", n))
		}
		return nil
	case AssertStoreRows:
		t, ok := h.reg.Type(a.Table)
		if !ok {
			return fmt.Errorf("unknown table %q", a.Table)
		}
		rows, err := h.store.QueryRows(ctx, cache.KeyQuery(t))
		if err != nil {
			return err
		}
		if len(rows) != *a.Count {
			return fail(a.Table, fmt.Sprintf("%d rows", *a.Count), fmt.Sprintf("%d rows: %v", len(rows), rows))
		}
		return nil
	}

	e, err := h.ref(a.Ref)
	if err != nil {
		return err
	}
	subject := a.Ref + " (" + e.String() + ")"

	switch a.Type {
	case AssertState:
		want := fmt.Sprint(a.Expect)
		if got := e.Aspect().State().String(); got != want {
			return fail(subject, want, got)
		}
	case AssertProperty:
		want, got, err := h.expectedValue(e, a.Property, a.Expect, e.Get(a.Property))
		if err != nil {
			return err
		}
		if !value.Equal(want, got) {
			return fail(subject+"."+a.Property, value.Format(want), value.Format(got))
		}
	case AssertOriginalValue:
		orig, ok := e.Aspect().OriginalValue(a.Property)
		if !ok {
			return fail(subject+"."+a.Property, fmt.Sprintf("original %v", a.Expect), "no original value recorded")
		}
		want, got, err := h.expectedValue(e, a.Property, a.Expect, orig)
		if err != nil {
			return err
		}
		if !value.Equal(want, got) {
			return fail(subject+"."+a.Property, value.Format(want), value.Format(got))
		}
	case AssertNav:
		got := keyOf(e.Navigation(a.Property))
		want := ""
		if a.Expect != nil {
			target, err := h.ref(fmt.Sprint(a.Expect))
			if err != nil {
				return err
			}
			want = keyOf(target)
		}
		if got != want {
			return fail(subject+"."+a.Property, orNone(want), orNone(got))
		}
	case AssertCollectionContains:
		target, err := h.ref(a.Target)
		if err != nil {
			return err
		}
		members := e.Collection(a.Property)
		if !slices.Contains(members, target) {
			return fail(subject+"."+a.Property, "contains "+target.String(), fmt.Sprint(keysOf(members)))
		}
	case AssertCollectionCount:
		if n := len(e.Collection(a.Property)); n != *a.Count {
			return fail(subject+"."+a.Property, fmt.Sprintf("%d members", *a.Count), fmt.Sprint(keysOf(e.Collection(a.Property))))
		}
	case AssertValidationErrors:
		errs := e.Aspect().ValidationErrors()
		if len(errs) != *a.Count {
			return fail(subject, fmt.Sprintf("%d validation errors", *a.Count), fmt.Sprint(validationStrings(errs)))
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// expectedValue coerces an assertion's raw expectation to the property's
// type so that 1 and 1.0 compare by the property's rules.
func (h *Harness) expectedValue(e *cache.Entity, name string, raw any, got value.Value) (value.Value, value.Value, error) {
	p, ok := e.Type().DataProperty(name)
	if !ok {
		return nil, nil, fmt.Errorf("%s has no data property %q", e.Type().Name, name)
	}
	want, err := value.Coerce(raw, p.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("expected value for %s: %w", name, err)
	}
	return want, got, nil
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

package cache

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/testutil"
)

var (
	_ Sequencer     = (*testutil.DeterministicClock)(nil)
	_ GuidGenerator = (*testutil.SequentialGuidGenerator)(nil)
)

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(testutil.NewDeterministicClock()),
		WithKeyGenerator(testutil.NewSequentialGuidGenerator()),
	}
	s, err := NewSession(testutil.ShopRegistry(t), append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func create(t *testing.T, s *Session, typeName string, values map[string]any) *Entity {
	t.Helper()
	e, err := s.CreateEntity(typeName, values)
	require.NoError(t, err)
	return e
}

// attachNew creates and attaches an entity, returning the resident one.
func attachNew(t *testing.T, s *Session, typeName string, values map[string]any, state EntityState) *Entity {
	t.Helper()
	e, err := s.Attach(create(t, s, typeName, values), state, Disallowed)
	require.NoError(t, err)
	return e
}

func key(t *testing.T, s *Session, typeName string, values ...any) EntityKey {
	t.Helper()
	k, err := s.Key(typeName, values...)
	require.NoError(t, err)
	return k
}

// recorder collects every event it observes.
type recorder struct {
	events []Event
}

func (r *recorder) Observe(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() { r.events = nil }

func record(s *Session) *recorder {
	r := &recorder{}
	s.Subscribe(r)
	return r
}

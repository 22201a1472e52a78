package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/value"
)

// memJournal records change sets in memory.
type memJournal struct {
	sets []ChangeSet
	err  error
}

func (j *memJournal) WriteChangeSet(_ context.Context, cs ChangeSet) (string, error) {
	if j.err != nil {
		return "", j.err
	}
	j.sets = append(j.sets, cs)
	return cs.ID()
}

func TestSaveBatch_CommitAppliesStoreKeys(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)
	o := create(t, s, "Order", map[string]any{"total": 12.5})
	require.NoError(t, c.AddTo("orders", o))
	line := attachNew(t, s, "OrderLine", map[string]any{"orderID": -1, "lineNo": 1, "product": "pen"}, Added)
	require.Same(t, o, line.Navigation("order"))

	batch, err := s.BeginSave()
	require.NoError(t, err)
	assert.Equal(t, []*Entity{o, line}, batch.Entities())

	j := &memJournal{}
	id, err := batch.Commit(context.Background(), j, KeyMapping{Temp: key(t, s, "Order", -1), Real: 500})
	require.NoError(t, err)
	assert.Len(t, id, 64)

	assert.Equal(t, value.Int(500), o.Get("id"))
	assert.False(t, o.Aspect().HasTemporaryKey())
	assert.Equal(t, value.Int(500), line.Get("orderID"), "the new key cascades")
	found, ok := s.FindByKey(key(t, s, "OrderLine", 500, 1))
	require.True(t, ok)
	assert.Same(t, line, found)
	assert.Same(t, o, line.Navigation("order"))

	for _, e := range []*Entity{o, line} {
		assert.Equal(t, Unchanged, e.Aspect().State())
		assert.False(t, e.Aspect().IsBeingSaved())
	}
	assert.False(t, s.HasChanges())

	require.Len(t, j.sets, 1)
	entries := j.sets[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "Order-500", entries[0].Key)
	assert.Equal(t, Added, entries[0].State)
	assert.Equal(t, "OrderLine-500:::1", entries[1].Key)

	_, err = batch.Commit(context.Background(), j)
	assert.Error(t, err, "a batch commits once")
}

func TestSaveBatch_CommitEvictsDeleted(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)
	require.NoError(t, s.Delete(c))

	batch, err := s.BeginSave()
	require.NoError(t, err)
	cs := batch.ChangeSet()
	require.Len(t, cs.Entries, 1)
	assert.Equal(t, Deleted, cs.Entries[0].State)

	_, err = batch.Commit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Detached, c.Aspect().State())
	assert.Equal(t, 0, s.Len())
}

func TestSaveBatch_ChangeSetCarriesOriginals(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Unchanged)
	require.NoError(t, c.Set("name", "Bea"))

	batch, err := s.BeginSave()
	require.NoError(t, err)
	cs := batch.ChangeSet()
	require.Len(t, cs.Entries, 1)
	assert.Equal(t, map[string]value.Value{"name": value.String("Ann")}, cs.Entries[0].Original)

	id1, err := cs.ID()
	require.NoError(t, err)
	id2, err := batch.ChangeSet().ID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "one batch always yields the same id")
	assert.Equal(t, batch.ID(), cs.Batch)
	batch.Abort()
}

func TestSaveBatch_RepeatedContentGetsDistinctIDs(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "a"}, Unchanged)
	j := &memJournal{}

	var ids []string
	for _, name := range []string{"b", "a", "b"} {
		require.NoError(t, c.Set("name", name))
		batch, err := s.BeginSave()
		require.NoError(t, err)
		id, err := batch.Commit(context.Background(), j)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Len(t, j.sets, 3)
	assert.Equal(t, j.sets[0].Entries, j.sets[2].Entries, "first and third saves carry the same changes")
	assert.NotEqual(t, ids[0], ids[2])
	assert.NotEqual(t, j.sets[0].Batch, j.sets[2].Batch)
}

func TestSaveBatch_RefusesInvalid(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": ""}, Added)

	_, err := s.BeginSave()
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidationFailed, ErrorCodeOf(err))
	assert.False(t, c.Aspect().IsBeingSaved())
	assert.True(t, c.Aspect().HasValidationErrors())

	s2 := newTestSession(t, WithValidation(ValidationOptions{}))
	c2 := attachNew(t, s2, "Customer", map[string]any{"id": 1, "name": ""}, Added)
	batch, err := s2.BeginSave()
	require.NoError(t, err, "save validation can be turned off")
	assert.Equal(t, []*Entity{c2}, batch.Entities())
}

func TestSaveBatch_BeginErrors(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Added)

	_, err := s.BeginSave(c)
	require.NoError(t, err)
	_, err = s.BeginSave(c)
	assert.True(t, IsIllegalStateTransition(err))

	stray := create(t, s, "Customer", map[string]any{"id": 2, "name": "Bob"})
	_, err = s.BeginSave(stray)
	assert.True(t, IsNotAttached(err))
}

func TestSaveBatch_JournalFailureKeepsChanges(t *testing.T) {
	s := newTestSession(t)
	c := attachNew(t, s, "Customer", map[string]any{"id": 1, "name": "Ann"}, Added)

	batch, err := s.BeginSave()
	require.NoError(t, err)
	boom := errors.New("disk full")
	_, err = batch.Commit(context.Background(), &memJournal{err: boom})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Added, c.Aspect().State())

	batch.Abort()
	assert.False(t, c.Aspect().IsBeingSaved())
}

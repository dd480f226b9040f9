package coherence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReorderSession_Commit(t *testing.T) {
	v := newTestView(t, &fakeSource{}, &fakeLoader{products: catalog()}, testOptions(true))
	require.NoError(t, v.Open(context.Background()))

	s := v.BeginReorder("All")
	assert.Equal(t, ReorderIdle, s.State())
	require.NoError(t, s.Apply([]string{"a", "3"}))
	assert.Equal(t, ReorderOptimistic, s.State())
	assert.Equal(t, []string{"a", "c", "b"}, slugs(v.Snapshot().Visible))

	state, err := s.Commit(context.Background(), func(context.Context) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, ReorderCommitted, state)
	assert.Equal(t, []string{"a", "c", "b"}, slugs(v.Snapshot().Visible))
	assert.EqualValues(t, 1, v.Reloads())

	_, err = s.Commit(context.Background(), func(context.Context) bool { return true })
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReorderSession_RollbackReloads(t *testing.T) {
	v := newTestView(t, &fakeSource{}, &fakeLoader{products: catalog()}, testOptions(true))
	require.NoError(t, v.Open(context.Background()))

	state, err := v.BeginReorder("All").Run(context.Background(), []string{"a"}, func(context.Context) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, ReorderRolledBack, state)
	assert.Equal(t, []string{"b", "c", "a"}, slugs(v.Snapshot().Visible))
	assert.EqualValues(t, 2, v.Reloads())
}

func TestReorderSession_OtherFilterSkipsLocalUpdate(t *testing.T) {
	v := newTestView(t, &fakeSource{}, &fakeLoader{products: catalog()}, testOptions(true))
	require.NoError(t, v.Open(context.Background()))

	s := v.BeginReorder("SEO")
	require.NoError(t, s.Apply([]string{"a"}))
	assert.Equal(t, []string{"b", "c", "a"}, slugs(v.Snapshot().Visible))
	assert.ErrorIs(t, s.Apply([]string{"a"}), ErrInvalidTransition)
}

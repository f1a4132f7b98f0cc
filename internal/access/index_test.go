package access

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/lab-access/internal/config"
	"github.com/kozaktomas/lab-access/internal/database"
)

func newIndexedFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := database.NewTemplateIndex("euclidean")
	require.NoError(t, err)
	return newFixture(t, func(o *Options) {
		o.Strategy = config.StrategyIndex
		o.Index = idx
	})
}

func TestIndex_Disabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.RebuildIndex(ctx, nil)
	require.ErrorIs(t, err, ErrIndexDisabled)
	_, err = f.engine.LoadIndex(ctx, filepath.Join(t.TempDir(), "idx"))
	require.ErrorIs(t, err, ErrIndexDisabled)
	require.ErrorIs(t, f.engine.SaveIndex(filepath.Join(t.TempDir(), "idx")), ErrIndexDisabled)
	assert.Zero(t, f.engine.IndexCount())
}

func TestRebuildIndex(t *testing.T) {
	f := newIndexedFixture(t)
	ctx := context.Background()

	for i := range 5 {
		f.templates.AddRecord(database.EnrollmentRecord{Identity: fmt.Sprintf("u%d", i), Vector: vec(float32(i))})
	}
	f.templates.AddRecord(database.EnrollmentRecord{Identity: "broken", Vector: []float32{1, 2, 3}})

	var reported []int
	n, err := f.engine.RebuildIndex(ctx, func(done int) { reported = append(reported, done) })
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, f.engine.IndexCount())
	assert.Equal(t, []int{5}, reported)
}

func TestSaveAndLoadIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.hnsw")
	ctx := context.Background()

	f := newIndexedFixture(t)
	for i := range 4 {
		_, err := f.engine.Enroll(ctx, fmt.Sprintf("u%d", i), vec(float32(i)), "")
		require.NoError(t, err)
	}
	require.NoError(t, f.engine.SaveIndex(path))

	restored := newIndexedFixture(t)
	for i := range 4 {
		restored.templates.AddRecord(database.EnrollmentRecord{Identity: fmt.Sprintf("u%d", i), Vector: vec(float32(i))})
	}
	loaded, err := restored.engine.LoadIndex(ctx, path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, 4, restored.engine.IndexCount())

	res, err := restored.engine.Identify(ctx, vec(2.1))
	require.NoError(t, err)
	assert.Equal(t, "u2", res.Identity)
}

func TestLoadIndex_StaleRebuilds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.hnsw")
	ctx := context.Background()

	f := newIndexedFixture(t)
	_, err := f.engine.Enroll(ctx, "u0", vec(0), "")
	require.NoError(t, err)
	require.NoError(t, f.engine.SaveIndex(path))

	f.templates.AddRecord(database.EnrollmentRecord{Identity: "u1", Vector: vec(1)})
	loaded, err := f.engine.LoadIndex(ctx, path)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 2, f.engine.IndexCount())
}

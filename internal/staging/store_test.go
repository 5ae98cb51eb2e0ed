// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package staging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/expert-engine/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndPendingWorks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	works := []types.Work{
		{ID: "w2", Title: "second", PublicationYear: 2021},
		{ID: "w1", Title: "first", PublicationYear: 2019, AuthorIDs: []string{"a1"}},
	}
	require.NoError(t, s.SaveWorks(ctx, works))

	pending, err := s.PendingWorks(ctx, 10)
	require.NoError(t, err)

	require.Len(t, pending, 2)
	assert.Equal(t, "w1", pending[0].ID)
	assert.Equal(t, []string{"a1"}, pending[0].AuthorIDs)
	assert.Equal(t, "w2", pending[1].ID)
}

func TestPendingWorksHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWorks(ctx, []types.Work{{ID: "w1"}, {ID: "w2"}, {ID: "w3"}}))

	pending, err := s.PendingWorks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestMarkIngested(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWorks(ctx, []types.Work{{ID: "w1"}, {ID: "w2"}}))
	require.NoError(t, s.MarkIngested(ctx, []string{"w1"}))

	pending, err := s.PendingWorks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "w2", pending[0].ID)

	sum, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Pending: 1, Ingested: 1}, sum)
}

func TestRecrawlResetsIngested(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWorks(ctx, []types.Work{{ID: "w1", Title: "old"}}))
	require.NoError(t, s.MarkIngested(ctx, []string{"w1"}))

	// A second crawl of the same work replaces it and makes it pending again.
	require.NoError(t, s.SaveWorks(ctx, []types.Work{{ID: "w1", Title: "new"}}))

	pending, err := s.PendingWorks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Title)
}

func TestSaveWorksRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveWorks(context.Background(), []types.Work{{Title: "no id"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without id")
}

func TestCursorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cursor, seen, err := s.Cursor(ctx, "i4210100000")
	require.NoError(t, err)
	assert.Empty(t, cursor)
	assert.Zero(t, seen)

	require.NoError(t, s.SaveCursor(ctx, "i4210100000", "IlsxNjA5MzcyODAwMDAwXSI=", 400))

	cursor, seen, err = s.Cursor(ctx, "i4210100000")
	require.NoError(t, err)
	assert.Equal(t, "IlsxNjA5MzcyODAwMDAwXSI=", cursor)
	assert.Equal(t, 400, seen)

	// Checkpoints overwrite.
	require.NoError(t, s.SaveCursor(ctx, "i4210100000", "next", 600))
	cursor, seen, err = s.Cursor(ctx, "i4210100000")
	require.NoError(t, err)
	assert.Equal(t, "next", cursor)
	assert.Equal(t, 600, seen)
}

func TestExportYAML(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWorks(ctx, []types.Work{
		{ID: "w1", Title: "Graph neural networks", PublicationYear: 2020},
	}))

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &buf))

	out := buf.String()
	assert.Contains(t, out, "id: w1")
	assert.Contains(t, out, "Graph neural networks")
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveWorks(ctx, []types.Work{{ID: "w1"}}))
	require.NoError(t, s.Close())

	s, err = NewStore(dir)
	require.NoError(t, err)
	defer s.Close()

	sum, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
}

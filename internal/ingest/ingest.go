// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest moves staged works into the vector database: each pending
// work is rendered to its embedding text, embedded in batches, and inserted
// into the works collection, then marked ingested so a rerun skips it.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/expert-engine/internal/vectordb"
	"github.com/pdiddy/expert-engine/pkg/types"
)

// Source is the staging surface the ingester drains.
type Source interface {
	PendingWorks(ctx context.Context, limit int) ([]types.Work, error)
	MarkIngested(ctx context.Context, ids []string) error
}

// DocEmbedder embeds document texts for indexing.
type DocEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Inserter inserts rows into a vector database collection.
type Inserter interface {
	Insert(ctx context.Context, collection string, rows []map[string]any) (int, error)
}

// Ingester drains the staging store into the vector database.
type Ingester struct {
	source     Source
	embedder   DocEmbedder
	db         Inserter
	collection string
	batchSize  int
}

// New returns an ingester writing to the given collection. batchSize bounds
// how many works move per staging read; the embedding provider batches its
// own requests below that.
func New(source Source, embedder DocEmbedder, db Inserter, collection string, batchSize int) *Ingester {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Ingester{
		source:     source,
		embedder:   embedder,
		db:         db,
		collection: collection,
		batchSize:  batchSize,
	}
}

// Summary holds counts from one ingest run.
type Summary struct {
	Works    int
	Inserted int
	Batches  int
}

// Run drains pending works until the staging store is empty. Works are only
// marked ingested after their batch was inserted, so a failed run leaves the
// unfinished batch pending.
func (i *Ingester) Run(ctx context.Context, w io.Writer) (Summary, error) {
	var summary Summary
	for {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		works, err := i.source.PendingWorks(ctx, i.batchSize)
		if err != nil {
			return summary, fmt.Errorf("reading staged works: %w", err)
		}
		if len(works) == 0 {
			break
		}

		texts := make([]string, len(works))
		for n, work := range works {
			texts[n] = work.EmbeddingText()
		}

		vectors, err := i.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return summary, fmt.Errorf("embedding batch: %w", err)
		}
		if len(vectors) != len(works) {
			return summary, fmt.Errorf("embedder returned %d vectors for %d works", len(vectors), len(works))
		}

		rows := make([]map[string]any, len(works))
		ids := make([]string, len(works))
		for n, work := range works {
			row, err := vectordb.WorkRow(work, vectors[n])
			if err != nil {
				return summary, err
			}
			rows[n] = row
			ids[n] = work.ID
		}

		inserted, err := i.db.Insert(ctx, i.collection, rows)
		if err != nil {
			return summary, fmt.Errorf("inserting batch: %w", err)
		}

		if err := i.source.MarkIngested(ctx, ids); err != nil {
			return summary, fmt.Errorf("marking works ingested: %w", err)
		}

		summary.Works += len(works)
		summary.Inserted += inserted
		summary.Batches++
		fmt.Fprintf(w, "ingested %d works\n", summary.Works)
	}

	fmt.Fprintf(w, "done: %d works in %d batches\n", summary.Works, summary.Batches)
	return summary, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/expert-engine/internal/embedding"
	"github.com/pdiddy/expert-engine/internal/ingest"
	"github.com/pdiddy/expert-engine/internal/staging"
	"github.com/pdiddy/expert-engine/internal/vectordb"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed staged works and insert them into the vector database",
	Long: `Ingest drains the staging database: each pending work is rendered to its
embedding text, embedded in batches, and inserted into the works collection.
Works are marked ingested only after their batch lands, so a failed run can
simply be re-run.`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	collection, _ := cmd.Flags().GetString("collection")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	store, err := staging.NewStore(cfg.Crawl.StagingDir)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return err
	}
	db := vectordb.NewClient(cfg.Milvus, cfg.Search.MaxRetries)

	sum, err := ingest.New(store, embedder, db, collection, batchSize).
		Run(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if sum.Works == 0 {
		fmt.Println("Nothing to ingest.")
	}
	return nil
}

func init() {
	ingestCmd.Flags().String("collection", "works", "target collection")
	ingestCmd.Flags().Int("batch-size", 500, "works per staging batch")

	rootCmd.AddCommand(ingestCmd)
}

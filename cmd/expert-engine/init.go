// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/expert-engine/internal/vectordb"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the vector database collections",
	Long: `Init creates the works collection in Milvus with the configured vector
dimension and index, and loads it for search. An existing collection is left
alone unless --wipe is given, which drops and recreates it.

With --write-config, init instead writes the effective configuration to
expert-engine.yaml as a starting point.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	if writeConfig, _ := cmd.Flags().GetBool("write-config"); writeConfig {
		// Credentials belong in .secrets/, never in the config file.
		cfg.Milvus.Token = ""
		cfg.Embedding.APIKey = ""
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		if err := os.WriteFile("expert-engine.yaml", data, 0o644); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		fmt.Println("Wrote expert-engine.yaml")
		return nil
	}

	collection, _ := cmd.Flags().GetString("collection")
	wipe, _ := cmd.Flags().GetBool("wipe")

	ctx := context.Background()
	db := vectordb.NewClient(cfg.Milvus, cfg.Search.MaxRetries)

	exists, err := db.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		if !wipe {
			fmt.Printf("Collection %s already exists (use --wipe to recreate)\n", collection)
			return nil
		}
		if err := db.DropCollection(ctx, collection); err != nil {
			return err
		}
		fmt.Printf("Dropped collection %s\n", collection)
	}

	req := vectordb.WorkCollectionRequest(collection, cfg.Index, cfg.Embedding.Dimensions)
	if err := db.CreateCollection(ctx, req); err != nil {
		return err
	}
	fmt.Printf("Created collection %s (dim=%d, metric=%s)\n",
		collection, cfg.Embedding.Dimensions, cfg.Index.MetricType)
	return nil
}

func init() {
	initCmd.Flags().String("collection", "works", "collection name to create")
	initCmd.Flags().Bool("wipe", false, "drop and recreate the collection if it exists")
	initCmd.Flags().Bool("write-config", false, "write the effective config to expert-engine.yaml and exit")

	rootCmd.AddCommand(initCmd)
}

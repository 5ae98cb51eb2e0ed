// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/expert-engine/internal/staging"
)

var stagingCmd = &cobra.Command{
	Use:   "staging",
	Short: "Inspect the crawl staging database",
}

var stagingStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many works are staged, pending, and ingested",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStaging()
		if err != nil {
			return err
		}
		defer store.Close()

		sum, err := store.Counts(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("total:    %d\npending:  %d\ningested: %d\n", sum.Total, sum.Pending, sum.Ingested)
		return nil
	},
}

var stagingExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump all staged works as YAML to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStaging()
		if err != nil {
			return err
		}
		defer store.Close()

		return store.ExportYAML(context.Background(), os.Stdout)
	},
}

func openStaging() (*staging.Store, error) {
	cfg := pipelineConfig()
	return staging.NewStore(cfg.Crawl.StagingDir)
}

func init() {
	stagingCmd.AddCommand(stagingStatusCmd)
	stagingCmd.AddCommand(stagingExportCmd)
	rootCmd.AddCommand(stagingCmd)
}

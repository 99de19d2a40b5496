package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/lakeside-io/lakeside/cmd/lakeside/internal/env"
	"github.com/lakeside-io/lakeside/pkg/compactor"
	"github.com/lakeside-io/lakeside/pkg/coordinator"
	"github.com/lakeside-io/lakeside/pkg/schema"
	"github.com/lakeside-io/lakeside/pkg/txlog"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report orphaned staging objects without deleting them",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return env.Bind(cmd)
	},
	RunE: runReconcile,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete orphaned staging objects reported by reconcile",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return env.Bind(cmd)
	},
	RunE: runCleanup,
}

func init() {
	for _, c := range []*cobra.Command{reconcileCmd, cleanupCmd} {
		c.Flags().String("backend", "memory", "Object store backend: memory or s3")
		c.Flags().String("bucket", "", "S3 bucket name (required when backend=s3)")
	}
}

func operatorCompactor(cmd *cobra.Command) (*compactor.Compactor, error) {
	backend, _ := cmd.Flags().GetString("backend")
	bucket, _ := cmd.Flags().GetString("bucket")

	store, err := buildStore(cmd.Context(), backend, bucket)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	sm := schema.New(store, 0)
	// One-shot CLI invocation: the coordinator actor goroutine is left
	// running until process exit rather than closed, since Reconcile and
	// Cleanup only need the object store, not the coordinator itself.
	coord := coordinator.New(store, clock, 0, coordinator.DefaultName)
	txl := txlog.New(store, 0)
	return compactor.New(store, sm, coord, txl, clock), nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	c, err := operatorCompactor(cmd)
	if err != nil {
		return err
	}

	report, err := c.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("parquet files:   %d\n", len(report.ParquetFiles))
	fmt.Printf("orphaned files:  %d\n", report.OrphanCount)
	for _, f := range report.OrphanedJSONFiles {
		fmt.Printf("  orphan: %s\n", f)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	c, err := operatorCompactor(cmd)
	if err != nil {
		return err
	}

	result, err := c.Cleanup(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("deleted: %d\n", result.DeletedCount)
	for _, f := range result.DeletedFiles {
		fmt.Printf("  deleted: %s\n", f)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/lakeside-io/lakeside/cmd/lakeside/internal/env"
	"github.com/lakeside-io/lakeside/pkg/api"
	"github.com/lakeside-io/lakeside/pkg/compactor"
	"github.com/lakeside-io/lakeside/pkg/coordinator"
	"github.com/lakeside-io/lakeside/pkg/gateway"
	"github.com/lakeside-io/lakeside/pkg/log"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/reconciler"
	"github.com/lakeside-io/lakeside/pkg/schema"
	"github.com/lakeside-io/lakeside/pkg/txlog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compaction service and ingestion gateway HTTP servers",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return env.Bind(cmd)
	},
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("bind-addr", ":8080", "HTTP bind address")
	serveCmd.Flags().String("backend", "memory", "Object store backend: memory or s3")
	serveCmd.Flags().String("bucket", "", "S3 bucket name (required when backend=s3)")
	serveCmd.Flags().Duration("stale-after", coordinator.DefaultStaleAfter, "Coordinator stale-lock expiry")
	serveCmd.Flags().Duration("reconcile-interval", 5*time.Minute, "Background orphan-reconcile interval")
	serveCmd.Flags().Bool("gateway", true, "Serve the ingestion gateway routes alongside the compaction service")
	serveCmd.Flags().String("sentry-dsn", "", "Sentry DSN; initializes the Sentry client (disabled if empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	backend, _ := cmd.Flags().GetString("backend")
	bucket, _ := cmd.Flags().GetString("bucket")
	staleAfter, _ := cmd.Flags().GetDuration("stale-after")
	reconcileInterval, _ := cmd.Flags().GetDuration("reconcile-interval")
	withGateway, _ := cmd.Flags().GetBool("gateway")
	sentryDSN, _ := cmd.Flags().GetString("sentry-dsn")

	logger := log.WithComponent("serve")

	if sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN}); err != nil {
			return fmt.Errorf("serve: sentry init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	store, err := buildStore(cmd.Context(), backend, bucket)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	sm := schema.New(store, 0)
	coord := coordinator.New(store, clock, staleAfter, coordinator.DefaultName)
	defer coord.Close()
	txl := txlog.New(store, 0)
	c := compactor.New(store, sm, coord, txl, clock)

	var gw *gateway.Gateway
	if withGateway {
		gw = gateway.New(store, sm, clock)
	}

	rec := reconciler.New(c, reconcileInterval)
	rec.Start()
	defer rec.Stop()

	server := api.NewServer(c, gw)
	logger.Info().Str("backend", backend).Str("addr", bindAddr).Msg("starting lakeside")
	return server.ListenAndServe(bindAddr)
}

func buildStore(ctx context.Context, backend, bucket string) (objectstore.Store, error) {
	switch backend {
	case "memory":
		return objectstore.NewMemStore(), nil
	case "s3":
		if bucket == "" {
			return nil, fmt.Errorf("serve: --bucket is required for backend=s3")
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("serve: load AWS config: %w", err)
		}
		client := s3.NewFromConfig(cfg)
		return objectstore.NewS3Store(client, bucket), nil
	default:
		return nil, fmt.Errorf("serve: unknown backend %q (want memory or s3)", backend)
	}
}

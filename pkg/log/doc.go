/*
Package log provides structured logging for Lakeside using zerolog.

The log package wraps zerolog to give every component (coordinator, txlog,
compactor, reconciler, api) a structured logger with consistent
component/partition/version fields, so a single compaction run can be
traced across its log lines by grepping one field.

# Levels

Debug marks routine no-op outcomes (a reconcile sweep that finds no
orphans). Info marks process lifecycle events (server listening,
reconciler started and stopped). Warn marks recoverable anomalies:
stale-lock recovery, forced lock release, CAS append retries,
publish/reclaim deferrals, unreadable log entries. Error marks failed
compaction requests and failed reconcile sweeps.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("compactor")
	logger.Info().Int("version", 4).Int("partitions", 3).Msg("compaction committed")

	plogger := log.WithPartition("order_ts_hour=2025-11-23T19")
	plogger.Warn().Err(err).Msg("partition read failed")
*/
package log

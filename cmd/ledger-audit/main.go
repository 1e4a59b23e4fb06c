// Package main 离线对账工具：比对每个账户的余额与流水合计，发现不一致时以非零状态退出
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/infrastructure/persistence/postgres"
	"ai-tutor-api/pkg/logger"
)

func main() {
	batchSize := flag.Int("batch-size", 0, "accounts per query (overrides audit.batch_size)")
	concurrency := flag.Int("concurrency", 0, "parallel batch queries (overrides audit.concurrency)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	if *batchSize > 0 {
		cfg.Audit.BatchSize = *batchSize
	}
	if *concurrency > 0 {
		cfg.Audit.Concurrency = *concurrency
	}

	auditor := metering.NewAuditor(postgres.NewAuditRepository(pgClient), cfg.Audit.BatchSize, cfg.Audit.Concurrency)
	report, err := auditor.Run(ctx)
	if err != nil {
		logger.Fatal(ctx, "ledger audit failed", err)
	}

	logger.Info(ctx, "ledger audit finished",
		"accounts_checked", report.AccountsChecked,
		"drifted_accounts", len(report.Drifts),
	)
	if !report.Consistent() {
		os.Exit(2)
	}
}

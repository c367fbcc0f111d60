package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/canopy-network/tokenscope/app/ledgercli"
	"github.com/canopy-network/tokenscope/app/query"
	"github.com/canopy-network/tokenscope/app/query/types"
	"github.com/canopy-network/tokenscope/pkg/config"
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	"github.com/canopy-network/tokenscope/pkg/db/clickhouse"
	"github.com/canopy-network/tokenscope/pkg/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger, err := logging.New("tokenscope-ledger")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	chainDb, err := chain.New(ctx, logger, cfg.IndexerDB, clickhouse.GetPoolConfigForComponent("ledger_cli"))
	if err != nil {
		return fmt.Errorf("connect indexer database: %w", err)
	}
	defer func() { _ = chainDb.Close() }()

	// one-shot process: always replay, never share ledgers
	app := &types.App{Config: cfg, ChainDB: chainDb, Logger: logger}
	if err := query.Wire(app); err != nil {
		return err
	}
	defer app.Pool.StopAndWait()

	logger.Debug("Ledger CLI ready", zap.String("db", chainDb.DatabaseName()))

	return ledgercli.Run(ctx, app.Holders, app.History, os.Stdout, os.Args)
}

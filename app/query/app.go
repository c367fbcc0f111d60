package query

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/app/query/types"
	"github.com/canopy-network/tokenscope/pkg/batch"
	"github.com/canopy-network/tokenscope/pkg/config"
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	"github.com/canopy-network/tokenscope/pkg/db/clickhouse"
	"github.com/canopy-network/tokenscope/pkg/history"
	"github.com/canopy-network/tokenscope/pkg/ledger"
	"github.com/canopy-network/tokenscope/pkg/logging"
	"github.com/canopy-network/tokenscope/pkg/redis"
	"github.com/canopy-network/tokenscope/pkg/rpc"
	"github.com/canopy-network/tokenscope/pkg/telemetry"
	"go.uber.org/zap"
)

// ServiceName tags logs, spans and metrics emitted by the query service.
const ServiceName = "tokenscope-query"

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New(ServiceName)
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	shutdown, err := telemetry.Init(ctx, ServiceName)
	if err != nil {
		logger.Fatal("Unable to initialize telemetry", zap.Error(err))
	}

	chainDb, err := chain.New(ctx, logger, cfg.IndexerDB, clickhouse.GetPoolConfigForComponent("query"))
	if err != nil {
		logger.Fatal("Unable to initialize indexer database", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.LedgerStore == config.LedgerStoreRedis {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - ledgers will be cached in process memory",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for the shared ledger cache")
		}
	} else {
		logger.Info("Ledgers will be cached in process memory")
	}

	app := &types.App{
		Config:      cfg,
		ChainDB:     chainDb,
		RedisClient: redisClient,
		Logger:      logger,
		Shutdown:    shutdown,
	}

	if err := Wire(app); err != nil {
		logger.Fatal("Unable to initialize services", zap.Error(err))
	}

	endpoints, _ := cfg.RPCEndpoints()
	if len(endpoints) > 0 {
		registry, err := rpc.DialRegistry(ctx, logger, app.Pool, endpoints, cfg.UpstreamTimeout)
		if err != nil {
			logger.Fatal("Unable to initialize token metadata RPC", zap.Error(err))
		}
		app.Metadata = registry
	} else {
		logger.Info("No RPC endpoints configured - token symbol and decimals will not be served")
	}

	return app
}

// Wire builds the worker pool and the history and holder services on top of app.ChainDB.
// app.RedisClient selects the ledger store; nil keeps ledgers in memory.
func Wire(app *types.App) error {
	cfg := app.Config

	allowlist, err := cfg.Allowlist()
	if err != nil {
		return err
	}

	// two scans per request share the pool with the batch chunks
	app.Pool = pond.NewPool(cfg.FetchConcurrency * 4)
	fetcher := batch.NewFetcher(app.Pool, cfg.BatchSize)

	app.History = history.NewService(app.Logger, app.ChainDB, app.Pool, fetcher, cfg.UpstreamTimeout)

	var store ledger.Store = ledger.NewMemoryStore()
	if app.RedisClient != nil {
		store = ledger.NewRedisStore(app.RedisClient)
	}

	builder := ledger.NewBuilder(app.Logger, app.ChainDB,
		ledger.WithExcludeZeroAddress(cfg.LedgerExcludeZeroAddress),
		ledger.WithBuildTimeout(cfg.UpstreamTimeout),
	)
	cache := ledger.NewCache(app.Logger, store, builder, ledger.Policy{MaxAge: cfg.LedgerMaxAge}, nil)
	app.Holders = ledger.NewService(cache, ledger.Allowlist(allowlist))

	return nil
}

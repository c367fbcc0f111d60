package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/pkg/config"
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	"github.com/canopy-network/tokenscope/pkg/history"
	"github.com/canopy-network/tokenscope/pkg/ledger"
	"github.com/canopy-network/tokenscope/pkg/redis"
	"github.com/canopy-network/tokenscope/pkg/rpc"
	"github.com/canopy-network/tokenscope/pkg/telemetry"
	"go.uber.org/zap"
)

// MetadataSource resolves ERC-20 symbol and decimals. Nil when no RPC endpoint is configured.
type MetadataSource interface {
	Supports(chainID uint64) bool
	TokenMetadata(ctx context.Context, chainID uint64, token string) (rpc.TokenMetadata, error)
}

type App struct {
	Config *config.Query
	// ChainDB reads the indexed txs/transfer/blocks tables.
	ChainDB chain.Store
	// RedisClient backs the shared ledger store; nil with LEDGER_STORE=memory.
	RedisClient *redis.Client
	// Pool bounds upstream concurrency across all requests.
	Pool pond.Pool

	History  *history.Service
	Holders  *ledger.Service
	Metadata MetadataSource

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server

	Shutdown telemetry.ShutdownFunc
}

// Start serves until ctx is cancelled, then drains in-flight requests and releases upstream connections.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Pool != nil {
		a.Pool.StopAndWait()
	}

	if closer, ok := a.Metadata.(interface{ Close() }); ok {
		closer.Close()
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if a.ChainDB != nil {
		if err := a.ChainDB.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if a.Shutdown != nil {
		if err := a.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("Failed to flush telemetry", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

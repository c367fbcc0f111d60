// Package rpc reads ERC-20 token metadata from chain JSON-RPC endpoints.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// TokenMetadata is the immutable descriptive data of an ERC-20 token.
type TokenMetadata struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TokenReader reads symbol() and decimals() of a token on one chain.
type TokenReader interface {
	Symbol(ctx context.Context, token string) (string, error)
	Decimals(ctx context.Context, token string) (uint8, error)
}

// Registry routes metadata reads to the reader of each chain and memoizes the answers.
// Metadata never changes for a deployed token, so successful reads are kept forever.
type Registry struct {
	logger  *zap.Logger
	readers map[uint64]TokenReader
	closers []func()
	pool    pond.Pool
	cache   *xsync.Map[string, TokenMetadata]
	timeout time.Duration
}

// NewRegistry builds a registry from ready readers. Reads run on pool.
func NewRegistry(logger *zap.Logger, pool pond.Pool, readers map[uint64]TokenReader, timeout time.Duration) *Registry {
	return &Registry{
		logger:  logger.Named("rpc.metadata"),
		readers: readers,
		pool:    pool,
		cache:   xsync.NewMap[string, TokenMetadata](),
		timeout: timeout,
	}
}

// DialRegistry dials one ERC20Client per chain.
func DialRegistry(ctx context.Context, logger *zap.Logger, pool pond.Pool, endpoints map[uint64][]string, timeout time.Duration) (*Registry, error) {
	r := NewRegistry(logger, pool, make(map[uint64]TokenReader, len(endpoints)), timeout)
	for chainID, urls := range endpoints {
		client, err := DialERC20(ctx, Opts{Endpoints: urls, Timeout: timeout})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("chain %d: %w", chainID, err)
		}
		r.readers[chainID] = client
		r.closers = append(r.closers, client.Close)
		r.logger.Info("Token metadata RPC configured",
			zap.Uint64("chainId", chainID),
			zap.Int("endpoints", len(urls)))
	}
	return r, nil
}

// Close releases every dialed client.
func (r *Registry) Close() {
	for _, c := range r.closers {
		c()
	}
}

// Supports reports whether chainID has a metadata reader.
func (r *Registry) Supports(chainID uint64) bool {
	_, ok := r.readers[chainID]
	return ok
}

// TokenMetadata returns symbol and decimals of token, reading both concurrently on a cache miss.
func (r *Registry) TokenMetadata(ctx context.Context, chainID uint64, token string) (TokenMetadata, error) {
	key := fmt.Sprintf("%d:%s", chainID, token)
	if md, ok := r.cache.Load(key); ok {
		return md, nil
	}

	reader, ok := r.readers[chainID]
	if !ok {
		return TokenMetadata{}, errs.NotFound("no rpc endpoint configured for chain %d", chainID)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var md TokenMetadata
	group := r.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	group.SubmitErr(func() error {
		s, err := reader.Symbol(groupCtx, token)
		md.Symbol = s
		return err
	})
	group.SubmitErr(func() error {
		d, err := reader.Decimals(groupCtx, token)
		md.Decimals = d
		return err
	})

	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		return TokenMetadata{}, errs.Upstream("read token metadata", err)
	}

	r.cache.Store(key, md)
	return md, nil
}

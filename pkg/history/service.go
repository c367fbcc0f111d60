// Package history serves an account's unified transaction history: direct transactions
// merged with the transactions implied by ERC-20 Transfer logs touching the account.
package history

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/pkg/batch"
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/canopy-network/tokenscope/pkg/telemetry"
	"github.com/canopy-network/tokenscope/pkg/utils"
	"github.com/canopy-network/tokenscope/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Service merges the two upstream sources of account activity.
type Service struct {
	logger  *zap.Logger
	store   chain.Store
	pool    pond.Pool
	fetcher *batch.Fetcher
	timeout time.Duration
}

// NewService builds a Service. timeout bounds the whole upstream work of one request; zero disables it.
func NewService(logger *zap.Logger, store chain.Store, pool pond.Pool, fetcher *batch.Fetcher, timeout time.Duration) *Service {
	return &Service{
		logger:  logger.Named("history"),
		store:   store,
		pool:    pool,
		fetcher: fetcher,
		timeout: timeout,
	}
}

// normalize applies defaults and clamps, then validates what is left.
func (q Query) normalize() (Query, error) {
	q.Address = utils.NormalizeHex(q.Address)
	if q.Direction == "" {
		q.Direction = chain.DirectionAll
	}
	if q.Order == "" {
		q.Order = chain.SortOrderDesc
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if err := validator.Validate(q); err != nil {
		return q, err
	}
	return q, nil
}

// ListAccountTransactions returns one page of the merged history of q.Address.
//
// Both sources are scanned for offset+limit+1 rows so a further distinct transaction,
// if any exists within that window, sets HasMore. Transactions seen only through
// Transfer logs are resolved by hash in bounded batches. The result has no duplicate hashes.
func (s *Service) ListAccountTransactions(ctx context.Context, q Query) (page Page, err error) {
	q, err = q.normalize()
	if err != nil {
		return Page{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "history.ListAccountTransactions")
	defer func() { telemetry.EndSpan(span, err) }()
	span.SetAttributes(
		attribute.Int64("chain.id", int64(q.ChainID)),
		attribute.String("account", q.Address),
		attribute.String("direction", string(q.Direction)),
	)

	fetchSize := q.Offset + q.Limit + 1
	filter := chain.AccountFilter{
		ChainID:   q.ChainID,
		Address:   q.Address,
		Direction: q.Direction,
		Order:     q.Order,
		Limit:     fetchSize,
	}

	direct, refs, err := s.scan(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	byHash := make(map[string]*indexermodels.Transaction, len(direct)+len(refs))
	for i := range direct {
		byHash[direct[i].Hash] = &direct[i]
	}

	implied := make([]string, 0, len(refs))
	for _, ref := range refs {
		implied = append(implied, ref.TxHash)
	}

	known := func(hash string) bool {
		_, ok := byHash[hash]
		return ok
	}

	resolved, err := batch.Fetch(ctx, s.fetcher, implied, known,
		func(tx indexermodels.Transaction) string { return tx.Hash },
		func(ctx context.Context, hashes []string) ([]indexermodels.Transaction, error) {
			return s.store.GetTransactionsByHash(ctx, q.ChainID, hashes)
		},
	)
	if err != nil {
		return Page{}, upstream(ctx, "resolve transfer transactions", err)
	}
	for i := range resolved {
		byHash[resolved[i].Hash] = &resolved[i]
	}

	if missing := len(batch.Pending(implied, known)); missing > 0 {
		s.logger.Debug("Transfer logs reference unindexed transactions",
			zap.Uint64("chainId", q.ChainID),
			zap.String("address", q.Address),
			zap.Int("missing", missing))
	}

	merged := make([]*indexermodels.Transaction, 0, len(byHash))
	for _, tx := range byHash {
		merged = append(merged, tx)
	}
	sortTransactions(merged, q.Order)

	window, hasMore := paginate(merged, q.Offset, q.Limit)

	out := make([]*RPCTransaction, 0, len(window))
	for _, tx := range window {
		rpcTx, err := toRPCTransaction(tx)
		if err != nil {
			s.logger.Error("Refusing to serve inconsistent transaction",
				zap.Uint64("chainId", q.ChainID),
				zap.String("hash", tx.Hash),
				zap.Error(err))
			return Page{}, err
		}
		out = append(out, rpcTx)
	}

	nextOffset := q.Offset + len(out)
	total := nextOffset
	if hasMore {
		total = nextOffset + 1
	}

	span.SetAttributes(attribute.Int("transactions", len(out)), attribute.Bool("has_more", hasMore))

	return Page{
		Transactions: out,
		Total:        total,
		Offset:       q.Offset,
		Limit:        q.Limit,
		HasMore:      hasMore,
	}, nil
}

// scan runs the direct and transfer-implied scans concurrently. Both must succeed.
func (s *Service) scan(ctx context.Context, filter chain.AccountFilter) ([]indexermodels.Transaction, []indexermodels.TransferRef, error) {
	var (
		direct []indexermodels.Transaction
		refs   []indexermodels.TransferRef
	)

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.SubmitErr(func() error {
		rows, err := s.store.QueryAccountTransactions(groupCtx, filter)
		if err != nil {
			return upstream(groupCtx, "scan account transactions", err)
		}
		direct = rows
		return nil
	})
	group.SubmitErr(func() error {
		rows, err := s.store.QueryAccountTransferRefs(groupCtx, filter)
		if err != nil {
			return upstream(groupCtx, "scan account transfers", err)
		}
		refs = rows
		return nil
	})

	err := group.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, nil, upstream(ctx, "scan account activity", err)
	}

	return direct, refs, nil
}

// upstream tags err as an upstream failure unless it is already classified.
// An expired deadline on ctx is joined in so callers can tell timeouts apart.
func upstream(ctx context.Context, op string, err error) error {
	if errors.Is(err, errs.ErrValidation) || errors.Is(err, errs.ErrIntegrity) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(err, ctxErr)
	}
	return errs.Upstream(op, err)
}

// sortTransactions orders by (block number, hash), both ascending or both descending.
func sortTransactions(txs []*indexermodels.Transaction, order chain.SortOrder) {
	sort.Slice(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.BlockNumber != b.BlockNumber {
			if order == chain.SortOrderAsc {
				return a.BlockNumber < b.BlockNumber
			}
			return a.BlockNumber > b.BlockNumber
		}
		if order == chain.SortOrderAsc {
			return a.Hash < b.Hash
		}
		return a.Hash > b.Hash
	})
}

// paginate returns items[offset:offset+limit] and whether anything follows it.
func paginate[T any](items []T, offset, limit int) ([]T, bool) {
	if offset >= len(items) {
		return items[:0], false
	}
	end := min(offset+limit, len(items))
	return items[offset:end], len(items) > offset+limit
}

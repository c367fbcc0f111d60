package chain

import (
	"context"

	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
)

// Store describes the read-only scans the query services issue against the indexed chain tables.
// Every method is a single filtered/sorted/limited scan; no joins or aggregation happen upstream.
type Store interface {
	DatabaseName() string

	// --- Account activity

	// QueryAccountTransactions returns txs rows whose from/to match the filter address.
	QueryAccountTransactions(ctx context.Context, filter AccountFilter) ([]indexermodels.Transaction, error)
	// QueryAccountTransferRefs returns distinct (tx_hash, block_num) pairs of Transfer logs touching the address.
	QueryAccountTransferRefs(ctx context.Context, filter AccountFilter) ([]indexermodels.TransferRef, error)
	// GetTransactionsByHash resolves txs rows by hash. Unknown hashes are silently absent.
	GetTransactionsByHash(ctx context.Context, chainID uint64, hashes []string) ([]indexermodels.Transaction, error)

	// --- Token ledger

	// ScanTokenTransfers streams every Transfer log of a token in (block_num, log_idx) order.
	ScanTokenTransfers(ctx context.Context, chainID uint64, token string, fn func(*indexermodels.Transfer) error) error

	// --- Blocks

	LatestBlock(ctx context.Context, chainID uint64) (uint64, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*DB)(nil)

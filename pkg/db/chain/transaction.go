package chain

import (
	"context"
	"fmt"

	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
)

// buildAccountTransactionsQuery selects txs rows touching the filter address, ordered by (block_num, hash).
func (db *DB) buildAccountTransactionsQuery(f AccountFilter) (string, []any) {
	clause, addrArgs := f.addressClause()

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE "chain" = ? AND %s
		%s
		LIMIT ?
	`, indexermodels.ColumnsToSelectSQL(indexermodels.TxColumns), db.table(indexermodels.TxsTableName), clause, f.orderClause("hash"))

	args := make([]any, 0, len(addrArgs)+2)
	args = append(args, f.ChainID)
	args = append(args, addrArgs...)
	args = append(args, f.Limit)
	return query, args
}

// QueryAccountTransactions returns up to filter.Limit direct transactions of an address.
func (db *DB) QueryAccountTransactions(ctx context.Context, filter AccountFilter) ([]indexermodels.Transaction, error) {
	query, args := db.buildAccountTransactionsQuery(filter)

	var rows []indexermodels.Transaction
	if err := db.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query account transactions failed: %w", err)
	}

	return rows, nil
}

// buildTransactionsByHashQuery selects txs rows for an explicit list of hashes.
// The IN list is expanded to one placeholder per hash.
func (db *DB) buildTransactionsByHashQuery(chainID uint64, hashes []string) (string, []any) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE "chain" = ? AND "hash" IN (%s)
	`, indexermodels.ColumnsToSelectSQL(indexermodels.TxColumns), db.table(indexermodels.TxsTableName), placeholders(len(hashes)))

	args := make([]any, 0, len(hashes)+1)
	args = append(args, chainID)
	for _, h := range hashes {
		args = append(args, h)
	}
	return query, args
}

// GetTransactionsByHash resolves one chunk of hashes. Callers bound the chunk size.
func (db *DB) GetTransactionsByHash(ctx context.Context, chainID uint64, hashes []string) ([]indexermodels.Transaction, error) {
	if len(hashes) == 0 {
		return []indexermodels.Transaction{}, nil
	}

	query, args := db.buildTransactionsByHashQuery(chainID, hashes)

	rows := make([]indexermodels.Transaction, 0, len(hashes))
	if err := db.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query transactions by hash failed: %w", err)
	}

	return rows, nil
}

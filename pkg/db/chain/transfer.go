package chain

import (
	"context"
	"fmt"

	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
)

// buildAccountTransferRefsQuery selects the distinct transactions implied by Transfer logs touching the address.
func (db *DB) buildAccountTransferRefsQuery(f AccountFilter) (string, []any) {
	clause, addrArgs := f.addressClause()

	query := fmt.Sprintf(`
		SELECT DISTINCT "tx_hash", "block_num"
		FROM %s
		WHERE "chain" = ? AND "topic0" = ? AND %s
		%s
		LIMIT ?
	`, db.table(indexermodels.TransfersTableName), clause, f.orderClause("tx_hash"))

	args := make([]any, 0, len(addrArgs)+3)
	args = append(args, f.ChainID, indexermodels.TransferTopic)
	args = append(args, addrArgs...)
	args = append(args, f.Limit)
	return query, args
}

// QueryAccountTransferRefs returns up to filter.Limit transfer-implied transaction references.
func (db *DB) QueryAccountTransferRefs(ctx context.Context, filter AccountFilter) ([]indexermodels.TransferRef, error) {
	query, args := db.buildAccountTransferRefsQuery(filter)

	var rows []indexermodels.TransferRef
	if err := db.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query transfer refs failed: %w", err)
	}

	return rows, nil
}

// buildTokenTransfersQuery selects the full transfer history of a token in replay order.
func (db *DB) buildTokenTransfersQuery(chainID uint64, token string) (string, []any) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE "chain" = ? AND "address" = ? AND "topic0" = ?
		ORDER BY "block_num" ASC, "log_idx" ASC
	`, indexermodels.ColumnsToSelectSQL(indexermodels.TransferColumns), db.table(indexermodels.TransfersTableName))

	return query, []any{chainID, token, indexermodels.TransferTopic}
}

// ScanTokenTransfers streams the whole history of a token into fn, one row at a time,
// so a replay never holds more than one decoded event in memory.
// Returning an error from fn stops the scan and is returned unchanged.
func (db *DB) ScanTokenTransfers(ctx context.Context, chainID uint64, token string, fn func(*indexermodels.Transfer) error) error {
	query, args := db.buildTokenTransfersQuery(chainID, token)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query token transfers of %s: %w", token, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var t indexermodels.Transfer
		if err := rows.Scan(
			&t.Token,
			&t.From,
			&t.To,
			&t.Amount,
			&t.TxHash,
			&t.BlockNumber,
			&t.LogIndex,
			&t.Timestamp,
			&t.Topic0,
			&t.ChainID,
		); err != nil {
			return fmt.Errorf("scan transfer row: %w", err)
		}
		if err := fn(&t); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate transfer rows: %w", err)
	}

	return nil
}

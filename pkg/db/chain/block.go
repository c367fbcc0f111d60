package chain

import (
	"context"
	"fmt"

	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
)

// LatestBlock returns the highest indexed block of a chain, or 0 when none is indexed yet.
func (db *DB) LatestBlock(ctx context.Context, chainID uint64) (uint64, error) {
	query := fmt.Sprintf(`SELECT max("num") FROM %s WHERE "chain" = ?`, db.table(indexermodels.BlocksTableName))

	var height uint64
	if err := db.QueryRow(ctx, query, chainID).Scan(&height); err != nil {
		return 0, fmt.Errorf("query latest block of chain %d: %w", chainID, err)
	}

	return height, nil
}

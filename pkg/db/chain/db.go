package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/tokenscope/pkg/db/clickhouse"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
	"go.uber.org/zap"
)

// DB reads the indexed txs, transfer and blocks tables of every chain from one ClickHouse database.
// Rows of different chains are told apart by their "chain" column.
// It implements Store.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to the indexer database with the given pool configuration.
func New(ctx context.Context, logger *zap.Logger, dbName string, poolConfig *clickhouse.PoolConfig) (*DB, error) {
	name := clickhouse.SanitizeName(dbName)

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	return &DB{Client: client, Name: name}, nil
}

// NewWithSharedClient wraps an existing ClickHouse connection pool.
func NewWithSharedClient(client clickhouse.Client, dbName string) *DB {
	return &DB{
		Client: client,
		Name:   clickhouse.SanitizeName(dbName),
	}
}

// DatabaseName returns the ClickHouse database holding the indexed tables.
func (db *DB) DatabaseName() string {
	return db.Name
}

// table returns the fully qualified, quoted table name.
func (db *DB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, db.Name, name)
}

// InitializeDB creates the upstream tables when they are missing.
// The indexing service owns these tables in production; this exists for local
// development and the integration tests.
func (db *DB) InitializeDB(ctx context.Context) error {
	start := time.Now()

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	tables := []struct {
		name    string
		columns []indexermodels.ColumnDef
		orderBy string
	}{
		{indexermodels.TxsTableName, indexermodels.TxColumns, `("chain", "block_num", "hash")`},
		{indexermodels.TransfersTableName, indexermodels.TransferColumns, `("chain", "address", "block_num", "log_idx", "tx_hash")`},
		{indexermodels.BlocksTableName, indexermodels.BlockColumns, `("chain", "num")`},
	}

	for _, t := range tables {
		query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = ReplacingMergeTree
		ORDER BY %s
	`, db.table(t.name), indexermodels.ColumnsToSchemaSQL(t.columns), t.orderBy)
		if err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}

	db.Logger.Info("Indexer schema ready",
		zap.String("database", db.Name),
		zap.Duration("duration", time.Since(start)))

	return nil
}

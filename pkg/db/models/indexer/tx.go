package indexer

import (
	"math/big"
)

const TxsTableName = "txs"

// TxColumns defines the upstream txs table. Scan order in pkg/db/chain follows this slice.
var TxColumns = []ColumnDef{
	{Name: "hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_num", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "from", Type: "String", Codec: "ZSTD(1)"},
	{Name: "to", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "value", Type: "UInt256"},
	{Name: "input", Type: "String", Codec: "ZSTD(3)"},
	{Name: "nonce", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "gas", Type: "UInt64", Codec: "ZSTD(1)"},
	{Name: "gas_price", Type: "UInt256"},
	{Name: "type", Type: "UInt8"},
	{Name: "chain", Type: "UInt64"},
}

// Transaction is one row of the txs table. Rows are immutable once indexed.
// From is empty when the upstream row is missing its sender, which the
// history service treats as an integrity anomaly.
type Transaction struct {
	Hash        string   `ch:"hash" json:"hash"`
	BlockNumber uint64   `ch:"block_num" json:"blockNumber"`
	From        string   `ch:"from" json:"from"`
	To          *string  `ch:"to" json:"to"` // nil on contract creation
	Value       *big.Int `ch:"value" json:"value"`
	Input       string   `ch:"input" json:"input"`
	Nonce       uint64   `ch:"nonce" json:"nonce"`
	Gas         uint64   `ch:"gas" json:"gas"`
	GasPrice    *big.Int `ch:"gas_price" json:"gasPrice"`
	Type        uint8    `ch:"type" json:"type"`
	ChainID     uint64   `ch:"chain" json:"chainId"`
}

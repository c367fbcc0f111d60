package indexer

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const TransfersTableName = "transfer"

// TransferEventSignature is the ERC-20 event the transfer table is decoded against.
const TransferEventSignature = "Transfer(address,address,uint256)"

var (
	// TransferTopic is keccak256(TransferEventSignature), stored in topic0 for matching rows.
	TransferTopic = crypto.Keccak256Hash([]byte(TransferEventSignature)).Hex()

	// ZeroAddress is the mint source and burn sink, lowercase like every indexed address.
	ZeroAddress = "0x" + common.Bytes2Hex(common.Address{}.Bytes())
)

// TransferColumns defines the upstream transfer table.
var TransferColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "from", Type: "String", Codec: "ZSTD(1)"},
	{Name: "to", Type: "String", Codec: "ZSTD(1)"},
	{Name: "tokens", Type: "UInt256"},
	{Name: "tx_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_num", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "log_idx", Type: "UInt32"},
	{Name: "block_timestamp", Type: "DateTime64(3)", Codec: "DoubleDelta, LZ4"},
	{Name: "topic0", Type: "LowCardinality(String)"},
	{Name: "chain", Type: "UInt64"},
}

// Transfer is one decoded ERC-20 Transfer log. Identity is (TxHash, LogIndex) within a chain.
type Transfer struct {
	Token       string    `ch:"address" json:"address"`
	From        string    `ch:"from" json:"from"`
	To          string    `ch:"to" json:"to"`
	Amount      *big.Int  `ch:"tokens" json:"amount"`
	TxHash      string    `ch:"tx_hash" json:"txHash"`
	BlockNumber uint64    `ch:"block_num" json:"blockNumber"`
	LogIndex    uint32    `ch:"log_idx" json:"logIndex"`
	Timestamp   time.Time `ch:"block_timestamp" json:"timestamp"`
	Topic0      string    `ch:"topic0" json:"-"`
	ChainID     uint64    `ch:"chain" json:"chainId"`
}

// TransferRef is the distinct (tx_hash, block_num) projection of transfers touching an address.
type TransferRef struct {
	TxHash      string `ch:"tx_hash" json:"txHash"`
	BlockNumber uint64 `ch:"block_num" json:"blockNumber"`
}

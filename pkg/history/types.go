package history

import (
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxOffset bounds how deep a page may start. Both sources are scanned up to offset+limit+1 rows.
const MaxOffset = 100_000

// Query selects one page of an account's unified transaction history.
type Query struct {
	ChainID   uint64
	Address   string          `validate:"required,eth_addr"`
	Offset    int             `validate:"max=100000"` // negative values are treated as 0
	Limit     int             `validate:"max=1000"` // values below 1 are treated as 1
	Direction chain.Direction `validate:"oneof=sent received all"`
	Order     chain.SortOrder `validate:"oneof=asc desc"`
}

// Page is one window of the merged, deduplicated history.
type Page struct {
	Transactions []*RPCTransaction `json:"transactions"`
	Total        int               `json:"total"`
	Offset       int               `json:"offset"`
	Limit        int               `json:"limit"`
	HasMore      bool              `json:"hasMore"`
}

// RPCTransaction mirrors the eth_getTransactionByHash result shape.
// Quantities are 0x-prefixed hex; V, R and S are zero because signatures are not indexed.
type RPCTransaction struct {
	Hash        common.Hash     `json:"hash"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Value       *hexutil.Big    `json:"value"`
	Input       hexutil.Bytes   `json:"input"`
	Nonce       hexutil.Uint64  `json:"nonce"`
	Gas         hexutil.Uint64  `json:"gas"`
	GasPrice    *hexutil.Big    `json:"gasPrice"`
	Type        hexutil.Uint64  `json:"type"`
	ChainID     *hexutil.Big    `json:"chainId"`
	V           *hexutil.Big    `json:"v"`
	R           *hexutil.Big    `json:"r"`
	S           *hexutil.Big    `json:"s"`
}

package history

import (
	"math/big"
	"strings"

	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// toRPCTransaction converts an indexed row to the JSON-RPC shape.
// A row without a sender is an upstream integrity violation and fails the request.
func toRPCTransaction(tx *indexermodels.Transaction) (*RPCTransaction, error) {
	if tx.From == "" {
		return nil, errs.Integrity("transaction %s has no sender", tx.Hash)
	}

	out := &RPCTransaction{
		Hash:        common.HexToHash(tx.Hash),
		BlockNumber: bigQuantity(new(big.Int).SetUint64(tx.BlockNumber)),
		From:        common.HexToAddress(tx.From),
		Value:       bigQuantity(tx.Value),
		Nonce:       hexutil.Uint64(tx.Nonce),
		Gas:         hexutil.Uint64(tx.Gas),
		GasPrice:    bigQuantity(tx.GasPrice),
		Type:        hexutil.Uint64(tx.Type),
		ChainID:     bigQuantity(new(big.Int).SetUint64(tx.ChainID)),
		V:           bigQuantity(nil),
		R:           bigQuantity(nil),
		S:           bigQuantity(nil),
	}

	if tx.To != nil && *tx.To != "" {
		to := common.HexToAddress(*tx.To)
		out.To = &to
	}

	input, err := decodeInput(tx.Input)
	if err != nil {
		return nil, errs.Integrity("transaction %s has malformed input: %v", tx.Hash, err)
	}
	out.Input = input

	return out, nil
}

// bigQuantity copies v into a hex quantity, treating nil as zero.
func bigQuantity(v *big.Int) *hexutil.Big {
	if v == nil {
		return (*hexutil.Big)(new(big.Int))
	}
	return (*hexutil.Big)(new(big.Int).Set(v))
}

func decodeInput(s string) (hexutil.Bytes, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return hexutil.Bytes{}, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// Package ledger reconstructs token holder balances by replaying a token's full Transfer history,
// caches the result per (chain, token), and serves paginated holder slices.
package ledger

import (
	"fmt"
	"math/big"
	"time"
)

// Holder is one address with a strictly positive balance.
type Holder struct {
	Address string   `json:"address"`
	Balance *big.Int `json:"balance"`
}

// Ledger is the balance table of one token at ComputedAt.
// Holders is sorted by balance descending, ties by address ascending, and
// TotalSupply always equals the sum of the holder balances.
type Ledger struct {
	ChainID     uint64    `json:"chainId"`
	Token       string    `json:"token"`
	Holders     []Holder  `json:"holders"`
	TotalSupply *big.Int  `json:"totalSupply"`
	Events      int       `json:"events"`
	ComputedAt  time.Time `json:"computedAt"`
}

// Key identifies a cached ledger.
type Key struct {
	ChainID uint64
	Token   string
}

// String renders the key as "<chainID>:<token>".
func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.ChainID, k.Token)
}

// Clock returns the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

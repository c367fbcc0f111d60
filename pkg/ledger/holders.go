package ledger

import (
	"context"
	"math/big"

	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/canopy-network/tokenscope/pkg/utils"
	"github.com/canopy-network/tokenscope/pkg/validator"
	"github.com/shopspring/decimal"
)

// MaxHolderLimit is the largest holder page a caller may request.
const MaxHolderLimit = 1000

// HolderQuery selects one page of a token's holders.
type HolderQuery struct {
	ChainID uint64
	Token   string `validate:"required,eth_addr"`
	Offset  int    `validate:"min=0"`
	Limit   int    `validate:"min=1,max=1000"`
}

// HolderView is one holder as served: balance as a decimal string, percentage to two decimals.
type HolderView struct {
	Address    string  `json:"address"`
	Balance    string  `json:"balance"`
	Percentage float64 `json:"percentage"`
}

// HolderPage is one window of a ledger.
type HolderPage struct {
	Holders     []HolderView `json:"holders"`
	Total       int          `json:"total"`
	TotalSupply string       `json:"totalSupply"`
	Offset      int          `json:"offset"`
	Limit       int          `json:"limit"`
}

// Allowlist restricts the served tokens per chain. A nil Allowlist serves every token.
type Allowlist map[uint64]map[string]struct{}

// Allows reports whether token on chainID may be served.
func (a Allowlist) Allows(chainID uint64, token string) bool {
	if a == nil {
		return true
	}
	_, ok := a[chainID][token]
	return ok
}

// Service serves holder pages from the ledger cache.
type Service struct {
	cache     *Cache
	allowlist Allowlist
}

// NewService returns a Service reading through cache. Tokens outside allowlist are reported
// as not found before any upstream work, which keeps the never-evicting cache bounded.
func NewService(cache *Cache, allowlist Allowlist) *Service {
	return &Service{cache: cache, allowlist: allowlist}
}

// Ledger returns the cached ledger for a token, rebuilding it when stale.
func (s *Service) Ledger(ctx context.Context, chainID uint64, token string) (*Ledger, error) {
	token = utils.NormalizeHex(token)
	if !s.allowlist.Allows(chainID, token) {
		return nil, errs.NotFound("token %s is not served on chain %d", token, chainID)
	}
	return s.cache.Get(ctx, chainID, token)
}

// ListHolders returns holders [offset, offset+limit) of the token ledger.
// Total is the exact number of holders.
func (s *Service) ListHolders(ctx context.Context, q HolderQuery) (HolderPage, error) {
	q.Token = utils.NormalizeHex(q.Token)
	if err := validator.Validate(q); err != nil {
		return HolderPage{}, err
	}

	l, err := s.Ledger(ctx, q.ChainID, q.Token)
	if err != nil {
		return HolderPage{}, err
	}

	return Page(l, q.Offset, q.Limit), nil
}

// Page slices l without further validation.
func Page(l *Ledger, offset, limit int) HolderPage {
	page := HolderPage{
		Holders:     []HolderView{},
		Total:       len(l.Holders),
		TotalSupply: l.TotalSupply.String(),
		Offset:      offset,
		Limit:       limit,
	}
	if offset >= len(l.Holders) {
		return page
	}

	end := min(offset+limit, len(l.Holders))
	page.Holders = make([]HolderView, 0, end-offset)
	for _, h := range l.Holders[offset:end] {
		page.Holders = append(page.Holders, HolderView{
			Address:    h.Address,
			Balance:    h.Balance.String(),
			Percentage: Percentage(h.Balance, l.TotalSupply),
		})
	}
	return page
}

var basisPoints = big.NewInt(10_000)

// Percentage returns floor(balance*10000/total)/100, or 0 when total is not positive.
// The division happens on integers so very large balances keep two exact decimals.
func Percentage(balance, total *big.Int) float64 {
	if total == nil || total.Sign() <= 0 || balance == nil {
		return 0
	}
	scaled := new(big.Int).Mul(balance, basisPoints)
	scaled.Quo(scaled, total)
	return decimal.NewFromBigInt(scaled, -2).InexactFloat64()
}

package ledger

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/canopy-network/tokenscope/pkg/db/chain"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/canopy-network/tokenscope/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Accumulator folds Transfer events into signed per-address balances.
// It is the single place balance arithmetic happens, so an incremental ledger can feed it
// only the events after a checkpoint instead of the whole history.
type Accumulator struct {
	balances map[string]*big.Int
	events   int
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{balances: make(map[string]*big.Int)}
}

// Apply debits the sender, unless it is the zero address, and credits the receiver.
// The zero address is credited like any other receiver, so burns accumulate on it.
func (a *Accumulator) Apply(t *indexermodels.Transfer) {
	a.events++
	if t.Amount == nil {
		return
	}
	if t.From != indexermodels.ZeroAddress {
		a.balance(t.From).Sub(a.balance(t.From), t.Amount)
	}
	a.balance(t.To).Add(a.balance(t.To), t.Amount)
}

func (a *Accumulator) balance(addr string) *big.Int {
	b, ok := a.balances[addr]
	if !ok {
		b = new(big.Int)
		a.balances[addr] = b
	}
	return b
}

// Events returns how many transfers were applied.
func (a *Accumulator) Events() int {
	return a.events
}

// Balance returns a copy of the signed balance of addr.
func (a *Accumulator) Balance(addr string) *big.Int {
	if b, ok := a.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Holders returns the positive balances in ledger order and their sum.
// When excludeZero is set the zero address is dropped before summing.
func (a *Accumulator) Holders(excludeZero bool) ([]Holder, *big.Int) {
	holders := make([]Holder, 0, len(a.balances))
	total := new(big.Int)
	for addr, bal := range a.balances {
		if bal.Sign() <= 0 {
			continue
		}
		if excludeZero && addr == indexermodels.ZeroAddress {
			continue
		}
		holders = append(holders, Holder{Address: addr, Balance: new(big.Int).Set(bal)})
		total.Add(total, bal)
	}
	sortHolders(holders)
	return holders, total
}

// sortHolders orders by balance descending, then address ascending.
func sortHolders(holders []Holder) {
	slices.SortFunc(holders, func(a, b Holder) int {
		if c := b.Balance.Cmp(a.Balance); c != 0 {
			return c
		}
		return strings.Compare(a.Address, b.Address)
	})
}

// Builder replays a token's Transfer history from the upstream index.
type Builder struct {
	logger      *zap.Logger
	store       chain.Store
	excludeZero bool
	timeout     time.Duration
	now         Clock
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithExcludeZeroAddress drops the zero address from built ledgers.
func WithExcludeZeroAddress(exclude bool) BuilderOption {
	return func(b *Builder) { b.excludeZero = exclude }
}

// WithBuildTimeout bounds one replay. Zero leaves the caller's deadline alone.
func WithBuildTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) { b.timeout = d }
}

// WithBuilderClock sets the clock stamping ComputedAt.
func WithBuilderClock(now Clock) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder returns a Builder reading from store.
func NewBuilder(logger *zap.Logger, store chain.Store, opts ...BuilderOption) *Builder {
	b := &Builder{
		logger: logger.Named("ledger.builder"),
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build replays every Transfer of token on chainID into a fresh Ledger.
// Cost is linear in the number of events; memory is linear in distinct addresses.
func (b *Builder) Build(ctx context.Context, chainID uint64, token string) (l *Ledger, err error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "ledger.Build")
	defer func() { telemetry.EndSpan(span, err) }()
	span.SetAttributes(attribute.Int64("chain.id", int64(chainID)), attribute.String("token", token))

	start := time.Now()
	acc := NewAccumulator()

	err = b.store.ScanTokenTransfers(ctx, chainID, token, func(t *indexermodels.Transfer) error {
		acc.Apply(t)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errs.Upstream("replay token transfers", errors.Join(err, ctxErr))
		}
		return nil, errs.Upstream("replay token transfers", err)
	}

	holders, total := acc.Holders(b.excludeZero)
	span.SetAttributes(attribute.Int("events", acc.Events()), attribute.Int("holders", len(holders)))

	b.logger.Debug("Ledger rebuilt",
		zap.Uint64("chainId", chainID),
		zap.String("token", token),
		zap.Int("events", acc.Events()),
		zap.Int("holders", len(holders)),
		zap.Duration("duration", time.Since(start)))

	return &Ledger{
		ChainID:     chainID,
		Token:       token,
		Holders:     holders,
		TotalSupply: total,
		Events:      acc.Events(),
		ComputedAt:  b.now(),
	}, nil
}

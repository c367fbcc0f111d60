package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/canopy-network/tokenscope/pkg/redis"
	"github.com/go-jose/go-jose/v4/json"
)

// RedisStore shares ledgers between query replicas. Keys never expire; staleness is
// decided by the cache policy from ComputedAt, so a stale entry stays available as a fallback.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a store writing under client's key prefix.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(key Key) string {
	return s.client.Key("ledger", strconv.FormatUint(key.ChainID, 10), key.Token)
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Ledger, bool, error) {
	raw, ok, err := s.client.GetBytes(ctx, s.key(key))
	if err != nil || !ok {
		return nil, false, err
	}

	l, err := decodeLedger(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode ledger %s: %w", key, err)
	}
	return l, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, l *Ledger) error {
	raw, err := encodeLedger(l)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", key, err)
	}
	return s.client.SetBytes(ctx, s.key(key), raw, 0)
}

// storedHolder keeps balances as decimal strings so no JSON decoder can round them.
type storedHolder struct {
	Address string `json:"a"`
	Balance string `json:"b"`
}

type storedLedger struct {
	ChainID     uint64         `json:"chainId"`
	Token       string         `json:"token"`
	Holders     []storedHolder `json:"holders"`
	TotalSupply string         `json:"totalSupply"`
	Events      int            `json:"events"`
	ComputedAt  int64          `json:"computedAt"` // unix nanoseconds
}

func encodeLedger(l *Ledger) ([]byte, error) {
	out := storedLedger{
		ChainID:     l.ChainID,
		Token:       l.Token,
		Holders:     make([]storedHolder, len(l.Holders)),
		TotalSupply: l.TotalSupply.String(),
		Events:      l.Events,
		ComputedAt:  l.ComputedAt.UnixNano(),
	}
	for i, h := range l.Holders {
		out.Holders[i] = storedHolder{Address: h.Address, Balance: h.Balance.String()}
	}
	return json.Marshal(out)
}

func decodeLedger(raw []byte) (*Ledger, error) {
	var in storedLedger
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	total, ok := new(big.Int).SetString(in.TotalSupply, 10)
	if !ok {
		return nil, fmt.Errorf("invalid total supply %q", in.TotalSupply)
	}

	l := &Ledger{
		ChainID:     in.ChainID,
		Token:       in.Token,
		Holders:     make([]Holder, len(in.Holders)),
		TotalSupply: total,
		Events:      in.Events,
		ComputedAt:  time.Unix(0, in.ComputedAt),
	}
	for i, h := range in.Holders {
		bal, ok := new(big.Int).SetString(h.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("invalid balance %q for %s", h.Balance, h.Address)
		}
		l.Holders[i] = Holder{Address: h.Address, Balance: bal}
	}
	return l, nil
}

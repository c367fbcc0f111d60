// Package config loads the query service settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/canopy-network/tokenscope/pkg/utils"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable, e.g. TOKENSCOPE_UPSTREAM_TIMEOUT.
const Prefix = "TOKENSCOPE"

const (
	LedgerStoreMemory = "memory"
	LedgerStoreRedis  = "redis"
)

// Query holds the settings of the query service and the ledger CLI.
type Query struct {
	IndexerDB        string        `envconfig:"INDEXER_DB" default:"tokenscope"`
	UpstreamTimeout  time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	BatchSize        int           `envconfig:"BATCH_SIZE" default:"500"`
	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"4"`

	LedgerMaxAge             time.Duration `envconfig:"LEDGER_MAX_AGE" default:"60s"`
	LedgerStore              string        `envconfig:"LEDGER_STORE" default:"memory"`
	LedgerExcludeZeroAddress bool          `envconfig:"LEDGER_EXCLUDE_ZERO_ADDRESS" default:"false"`

	// TokenAllowlist entries look like "1:0xa0b8...". Empty means every token is served.
	TokenAllowlist []string `envconfig:"TOKEN_ALLOWLIST"`
	// RPCURLs entries look like "1=https://rpc.example". Repeating a chain adds failover
	// endpoints. Used only for token metadata.
	RPCURLs []string `envconfig:"RPC_URLS"`
}

// Load reads the Query settings and validates them.
func Load() (*Query, error) {
	var cfg Query
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (q *Query) validate() error {
	if q.BatchSize < 1 {
		return fmt.Errorf("invalid %s_BATCH_SIZE %d", Prefix, q.BatchSize)
	}
	if q.FetchConcurrency < 1 {
		return fmt.Errorf("invalid %s_FETCH_CONCURRENCY %d", Prefix, q.FetchConcurrency)
	}
	switch q.LedgerStore {
	case LedgerStoreMemory, LedgerStoreRedis:
	default:
		return fmt.Errorf("invalid %s_LEDGER_STORE %q, must be 'memory' or 'redis'", Prefix, q.LedgerStore)
	}
	if _, err := q.Allowlist(); err != nil {
		return err
	}
	if _, err := q.RPCEndpoints(); err != nil {
		return err
	}
	return nil
}

// Allowlist parses TokenAllowlist into chain id → set of lowercase token addresses.
// A nil map means no restriction.
func (q *Query) Allowlist() (map[uint64]map[string]struct{}, error) {
	if len(q.TokenAllowlist) == 0 {
		return nil, nil
	}
	out := make(map[uint64]map[string]struct{})
	for _, entry := range q.TokenAllowlist {
		chainStr, token, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || token == "" {
			return nil, fmt.Errorf("invalid allowlist entry %q, expected chain:address", entry)
		}
		chainID, err := strconv.ParseUint(chainStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist chain in %q: %w", entry, err)
		}
		if out[chainID] == nil {
			out[chainID] = make(map[string]struct{})
		}
		out[chainID][utils.NormalizeHex(token)] = struct{}{}
	}
	return out, nil
}

// RPCEndpoints parses RPCURLs into chain id → endpoints, in configuration order.
func (q *Query) RPCEndpoints() (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(q.RPCURLs))
	for _, entry := range q.RPCURLs {
		chainStr, url, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid rpc entry %q, expected chain=url", entry)
		}
		chainID, err := strconv.ParseUint(chainStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rpc chain in %q: %w", entry, err)
		}
		out[chainID] = append(out[chainID], url)
	}
	return out, nil
}

package controller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/app/query/types"
	"github.com/canopy-network/tokenscope/pkg/batch"
	"github.com/canopy-network/tokenscope/pkg/config"
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
	"github.com/canopy-network/tokenscope/pkg/history"
	"github.com/canopy-network/tokenscope/pkg/ledger"
	"github.com/canopy-network/tokenscope/pkg/rpc"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
	carol = "0x00000000000000000000000000000000000000c4"
	token = "0x00000000000000000000000000000000000000c3"
)

// stubStore answers the direct scan and the token scan; transfer refs are always empty.
type stubStore struct {
	chain.Store

	txs       []indexermodels.Transaction
	transfers []indexermodels.Transfer
	latest    uint64
	err       error
	pingErr   error
}

func (s *stubStore) QueryAccountTransactions(_ context.Context, f chain.AccountFilter) ([]indexermodels.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []indexermodels.Transaction
	for _, tx := range s.txs {
		if tx.ChainID == f.ChainID && tx.From == f.Address {
			out = append(out, tx)
		}
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *stubStore) QueryAccountTransferRefs(context.Context, chain.AccountFilter) ([]indexermodels.TransferRef, error) {
	return nil, s.err
}

func (s *stubStore) GetTransactionsByHash(context.Context, uint64, []string) ([]indexermodels.Transaction, error) {
	return nil, s.err
}

func (s *stubStore) ScanTokenTransfers(_ context.Context, chainID uint64, tok string, fn func(*indexermodels.Transfer) error) error {
	if s.err != nil {
		return s.err
	}
	for i := range s.transfers {
		if s.transfers[i].ChainID == chainID && s.transfers[i].Token == tok {
			if err := fn(&s.transfers[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *stubStore) LatestBlock(context.Context, uint64) (uint64, error) {
	return s.latest, s.err
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

type stubMetadata struct {
	meta rpc.TokenMetadata
	err  error
}

func (m *stubMetadata) Supports(chainID uint64) bool { return chainID == 1 }

func (m *stubMetadata) TokenMetadata(context.Context, uint64, string) (rpc.TokenMetadata, error) {
	return m.meta, m.err
}

func mint(to string, amount int64) indexermodels.Transfer {
	return indexermodels.Transfer{
		Token:   token,
		From:    indexermodels.ZeroAddress,
		To:      to,
		Amount:  big.NewInt(amount),
		ChainID: 1,
	}
}

func sent(n int, block uint64) indexermodels.Transaction {
	to := bob
	return indexermodels.Transaction{
		Hash:        fmt.Sprintf("0x%064x", n),
		BlockNumber: block,
		From:        alice,
		To:          &to,
		Value:       big.NewInt(1),
		Input:       "0x",
		ChainID:     1,
	}
}

func newTestRouter(t *testing.T, store *stubStore, allowlist ledger.Allowlist) (http.Handler, *types.App) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)

	builder := ledger.NewBuilder(logger, store)
	cache := ledger.NewCache(logger, ledger.NewMemoryStore(), builder, ledger.Policy{}, nil)

	app := &types.App{
		Config:  &config.Query{UpstreamTimeout: time.Second},
		ChainDB: store,
		Pool:    pool,
		History: history.NewService(logger, store, pool, batch.NewFetcher(pool, 10), time.Second),
		Holders: ledger.NewService(cache, allowlist),
		Logger:  logger,
	}

	router, err := NewController(app).NewRouter()
	require.NoError(t, err)
	return WithCORS(router), app
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHandleAccountTransactions(t *testing.T) {
	store := &stubStore{txs: []indexermodels.Transaction{sent(1, 10), sent(2, 11)}}
	h, _ := newTestRouter(t, store, nil)

	rec, body := get(t, h, "/chains/1/accounts/"+alice+"/transactions?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
	assert.Equal(t, true, body["hasMore"])
	assert.EqualValues(t, 1, body["limit"])

	txs, ok := body["transactions"].([]interface{})
	require.True(t, ok)
	require.Len(t, txs, 1)
	first := txs[0].(map[string]interface{})
	assert.Equal(t, "0xb", first["blockNumber"], "newest first by default")
	assert.Equal(t, alice, first["from"])
}

func TestHandleAccountTransactionsEmpty(t *testing.T) {
	h, _ := newTestRouter(t, &stubStore{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chains/1/accounts/"+bob+"/transactions?offset=0&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"transactions":[],"total":0,"offset":0,"limit":1,"hasMore":false,"error":null}`,
		rec.Body.String())
}

func TestHandleAccountTransactionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		store  *stubStore
		path   string
		status int
		msg    string
	}{
		{
			name:   "bad chain id",
			store:  &stubStore{},
			path:   "/chains/eth/accounts/" + alice + "/transactions",
			status: http.StatusBadRequest,
			msg:    "invalid chain id",
		},
		{
			name:   "bad limit syntax",
			store:  &stubStore{},
			path:   "/chains/1/accounts/" + alice + "/transactions?limit=ten",
			status: http.StatusBadRequest,
			msg:    "invalid limit",
		},
		{
			name:   "limit above maximum",
			store:  &stubStore{},
			path:   "/chains/1/accounts/" + alice + "/transactions?limit=1001",
			status: http.StatusBadRequest,
			msg:    "validation",
		},
		{
			name:   "offset above maximum",
			store:  &stubStore{},
			path:   "/chains/1/accounts/" + alice + "/transactions?offset=1099511627776",
			status: http.StatusBadRequest,
			msg:    "validation",
		},
		{
			name:   "bad direction",
			store:  &stubStore{},
			path:   "/chains/1/accounts/" + alice + "/transactions?direction=sideways",
			status: http.StatusBadRequest,
			msg:    "validation",
		},
		{
			name:   "bad address",
			store:  &stubStore{},
			path:   "/chains/1/accounts/0x1234/transactions",
			status: http.StatusBadRequest,
			msg:    "validation",
		},
		{
			name:   "upstream failure",
			store:  &stubStore{err: errors.New("connection reset")},
			path:   "/chains/1/accounts/" + alice + "/transactions",
			status: http.StatusBadGateway,
			msg:    "upstream error",
		},
		{
			name:   "upstream timeout",
			store:  &stubStore{err: context.DeadlineExceeded},
			path:   "/chains/1/accounts/" + alice + "/transactions",
			status: http.StatusGatewayTimeout,
			msg:    "upstream timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.store, nil)
			rec, body := get(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, body["error"], tt.msg)
		})
	}
}

func TestHandleTokenHolders(t *testing.T) {
	store := &stubStore{transfers: []indexermodels.Transfer{mint(alice, 100), mint(bob, 200), mint(carol, 300)}}
	h, _ := newTestRouter(t, store, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chains/1/tokens/"+token+"/holders?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"holders": [
			{"address": "`+carol+`", "balance": "300", "percentage": 50},
			{"address": "`+bob+`", "balance": "200", "percentage": 33.33}
		],
		"total": 3,
		"totalSupply": "600",
		"offset": 0,
		"limit": 2
	}`, rec.Body.String())

	rec, body := get(t, h, "/chains/1/tokens/"+token+"/holders?offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	holders := body["holders"].([]interface{})
	require.Len(t, holders, 1)
	assert.Equal(t, 16.66, holders[0].(map[string]interface{})["percentage"])
}

func TestHandleTokenHoldersErrors(t *testing.T) {
	allow := ledger.Allowlist{1: {token: {}}}
	other := "0x00000000000000000000000000000000000000ff"

	tests := []struct {
		name   string
		store  *stubStore
		path   string
		status int
	}{
		{"limit zero", &stubStore{}, "/chains/1/tokens/" + token + "/holders?limit=0", http.StatusBadRequest},
		{"limit above maximum", &stubStore{}, "/chains/1/tokens/" + token + "/holders?limit=1001", http.StatusBadRequest},
		{"negative offset", &stubStore{}, "/chains/1/tokens/" + token + "/holders?offset=-1", http.StatusBadRequest},
		{"not allowed", &stubStore{}, "/chains/1/tokens/" + other + "/holders", http.StatusNotFound},
		{"other chain", &stubStore{}, "/chains/5/tokens/" + token + "/holders", http.StatusNotFound},
		{"upstream failure", &stubStore{err: errors.New("boom")}, "/chains/1/tokens/" + token + "/holders", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.store, allow)
			rec, body := get(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleToken(t *testing.T) {
	store := &stubStore{transfers: []indexermodels.Transfer{mint(alice, 100), mint(bob, 200)}}

	t.Run("with metadata", func(t *testing.T) {
		h, app := newTestRouter(t, store, nil)
		app.Metadata = &stubMetadata{meta: rpc.TokenMetadata{Symbol: "USDC", Decimals: 6}}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chains/1/tokens/"+token, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"address":"`+token+`","symbol":"USDC","decimals":6,"holders":2,"totalSupply":"300"}`,
			rec.Body.String())
	})

	t.Run("metadata failure leaves nulls", func(t *testing.T) {
		h, app := newTestRouter(t, store, nil)
		app.Metadata = &stubMetadata{err: errors.New("rpc down")}

		rec, body := get(t, h, "/chains/1/tokens/"+token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, body["symbol"])
		assert.Nil(t, body["decimals"])
		assert.EqualValues(t, 2, body["holders"])
	})

	t.Run("no metadata source", func(t *testing.T) {
		h, _ := newTestRouter(t, store, nil)
		rec, body := get(t, h, "/chains/1/tokens/"+token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, body["symbol"])
		assert.Equal(t, "300", body["totalSupply"])
	})

	t.Run("invalid address", func(t *testing.T) {
		h, _ := newTestRouter(t, store, nil)
		rec, _ := get(t, h, "/chains/1/tokens/not-an-address")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleChainStatus(t *testing.T) {
	h, _ := newTestRouter(t, &stubStore{latest: 42}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chains/1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chainId":1,"latestBlock":42}`, rec.Body.String())

	h, _ = newTestRouter(t, &stubStore{err: errors.New("boom")}, nil)
	rec, _ = get(t, h, "/chains/1/status")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestRouter(t, &stubStore{}, nil)
	rec, body := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	h, _ = newTestRouter(t, &stubStore{pingErr: errors.New("down")}, nil)
	rec, body = get(t, h, "/health")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "errored", body["status"])
}

func TestMiddleware(t *testing.T) {
	h, _ := newTestRouter(t, &stubStore{}, nil)

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/chains/1/status", nil)
		req.Header.Set("Origin", "https://explorer.example")
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://explorer.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request id generated", func(t *testing.T) {
		rec, _ := get(t, h, "/health")
		assert.Len(t, rec.Header().Get(requestIDHeader), 36)
	})

	t.Run("request id kept", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})

	t.Run("unknown route", func(t *testing.T) {
		rec, body := get(t, h, "/chains/1/blocks")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "route not found", body["error"])
	})
}

func TestStatusOf(t *testing.T) {
	status, msg := statusOf(errors.New("surprise"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", msg)
}

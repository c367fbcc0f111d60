package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/pkg/batch"
	"github.com/canopy-network/tokenscope/pkg/db/chain"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
	token = "0x00000000000000000000000000000000000000c3"
)

func hash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func tx(n int, block uint64, from, to string) indexermodels.Transaction {
	t := indexermodels.Transaction{
		Hash:        hash(n),
		BlockNumber: block,
		From:        from,
		Value:       big.NewInt(int64(n)),
		Input:       "0x",
		Nonce:       uint64(n),
		Gas:         21000,
		GasPrice:    big.NewInt(1_000_000_000),
		Type:        2,
		ChainID:     1,
	}
	if to != "" {
		t.To = &to
	}
	return t
}

func transfer(n int, block uint64, from, to string) indexermodels.Transfer {
	return indexermodels.Transfer{
		Token:       token,
		From:        from,
		To:          to,
		Amount:      big.NewInt(10),
		TxHash:      hash(n),
		BlockNumber: block,
		Topic0:      indexermodels.TransferTopic,
		ChainID:     1,
	}
}

func newService(t *testing.T, store chain.Store, chunkSize int) *Service {
	t.Helper()
	pool := pond.NewPool(8)
	t.Cleanup(pool.StopAndWait)
	return NewService(zaptest.NewLogger(t), store, pool, batch.NewFetcher(pool, chunkSize), 5*time.Second)
}

func hashes(p Page) []string {
	out := make([]string, len(p.Transactions))
	for i, tx := range p.Transactions {
		out[i] = tx.Hash.Hex()
	}
	return out
}

func TestListAccountTransactionsMergesWithoutDuplicates(t *testing.T) {
	store := &memStore{
		txs: []indexermodels.Transaction{
			tx(1, 10, alice, bob),
			tx(2, 11, alice, token), // also carries a transfer to bob
			tx(3, 12, bob, token),   // only reaches alice through a transfer
		},
		transfers: []indexermodels.Transfer{
			transfer(2, 11, alice, bob),
			transfer(3, 12, bob, alice),
			transfer(3, 12, bob, alice), // second log in the same tx
		},
	}
	svc := newService(t, store, 500)

	page, err := svc.ListAccountTransactions(context.Background(), Query{
		ChainID: 1, Address: alice, Limit: 10, Direction: chain.DirectionAll, Order: chain.SortOrderDesc,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{hash(3), hash(2), hash(1)}, hashes(page))
	assert.Equal(t, 3, page.Total)
	assert.False(t, page.HasMore)
	require.Len(t, store.byHashCalls, 1)
	assert.Equal(t, []string{hash(3)}, store.byHashCalls[0], "known hashes must not be fetched again")
}

func TestListAccountTransactionsOrderAndDirection(t *testing.T) {
	store := &memStore{
		txs: []indexermodels.Transaction{
			tx(1, 10, alice, bob),
			tx(2, 10, bob, alice),
			tx(3, 9, alice, bob),
		},
	}
	svc := newService(t, store, 500)

	tests := []struct {
		name      string
		direction chain.Direction
		order     chain.SortOrder
		want      []string
	}{
		{name: "all asc", direction: chain.DirectionAll, order: chain.SortOrderAsc, want: []string{hash(3), hash(1), hash(2)}},
		{name: "all desc", direction: chain.DirectionAll, order: chain.SortOrderDesc, want: []string{hash(2), hash(1), hash(3)}},
		{name: "sent", direction: chain.DirectionSent, order: chain.SortOrderAsc, want: []string{hash(3), hash(1)}},
		{name: "received", direction: chain.DirectionReceived, order: chain.SortOrderAsc, want: []string{hash(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListAccountTransactions(context.Background(), Query{
				ChainID: 1, Address: alice, Limit: 10, Direction: tt.direction, Order: tt.order,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, hashes(page))
		})
	}
}

func TestListAccountTransactionsHasMore(t *testing.T) {
	// exactly offset+limit+1 records
	store := &memStore{}
	for i := 1; i <= 6; i++ {
		store.txs = append(store.txs, tx(i, uint64(i), alice, bob))
	}
	svc := newService(t, store, 500)

	page, err := svc.ListAccountTransactions(context.Background(), Query{
		ChainID: 1, Address: alice, Offset: 2, Limit: 3, Order: chain.SortOrderAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{hash(3), hash(4), hash(5)}, hashes(page))
	assert.True(t, page.HasMore)
	assert.Equal(t, 6, page.Total)

	page, err = svc.ListAccountTransactions(context.Background(), Query{
		ChainID: 1, Address: alice, Offset: 3, Limit: 3, Order: chain.SortOrderAsc,
	})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 3)
	assert.False(t, page.HasMore)
	assert.Equal(t, 6, page.Total)
}

func TestListAccountTransactionsLimits(t *testing.T) {
	svc := newService(t, &memStore{}, 500)
	ctx := context.Background()

	page, err := svc.ListAccountTransactions(ctx, Query{ChainID: 1, Address: alice, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1000, page.Limit)

	_, err = svc.ListAccountTransactions(ctx, Query{ChainID: 1, Address: alice, Limit: 1001})
	assert.ErrorIs(t, err, errs.ErrValidation)

	page, err = svc.ListAccountTransactions(ctx, Query{ChainID: 1, Address: alice, Offset: -5, Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 1, page.Limit)
	assert.Empty(t, page.Transactions)
	assert.Equal(t, 0, page.Total)
	assert.False(t, page.HasMore)

	_, err = svc.ListAccountTransactions(ctx, Query{ChainID: 1, Address: "0x1234", Limit: 1})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.ListAccountTransactions(ctx, Query{ChainID: 1, Address: alice, Limit: 1, Direction: "both"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestListAccountTransactionsOffsetBound(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		wantErr bool
	}{
		{name: "at bound", offset: MaxOffset},
		{name: "above bound", offset: MaxOffset + 1, wantErr: true},
		{name: "terabyte window", offset: 1 << 40, wantErr: true},
		{name: "near max int", offset: math.MaxInt - 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{txs: []indexermodels.Transaction{tx(1, 10, alice, bob)}}
			svc := newService(t, store, 500)

			page, err := svc.ListAccountTransactions(context.Background(), Query{ChainID: 1, Address: alice, Offset: tt.offset, Limit: 10})
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrValidation)
				assert.Empty(t, store.scanLimits, "rejected before any scan")
				return
			}
			require.NoError(t, err)
			assert.Empty(t, page.Transactions)
			assert.False(t, page.HasMore)
			assert.Equal(t, []int{MaxOffset + 11}, store.scanLimits)
		})
	}
}

func TestListAccountTransactionsEmptyPageShape(t *testing.T) {
	svc := newService(t, &memStore{}, 500)

	page, err := svc.ListAccountTransactions(context.Background(), Query{ChainID: 1, Address: alice, Limit: 1})
	require.NoError(t, err)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"transactions":[],"total":0,"offset":0,"limit":1,"hasMore":false}`, string(raw))
}

func TestListAccountTransactionsBatchesMissingHashes(t *testing.T) {
	store := &memStore{}
	for i := 1; i <= 7; i++ {
		store.txs = append(store.txs, tx(i, uint64(i), bob, token))
		store.transfers = append(store.transfers, transfer(i, uint64(i), bob, alice))
	}
	svc := newService(t, store, 3)

	page, err := svc.ListAccountTransactions(context.Background(), Query{ChainID: 1, Address: alice, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 7)
	assert.Len(t, store.byHashCalls, 3)
	for _, call := range store.byHashCalls {
		assert.LessOrEqual(t, len(call), 3)
	}
}

func TestListAccountTransactionsUpstreamFailures(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name  string
		store *memStore
	}{
		{name: "direct scan", store: &memStore{txErr: boom}},
		{name: "transfer scan", store: &memStore{transferErr: boom}},
		{
			name: "batch resolution",
			store: &memStore{
				byHashErr: boom,
				transfers: []indexermodels.Transfer{transfer(1, 1, bob, alice)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(t, tt.store, 500).ListAccountTransactions(context.Background(), Query{
				ChainID: 1, Address: alice, Limit: 10,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrUpstream)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestListAccountTransactionsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := newService(t, &memStore{}, 500).ListAccountTransactions(ctx, Query{ChainID: 1, Address: alice, Limit: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.True(t, errs.IsTimeout(err))
}

func TestListAccountTransactionsMissingSender(t *testing.T) {
	bad := tx(1, 1, "", alice)
	store := &memStore{txs: []indexermodels.Transaction{bad, tx(2, 2, alice, bob)}}

	_, err := newService(t, store, 500).ListAccountTransactions(context.Background(), Query{
		ChainID: 1, Address: alice, Limit: 10, Direction: chain.DirectionAll,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrIntegrity)
}

func TestListAccountTransactionsNormalizesAddressCase(t *testing.T) {
	store := &memStore{txs: []indexermodels.Transaction{tx(1, 1, alice, bob)}}

	page, err := newService(t, store, 500).ListAccountTransactions(context.Background(), Query{
		ChainID: 1, Address: "0x00000000000000000000000000000000000000A1", Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
}

package history

import (
	"context"
	"sort"
	"sync"

	"github.com/canopy-network/tokenscope/pkg/db/chain"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
)

// memStore evaluates the chain.Store scans over in-memory rows the same way the SQL does.
type memStore struct {
	mu        sync.Mutex
	txs       []indexermodels.Transaction
	transfers []indexermodels.Transfer

	txErr       error
	transferErr error
	byHashErr   error
	byHashCalls [][]string
	scanLimits  []int
}

var _ chain.Store = (*memStore)(nil)

func (m *memStore) DatabaseName() string { return "mem" }
func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error { return nil }

func matches(f chain.AccountFilter, from, to string) bool {
	switch f.Direction {
	case chain.DirectionSent:
		return from == f.Address
	case chain.DirectionReceived:
		return to == f.Address
	default:
		return from == f.Address || to == f.Address
	}
}

func less(order chain.SortOrder, blockA, blockB uint64, keyA, keyB string) bool {
	if blockA != blockB {
		if order == chain.SortOrderAsc {
			return blockA < blockB
		}
		return blockA > blockB
	}
	if order == chain.SortOrderAsc {
		return keyA < keyB
	}
	return keyA > keyB
}

func (m *memStore) QueryAccountTransactions(ctx context.Context, f chain.AccountFilter) ([]indexermodels.Transaction, error) {
	m.mu.Lock()
	m.scanLimits = append(m.scanLimits, f.Limit)
	m.mu.Unlock()
	if m.txErr != nil {
		return nil, m.txErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []indexermodels.Transaction
	for _, tx := range m.txs {
		if tx.ChainID != f.ChainID {
			continue
		}
		to := ""
		if tx.To != nil {
			to = *tx.To
		}
		if matches(f, tx.From, to) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return less(f.Order, out[i].BlockNumber, out[j].BlockNumber, out[i].Hash, out[j].Hash)
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) QueryAccountTransferRefs(ctx context.Context, f chain.AccountFilter) ([]indexermodels.TransferRef, error) {
	if m.transferErr != nil {
		return nil, m.transferErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := map[indexermodels.TransferRef]struct{}{}
	var out []indexermodels.TransferRef
	for _, tr := range m.transfers {
		if tr.ChainID != f.ChainID || tr.Topic0 != indexermodels.TransferTopic || !matches(f, tr.From, tr.To) {
			continue
		}
		ref := indexermodels.TransferRef{TxHash: tr.TxHash, BlockNumber: tr.BlockNumber}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		return less(f.Order, out[i].BlockNumber, out[j].BlockNumber, out[i].TxHash, out[j].TxHash)
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) GetTransactionsByHash(_ context.Context, chainID uint64, hashes []string) ([]indexermodels.Transaction, error) {
	m.mu.Lock()
	m.byHashCalls = append(m.byHashCalls, append([]string(nil), hashes...))
	m.mu.Unlock()
	if m.byHashErr != nil {
		return nil, m.byHashErr
	}
	want := map[string]struct{}{}
	for _, h := range hashes {
		want[h] = struct{}{}
	}
	var out []indexermodels.Transaction
	for _, tx := range m.txs {
		if _, ok := want[tx.Hash]; ok && tx.ChainID == chainID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) ScanTokenTransfers(_ context.Context, chainID uint64, token string, fn func(*indexermodels.Transfer) error) error {
	for i := range m.transfers {
		if m.transfers[i].ChainID == chainID && m.transfers[i].Token == token {
			if err := fn(&m.transfers[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memStore) LatestBlock(context.Context, uint64) (uint64, error) { return 0, nil }

package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/canopy-network/tokenscope/pkg/db/chain"
	indexermodels "github.com/canopy-network/tokenscope/pkg/db/models/indexer"
)

const (
	token = "0x00000000000000000000000000000000000000c3"
	addrA = "0x000000000000000000000000000000000000000a"
	addrB = "0x000000000000000000000000000000000000000b"
	addrC = "0x000000000000000000000000000000000000000c"
)

// transferStore serves ScanTokenTransfers from memory; the other Store methods are unused here.
type transferStore struct {
	chain.Store

	mu        sync.Mutex
	transfers []indexermodels.Transfer
	err       error
	scans     int
}

func (s *transferStore) add(from, to string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, indexermodels.Transfer{
		Token:    token,
		From:     from,
		To:       to,
		Amount:   big.NewInt(amount),
		LogIndex: uint32(len(s.transfers)),
		ChainID:  1,
	})
}

func (s *transferStore) ScanTokenTransfers(ctx context.Context, chainID uint64, tok string, fn func(*indexermodels.Transfer) error) error {
	s.mu.Lock()
	s.scans++
	err := s.err
	rows := append([]indexermodels.Transfer(nil), s.transfers...)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].ChainID != chainID || rows[i].Token != tok {
			continue
		}
		if err := fn(&rows[i]); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *transferStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// manualClock is advanced explicitly by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mints() *transferStore {
	s := &transferStore{}
	s.add(indexermodels.ZeroAddress, addrA, 100)
	s.add(indexermodels.ZeroAddress, addrB, 200)
	s.add(indexermodels.ZeroAddress, addrC, 300)
	return s
}

package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoCCTP/burngate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// PendingNonceReader is the chain-client capability the manager depends on.
type PendingNonceReader interface {
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
}

// NonceManager hands out Ethereum account nonces for the facilitator's
// signing account. This is the transaction nonce-space, NOT the 32-byte CCTP
// nonce embedded in authorizations; the two share a name and nothing else.
//
// Nonces are cached optimistically: fetched from the chain once, then
// incremented locally after each broadcast so concurrent submissions never
// race on the same value. Callers must hold their own submission lock across
// Next + broadcast + Increment.
type NonceManager struct {
	reader PendingNonceReader

	mu     sync.Mutex
	nonces map[common.Address]uint64
}

func NewNonceManager(reader PendingNonceReader) *NonceManager {
	return &NonceManager{
		reader: reader,
		nonces: make(map[common.Address]uint64),
	}
}

// Next returns the next account nonce to sign with. First use fetches the
// pending nonce from the chain to account for mempool transactions.
func (m *NonceManager) Next(ctx context.Context, addr common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nonce, ok := m.nonces[addr]; ok {
		return nonce, nil
	}

	fetched, err := m.reader.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}
	m.nonces[addr] = fetched
	return fetched, nil
}

// Increment advances the local counter. Call only after a successful
// broadcast; the signed transaction now occupies the old value.
func (m *NonceManager) Increment(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nonces[addr]; ok {
		m.nonces[addr]++
	}
}

// Reset forces a re-sync from the chain. Call on "nonce too low" or
// "replacement transaction underpriced" class errors.
func (m *NonceManager) Reset(ctx context.Context, addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fetched, err := m.reader.PendingNonceAt(ctx, addr)
	if err != nil {
		return err
	}
	m.nonces[addr] = fetched
	logger.Info("Reset account nonce", "address", addr.Hex(), "nonce", fetched)
	return nil
}

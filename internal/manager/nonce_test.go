package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNonceReader struct {
	pending uint64
	err     error
	calls   int
}

func (f *fakeNonceReader) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.calls++
	return f.pending, f.err
}

var testAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestNonceManager_FetchesOnceThenCaches(t *testing.T) {
	reader := &fakeNonceReader{pending: 7}
	m := NewNonceManager(reader)

	n, err := m.Next(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	n, err = m.Next(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	assert.Equal(t, 1, reader.calls, "cached nonce must not re-query the chain")
}

func TestNonceManager_IncrementAdvancesLocally(t *testing.T) {
	reader := &fakeNonceReader{pending: 7}
	m := NewNonceManager(reader)

	_, err := m.Next(context.Background(), testAddr)
	require.NoError(t, err)

	m.Increment(testAddr)
	n, err := m.Next(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), n)
	assert.Equal(t, 1, reader.calls)
}

func TestNonceManager_IncrementWithoutFetchIsNoop(t *testing.T) {
	reader := &fakeNonceReader{pending: 3}
	m := NewNonceManager(reader)

	m.Increment(testAddr)

	n, err := m.Next(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestNonceManager_ResetResyncsFromChain(t *testing.T) {
	reader := &fakeNonceReader{pending: 7}
	m := NewNonceManager(reader)

	_, err := m.Next(context.Background(), testAddr)
	require.NoError(t, err)
	m.Increment(testAddr)
	m.Increment(testAddr)

	// The chain says the account is further along than the local counter
	// believes, e.g. after an out-of-band transaction.
	reader.pending = 42
	require.NoError(t, m.Reset(context.Background(), testAddr))

	n, err := m.Next(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestNonceManager_PropagatesReaderErrors(t *testing.T) {
	reader := &fakeNonceReader{err: errors.New("rpc down")}
	m := NewNonceManager(reader)

	_, err := m.Next(context.Background(), testAddr)
	assert.Error(t, err)

	assert.Error(t, m.Reset(context.Background(), testAddr))
}

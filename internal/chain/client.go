// Package chain wraps go-ethereum's RPC client with the small surface the
// facilitator needs: lazy dialing with chain-id verification, head snapshots
// for health checks, broadcast, and bounded receipt polling.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/GoCCTP/burngate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is a lazily-dialed connection to one network. The first successful
// call verifies the node's chain id against the configured value; a mismatch
// is reported as an error on every call rather than silently signing for the
// wrong chain.
type Client struct {
	rpcURL          string
	expectedChainID *big.Int

	mu  sync.Mutex
	eth *ethclient.Client
}

// Snapshot is lightweight chain-head metadata served by /health.
type Snapshot struct {
	ChainID     *big.Int
	BlockNumber uint64
	Timestamp   uint64
}

func NewClient(rpcURL string, chainID int64) *Client {
	return &Client{
		rpcURL:          rpcURL,
		expectedChainID: big.NewInt(chainID),
	}
}

// ChainID returns the configured chain id. The dialed node is checked against
// it on first connect.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.expectedChainID)
}

func (c *Client) conn(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		return c.eth, nil
	}

	eth, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}

	remote, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	if remote.Cmp(c.expectedChainID) != 0 {
		eth.Close()
		return nil, fmt.Errorf("chain id mismatch: node reports %s, expected %s", remote, c.expectedChainID)
	}

	c.eth = eth
	return c.eth, nil
}

// Close releases the underlying connection if one was established.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

// Head fetches the latest block header.
func (c *Client) Head(ctx context.Context) (Snapshot, error) {
	eth, err := c.conn(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	header, err := eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch head: %w", err)
	}
	return Snapshot{
		ChainID:     c.ChainID(),
		BlockNumber: header.Number.Uint64(),
		Timestamp:   header.Time,
	}, nil
}

// PendingNonceAt returns the account nonce including mempool transactions.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	eth, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}
	return eth.PendingNonceAt(ctx, addr)
}

// SuggestGasPrice asks the node for the current gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	eth, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	return eth.SuggestGasPrice(ctx)
}

// EstimateGas estimates the gas for a call, or returns an error the caller
// may fall back from.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	eth, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}
	return eth.EstimateGas(ctx, msg)
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	eth, err := c.conn(ctx)
	if err != nil {
		return err
	}
	return eth.SendTransaction(ctx, tx)
}

// WaitForReceipt polls until the transaction is mined or ctx expires. The
// poll interval grows by 50% per miss up to 4x the base interval. A ctx
// deadline here means the outcome is unknown, not that the transaction
// failed: it may still land.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	interval := poll

	for {
		eth, err := c.conn(ctx)
		if err != nil {
			return nil, err
		}
		receipt, err := eth.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && err != ethereum.NotFound {
			logger.Debug("receipt poll error", "tx", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", txHash.Hex(), ctx.Err())
		case <-time.After(interval):
		}

		interval = interval * 3 / 2
		if max := 4 * poll; interval > max {
			interval = max
		}
	}
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrLedgerUnavailable marks an RPC failure or timeout. Callers keep
// their last good result and retry only on the next scheduled trigger.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Client wraps go-ethereum RPC for a single coordinator contract. It is
// read-only and never retries inline.
type Client struct {
	rpcClient   *rpc.Client
	ethClient   *ethclient.Client
	coordinator common.Address

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials the RPC URL and scopes all log queries to the
// coordinator address.
func NewClient(ctx context.Context, rpcURL string, coordinator common.Address) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrLedgerUnavailable, rpcURL, err)
	}

	return &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		coordinator: coordinator,
		tsCache:     make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Coordinator returns the contract address log queries are scoped to.
func (c *Client) Coordinator() common.Address {
	return c.coordinator
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", ErrLedgerUnavailable, err)
	}
	return id, nil
}

// CurrentBlockHeight returns the latest block number.
func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	height, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: latest block: %v", ErrLedgerUnavailable, err)
	}
	return height, nil
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("%w: header %d: %v", ErrLedgerUnavailable, number, err)
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns coordinator logs in the inclusive range matching
// the topic0 signature.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.coordinator},
		Topics:    [][]common.Hash{{topic0}},
	}

	logs, err := c.ethClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: filter logs %d-%d: %v", ErrLedgerUnavailable, fromBlock, toBlock, err)
	}
	return logs, nil
}

// SubscribeLogs streams new coordinator logs matching topic0 into ch.
// It fails on transports without subscription support; callers fall
// back to polling.
func (c *Client) SubscribeLogs(ctx context.Context, topic0 common.Hash, ch chan<- types.Log) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.coordinator},
		Topics:    [][]common.Hash{{topic0}},
	}

	sub, err := c.ethClient.SubscribeFilterLogs(ctx, query, ch)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe logs: %v", ErrLedgerUnavailable, err)
	}
	return sub, nil
}

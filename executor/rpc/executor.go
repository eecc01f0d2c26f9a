// Package rpc runs quoter call batches as eth_call requests against a node.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/quoter"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Config holds the configuration for the executor.
type Config struct {
	URL    string
	Logger routing.Logger
	// MaxDialAttempts bounds Dial; zero retries until the context ends.
	MaxDialAttempts int
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.MaxDialAttempts < 0 {
		return errors.New("config: MaxDialAttempts must not be negative")
	}
	return nil
}

// Executor sends each batch as a single JSON-RPC batch request.
type Executor struct {
	client *rpc.Client
	logger routing.Logger
}

// New wraps an existing client.
func New(client *rpc.Client, logger routing.Logger) *Executor {
	if logger == nil {
		logger = routing.NopLogger()
	}
	return &Executor{client: client, logger: logger}
}

// Dial connects to cfg.URL, backing off between failed attempts.
func Dial(ctx context.Context, cfg Config) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	reconnectDelay := initialReconnectDelay
	for attempt := 1; ; attempt++ {
		cfg.Logger.Info("Attempting to connect to RPC server", "url", cfg.URL, "attempt", attempt)
		client, err := rpc.DialContext(ctx, cfg.URL)
		if err == nil {
			cfg.Logger.Info("Successfully connected to RPC server.")
			return New(client, cfg.Logger), nil
		}
		if cfg.MaxDialAttempts > 0 && attempt >= cfg.MaxDialAttempts {
			return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.URL, attempt, err)
		}
		cfg.Logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, ctx.Err())
		case <-time.After(reconnectDelay):
		}
		reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
	}
}

// Client exposes the connection, e.g. for an ethclient sharing it.
func (e *Executor) Client() *rpc.Client {
	return e.client
}

// Close releases the underlying connection.
func (e *Executor) Close() {
	e.client.Close()
}

type callArgs struct {
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
	Gas  *hexutil.Uint64 `json:"gas,omitempty"`
}

// blockTag renders a block number, with zero meaning latest.
func blockTag(block uint64) string {
	if block == 0 {
		return "latest"
	}
	return hexutil.EncodeUint64(block)
}

// ExecuteBatch implements quoter.BatchExecutor.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []quoter.RawCall, blockNumber uint64) ([]quoter.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	tag := blockTag(blockNumber)
	outputs := make([]hexutil.Bytes, len(calls))
	elems := make([]rpc.BatchElem, len(calls))
	for i, c := range calls {
		args := callArgs{To: c.To, Data: c.Data}
		if c.Gas > 0 {
			gas := hexutil.Uint64(c.Gas)
			args.Gas = &gas
		}
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{args, tag},
			Result: &outputs[i],
		}
	}

	if err := e.client.BatchCallContext(ctx, elems); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyBatch(err)
	}

	results := make([]quoter.RawResult, len(calls))
	for i, el := range elems {
		if el.Error == nil {
			results[i] = quoter.RawResult{Data: outputs[i]}
			continue
		}
		err := classifyCall(el.Error)
		if errors.Is(err, routing.ErrStaleBlockHeight) {
			return nil, err
		}
		results[i] = quoter.RawResult{Err: err}
	}
	return results, nil
}

// staleMarkers are node messages for state that is no longer, or not yet,
// available at the requested block.
var staleMarkers = []string{"header not found", "missing trie node", "unknown block", "block not found"}

func isStale(msg string) bool {
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func classifyBatch(err error) error {
	msg := strings.ToLower(err.Error())
	if isStale(msg) {
		return fmt.Errorf("%w: %v", routing.ErrStaleBlockHeight, err)
	}
	if strings.Contains(msg, "out of gas") || strings.Contains(msg, "gas limit") {
		return fmt.Errorf("%w: %v", quoter.ErrGasCeilingExceeded, err)
	}
	return fmt.Errorf("eth_call batch failed: %w", err)
}

func classifyCall(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case isStale(msg):
		return fmt.Errorf("%w: %v", routing.ErrStaleBlockHeight, err)
	case strings.Contains(msg, "out of gas"), strings.Contains(msg, "gas required exceeds"):
		return fmt.Errorf("%w: %v", quoter.ErrGasCeilingExceeded, err)
	}
	return fmt.Errorf("%w: %v", quoter.ErrExecutionReverted, err)
}

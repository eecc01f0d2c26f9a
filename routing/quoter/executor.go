package quoter

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrGasCeilingExceeded marks a call, or a whole batch, that ran out of
	// gas. The engine retries it in a smaller chunk.
	ErrGasCeilingExceeded = errors.New("quote exceeded its gas allowance")
	// ErrExecutionReverted marks a call the quoter contract rejected. It is
	// not retried.
	ErrExecutionReverted = errors.New("quote execution reverted")
)

// RawCall is one read-only contract call.
type RawCall struct {
	To   common.Address
	Data []byte
	Gas  uint64
}

// RawResult holds the return data of a call or its error.
type RawResult struct {
	Data []byte
	Err  error
}

// BatchExecutor runs calls as one batch at a fixed block. It must return one
// result per call, in order, or an error for the batch as a whole. Chunk
// sizing and retries belong to the caller.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, calls []RawCall, blockNumber uint64) ([]RawResult, error)
}

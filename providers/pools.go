package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

// StaticPoolProvider serves one snapshot.
type StaticPoolProvider struct {
	set *poolset.Set
}

func NewStaticPoolProvider(set *poolset.Set) (*StaticPoolProvider, error) {
	if set == nil {
		return nil, errors.New("config: pool set is required")
	}
	return &StaticPoolProvider{set: set}, nil
}

// LoadStaticPoolProvider reads a snapshot file written by poolset.WriteSnapshot.
func LoadStaticPoolProvider(path string) (*StaticPoolProvider, error) {
	set, err := poolset.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &StaticPoolProvider{set: set}, nil
}

// BlockNumber reports the snapshot's block, so the provider can also pin
// requests.
func (p *StaticPoolProvider) BlockNumber(context.Context) (uint64, error) {
	return p.set.BlockNumber(), nil
}

func (p *StaticPoolProvider) GetPools(ctx context.Context, pairs []poolset.TokenPair, block uint64) (*poolset.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkBlock(p.set, block); err != nil {
		return nil, err
	}
	return p.set.Select(pairs), nil
}

func checkBlock(set *poolset.Set, block uint64) error {
	if block != 0 && set.BlockNumber() != block {
		return fmt.Errorf("%w: pools are at block %d, wanted %d", routing.ErrStaleBlockHeight, set.BlockNumber(), block)
	}
	return nil
}

// DefaultCacheSize is the number of (block, pairs) results kept by
// CachingPoolProvider.
const DefaultCacheSize = 256

// CachingPoolProvider memoizes an inner provider per block and pair list.
// Requests for the latest block bypass the cache.
type CachingPoolProvider struct {
	inner PoolProvider
	cache *lru.Cache[string, *poolset.Set]
}

func NewCachingPoolProvider(inner PoolProvider, size int) (*CachingPoolProvider, error) {
	if inner == nil {
		return nil, errors.New("config: inner PoolProvider is required")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *poolset.Set](size)
	if err != nil {
		return nil, err
	}
	return &CachingPoolProvider{inner: inner, cache: cache}, nil
}

func (p *CachingPoolProvider) GetPools(ctx context.Context, pairs []poolset.TokenPair, block uint64) (*poolset.Set, error) {
	if block == 0 {
		return p.inner.GetPools(ctx, pairs, block)
	}
	key := cacheKey(pairs, block)
	if set, ok := p.cache.Get(key); ok {
		return set, nil
	}
	set, err := p.inner.GetPools(ctx, pairs, block)
	if err != nil {
		return nil, err
	}
	if err := checkBlock(set, block); err != nil {
		return nil, err
	}
	p.cache.Add(key, set)
	return set, nil
}

// Len reports the number of cached results.
func (p *CachingPoolProvider) Len() int {
	return p.cache.Len()
}

// cacheKey is order-insensitive in both the pair list and each pair.
func cacheKey(pairs []poolset.TokenPair, block uint64) string {
	if pairs == nil {
		return strconv.FormatUint(block, 10) + "|*"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		a, b := p.A.Hex(), p.B.Hex()
		if p.B != (common.Address{}) && a > b {
			a, b = b, a
		}
		parts[i] = a + "/" + b
	}
	sort.Strings(parts)
	return strconv.FormatUint(block, 10) + "|" + strings.Join(parts, ",")
}

// FallbackPoolProvider asks primary first and secondary when primary fails.
// Stale block and context errors are returned as is.
type FallbackPoolProvider struct {
	primary   PoolProvider
	secondary PoolProvider
	logger    routing.Logger
}

func NewFallbackPoolProvider(primary, secondary PoolProvider, logger routing.Logger) (*FallbackPoolProvider, error) {
	if primary == nil || secondary == nil {
		return nil, errors.New("config: primary and secondary PoolProvider are required")
	}
	if logger == nil {
		logger = routing.NopLogger()
	}
	return &FallbackPoolProvider{primary: primary, secondary: secondary, logger: logger}, nil
}

func (p *FallbackPoolProvider) GetPools(ctx context.Context, pairs []poolset.TokenPair, block uint64) (*poolset.Set, error) {
	set, err := p.primary.GetPools(ctx, pairs, block)
	if err == nil {
		return set, nil
	}
	if errors.Is(err, routing.ErrStaleBlockHeight) || ctx.Err() != nil {
		return nil, err
	}
	p.logger.Warn("primary pool provider failed, using fallback", "error", err, "block", block)
	set, err2 := p.secondary.GetPools(ctx, pairs, block)
	if err2 != nil {
		return nil, fmt.Errorf("fallback pool provider failed: %w (primary: %v)", err2, err)
	}
	if err := checkBlock(set, block); err != nil {
		return nil, err
	}
	return set, nil
}

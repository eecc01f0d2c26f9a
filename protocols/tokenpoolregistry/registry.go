package tokenpoolregistry

import "github.com/ethereum/go-ethereum/common"

// TokenPoolRegistryView is a deep-copied snapshot of the graph's core slices.
// Adjacency[t] lists edge indices leaving token t; EdgeTargets[e] is the
// token index an edge points to; EdgePools[e] lists the pool indices that
// can carry a swap along that edge.
type TokenPoolRegistryView struct {
	Tokens      []common.Address `json:"tokens"`
	Pools       []common.Address `json:"pools"`
	Adjacency   [][]int          `json:"adjacency"`
	EdgeTargets []int            `json:"edgeTargets"`
	EdgePools   [][]int          `json:"edgePools"`
}

// TokenPoolRegistry keeps the token/pool relationship as a directed
// multigraph in flat slices. It is not safe for concurrent mutation; the
// router builds one per request and only reads it afterwards.
type TokenPoolRegistry struct {
	tokenToIndex map[common.Address]int
	poolToIndex  map[common.Address]int

	tokens      []common.Address
	pools       []common.Address
	adjacency   [][]int
	edgeTargets []int
	edgePools   [][]int
}

// NewTokenPoolRegistry creates an empty registry.
func NewTokenPoolRegistry() *TokenPoolRegistry {
	return &TokenPoolRegistry{
		tokenToIndex: make(map[common.Address]int),
		poolToIndex:  make(map[common.Address]int),
	}
}

func (r *TokenPoolRegistry) tokenIndex(token common.Address) int {
	idx, ok := r.tokenToIndex[token]
	if !ok {
		idx = len(r.tokens)
		r.tokens = append(r.tokens, token)
		r.tokenToIndex[token] = idx
		r.adjacency = append(r.adjacency, nil)
	}
	return idx
}

// addEdge associates pool with the directed edge from -> to.
func (r *TokenPoolRegistry) addEdge(from, to, poolIndex int) {
	for _, edgeIndex := range r.adjacency[from] {
		if r.edgeTargets[edgeIndex] != to {
			continue
		}
		for _, existing := range r.edgePools[edgeIndex] {
			if existing == poolIndex {
				return
			}
		}
		r.edgePools[edgeIndex] = append(r.edgePools[edgeIndex], poolIndex)
		return
	}

	edgeIndex := len(r.edgeTargets)
	r.edgeTargets = append(r.edgeTargets, to)
	r.edgePools = append(r.edgePools, []int{poolIndex})
	r.adjacency[from] = append(r.adjacency[from], edgeIndex)
}

// AddPool connects every pair of the pool's tokens in both directions.
// Adding the same pool twice is a no-op.
func (r *TokenPoolRegistry) AddPool(pool common.Address, tokens ...common.Address) {
	poolIndex, ok := r.poolToIndex[pool]
	if !ok {
		poolIndex = len(r.pools)
		r.pools = append(r.pools, pool)
		r.poolToIndex[pool] = poolIndex
	}

	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			a := r.tokenIndex(tokens[i])
			b := r.tokenIndex(tokens[j])
			r.addEdge(a, b, poolIndex)
			r.addEdge(b, a, poolIndex)
		}
	}
}

// NumPools returns the number of distinct pools. Pool indices are dense in [0, NumPools).
func (r *TokenPoolRegistry) NumPools() int {
	return len(r.pools)
}

// PoolIndex returns the dense index of a pool.
func (r *TokenPoolRegistry) PoolIndex(pool common.Address) (int, bool) {
	idx, ok := r.poolToIndex[pool]
	return idx, ok
}

// TokenIndex returns the dense index of a token.
func (r *TokenPoolRegistry) TokenIndex(token common.Address) (int, bool) {
	idx, ok := r.tokenToIndex[token]
	return idx, ok
}

// PoolsForToken lists the pools touching a token, in insertion order.
func (r *TokenPoolRegistry) PoolsForToken(token common.Address) []common.Address {
	idx, ok := r.tokenToIndex[token]
	if !ok {
		return nil
	}
	seen := make(map[int]struct{})
	var out []common.Address
	for _, edgeIndex := range r.adjacency[idx] {
		for _, poolIndex := range r.edgePools[edgeIndex] {
			if _, dup := seen[poolIndex]; dup {
				continue
			}
			seen[poolIndex] = struct{}{}
			out = append(out, r.pools[poolIndex])
		}
	}
	return out
}

// PoolsBetween lists the pools that swap a into b.
func (r *TokenPoolRegistry) PoolsBetween(a, b common.Address) []common.Address {
	from, ok := r.tokenToIndex[a]
	if !ok {
		return nil
	}
	to, ok := r.tokenToIndex[b]
	if !ok {
		return nil
	}
	for _, edgeIndex := range r.adjacency[from] {
		if r.edgeTargets[edgeIndex] != to {
			continue
		}
		out := make([]common.Address, len(r.edgePools[edgeIndex]))
		for i, poolIndex := range r.edgePools[edgeIndex] {
			out[i] = r.pools[poolIndex]
		}
		return out
	}
	return nil
}

// View returns a deep copy of the graph's core data structures.
func (r *TokenPoolRegistry) View() *TokenPoolRegistryView {
	tokens := make([]common.Address, len(r.tokens))
	copy(tokens, r.tokens)

	pools := make([]common.Address, len(r.pools))
	copy(pools, r.pools)

	adjacency := make([][]int, len(r.adjacency))
	for i, adj := range r.adjacency {
		adjacency[i] = append([]int(nil), adj...)
	}

	edgeTargets := make([]int, len(r.edgeTargets))
	copy(edgeTargets, r.edgeTargets)

	edgePools := make([][]int, len(r.edgePools))
	for i, list := range r.edgePools {
		edgePools[i] = append([]int(nil), list...)
	}

	return &TokenPoolRegistryView{
		Tokens:      tokens,
		Pools:       pools,
		Adjacency:   adjacency,
		EdgeTargets: edgeTargets,
		EdgePools:   edgePools,
	}
}

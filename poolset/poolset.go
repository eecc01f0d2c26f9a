// Package poolset holds the pool and token state of one block. A Set is
// built once per request and only read afterwards.
package poolset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

var ErrEmptySnapshot = errors.New("snapshot has no pools")

// Block identifies the block a snapshot was read at.
type Block struct {
	Number    uint64      `json:"number"`
	Hash      common.Hash `json:"hash"`
	Timestamp uint64      `json:"timestamp"`
}

// Snapshot is the serializable form of a Set.
type Snapshot struct {
	ChainID uint64                `json:"chainId"`
	Block   Block                 `json:"block"`
	Tokens  []tokenregistry.Token `json:"tokens"`
	V2      []uniswapv2.Pool      `json:"uniswapV2"`
	V3      []uniswapv3.Pool      `json:"uniswapV3"`
}

// TokenPair selects pools for a provider. A zero B matches any pool containing A.
type TokenPair struct {
	A common.Address
	B common.Address
}

func (p TokenPair) matches(t0, t1 common.Address) bool {
	if p.B == (common.Address{}) {
		return t0 == p.A || t1 == p.A
	}
	return (t0 == p.A && t1 == p.B) || (t0 == p.B && t1 == p.A)
}

// Set is an indexed, read-only Snapshot.
type Set struct {
	chainID uint64
	block   Block

	tokens    []tokenregistry.Token
	byAddress map[common.Address]tokenregistry.Token
	v2        []uniswapv2.Pool
	v2ByAddr  map[common.Address]uniswapv2.Pool
	v3        []uniswapv3.Pool
	v3ByAddr  map[common.Address]uniswapv3.Pool
}

// New indexes a snapshot. Pools are kept in address order so that every
// traversal of the set is deterministic. Pool tokens missing from
// snap.Tokens are registered from the pool's own token metadata.
func New(snap Snapshot) *Set {
	s := &Set{
		chainID:   snap.ChainID,
		block:     snap.Block,
		byAddress: make(map[common.Address]tokenregistry.Token, len(snap.Tokens)),
		v2ByAddr:  make(map[common.Address]uniswapv2.Pool, len(snap.V2)),
		v3ByAddr:  make(map[common.Address]uniswapv3.Pool, len(snap.V3)),
	}
	for _, t := range snap.Tokens {
		s.addToken(t)
	}
	for _, p := range snap.V2 {
		if _, dup := s.v2ByAddr[p.Address]; dup {
			continue
		}
		s.addToken(p.Token0)
		s.addToken(p.Token1)
		s.v2ByAddr[p.Address] = p
		s.v2 = append(s.v2, p)
	}
	for _, p := range snap.V3 {
		if _, dup := s.v3ByAddr[p.Address]; dup {
			continue
		}
		s.addToken(p.Token0)
		s.addToken(p.Token1)
		s.v3ByAddr[p.Address] = p
		s.v3 = append(s.v3, p)
	}
	sort.Slice(s.tokens, func(i, j int) bool { return s.tokens[i].SortsBefore(s.tokens[j]) })
	sort.Slice(s.v2, func(i, j int) bool { return lessAddr(s.v2[i].Address, s.v2[j].Address) })
	sort.Slice(s.v3, func(i, j int) bool { return lessAddr(s.v3[i].Address, s.v3[j].Address) })
	return s
}

func lessAddr(a, b common.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (s *Set) addToken(t tokenregistry.Token) {
	if _, ok := s.byAddress[t.Address]; ok || t.Address == (common.Address{}) {
		return
	}
	s.byAddress[t.Address] = t
	s.tokens = append(s.tokens, t)
}

func (s *Set) ChainID() uint64 { return s.chainID }

func (s *Set) Block() Block { return s.block }

func (s *Set) BlockNumber() uint64 { return s.block.Number }

// Token looks a token up by address.
func (s *Set) Token(addr common.Address) (tokenregistry.Token, bool) {
	t, ok := s.byAddress[addr]
	return t, ok
}

func (s *Set) V2Pool(addr common.Address) (uniswapv2.Pool, bool) {
	p, ok := s.v2ByAddr[addr]
	return p, ok
}

func (s *Set) V3Pool(addr common.Address) (uniswapv3.Pool, bool) {
	p, ok := s.v3ByAddr[addr]
	return p, ok
}

// Tokens returns a defensive copy of all tokens.
func (s *Set) Tokens() []tokenregistry.Token {
	out := make([]tokenregistry.Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// V2Pools returns a defensive copy of all constant-product pools.
func (s *Set) V2Pools() []uniswapv2.Pool {
	out := make([]uniswapv2.Pool, len(s.v2))
	copy(out, s.v2)
	return out
}

// V3Pools returns a defensive copy of all concentrated-liquidity pools.
func (s *Set) V3Pools() []uniswapv3.Pool {
	out := make([]uniswapv3.Pool, len(s.v3))
	copy(out, s.v3)
	return out
}

// QuotablePools returns the pools a quoter path can address. A path names
// a constant-product hop by its pair and a concentrated-liquidity hop by
// pair and fee, so only one pool per key is reachable: the one with the
// largest Reserve0 (V2) or active liquidity (V3), lowest address on ties.
// Both slices stay in address order.
func (s *Set) QuotablePools() ([]uniswapv2.Pool, []uniswapv3.Pool) {
	type v3Key struct {
		a, b common.Address
		fee  uint32
	}
	v2Best := make(map[[2]common.Address]int)
	for i, p := range s.v2 {
		k := pairOf(p.Token0.Address, p.Token1.Address)
		if j, ok := v2Best[k]; ok && cmpDepth(p.Reserve0, s.v2[j].Reserve0) <= 0 {
			continue
		}
		v2Best[k] = i
	}
	v3Best := make(map[v3Key]int)
	for i, p := range s.v3 {
		pair := pairOf(p.Token0.Address, p.Token1.Address)
		k := v3Key{a: pair[0], b: pair[1], fee: p.Fee}
		if j, ok := v3Best[k]; ok && cmpDepth(p.Liquidity, s.v3[j].Liquidity) <= 0 {
			continue
		}
		v3Best[k] = i
	}

	v2 := make([]uniswapv2.Pool, 0, len(v2Best))
	for i, p := range s.v2 {
		if v2Best[pairOf(p.Token0.Address, p.Token1.Address)] == i {
			v2 = append(v2, p)
		}
	}
	v3 := make([]uniswapv3.Pool, 0, len(v3Best))
	for i, p := range s.v3 {
		pair := pairOf(p.Token0.Address, p.Token1.Address)
		if v3Best[v3Key{a: pair[0], b: pair[1], fee: p.Fee}] == i {
			v3 = append(v3, p)
		}
	}
	return v2, v3
}

func pairOf(x, y common.Address) [2]common.Address {
	if lessAddr(y, x) {
		x, y = y, x
	}
	return [2]common.Address{x, y}
}

// cmpDepth compares two balances, nil counting as zero.
func cmpDepth(a, b *big.Int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -b.Sign()
	case b == nil:
		return a.Sign()
	}
	return a.Cmp(b)
}

// Len returns the total number of pools.
func (s *Set) Len() int { return len(s.v2) + len(s.v3) }

// Snapshot returns the serializable form of the set.
func (s *Set) Snapshot() Snapshot {
	return Snapshot{
		ChainID: s.chainID,
		Block:   s.block,
		Tokens:  s.Tokens(),
		V2:      s.V2Pools(),
		V3:      s.V3Pools(),
	}
}

// Select returns the subset of pools matching any of the pairs. A nil pairs
// slice selects everything.
func (s *Set) Select(pairs []TokenPair) *Set {
	if pairs == nil {
		return s
	}
	match := func(t0, t1 common.Address) bool {
		for _, p := range pairs {
			if p.matches(t0, t1) {
				return true
			}
		}
		return false
	}
	snap := Snapshot{ChainID: s.chainID, Block: s.block, Tokens: s.Tokens()}
	for _, p := range s.v2 {
		if match(p.Token0.Address, p.Token1.Address) {
			snap.V2 = append(snap.V2, p)
		}
	}
	for _, p := range s.v3 {
		if match(p.Token0.Address, p.Token1.Address) {
			snap.V3 = append(snap.V3, p)
		}
	}
	return New(snap)
}

// Merge combines two sets of the same block. Pools in o that already exist
// in s are ignored.
func (s *Set) Merge(o *Set) (*Set, error) {
	if o == nil {
		return s, nil
	}
	if s.block.Number != o.block.Number {
		return nil, fmt.Errorf("cannot merge pool sets of blocks %d and %d", s.block.Number, o.block.Number)
	}
	snap := s.Snapshot()
	snap.Tokens = append(snap.Tokens, o.tokens...)
	snap.V2 = append(snap.V2, o.v2...)
	snap.V3 = append(snap.V3, o.v3...)
	return New(snap), nil
}

// WithTransferFees returns a copy of the set whose tokens, including the
// tokens embedded in pools, carry the given fee-on-transfer data.
func (s *Set) WithTransferFees(fees map[common.Address]tokenregistry.TransferFee) *Set {
	if len(fees) == 0 {
		return s
	}
	apply := func(t tokenregistry.Token) tokenregistry.Token {
		if f, ok := fees[t.Address]; ok {
			f := f
			t.Fee = &f
		}
		return t
	}
	snap := s.Snapshot()
	for i := range snap.Tokens {
		snap.Tokens[i] = apply(snap.Tokens[i])
	}
	for i := range snap.V2 {
		snap.V2[i].Token0 = apply(snap.V2[i].Token0)
		snap.V2[i].Token1 = apply(snap.V2[i].Token1)
	}
	for i := range snap.V3 {
		snap.V3[i].Token0 = apply(snap.V3[i].Token0)
		snap.V3[i].Token1 = apply(snap.V3[i].Token1)
	}
	return New(snap)
}

// LoadSnapshot reads a JSON snapshot from disk.
func LoadSnapshot(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if len(snap.V2)+len(snap.V3) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySnapshot, path)
	}
	return New(snap), nil
}

// WriteSnapshot stores a set as indented JSON.
func WriteSnapshot(path string, s *Set) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

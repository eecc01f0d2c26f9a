package tokenpoolregistry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokA = common.HexToAddress("0xa")
	tokB = common.HexToAddress("0xb")
	tokC = common.HexToAddress("0xc")
	tokD = common.HexToAddress("0xd")

	pool1 = common.HexToAddress("0x1001")
	pool2 = common.HexToAddress("0x1002")
	pool3 = common.HexToAddress("0x1003")
)

func TestTokenPoolRegistry_AddPool(t *testing.T) {
	r := NewTokenPoolRegistry()
	r.AddPool(pool1, tokA, tokB)
	r.AddPool(pool2, tokA, tokB)
	r.AddPool(pool3, tokB, tokC)

	assert.Equal(t, 3, r.NumPools())
	assert.Equal(t, []common.Address{pool1, pool2}, r.PoolsBetween(tokA, tokB))
	assert.Equal(t, []common.Address{pool1, pool2}, r.PoolsBetween(tokB, tokA))
	assert.Equal(t, []common.Address{pool3}, r.PoolsBetween(tokC, tokB))
	assert.Nil(t, r.PoolsBetween(tokA, tokC))
	assert.Nil(t, r.PoolsBetween(tokA, tokD))

	assert.ElementsMatch(t, []common.Address{pool1, pool2, pool3}, r.PoolsForToken(tokB))
	assert.Nil(t, r.PoolsForToken(tokD))
}

func TestTokenPoolRegistry_AddPoolIsIdempotent(t *testing.T) {
	r := NewTokenPoolRegistry()
	r.AddPool(pool1, tokA, tokB)
	r.AddPool(pool1, tokA, tokB)

	view := r.View()
	assert.Len(t, view.Pools, 1)
	assert.Len(t, view.Tokens, 2)
	assert.Len(t, view.EdgeTargets, 2, "one edge per direction")
	for _, pools := range view.EdgePools {
		assert.Equal(t, []int{0}, pools)
	}
}

func TestTokenPoolRegistry_MultiTokenPoolIsClique(t *testing.T) {
	r := NewTokenPoolRegistry()
	r.AddPool(pool1, tokA, tokB, tokC)

	for _, pair := range [][2]common.Address{{tokA, tokB}, {tokA, tokC}, {tokB, tokC}, {tokC, tokA}} {
		assert.Equal(t, []common.Address{pool1}, r.PoolsBetween(pair[0], pair[1]))
	}
	assert.Len(t, r.View().EdgeTargets, 6)
}

func TestTokenPoolRegistry_Indices(t *testing.T) {
	r := NewTokenPoolRegistry()
	r.AddPool(pool2, tokC, tokD)
	r.AddPool(pool1, tokA, tokC)

	idx, ok := r.PoolIndex(pool1)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = r.TokenIndex(tokA)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = r.PoolIndex(pool3)
	assert.False(t, ok)
}

func TestTokenPoolRegistry_ViewIsDeepCopy(t *testing.T) {
	r := NewTokenPoolRegistry()
	r.AddPool(pool1, tokA, tokB)

	view := r.View()
	view.Tokens[0] = tokD
	view.EdgePools[0][0] = 42
	view.Adjacency[0] = nil

	fresh := r.View()
	assert.Equal(t, tokA, fresh.Tokens[0])
	assert.Equal(t, 0, fresh.EdgePools[0][0])
	assert.NotEmpty(t, fresh.Adjacency[0])
}

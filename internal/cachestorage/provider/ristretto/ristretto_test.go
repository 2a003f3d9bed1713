package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/providertest"
)

func TestProvider_Conformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) cachestorage.Provider {
		p, err := New(DefaultConfig())
		require.NoError(t, err)
		return p
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestKeys_PrunesDroppedEntries(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "a", []byte("1")))
	// drop behind the index's back, as an eviction would
	p.c.Del("a")

	keys, err := p.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, p.index)
}

func TestSet_ReportsDroppedWrite(t *testing.T) {
	p, err := New(Config{NumCounters: 100, MaxCost: 64, BufferItems: 64})
	require.NoError(t, err)
	defer p.Close(context.Background())
	ctx := context.Background()

	// admitted into the buffer, then refused for exceeding MaxCost
	err = p.Set(ctx, "entry:v1:GET http://h/big", make([]byte, 256))
	require.ErrorIs(t, err, ErrRejected)

	_, ok, err := p.Get(ctx, "entry:v1:GET http://h/big")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := p.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPinnedKeysAreNeverEvicted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumCounters, cfg.MaxCost = 100, 64
	p, err := New(cfg)
	require.NoError(t, err)
	defer p.Close(context.Background())
	ctx := context.Background()

	key := cachestorage.RegistryPrefix + "choir-registry-v1"
	require.NoError(t, p.Set(ctx, key, make([]byte, 256)))
	// an eviction can only reach what ristretto holds
	p.c.Del(key)

	b, ok, err := p.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, b, 256)

	keys, err := p.Keys(ctx, cachestorage.RegistryPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	require.NoError(t, p.DelPrefix(ctx, cachestorage.RegistryPrefix))
	_, ok, err = p.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

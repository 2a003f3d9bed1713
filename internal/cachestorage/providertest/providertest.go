// Package providertest checks that a cachestorage.Provider honours the
// contract Storage relies on.
package providertest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
)

// Run exercises a fresh provider per subtest. newProvider must return an
// empty store; Run closes it when the subtest ends.
func Run(t *testing.T, newProvider func(t *testing.T) cachestorage.Provider) {
	t.Helper()

	fresh := func(t *testing.T) cachestorage.Provider {
		p := newProvider(t)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		return p
	}

	t.Run("miss", func(t *testing.T) {
		p := fresh(t)
		v, ok, err := p.Get(context.Background(), "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		p := fresh(t)
		ctx := context.Background()

		require.NoError(t, p.Set(ctx, "k", []byte{0, 1, 2, 255}))
		v, ok, err := p.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte{0, 1, 2, 255}, v)

		require.NoError(t, p.Set(ctx, "k", []byte("second")))
		v, ok, err = p.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("second"), v)
	})

	t.Run("del", func(t *testing.T) {
		p := fresh(t)
		ctx := context.Background()

		require.NoError(t, p.Set(ctx, "k", []byte("v")))
		require.NoError(t, p.Del(ctx, "k"))
		require.NoError(t, p.Del(ctx, "never-set"))

		_, ok, err := p.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys and del prefix", func(t *testing.T) {
		p := fresh(t)
		ctx := context.Background()

		for _, k := range []string{
			"entry:v1:GET http://h/a?x=1",
			"entry:v1:GET http://h/[b]*",
			"entry:v2:GET http://h/a",
			"partitions:v1",
		} {
			require.NoError(t, p.Set(ctx, k, []byte(k)))
		}

		keys, err := p.Keys(ctx, "entry:v1:")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"entry:v1:GET http://h/[b]*", "entry:v1:GET http://h/a?x=1"}, keys)

		require.NoError(t, p.DelPrefix(ctx, "entry:v1:"))

		keys, err = p.Keys(ctx, "entry:")
		require.NoError(t, err)
		assert.Equal(t, []string{"entry:v2:GET http://h/a"}, keys)

		_, ok, err := p.Get(ctx, "partitions:v1")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

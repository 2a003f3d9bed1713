package bigcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/providertest"
)

func TestProvider_Conformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) cachestorage.Provider {
		p, err := New(context.Background(), Config{})
		require.NoError(t, err)
		return p
	})
}

package network_test

import (
	"testing"
	"time"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/network"
	"github.com/readhaven/cover-services/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *network.ProviderRegistry {
	log := logger.InitConsoleLogger("DEBUG")
	breaker := func() *network.CircuitBreaker {
		return network.NewCircuitBreaker(3, 100*time.Millisecond)
	}
	return network.NewProviderRegistry(
		network.NewOpenLibraryClient("http://localhost:8903", log, breaker()),
		network.NewGoogleBooksClient("http://localhost:8901", log, breaker()),
		network.NewLongitoodClient("http://localhost:8902", log, breaker()),
	)
}

func TestRegistryGet(t *testing.T) {
	registry := testRegistry()
	provider := registry.Get(constants.SourceGoogleBooks)
	require.NotNil(t, provider)
	assert.Equal(t, constants.SourceGoogleBooks, provider.Source())

	assert.Nil(t, registry.Get("NO_SUCH_SOURCE"))
}

func TestRegistryInPriorityOrder(t *testing.T) {
	registry := testRegistry()
	ordered := registry.InPriorityOrder()
	require.Equal(t, 3, len(ordered))

	// Registration order doesn't matter; priority order does.
	assert.Equal(t, constants.SourceGoogleBooks, ordered[0].Source())
	assert.Equal(t, constants.SourceLongitood, ordered[1].Source())
	assert.Equal(t, constants.SourceOpenLibrary, ordered[2].Source())
}

package network

import (
	"context"
	"errors"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
)

// ErrNoCover is the definitive "this provider has no cover for that
// book." Any other fetch error means the provider could not help
// right now; ErrNoCover means it answered, and the answer was no.
var ErrNoCover = errors.New("no cover exists for this book")

// CoverProvider is one external source of cover images.
// Implementations are long-lived, safe for concurrent use, and
// guarded by their own circuit breaker.
type CoverProvider interface {
	// Source returns the provider's source tag, e.g. GOOGLE_BOOKS.
	Source() string

	// RequestURL returns the URL this provider would query for the
	// book, for provenance records. Empty when the book carries no
	// identifier the provider can use.
	RequestURL(book *service.Book) string

	// FetchCover returns a candidate image for the book, honoring the
	// resolution preference where the provider supports it. Returns
	// ErrNoCover when the provider definitively has no cover, which
	// includes books missing the identifier the provider is keyed by.
	FetchCover(ctx context.Context, book *service.Book, pref string) (*service.ImageCandidate, error)
}

// ProviderRegistry holds the configured cover providers.
type ProviderRegistry struct {
	providers map[string]CoverProvider
}

func NewProviderRegistry(providers ...CoverProvider) *ProviderRegistry {
	registry := &ProviderRegistry{
		providers: make(map[string]CoverProvider, len(providers)),
	}
	for _, provider := range providers {
		registry.providers[provider.Source()] = provider
	}
	return registry
}

// Get returns the provider with the given source tag, or nil if none
// is registered.
func (registry *ProviderRegistry) Get(source string) CoverProvider {
	return registry.providers[source]
}

// InPriorityOrder returns the registered providers in the fixed
// quality-priority order used for ANY-source lookups.
func (registry *ProviderRegistry) InPriorityOrder() []CoverProvider {
	ordered := make([]CoverProvider, 0, len(registry.providers))
	for _, source := range constants.ProviderPriorityOrder {
		if provider, ok := registry.providers[source]; ok {
			ordered = append(ordered, provider)
		}
	}
	return ordered
}

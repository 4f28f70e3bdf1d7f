package network_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/network"
	"github.com/readhaven/cover-services/util/logger"
	"github.com/readhaven/cover-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLongitoodClient(hostURL string) *network.LongitoodClient {
	log := logger.InitConsoleLogger("DEBUG")
	breaker := network.NewCircuitBreaker(3, 100*time.Millisecond)
	return network.NewLongitoodClient(hostURL, log, breaker)
}

func TestLongitoodRequestURL(t *testing.T) {
	client := newLongitoodClient("http://localhost:8080")
	book := testutil.GetBook()
	expected := fmt.Sprintf("http://localhost:8080/bookcover/%s", testutil.ISBN13)
	assert.Equal(t, expected, client.RequestURL(book))

	// Hyphenated ISBNs are normalized before they hit the URL.
	hyphenated := &service.Book{ISBN13: "978-0-316-76948-8"}
	assert.Equal(t, expected, client.RequestURL(hyphenated))

	// ISBN-10 alone is not enough for this provider.
	isbn10Only := &service.Book{ISBN10: testutil.ISBN10}
	assert.Equal(t, "", client.RequestURL(isbn10Only))
}

func TestLongitoodFetchCover(t *testing.T) {
	payload := map[string]string{"url": "https://cdn.example.com/covers/catcher.jpg"}
	server := httptest.NewServer(testutil.HttpJsonResponder(payload))
	defer server.Close()

	client := newLongitoodClient(server.URL)
	candidate, err := client.FetchCover(context.Background(),
		testutil.GetBook(), constants.PrefAny)
	require.Nil(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "https://cdn.example.com/covers/catcher.jpg", candidate.Location)
	assert.Equal(t, constants.SourceLongitood, candidate.Source)
	assert.Equal(t, testutil.ISBN13, candidate.SourceSystemID)
}

func TestLongitoodFetchCoverNotFound(t *testing.T) {
	server := httptest.NewServer(testutil.HttpStatusResponder(http.StatusNotFound))
	defer server.Close()

	client := newLongitoodClient(server.URL)
	candidate, err := client.FetchCover(context.Background(),
		testutil.GetBook(), constants.PrefAny)
	assert.Nil(t, candidate)
	assert.Equal(t, network.ErrNoCover, err)
}

func TestLongitoodFetchCoverEmptyURL(t *testing.T) {
	server := httptest.NewServer(testutil.HttpJsonResponder(map[string]string{"url": ""}))
	defer server.Close()

	client := newLongitoodClient(server.URL)
	candidate, err := client.FetchCover(context.Background(),
		testutil.GetBook(), constants.PrefAny)
	assert.Nil(t, candidate)
	assert.Equal(t, network.ErrNoCover, err)
}

func TestLongitoodFetchCoverNoISBN13(t *testing.T) {
	client := newLongitoodClient("http://localhost:8080")
	book := &service.Book{ISBN10: testutil.ISBN10, SourceID: testutil.SourceID}
	candidate, err := client.FetchCover(context.Background(), book, constants.PrefAny)
	assert.Nil(t, candidate)
	assert.Equal(t, network.ErrNoCover, err)
}

func TestLongitoodServerErrorTripsBreaker(t *testing.T) {
	server := httptest.NewServer(testutil.HttpStatusResponder(http.StatusBadGateway))
	defer server.Close()

	client := newLongitoodClient(server.URL)
	book := testutil.GetBook()
	for i := 0; i < 3; i++ {
		_, err := client.FetchCover(context.Background(), book, constants.PrefAny)
		require.NotNil(t, err)
	}
	_, err := client.FetchCover(context.Background(), book, constants.PrefAny)
	assert.Equal(t, network.ErrCircuitOpen, err)
}

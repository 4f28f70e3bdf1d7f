package network

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
)

// OpenLibraryClient looks up covers on an Open-Library-style covers
// service, where the cover URL is fully determined by the ISBN and a
// size suffix. With default=false, a missing cover is an honest 404
// instead of a 1x1 placeholder GIF.
type OpenLibraryClient struct {
	HostURL    string
	httpClient *http.Client
	logger     *logging.Logger
	breaker    *CircuitBreaker
}

func NewOpenLibraryClient(hostURL string, logger *logging.Logger, breaker *CircuitBreaker) *OpenLibraryClient {
	return &OpenLibraryClient{
		HostURL:    strings.TrimRight(hostURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		breaker:    breaker,
	}
}

func (client *OpenLibraryClient) Source() string {
	return constants.SourceOpenLibrary
}

// RequestURL returns the medium-size cover URL for the book's best
// ISBN, or empty when the book has none.
func (client *OpenLibraryClient) RequestURL(book *service.Book) string {
	return client.coverURL(book, constants.PrefAny)
}

func (client *OpenLibraryClient) coverURL(book *service.Book, pref string) string {
	isbn := book.PreferredISBN()
	if isbn == "" {
		return ""
	}
	size := "M"
	if pref == constants.PrefHighFirst || pref == constants.PrefHighOnly {
		size = "L"
	}
	return fmt.Sprintf("%s/b/isbn/%s-%s.jpg?default=false", client.HostURL, isbn, size)
}

// FetchCover confirms the cover exists with a HEAD request and
// returns a candidate pointing at it. The image bytes themselves are
// fetched later by the download path.
func (client *OpenLibraryClient) FetchCover(ctx context.Context, book *service.Book, pref string) (*service.ImageCandidate, error) {
	coverURL := client.coverURL(book, pref)
	if coverURL == "" {
		return nil, ErrNoCover
	}

	var candidate *service.ImageCandidate
	var noCover bool
	err := client.breaker.Execute(func() error {
		exists, err := client.coverExists(ctx, coverURL)
		if err != nil {
			return err
		}
		if !exists {
			noCover = true
			return nil
		}
		candidate = service.NewImageCandidate(coverURL, constants.SourceOpenLibrary, book.PreferredISBN())
		candidate.ResolutionPreference = pref
		return nil
	})
	if err != nil {
		return nil, err
	}
	if noCover {
		return nil, ErrNoCover
	}
	return candidate, nil
}

func (client *OpenLibraryClient) coverExists(ctx context.Context, coverURL string) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, coverURL, nil)
	if err != nil {
		return false, err
	}
	reqTime := time.Now()
	response, err := client.httpClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("HEAD %s: %v", coverURL, err)
	}
	defer response.Body.Close()
	client.logger.Infof("HEAD %s completed in %s", coverURL, time.Since(reqTime))

	if response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if response.StatusCode >= 400 {
		return false, fmt.Errorf("HEAD %s: server returned status code %d",
			coverURL, response.StatusCode)
	}
	return true, nil
}

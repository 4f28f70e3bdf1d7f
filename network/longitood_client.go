package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
)

// LongitoodClient looks up covers on a Longitood-style specialty
// service: a JSON endpoint keyed strictly by ISBN-13 that returns the
// cover's URL. The service has one size per book, so resolution
// preferences do not change the request.
type LongitoodClient struct {
	HostURL    string
	httpClient *http.Client
	logger     *logging.Logger
	breaker    *CircuitBreaker
}

func NewLongitoodClient(hostURL string, logger *logging.Logger, breaker *CircuitBreaker) *LongitoodClient {
	return &LongitoodClient{
		HostURL:    strings.TrimRight(hostURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		breaker:    breaker,
	}
}

func (client *LongitoodClient) Source() string {
	return constants.SourceLongitood
}

// RequestURL returns the lookup URL for the book's ISBN-13, or empty
// when the book has none. This provider cannot use ISBN-10 or catalog
// ids.
func (client *LongitoodClient) RequestURL(book *service.Book) string {
	isbn13 := service.NormalizeISBN(book.ISBN13)
	if isbn13 == "" {
		return ""
	}
	return fmt.Sprintf("%s/bookcover/%s", client.HostURL, isbn13)
}

func (client *LongitoodClient) FetchCover(ctx context.Context, book *service.Book, pref string) (*service.ImageCandidate, error) {
	requestURL := client.RequestURL(book)
	if requestURL == "" {
		return nil, ErrNoCover
	}

	var candidate *service.ImageCandidate
	var noCover bool
	err := client.breaker.Execute(func() error {
		coverURL, err := client.lookupCoverURL(ctx, requestURL)
		if err != nil {
			return err
		}
		if coverURL == "" {
			noCover = true
			return nil
		}
		candidate = service.NewImageCandidate(coverURL, constants.SourceLongitood, service.NormalizeISBN(book.ISBN13))
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

// lookupCoverURL returns the cover URL for the request, or empty when
// the service has no cover for that ISBN.
func (client *LongitoodClient) lookupCoverURL(ctx context.Context, requestURL string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", err
	}
	request.Header.Add("Accept", "application/json")

	reqTime := time.Now()
	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("GET %s: %v", requestURL, err)
	}
	defer response.Body.Close()
	client.logger.Infof("GET %s completed in %s", requestURL, time.Since(reqTime))

	if response.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: server returned status code %d",
			requestURL, response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("GET %s: %v", requestURL, err)
	}
	payload := &longitoodResponse{}
	err = json.Unmarshal(body, payload)
	if err != nil {
		return "", fmt.Errorf("GET %s: bad response: %v", requestURL, err)
	}
	return payload.URL, nil
}

type longitoodResponse struct {
	URL string `json:"url"`
}

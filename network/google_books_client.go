package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
)

// Image link names in a volumes response, from worst to best.
var googleLinksByQuality = []string{
	"smallThumbnail",
	"thumbnail",
	"small",
	"medium",
	"large",
	"extraLarge",
}

// GoogleBooksClient looks up covers through a Google-Books-style
// volumes API: one query by ISBN, then image link extraction from the
// first matching volume.
type GoogleBooksClient struct {
	HostURL    string
	httpClient *http.Client
	logger     *logging.Logger
	breaker    *CircuitBreaker
}

func NewGoogleBooksClient(hostURL string, logger *logging.Logger, breaker *CircuitBreaker) *GoogleBooksClient {
	return &GoogleBooksClient{
		HostURL:    strings.TrimRight(hostURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		breaker:    breaker,
	}
}

func (client *GoogleBooksClient) Source() string {
	return constants.SourceGoogleBooks
}

// RequestURL returns the volumes query for the book's best ISBN, or
// empty when the book has none.
func (client *GoogleBooksClient) RequestURL(book *service.Book) string {
	isbn := book.PreferredISBN()
	if isbn == "" {
		return ""
	}
	return fmt.Sprintf("%s/volumes?q=%s&maxResults=1",
		client.HostURL, url.QueryEscape("isbn:"+isbn))
}

// FetchCover queries the volumes API and returns a candidate for the
// best image link the first matching volume offers. The candidate's
// dimensions are unknown; the download path measures them later.
func (client *GoogleBooksClient) FetchCover(ctx context.Context, book *service.Book, pref string) (*service.ImageCandidate, error) {
	requestURL := client.RequestURL(book)
	if requestURL == "" {
		return nil, ErrNoCover
	}

	var candidate *service.ImageCandidate
	var noCover bool
	err := client.breaker.Execute(func() error {
		imageURL, err := client.lookupImageURL(ctx, requestURL, pref)
		if err != nil {
			if errors.Is(err, ErrNoCover) {
				noCover = true
				return nil
			}
			return err
		}
		candidate = service.NewImageCandidate(imageURL, constants.SourceGoogleBooks, book.PreferredISBN())
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

func (client *GoogleBooksClient) lookupImageURL(ctx context.Context, requestURL, pref string) (string, error) {
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
		return "", ErrNoCover
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: server returned status code %d",
			requestURL, response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("GET %s: %v", requestURL, err)
	}
	volumes := &googleVolumesResponse{}
	err = json.Unmarshal(body, volumes)
	if err != nil {
		return "", fmt.Errorf("GET %s: bad volumes response: %v", requestURL, err)
	}

	links := volumes.firstImageLinks()
	if len(links) == 0 {
		return "", ErrNoCover
	}
	rawURL := pickGoogleLink(links, pref)
	if rawURL == "" {
		return "", ErrNoCover
	}
	return normalizeGoogleImageURL(rawURL, pref), nil
}

type googleVolumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			ImageLinks map[string]string `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (r *googleVolumesResponse) firstImageLinks() map[string]string {
	if r.TotalItems == 0 || len(r.Items) == 0 {
		return nil
	}
	return r.Items[0].VolumeInfo.ImageLinks
}

// pickGoogleLink chooses the image link to use. High-resolution
// preferences walk the links from best to worst; ANY settles for the
// standard thumbnail before trying anything bigger.
func pickGoogleLink(links map[string]string, pref string) string {
	if pref == constants.PrefHighFirst || pref == constants.PrefHighOnly {
		for i := len(googleLinksByQuality) - 1; i >= 0; i-- {
			if link := links[googleLinksByQuality[i]]; link != "" {
				return link
			}
		}
		return ""
	}
	if link := links["thumbnail"]; link != "" {
		return link
	}
	for i := len(googleLinksByQuality) - 1; i >= 0; i-- {
		if link := links[googleLinksByQuality[i]]; link != "" {
			return link
		}
	}
	return ""
}

// normalizeGoogleImageURL cleans up a content URL the way the books
// frontend expects: https only, no page-curl effect, zoom capped, and
// a wide rendition requested when the caller wants high resolution.
func normalizeGoogleImageURL(rawURL, pref string) string {
	cleaned := strings.Replace(rawURL, "http://", "https://", 1)
	parsed, err := url.Parse(cleaned)
	if err != nil {
		return cleaned
	}
	query := parsed.Query()
	if query.Get("edge") == "curl" {
		query.Del("edge")
	}
	if zoomStr := query.Get("zoom"); zoomStr != "" {
		zoom, err := strconv.Atoi(zoomStr)
		if err != nil || zoom > constants.GoogleMaxZoom {
			query.Set("zoom", strconv.Itoa(constants.GoogleMaxZoom))
		}
	}
	if pref == constants.PrefHighFirst || pref == constants.PrefHighOnly {
		query.Set("w", "1280")
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

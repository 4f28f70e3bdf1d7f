package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/util"
)

// DownloadedImage is a cover image pulled into memory, with its
// dimensions measured from the actual bytes.
type DownloadedImage struct {
	URL         string
	ContentType string
	Format      string
	Width       int
	Height      int
	Data        []byte
}

// ImageClient downloads cover images from provider URLs. Downloads
// are capped at maxBytes, and anything that does not decode as an
// image is rejected, so HTML error pages and oversized blobs never
// make it into the caches.
type ImageClient struct {
	httpClient *http.Client
	logger     *logging.Logger
	maxBytes   int64
}

func NewImageClient(maxBytes int64, logger *logging.Logger) *ImageClient {
	return &ImageClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		maxBytes:   maxBytes,
	}
}

func (client *ImageClient) Download(ctx context.Context, imageURL string) (*DownloadedImage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	reqTime := time.Now()
	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %v", imageURL, err)
	}
	defer response.Body.Close()
	client.logger.Infof("GET %s completed in %s", imageURL, time.Since(reqTime))

	if response.StatusCode >= 400 {
		return nil, fmt.Errorf("GET %s: server returned status code %d",
			imageURL, response.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, client.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %v", imageURL, err)
	}
	if int64(len(data)) > client.maxBytes {
		return nil, fmt.Errorf("GET %s: image exceeds %d byte limit",
			imageURL, client.maxBytes)
	}

	width, height, format, err := util.ProbeImage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("GET %s: response is not a decodable image: %v",
			imageURL, err)
	}

	return &DownloadedImage{
		URL:         imageURL,
		ContentType: response.Header.Get("Content-Type"),
		Format:      format,
		Width:       width,
		Height:      height,
		Data:        data,
	}, nil
}

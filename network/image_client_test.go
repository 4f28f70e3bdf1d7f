package network_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/readhaven/cover-services/network"
	"github.com/readhaven/cover-services/util/logger"
	"github.com/readhaven/cover-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImageClient(maxBytes int64) *network.ImageClient {
	log := logger.InitConsoleLogger("DEBUG")
	return network.NewImageClient(maxBytes, log)
}

func TestImageDownload(t *testing.T) {
	pngData := testutil.PngBytes(300, 450)
	server := httptest.NewServer(testutil.HttpImageResponder("image/png", pngData))
	defer server.Close()

	client := newImageClient(5 * 1024 * 1024)
	image, err := client.Download(context.Background(), server.URL+"/cover.png")
	require.Nil(t, err)
	require.NotNil(t, image)
	assert.Equal(t, server.URL+"/cover.png", image.URL)
	assert.Equal(t, "image/png", image.ContentType)
	assert.Equal(t, "png", image.Format)
	assert.Equal(t, 300, image.Width)
	assert.Equal(t, 450, image.Height)
	assert.Equal(t, pngData, image.Data)
}

func TestImageDownloadJpeg(t *testing.T) {
	server := httptest.NewServer(
		testutil.HttpImageResponder("image/jpeg", testutil.JpegBytes(60, 90)))
	defer server.Close()

	client := newImageClient(5 * 1024 * 1024)
	image, err := client.Download(context.Background(), server.URL)
	require.Nil(t, err)
	assert.Equal(t, "jpeg", image.Format)
	assert.Equal(t, 60, image.Width)
	assert.Equal(t, 90, image.Height)
}

func TestImageDownloadRejectsNonImage(t *testing.T) {
	server := httptest.NewServer(testutil.HttpStringResponder(
		testutil.EmptyHeaders, "<html><body>Rate limit exceeded</body></html>"))
	defer server.Close()

	client := newImageClient(5 * 1024 * 1024)
	image, err := client.Download(context.Background(), server.URL)
	assert.Nil(t, image)
	require.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "not a decodable image"))
}

func TestImageDownloadRejectsOversized(t *testing.T) {
	server := httptest.NewServer(
		testutil.HttpImageResponder("image/png", testutil.PngBytes(300, 450)))
	defer server.Close()

	client := newImageClient(64)
	image, err := client.Download(context.Background(), server.URL)
	assert.Nil(t, image)
	require.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "byte limit"))
}

func TestImageDownloadServerError(t *testing.T) {
	server := httptest.NewServer(testutil.HttpStatusResponder(500))
	defer server.Close()

	client := newImageClient(5 * 1024 * 1024)
	image, err := client.Download(context.Background(), server.URL)
	assert.Nil(t, image)
	require.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "status code 500"))
}

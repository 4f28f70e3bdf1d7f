package network_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRefresh(t *testing.T) {
	var gotTopic string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotTopic = r.URL.Query().Get("topic")
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			w.Write([]byte("OK"))
		}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	request := service.NewRefreshRequest("9780316769488", "HIGH_FIRST")
	err := client.EnqueueRefresh("cover_refresh", request)
	require.Nil(t, err)
	assert.Equal(t, "cover_refresh", gotTopic)

	parsed, err := service.RefreshRequestFromJSON(gotBody)
	require.Nil(t, err)
	assert.Equal(t, "9780316769488", parsed.BookKey)
	assert.Equal(t, "HIGH_FIRST", parsed.Preference)
}

func TestEnqueueRefreshServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("nope"))
		}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	request := service.NewRefreshRequest("9780316769488", "ANY")
	err := client.EnqueueRefresh("cover_refresh", request)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "nope")
}

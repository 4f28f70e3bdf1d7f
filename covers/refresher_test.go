package covers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/covers"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresherReplacesCachedCover(t *testing.T) {
	tc := newTestContext(t)
	_, err := tc.Context.LocalCache.Put(testutil.ISBN13, ".jpg", testutil.JpegBytes(200, 300))
	require.Nil(t, err)
	staleKey := "covers/" + testutil.ISBN13 + ".jpg"
	err = tc.Context.PrimaryObjectStore().PutCover(
		context.Background(), staleKey, testutil.JpegBytes(200, 300), "image/jpeg", 200, 300)
	require.Nil(t, err)

	dead := notFoundServer(t)
	longitood := longitoodServer(t, "image/png", testutil.PngBytes(560, 840))
	rewireProviders(tc, dead.URL, longitood.URL, dead.URL)

	refresher := covers.NewRefresher(tc.Context)
	result := refresher.Refresh(context.Background(),
		service.NewRefreshRequest(testutil.ISBN13, constants.PrefAny))

	require.NotNil(t, result)
	assert.True(t, result.Started())
	assert.True(t, result.Finished())
	assert.True(t, result.Succeeded())

	// The refresh bypassed both caches, or it would have stopped at
	// the 200x300 it was trying to beat.
	refreshed, err := tc.Context.LocalCache.Find(testutil.ISBN13)
	require.Nil(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, 560, refreshed.Width)

	stored, err := tc.Context.PrimaryObjectStore().FindCover(
		context.Background(), "covers/"+testutil.ISBN13)
	require.Nil(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "covers/"+testutil.ISBN13+".png", stored.Location)
	assert.Equal(t, 560, stored.Width)

	// The stale jpg rendition is gone from the object store too.
	_, err = tc.Context.PrimaryObjectStore().Stat(context.Background(), staleKey)
	require.NotNil(t, err)
	assert.Equal(t, 404, minio.ToErrorResponse(err).StatusCode)

	saved, err := tc.Context.RedisClient.RefreshResultGet(testutil.ISBN13)
	require.Nil(t, err)
	assert.True(t, saved.Succeeded())

	// The lock came off on the way out.
	acquired, err := tc.Context.RedisClient.RefreshLockAcquire(
		testutil.ISBN13, tc.Context.Config.RefreshLockTTL)
	require.Nil(t, err)
	assert.True(t, acquired)
}

func TestRefresherNothingFound(t *testing.T) {
	tc := newTestContext(t)
	_, err := tc.Context.LocalCache.Put(testutil.ISBN13, ".png", testutil.PngBytes(300, 450))
	require.Nil(t, err)
	dead := notFoundServer(t)
	rewireProviders(tc, dead.URL, dead.URL, dead.URL)

	refresher := covers.NewRefresher(tc.Context)
	result := refresher.Refresh(context.Background(),
		service.NewRefreshRequest(testutil.ISBN13, constants.PrefAny))

	assert.True(t, result.Started())
	assert.True(t, result.Finished())
	assert.False(t, result.Succeeded())
	require.True(t, result.HasErrors())
	assert.Equal(t, testutil.ISBN13, result.Errors[0].BookKey)
	assert.Equal(t, constants.SourceAny, result.Errors[0].Identifier)
	assert.Equal(t, "no provider returned a usable cover", result.Errors[0].Message)
	assert.False(t, result.Errors[0].IsFatal)

	// A failed refresh leaves the cached cover alone.
	cached, err := tc.Context.LocalCache.Find(testutil.ISBN13)
	require.Nil(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 300, cached.Width)

	saved, err := tc.Context.RedisClient.RefreshResultGet(testutil.ISBN13)
	require.Nil(t, err)
	assert.True(t, saved.HasErrors())
}

func TestRefresherSkipsWhenLocked(t *testing.T) {
	tc := newTestContext(t)
	acquired, err := tc.Context.RedisClient.RefreshLockAcquire(
		testutil.ISBN13, tc.Context.Config.RefreshLockTTL)
	require.Nil(t, err)
	require.True(t, acquired)

	refresher := covers.NewRefresher(tc.Context)
	result := refresher.Refresh(context.Background(),
		service.NewRefreshRequest(testutil.ISBN13, constants.PrefAny))

	// Somebody else is refreshing this key; the run never starts and
	// nothing is exported.
	assert.False(t, result.Started())
	assert.True(t, result.Finished())
	saved, err := tc.Context.RedisClient.RefreshResultGet(testutil.ISBN13)
	assert.NotNil(t, err)
	assert.Nil(t, saved)

	// And the holder keeps the lock.
	stillLocked, err := tc.Context.RedisClient.RefreshLockAcquire(
		testutil.ISBN13, tc.Context.Config.RefreshLockTTL)
	require.Nil(t, err)
	assert.False(t, stillLocked)
	require.Nil(t, tc.Context.RedisClient.RefreshLockRelease(testutil.ISBN13))
}

func TestRefresherRedisDown(t *testing.T) {
	tc := newTestContext(t)
	tc.RedisServer.Close()

	refresher := covers.NewRefresher(tc.Context)
	result := refresher.Refresh(context.Background(),
		service.NewRefreshRequest(testutil.ISBN13, constants.PrefAny))

	assert.True(t, result.Started())
	assert.True(t, result.Finished())
	require.True(t, result.HasErrors())
	assert.Equal(t, "redis", result.Errors[0].Identifier)
}

func TestDispatcherDedupesRecentKeys(t *testing.T) {
	tc := newTestContext(t)
	dead := notFoundServer(t)
	rewireProviders(tc, dead.URL, dead.URL, dead.URL)
	dispatcher := covers.NewDispatcher(tc.Context)

	otherKey := "9780140283334"
	request := service.NewRefreshRequest(testutil.ISBN13, constants.PrefAny)

	assert.True(t, dispatcher.Enqueue(request))
	assert.False(t, dispatcher.Enqueue(request))
	assert.True(t, dispatcher.Enqueue(service.NewRefreshRequest(otherKey, constants.PrefAny)))

	// Both accepted refreshes run to completion and export results.
	for _, key := range []string{testutil.ISBN13, otherKey} {
		require.Eventually(t, func() bool {
			result, err := tc.Context.RedisClient.RefreshResultGet(key)
			return err == nil && result != nil && result.Finished()
		}, 5*time.Second, 50*time.Millisecond)
	}
}

func TestDispatcherDropsWhenPoolFull(t *testing.T) {
	tc := newTestContext(t)
	dead := notFoundServer(t)
	longitood := slowLongitoodServer(t, 300*time.Millisecond, testutil.PngBytes(200, 300))
	rewireProviders(tc, dead.URL, longitood.URL, dead.URL)
	dispatcher := covers.NewDispatcher(tc.Context)

	keys := []string{
		"9780140283334",
		"9780261103573",
		"9780316769488",
		"9780451524935",
	}
	assert.True(t, dispatcher.Enqueue(service.NewRefreshRequest(keys[0], constants.PrefAny)))
	assert.True(t, dispatcher.Enqueue(service.NewRefreshRequest(keys[1], constants.PrefAny)))
	assert.True(t, dispatcher.Enqueue(service.NewRefreshRequest(keys[2], constants.PrefAny)))

	// Every slot is busy inside the slow provider, so the fourth key
	// is dropped rather than queued.
	assert.False(t, dispatcher.Enqueue(service.NewRefreshRequest(keys[3], constants.PrefAny)))

	for _, key := range keys[:3] {
		require.Eventually(t, func() bool {
			result, err := tc.Context.RedisClient.RefreshResultGet(key)
			return err == nil && result != nil && result.Finished()
		}, 5*time.Second, 50*time.Millisecond)
	}
	dropped, err := tc.Context.RedisClient.RefreshResultGet(keys[3])
	assert.NotNil(t, err)
	assert.Nil(t, dropped)
}

// slowLongitoodServer delays the bookcover lookup, holding each
// refresh in flight long enough for the pool tests to observe it.
func slowLongitoodServer(t *testing.T, delay time.Duration, imageData []byte) *httptest.Server {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.Handle("/covers/", testutil.HttpImageResponder("image/png", imageData))
	mux.HandleFunc("/bookcover/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"url":%q}`, server.URL+"/covers/"+testutil.ISBN13+".png")
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

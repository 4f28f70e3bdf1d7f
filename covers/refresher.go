package covers

import (
	"context"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/models/service"
)

const (
	dispatcherPoolSize = 3
	recentKeysCapacity = 100
)

// Refresher re-runs fetch, select, and persist for a book key,
// bypassing the caches so a better cover can replace what's stored.
// Runs are serialized per key through a Redis lock with a TTL, so a
// crashed refresh cannot hold a key forever.
type Refresher struct {
	Context      *common.Context
	orchestrator *Orchestrator
}

func NewRefresher(context *common.Context) *Refresher {
	return &Refresher{
		Context:      context,
		orchestrator: NewOrchestrator(context),
	}
}

// Refresh refreshes one key. If another process holds the refresh
// lock, the run is skipped and the returned result is finished but
// never started. Completed results are exported to Redis so an
// operator can see when a key was last refreshed and how it went.
func (r *Refresher) Refresh(ctx context.Context, request *service.RefreshRequest) *service.RefreshResult {
	result := service.NewRefreshResult(request.BookKey)

	acquired, err := r.Context.RedisClient.RefreshLockAcquire(
		request.BookKey, r.Context.Config.RefreshLockTTL)
	if err != nil {
		result.Start()
		result.AddError(service.NewProcessingError(
			request.BookKey, "redis", err.Error(), false))
		result.Finish()
		r.saveResult(result)
		return result
	}
	if !acquired {
		r.Context.Logger.Infof(
			"Refresh of %s already in progress elsewhere; skipping", request.BookKey)
		result.Finish()
		return result
	}
	defer r.releaseLock(request.BookKey)

	result.Start()
	resolution := r.orchestrator.ResolveCover(ctx, &Request{
		Book:        BookFromKey(request.BookKey),
		Preference:  request.Preference,
		SkipCaches:  true,
		SkipRefresh: true,
	})
	if resolution.IsPlaceholder() {
		// The caches keep whatever they had; this only means no
		// provider offered a replacement right now.
		result.AddError(service.NewProcessingError(
			request.BookKey, constants.SourceAny,
			"no provider returned a usable cover", false))
	}
	result.Finish()
	r.saveResult(result)
	return result
}

func (r *Refresher) releaseLock(bookKey string) {
	if err := r.Context.RedisClient.RefreshLockRelease(bookKey); err != nil {
		r.Context.Logger.Errorf("Could not release refresh lock for %s: %v", bookKey, err)
	}
}

func (r *Refresher) saveResult(result *service.RefreshResult) {
	if err := r.Context.RedisClient.RefreshResultSave(result); err != nil {
		r.Context.Logger.Errorf("Could not save refresh result for %s: %v", result.BookKey, err)
	}
}

// Dispatcher is the in-process refresh fallback used when no NSQ is
// configured: a small bounded pool of refresh goroutines plus a ring
// of recently handled keys, so a hot book does not refresh once per
// request.
type Dispatcher struct {
	context   *common.Context
	refresher *Refresher
	recent    *service.RingList
	slots     chan struct{}
}

func NewDispatcher(context *common.Context) *Dispatcher {
	return &Dispatcher{
		context:   context,
		refresher: NewRefresher(context),
		recent:    service.NewRingList(recentKeysCapacity),
		slots:     make(chan struct{}, dispatcherPoolSize),
	}
}

// Enqueue starts a background refresh for the request, unless the
// key was handled recently or every slot is busy. Returns whether a
// refresh was actually started. Never blocks.
func (d *Dispatcher) Enqueue(request *service.RefreshRequest) bool {
	if d.recent.Contains(request.BookKey) {
		d.context.Logger.Debugf("Refresh for %s recently handled; skipping", request.BookKey)
		return false
	}
	select {
	case d.slots <- struct{}{}:
		d.recent.Add(request.BookKey)
		go func() {
			defer func() { <-d.slots }()
			d.refresher.Refresh(context.Background(), request)
		}()
		return true
	default:
		d.context.Logger.Warningf("Refresh pool is full; dropping refresh for %s", request.BookKey)
		return false
	}
}

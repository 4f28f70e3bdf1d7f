package covers

import (
	"context"
	"errors"
	"sync"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/network"
	"github.com/readhaven/cover-services/util"
)

// Request asks for one book's cover.
type Request struct {
	// Book supplies the identifiers to resolve. Title is used only
	// in log messages.
	Book *service.Book

	// Source restricts the lookup to a single provider. Empty or ANY
	// walks all providers in quality-priority order.
	Source string

	// Preference is the caller's resolution preference: ANY,
	// HIGH_FIRST, or HIGH_ONLY. Empty means ANY.
	Preference string

	// AllowAnyFallback lets a single-source request fall back to the
	// remaining providers when the requested one cannot help.
	AllowAnyFallback bool

	// SkipCaches bypasses both cache tiers and goes straight to the
	// providers. The refresh path sets this; a refresh that read its
	// own cache would never find anything better.
	SkipCaches bool

	// SkipRefresh suppresses the background refresh trigger, so a
	// refresh run cannot enqueue another refresh of the same key.
	SkipRefresh bool
}

// Resolution is the outcome of one resolution run. Candidate is
// never nil: when nothing could be found or selected it holds the
// placeholder.
type Resolution struct {
	BookKey   string
	Candidate *service.ImageCandidate
	Trace     *service.ResolutionTrace
	FromCache bool
}

// IsPlaceholder reports whether this resolution fell through to the
// placeholder image.
func (r *Resolution) IsPlaceholder() bool {
	return r.Candidate != nil && r.Candidate.Source == constants.SourceNone
}

// Orchestrator runs the cover resolution state machine: check the
// local cache, then the object store, then query providers, then
// select, persist, and respond, with a background refresh trigger on
// cache-served responses. Every run produces a provenance trace, and
// every run ends in a usable candidate; total failure means the
// placeholder, not an error.
type Orchestrator struct {
	Context *common.Context

	dispatcherOnce sync.Once
	dispatcher     *Dispatcher
}

func NewOrchestrator(context *common.Context) *Orchestrator {
	return &Orchestrator{Context: context}
}

// ResolveCover resolves one cover. The run is bounded by the resolve
// timeout from config on top of whatever deadline the caller's
// context already carries. On deadline it returns the best candidate
// gathered so far, or the placeholder.
func (o *Orchestrator) ResolveCover(ctx context.Context, request *Request) *Resolution {
	pref := normalizePref(request.Preference)
	bookKey, ok := Resolve(request.Book)
	trace := service.NewResolutionTrace(bookKey)
	if !ok {
		o.Context.Logger.Warningf(
			"Book %q has no usable identifier; serving placeholder", bookTitle(request.Book))
		return o.placeholderResolution(bookKey, pref, trace)
	}

	ctx, cancel := context.WithTimeout(ctx, o.Context.Config.ResolveTimeout)
	defer cancel()

	candidates := make([]*service.ImageCandidate, 0, 4)
	downloads := make(map[*service.ImageCandidate]*network.DownloadedImage)

	if !request.SkipCaches {
		if local := o.checkLocalCache(bookKey, trace); local != nil {
			candidates = append(candidates, local)
			if o.acceptable(local, pref) {
				return o.respond(ctx, request, bookKey, pref, trace, candidates, downloads)
			}
		}
		if remote := o.checkRemoteCache(ctx, bookKey, trace); remote != nil {
			candidates = append(candidates, remote)
			if o.acceptable(remote, pref) {
				return o.respond(ctx, request, bookKey, pref, trace, candidates, downloads)
			}
		}
	}

	for _, provider := range o.providersFor(request) {
		if ctx.Err() != nil {
			trace.RecordAttempt(&service.AttemptedSource{
				Source:        provider.Source(),
				URLAttempted:  provider.RequestURL(request.Book),
				Status:        constants.AttemptSkipped,
				FailureReason: "resolve budget exhausted",
			})
			break
		}
		candidate, download := o.queryProvider(ctx, provider, request.Book, pref, trace)
		if candidate == nil {
			continue
		}
		candidates = append(candidates, candidate)
		downloads[candidate] = download
		if o.acceptable(candidate, pref) {
			break
		}
	}

	return o.respond(ctx, request, bookKey, pref, trace, candidates, downloads)
}

// checkLocalCache probes the disk tier. Misses and read errors both
// come back nil; a flaky disk is a miss, not a failed resolution.
func (o *Orchestrator) checkLocalCache(bookKey string, trace *service.ResolutionTrace) *service.ImageCandidate {
	pathBase := o.Context.LocalCache.PathFor(bookKey, "")
	candidate, err := o.Context.LocalCache.Find(bookKey)
	if err != nil {
		o.Context.Logger.Errorf("Local cache read for %s: %v", bookKey, err)
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        constants.SourceLocalCache,
			URLAttempted:  pathBase,
			Status:        constants.AttemptFailure,
			FailureReason: err.Error(),
		})
		return nil
	}
	if candidate == nil {
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        constants.SourceLocalCache,
			URLAttempted:  pathBase,
			Status:        constants.AttemptFailure,
			FailureReason: "cache miss",
		})
		return nil
	}
	trace.RecordAttempt(&service.AttemptedSource{
		Source:       constants.SourceLocalCache,
		URLAttempted: pathBase,
		Status:       constants.AttemptSuccess,
		FetchedURL:   candidate.Location,
		Width:        candidate.Width,
		Height:       candidate.Height,
	})
	return candidate
}

// checkRemoteCache probes the object store tier under the short
// cache-read budget.
func (o *Orchestrator) checkRemoteCache(ctx context.Context, bookKey string, trace *service.ResolutionTrace) *service.ImageCandidate {
	keyBase := o.Context.Config.StorageKeyPrefix + bookKey
	store := o.Context.PrimaryObjectStore()
	if store == nil {
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        constants.SourceS3Cache,
			URLAttempted:  keyBase,
			Status:        constants.AttemptSkipped,
			FailureReason: "no object store configured",
		})
		return nil
	}
	readCtx, cancel := context.WithTimeout(ctx, o.Context.Config.CacheReadTimeout)
	defer cancel()

	candidate, err := store.FindCover(readCtx, keyBase)
	if err != nil {
		o.Context.Logger.Errorf("Object store read for %s: %v", bookKey, err)
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        constants.SourceS3Cache,
			URLAttempted:  keyBase,
			Status:        statusForError(err),
			FailureReason: err.Error(),
		})
		return nil
	}
	if candidate == nil {
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        constants.SourceS3Cache,
			URLAttempted:  keyBase,
			Status:        constants.AttemptFailure,
			FailureReason: "cache miss",
		})
		return nil
	}
	trace.RecordAttempt(&service.AttemptedSource{
		Source:       constants.SourceS3Cache,
		URLAttempted: keyBase,
		Status:       constants.AttemptSuccess,
		FetchedURL:   candidate.Location,
		Width:        candidate.Width,
		Height:       candidate.Height,
	})
	return candidate
}

// queryProvider runs one provider under its own slice of the budget,
// then downloads and probes the image it points at. The probe is
// what puts real dimensions on the candidate; it also rejects the
// HTML error pages some providers serve with a 200.
func (o *Orchestrator) queryProvider(ctx context.Context, provider network.CoverProvider, book *service.Book, pref string, trace *service.ResolutionTrace) (*service.ImageCandidate, *network.DownloadedImage) {
	requestURL := provider.RequestURL(book)
	providerCtx, cancel := context.WithTimeout(ctx, o.Context.Config.ProviderTimeout)
	defer cancel()

	candidate, err := provider.FetchCover(providerCtx, book, pref)
	if err != nil {
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        provider.Source(),
			URLAttempted:  requestURL,
			Status:        statusForError(err),
			FailureReason: err.Error(),
		})
		return nil, nil
	}

	download, err := o.Context.ImageClient.Download(providerCtx, candidate.Location)
	if err != nil {
		trace.RecordAttempt(&service.AttemptedSource{
			Source:        provider.Source(),
			URLAttempted:  requestURL,
			Status:        constants.AttemptFailure,
			FailureReason: err.Error(),
			FetchedURL:    candidate.Location,
		})
		return nil, nil
	}
	candidate.Width = download.Width
	candidate.Height = download.Height

	trace.RecordAttempt(&service.AttemptedSource{
		Source:       provider.Source(),
		URLAttempted: requestURL,
		Status:       constants.AttemptSuccess,
		FetchedURL:   candidate.Location,
		Width:        download.Width,
		Height:       download.Height,
	})
	return candidate, download
}

// respond runs selection over everything gathered, persists a
// provider-fetched winner through both tiers, seals and exports the
// trace, and fires the background refresh on cache-served responses.
func (o *Orchestrator) respond(ctx context.Context, request *Request, bookKey, pref string, trace *service.ResolutionTrace, candidates []*service.ImageCandidate, downloads map[*service.ImageCandidate]*network.DownloadedImage) *Resolution {
	pool := candidates
	if pref == constants.PrefHighOnly {
		pool = make([]*service.ImageCandidate, 0, len(candidates))
		for _, candidate := range candidates {
			if candidate.MeetsHighRes() {
				pool = append(pool, candidate)
			}
		}
	}

	winner, reason := SelectBest(pool, o.Context.Config.PlaceholderPath)
	if winner == nil {
		o.Context.Logger.Infof("No cover for %s (%s); serving placeholder", bookKey, reason)
		return o.placeholderResolution(bookKey, pref, trace)
	}

	fromCache := winner.IsCacheResident()
	selected := &service.SelectedImageInfo{
		Source:               winner.Source,
		FinalURL:             winner.Location,
		ResolutionPreference: pref,
		Width:                winner.Width,
		Height:               winner.Height,
		SelectionReason:      reason,
		StorageLocation:      winner.StorageLocation,
	}
	if winner.StorageLocation == constants.StorageLocationS3 {
		selected.StorageKey = winner.Location
	}

	if !fromCache {
		if download := downloads[winner]; download != nil {
			if storageKey := o.persist(ctx, bookKey, download); storageKey != "" {
				selected.StorageLocation = constants.StorageLocationS3
				selected.StorageKey = storageKey
			}
		}
	} else if winner.StorageLocation == constants.StorageLocationS3 {
		go o.backfillLocalCache(bookKey, winner.Location)
	}

	trace.RecordSelection(selected)
	o.finalizeTrace(trace)

	if fromCache && !request.SkipRefresh {
		o.triggerRefresh(bookKey, pref)
	}
	return &Resolution{
		BookKey:   bookKey,
		Candidate: winner,
		Trace:     trace,
		FromCache: fromCache,
	}
}

// persist writes the winning bytes through both tiers and returns
// the object store key, or empty when the primary store write
// failed. Tier write failures are logged and swallowed; the caller
// already has the image.
func (o *Orchestrator) persist(ctx context.Context, bookKey string, download *network.DownloadedImage) string {
	extension := coverExtension(download)
	contentType := download.ContentType
	if contentType == "" {
		contentType = "image/" + download.Format
	}

	if _, err := o.Context.LocalCache.Put(bookKey, extension, download.Data); err != nil {
		o.Context.Logger.Errorf("Could not write cover %s to local cache: %v", bookKey, err)
	}

	storageKey := o.Context.Config.StorageKeyPrefix + bookKey + extension
	persisted := ""
	for target, store := range o.Context.ObjectStores {
		err := store.PutCover(ctx, storageKey, download.Data, contentType, download.Width, download.Height)
		if err != nil {
			o.Context.Logger.Errorf("Could not write cover %s to %s store: %v", bookKey, target, err)
			continue
		}
		if target == constants.S3TargetPrimary {
			persisted = storageKey
		}
	}
	return persisted
}

// backfillLocalCache copies an object-store hit down to the disk
// tier, so the next lookup for this key is a local hit. Runs off the
// request path; failures only cost us the backfill.
func (o *Orchestrator) backfillLocalCache(bookKey, storageKey string) {
	data, err := o.Context.PrimaryObjectStore().GetBytes(
		context.Background(), storageKey, o.Context.Config.MaxObjectScanBytes)
	if err != nil {
		o.Context.Logger.Errorf("Could not backfill local cache for %s: %v", bookKey, err)
		return
	}
	extension := util.KeyExtension(storageKey)
	if extension == "" {
		extension = ".jpg"
	}
	if _, err = o.Context.LocalCache.Put(bookKey, extension, data); err != nil {
		o.Context.Logger.Errorf("Could not backfill local cache for %s: %v", bookKey, err)
		return
	}
	o.Context.Logger.Debugf("Backfilled local cache for %s from %s", bookKey, storageKey)
}

// triggerRefresh queues a background refresh for the key. NSQ when
// configured, the in-process dispatcher otherwise. Fire and forget;
// a failed trigger never affects the response.
func (o *Orchestrator) triggerRefresh(bookKey, pref string) {
	request := service.NewRefreshRequest(bookKey, pref)
	if o.Context.Config.NsqURL != "" {
		err := o.Context.NSQClient.EnqueueRefresh(constants.TopicCoverRefresh, request)
		if err == nil {
			return
		}
		o.Context.Logger.Errorf("Could not queue refresh for %s: %v", bookKey, err)
	}
	o.inProcessDispatcher().Enqueue(request)
}

func (o *Orchestrator) inProcessDispatcher() *Dispatcher {
	o.dispatcherOnce.Do(func() {
		o.dispatcher = NewDispatcher(o.Context)
	})
	return o.dispatcher
}

func (o *Orchestrator) placeholderResolution(bookKey, pref string, trace *service.ResolutionTrace) *Resolution {
	placeholderPath := o.Context.Config.PlaceholderPath
	trace.RecordSelection(&service.SelectedImageInfo{
		Source:               constants.SourceNone,
		FinalURL:             placeholderPath,
		ResolutionPreference: pref,
		SelectionReason:      constants.ReasonPlaceholder,
		StorageLocation:      constants.StorageLocationNone,
	})
	o.finalizeTrace(trace)
	return &Resolution{
		BookKey:   bookKey,
		Candidate: service.NewPlaceholderCandidate(placeholderPath),
		Trace:     trace,
	}
}

// finalizeTrace seals the trace and exports it: one log line plus
// the Redis record the admin trace endpoint reads.
func (o *Orchestrator) finalizeTrace(trace *service.ResolutionTrace) {
	trace.Finish()
	jsonData, err := trace.ToJSON()
	if err != nil {
		o.Context.Logger.Errorf("Could not serialize trace for %s: %v", trace.BookKey, err)
		return
	}
	o.Context.Logger.Infof("Resolved cover %s: %s", trace.BookKey, jsonData)
	if trace.BookKey == "" {
		return
	}
	if err = o.Context.RedisClient.TraceSave(trace); err != nil {
		o.Context.Logger.Errorf("Could not save trace for %s to redis: %v", trace.BookKey, err)
	}
}

// acceptable says whether a candidate lets the walk stop early. For
// high-resolution preferences only a measured high-res image stops
// the search; HIGH_FIRST keeps lesser candidates in play for final
// selection, it just keeps looking.
func (o *Orchestrator) acceptable(candidate *service.ImageCandidate, pref string) bool {
	if candidate == nil || !candidate.IsValid(o.Context.Config.PlaceholderPath) {
		return false
	}
	if pref == constants.PrefHighOnly || pref == constants.PrefHighFirst {
		return candidate.MeetsHighRes()
	}
	return true
}

// providersFor returns the providers to query, in order. A request
// for one recognized provider gets that provider, plus the rest of
// the priority order when fallback is allowed. Everything else gets
// the full priority order.
func (o *Orchestrator) providersFor(request *Request) []network.CoverProvider {
	registry := o.Context.Providers
	source := constants.SourceFromString(request.Source)
	if constants.IsProviderSource(source) {
		if provider := registry.Get(source); provider != nil {
			if !request.AllowAnyFallback {
				return []network.CoverProvider{provider}
			}
			providers := []network.CoverProvider{provider}
			for _, other := range registry.InPriorityOrder() {
				if other.Source() != source {
					providers = append(providers, other)
				}
			}
			return providers
		}
	}
	return registry.InPriorityOrder()
}

func statusForError(err error) string {
	if errors.Is(err, network.ErrCircuitOpen) {
		return constants.AttemptSkipped
	}
	return constants.AttemptFailure
}

func normalizePref(pref string) string {
	switch pref {
	case constants.PrefHighFirst, constants.PrefHighOnly:
		return pref
	}
	return constants.PrefAny
}

func coverExtension(download *network.DownloadedImage) string {
	switch download.Format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	}
	return constants.ExtensionForContentType(download.ContentType)
}

func bookTitle(book *service.Book) string {
	if book == nil {
		return ""
	}
	return book.Title
}

package constants

import (
	"strings"
)

const (
	AttemptFailure       = "FAILURE"
	AttemptSkipped       = "SKIPPED"
	AttemptSuccess       = "SUCCESS"
	CacheBonusMinPx      = 150
	ChannelCoverRefresh  = "cover_refresh_worker_chan"
	DefaultDimensionPx   = 512
	EmptyUUID            = "00000000-0000-0000-0000-000000000000"
	GoogleMaxZoom        = 3
	HighResMinPx         = 500
	MaxCoverAspect       = 1.2
	MinCoverAspect       = 0.3
	PrefAny              = "ANY"
	PrefHighFirst        = "HIGH_FIRST"
	PrefHighOnly         = "HIGH_ONLY"
	S3TargetArchive      = "Archive"
	S3TargetPrimary      = "Primary"
	SourceAny            = "ANY"
	SourceGoogleBooks    = "GOOGLE_BOOKS"
	SourceLocalCache     = "LOCAL_CACHE"
	SourceLongitood      = "LONGITOOD"
	SourceNone           = "NONE"
	SourceOpenLibrary    = "OPEN_LIBRARY"
	SourceS3Cache        = "S3_CACHE"
	SourceUndefined      = "UNDEFINED"
	SourceUnknown        = "UNKNOWN"
	StorageLocationLocal = "LOCAL_CACHE"
	StorageLocationNone  = "NONE"
	StorageLocationS3    = "S3_CACHE"
	TopicCoverRefresh    = "cover_refresh"
)

// Selection reasons recorded in provenance. The two no-selection
// reasons are distinct so diagnostics can tell an empty candidate
// list from a list that was entirely filtered out.
const (
	ReasonCacheResident = "cache-resident above minimum dimensions"
	ReasonLargestArea   = "largest pixel area"
	ReasonNoCandidates  = "no candidates supplied"
	ReasonNoneValid     = "no candidates passed validity filter"
	ReasonPlaceholder   = "no valid candidate; using placeholder"
	ReasonSourceQuality = "best source quality among remaining candidates"
)

// AllSources lists every recognized cover source tag, including the
// storage tiers and the pseudo-sources used in requests and responses.
var AllSources = []string{
	SourceGoogleBooks,
	SourceOpenLibrary,
	SourceLongitood,
	SourceLocalCache,
	SourceS3Cache,
	SourceAny,
	SourceNone,
	SourceUndefined,
	SourceUnknown,
}

// ProviderPriorityOrder is the fixed quality-priority order in which
// external providers are tried when the caller asks for ANY source.
var ProviderPriorityOrder = []string{
	SourceGoogleBooks,
	SourceLongitood,
	SourceOpenLibrary,
}

// ImageExtensions lists the file extensions the cache tiers will
// store and probe, in lookup order.
var ImageExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".gif",
	".webp",
}

var sourceAliases = map[string]string{
	"GOOGLE":       SourceGoogleBooks,
	"GOOGLEBOOKS":  SourceGoogleBooks,
	"GOOGLE_BOOKS": SourceGoogleBooks,
	"LOCALCACHE":   SourceLocalCache,
	"LOCAL_CACHE":  SourceLocalCache,
	"LONGITOOD":    SourceLongitood,
	"OPENLIBRARY":  SourceOpenLibrary,
	"OPEN_LIBRARY": SourceOpenLibrary,
	"S3CACHE":      SourceS3Cache,
	"S3_CACHE":     SourceS3Cache,
	"ANY":          SourceAny,
	"NONE":         SourceNone,
	"UNDEFINED":    SourceUndefined,
}

// SourceFromString maps free-form source names to a canonical source
// tag. Empty input maps to UNDEFINED. Anything unrecognized maps to
// UNKNOWN, never to an error, so stray values from old records or
// external callers cannot break a resolution run.
func SourceFromString(value string) string {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return SourceUndefined
	}
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if source, ok := sourceAliases[normalized]; ok {
		return source
	}
	return SourceUnknown
}

var sourceQualityRanks = map[string]int{
	SourceLocalCache:  0,
	SourceS3Cache:     1,
	SourceGoogleBooks: 2,
	SourceLongitood:   3,
	SourceOpenLibrary: 4,
}

// SourceQualityRank returns the tie-break rank for a source. Lower is
// better. Local disk beats the object store, which beats every external
// provider. Sources with no defined rank sort after everything else.
func SourceQualityRank(source string) int {
	if rank, ok := sourceQualityRanks[source]; ok {
		return rank
	}
	return len(sourceQualityRanks) + 1
}

// SourceForStorageLocation returns the source tag that corresponds to
// a storage location, so candidates read from a cache tier can be
// labeled consistently.
func SourceForStorageLocation(location string) string {
	switch location {
	case StorageLocationLocal:
		return SourceLocalCache
	case StorageLocationS3:
		return SourceS3Cache
	}
	return SourceUndefined
}

// StorageLocationForSource is the inverse of SourceForStorageLocation.
// Provider sources have no storage location.
func StorageLocationForSource(source string) string {
	switch source {
	case SourceLocalCache:
		return StorageLocationLocal
	case SourceS3Cache:
		return StorageLocationS3
	}
	return StorageLocationNone
}

// IsProviderSource returns true if source names an external provider
// rather than a cache tier or a pseudo-source.
func IsProviderSource(source string) bool {
	for _, provider := range ProviderPriorityOrder {
		if source == provider {
			return true
		}
	}
	return false
}

// IsStorageLocation returns true for the two real cache tiers.
func IsStorageLocation(location string) bool {
	return location == StorageLocationLocal || location == StorageLocationS3
}

// ExtensionForContentType maps an image content type to the extension
// the cache tiers store it under. Unrecognized types get ".jpg", since
// the overwhelming majority of provider covers are JPEG.
func ExtensionForContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

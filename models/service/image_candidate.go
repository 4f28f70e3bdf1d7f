package service

import (
	"encoding/json"

	"github.com/readhaven/cover-services/constants"
)

// ImageCandidate describes one possible cover image, either fetched
// from an external provider or found in a cache tier. Candidates are
// created per resolution run and discarded after selection; only the
// winner is persisted.
type ImageCandidate struct {
	// Location is a URL for provider candidates, an absolute file
	// path for local cache candidates, or an object key for object
	// store candidates. Required except on failure markers.
	Location string `json:"location"`

	// Source is one of the constants source tags. Note that storage
	// tier membership lives in StorageLocation, not here; the source
	// tag alone says nothing about cache residency.
	Source string `json:"source"`

	// SourceSystemID is the identifier the source knows this image
	// by: a provider volume ID, an ISBN, or a storage key. Used for
	// re-fetch and audit.
	SourceSystemID string `json:"sourceSystemId"`

	// ResolutionPreference is the caller's desired quality tier
	// (ANY, HIGH_ONLY, HIGH_FIRST). Carried for response shaping;
	// it is not a property of the image.
	ResolutionPreference string `json:"resolutionPreference"`

	// StorageLocation marks cache tier residency. Candidates that
	// came from a fetch have StorageLocationNone even if their
	// source tag happens to name a cache.
	StorageLocation string `json:"storageLocation"`

	// Width and Height are pixel dimensions. Values <= 1 mean
	// unknown. Use NormalizedWidth/NormalizedHeight where a real
	// number is structurally required.
	Width  int `json:"width"`
	Height int `json:"height"`
}

func NewImageCandidate(location, source, sourceSystemID string) *ImageCandidate {
	return &ImageCandidate{
		Location:             location,
		Source:               source,
		SourceSystemID:       sourceSystemID,
		ResolutionPreference: constants.PrefAny,
		StorageLocation:      constants.StorageLocationNone,
	}
}

// NewPlaceholderCandidate returns the well-known placeholder as a
// candidate. It is a valid terminal response but is never selectable
// by the selection engine.
func NewPlaceholderCandidate(placeholderPath string) *ImageCandidate {
	return &ImageCandidate{
		Location:        placeholderPath,
		Source:          constants.SourceNone,
		StorageLocation: constants.StorageLocationNone,
	}
}

// HasKnownDimensions returns true when both dimensions were actually
// measured.
func (c *ImageCandidate) HasKnownDimensions() bool {
	return c.Width > 1 && c.Height > 1
}

// PixelArea returns width times height when both dimensions are
// known, else zero. Unknown-dimension candidates sort behind known
// ones in selection because of this.
func (c *ImageCandidate) PixelArea() int {
	if !c.HasKnownDimensions() {
		return 0
	}
	return c.Width * c.Height
}

// NormalizedWidth returns the measured width, or the default square
// estimate when the width is unknown.
func (c *ImageCandidate) NormalizedWidth() int {
	if c.Width > 1 {
		return c.Width
	}
	return constants.DefaultDimensionPx
}

// NormalizedHeight returns the measured height, or the default square
// estimate when the height is unknown.
func (c *ImageCandidate) NormalizedHeight() int {
	if c.Height > 1 {
		return c.Height
	}
	return constants.DefaultDimensionPx
}

// IsCacheResident returns true if this candidate was read from one of
// the storage tiers.
func (c *ImageCandidate) IsCacheResident() bool {
	return constants.IsStorageLocation(c.StorageLocation)
}

// IsValid says whether this candidate can be served or selected. A
// valid candidate has a location, is not the placeholder, and does not
// have measured dimensions at or below 1px. Dimensions that were never
// measured do not disqualify a candidate; they normalize to the
// default estimate where needed. Measured 1x1 images are the tracking
// pixels some providers return instead of a miss, and those are never
// covers.
func (c *ImageCandidate) IsValid(placeholderPath string) bool {
	if c.Location == "" {
		return false
	}
	if placeholderPath != "" && c.Location == placeholderPath {
		return false
	}
	if c.Width != 0 && c.Width <= 1 {
		return false
	}
	if c.Height != 0 && c.Height <= 1 {
		return false
	}
	return true
}

// MeetsHighRes returns true when both measured dimensions reach the
// high-resolution minimum. Unknown dimensions never qualify.
func (c *ImageCandidate) MeetsHighRes() bool {
	return c.Width >= constants.HighResMinPx && c.Height >= constants.HighResMinPx
}

func ImageCandidateFromJSON(jsonData string) (*ImageCandidate, error) {
	candidate := &ImageCandidate{}
	err := json.Unmarshal([]byte(jsonData), candidate)
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

func (c *ImageCandidate) ToJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

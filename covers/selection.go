package covers

import (
	"sort"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
)

// SelectBest picks the winning candidate from everything a resolution
// run gathered: cache hits and provider fetches alike. It is a pure
// function with no I/O, and the result does not depend on the order
// of the input slice.
//
// Candidates pass a validity filter first. The survivors are ranked
// by an ordered comparator where the earliest deciding rule wins:
//
//  1. Cache-locality bonus. A candidate resident in a real storage
//     tier whose measured dimensions both exceed the bonus threshold
//     outranks every candidate without the bonus. Both conditions are
//     required; a candidate merely labeled with a cache source name
//     has no tier mark and gets no bonus.
//  2. Pixel area, descending. Area counts only when both dimensions
//     were measured, so unknown-size candidates rank behind known
//     ones.
//  3. Source quality rank, ascending. Tier-resident candidates rank
//     by their tier, everything else by source.
//
// Remaining ties break on location, then source system id, so equal
// candidates still rank deterministically.
//
// The second return is the selection reason for provenance. When no
// candidate can be selected it distinguishes an empty input from a
// field that was entirely filtered out.
func SelectBest(candidates []*service.ImageCandidate, placeholderPath string) (*service.ImageCandidate, string) {
	if len(candidates) == 0 {
		return nil, constants.ReasonNoCandidates
	}
	valid := make([]*service.ImageCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate != nil && candidate.IsValid(placeholderPath) {
			valid = append(valid, candidate)
		}
	}
	if len(valid) == 0 {
		return nil, constants.ReasonNoneValid
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return ranksBefore(valid[i], valid[j])
	})
	return valid[0], selectionReason(valid)
}

// hasCacheBonus says whether the candidate qualifies for the
// cache-locality bonus: resident in a real tier, and measurably
// larger than the bonus threshold on both axes. Exactly at the
// threshold does not qualify.
func hasCacheBonus(c *service.ImageCandidate) bool {
	return c.IsCacheResident() &&
		c.Width > constants.CacheBonusMinPx &&
		c.Height > constants.CacheBonusMinPx
}

// qualityRank returns the tie-break rank for a candidate. Candidates
// read from a storage tier rank by the tier regardless of what their
// source tag says; fetched candidates rank by source.
func qualityRank(c *service.ImageCandidate) int {
	if c.IsCacheResident() {
		return constants.SourceQualityRank(constants.SourceForStorageLocation(c.StorageLocation))
	}
	return constants.SourceQualityRank(c.Source)
}

func ranksBefore(a, b *service.ImageCandidate) bool {
	aBonus, bBonus := hasCacheBonus(a), hasCacheBonus(b)
	if aBonus != bBonus {
		return aBonus
	}
	if a.PixelArea() != b.PixelArea() {
		return a.PixelArea() > b.PixelArea()
	}
	aRank, bRank := qualityRank(a), qualityRank(b)
	if aRank != bRank {
		return aRank < bRank
	}
	if a.Location != b.Location {
		return a.Location < b.Location
	}
	return a.SourceSystemID < b.SourceSystemID
}

// selectionReason names the rule that decided the ranking, for the
// provenance record.
func selectionReason(ranked []*service.ImageCandidate) string {
	winner := ranked[0]
	if len(ranked) == 1 {
		if hasCacheBonus(winner) {
			return constants.ReasonCacheResident
		}
		return constants.ReasonLargestArea
	}
	runnerUp := ranked[1]
	if hasCacheBonus(winner) && !hasCacheBonus(runnerUp) {
		return constants.ReasonCacheResident
	}
	if winner.PixelArea() > runnerUp.PixelArea() {
		return constants.ReasonLargestArea
	}
	return constants.ReasonSourceQuality
}

package covers_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/covers"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placeholderPath = "/var/cover-services/placeholder.jpg"

func TestSelectBestEmptyInput(t *testing.T) {
	winner, reason := covers.SelectBest(nil, placeholderPath)
	assert.Nil(t, winner)
	assert.Equal(t, constants.ReasonNoCandidates, reason)

	winner, reason = covers.SelectBest([]*service.ImageCandidate{}, placeholderPath)
	assert.Nil(t, winner)
	assert.Equal(t, constants.ReasonNoCandidates, reason)
}

func TestSelectBestAllFilteredOut(t *testing.T) {
	noLocation := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)
	noLocation.Location = ""
	trackingPixel := testutil.GetImageCandidate(constants.SourceOpenLibrary, 1, 1)
	placeholder := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)
	placeholder.Location = placeholderPath

	winner, reason := covers.SelectBest(
		[]*service.ImageCandidate{noLocation, trackingPixel, placeholder, nil},
		placeholderPath)
	assert.Nil(t, winner)
	assert.Equal(t, constants.ReasonNoneValid, reason)
}

func TestSelectBestPlaceholderNeverSelected(t *testing.T) {
	// The placeholder is huge; the real candidate is small. The real
	// one still wins.
	placeholder := testutil.GetImageCandidate(constants.SourceGoogleBooks, 2000, 3000)
	placeholder.Location = placeholderPath
	small := testutil.GetImageCandidate(constants.SourceOpenLibrary, 80, 120)

	winner, _ := covers.SelectBest(
		[]*service.ImageCandidate{placeholder, small}, placeholderPath)
	require.NotNil(t, winner)
	assert.Equal(t, small, winner)
}

func TestSelectBestLargestAreaWins(t *testing.T) {
	google := testutil.GetImageCandidate(constants.SourceGoogleBooks, 300, 400)
	openLibrary := testutil.GetImageCandidate(constants.SourceOpenLibrary, 500, 800)
	longitood := testutil.GetImageCandidate(constants.SourceLongitood, 200, 300)

	winner, reason := covers.SelectBest(
		[]*service.ImageCandidate{google, openLibrary, longitood}, placeholderPath)
	require.NotNil(t, winner)
	// The worst-ranked source wins on raw area.
	assert.Equal(t, openLibrary, winner)
	assert.Equal(t, constants.ReasonLargestArea, reason)
}

func TestSelectBestCacheBonusBeatsArea(t *testing.T) {
	cached := testutil.GetCachedCandidate(constants.StorageLocationLocal, 300, 300)
	google := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)

	winner, reason := covers.SelectBest(
		[]*service.ImageCandidate{google, cached}, placeholderPath)
	require.NotNil(t, winner)
	assert.Equal(t, cached, winner)
	assert.Equal(t, constants.ReasonCacheResident, reason)
}

func TestSelectBestCacheBonusBoundary(t *testing.T) {
	google := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)

	// Exactly 150 on either axis gets no bonus; the bigger fetch wins.
	at150 := testutil.GetCachedCandidate(constants.StorageLocationLocal, 150, 150)
	winner, _ := covers.SelectBest([]*service.ImageCandidate{at150, google}, placeholderPath)
	assert.Equal(t, google, winner)

	oneAxisShort := testutil.GetCachedCandidate(constants.StorageLocationLocal, 400, 150)
	winner, _ = covers.SelectBest([]*service.ImageCandidate{oneAxisShort, google}, placeholderPath)
	assert.Equal(t, google, winner)

	// 151 on both axes qualifies.
	at151 := testutil.GetCachedCandidate(constants.StorageLocationLocal, 151, 151)
	winner, reason := covers.SelectBest([]*service.ImageCandidate{at151, google}, placeholderPath)
	assert.Equal(t, at151, winner)
	assert.Equal(t, constants.ReasonCacheResident, reason)
}

func TestSelectBestSourceLabelAloneGetsNoBonus(t *testing.T) {
	// Labeled with a cache source name but carrying no tier mark:
	// competes on area like any fetch, and loses.
	labeledOnly := testutil.GetImageCandidate(constants.SourceLocalCache, 300, 300)
	google := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)

	winner, reason := covers.SelectBest(
		[]*service.ImageCandidate{labeledOnly, google}, placeholderPath)
	require.NotNil(t, winner)
	assert.Equal(t, google, winner)
	assert.Equal(t, constants.ReasonLargestArea, reason)
}

func TestSelectBestBothCachedRankOnArea(t *testing.T) {
	localSmall := testutil.GetCachedCandidate(constants.StorageLocationLocal, 200, 200)
	s3Large := testutil.GetCachedCandidate(constants.StorageLocationS3, 400, 600)

	winner, reason := covers.SelectBest(
		[]*service.ImageCandidate{localSmall, s3Large}, placeholderPath)
	assert.Equal(t, s3Large, winner)
	assert.Equal(t, constants.ReasonLargestArea, reason)
}

func TestSelectBestSourceQualityBreaksAreaTie(t *testing.T) {
	google := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)
	openLibrary := testutil.GetImageCandidate(constants.SourceOpenLibrary, 900, 600)
	longitood := testutil.GetImageCandidate(constants.SourceLongitood, 600, 900)

	winner, reason := covers.SelectBest(
		[]*service.ImageCandidate{openLibrary, longitood, google}, placeholderPath)
	require.NotNil(t, winner)
	assert.Equal(t, google, winner)
	assert.Equal(t, constants.ReasonSourceQuality, reason)
}

func TestSelectBestUnknownDimensionsRankBehindKnown(t *testing.T) {
	unknown := testutil.GetImageCandidate(constants.SourceGoogleBooks, 0, 0)
	known := testutil.GetImageCandidate(constants.SourceOpenLibrary, 100, 150)

	winner, _ := covers.SelectBest(
		[]*service.ImageCandidate{unknown, known}, placeholderPath)
	assert.Equal(t, known, winner)

	// An unknown-size candidate is still selectable when it's all
	// there is.
	winner, _ = covers.SelectBest([]*service.ImageCandidate{unknown}, placeholderPath)
	assert.Equal(t, unknown, winner)
}

func TestSelectBestSingleCachedCandidate(t *testing.T) {
	cached := testutil.GetCachedCandidate(constants.StorageLocationLocal, 300, 300)
	winner, reason := covers.SelectBest([]*service.ImageCandidate{cached}, placeholderPath)
	assert.Equal(t, cached, winner)
	assert.Equal(t, constants.ReasonCacheResident, reason)
}

// Selection must not depend on the order candidates arrive in.
func TestSelectBestDeterministicUnderPermutation(t *testing.T) {
	candidates := []*service.ImageCandidate{
		testutil.GetCachedCandidate(constants.StorageLocationLocal, 300, 300),
		testutil.GetCachedCandidate(constants.StorageLocationS3, 400, 600),
		testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900),
		testutil.GetImageCandidate(constants.SourceOpenLibrary, 600, 900),
		testutil.GetImageCandidate(constants.SourceLongitood, 0, 0),
	}

	first, firstReason := covers.SelectBest(candidates, placeholderPath)
	require.NotNil(t, first)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]*service.ImageCandidate, len(candidates))
		copy(shuffled, candidates)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		winner, reason := covers.SelectBest(shuffled, placeholderPath)
		assert.Equal(t, first, winner)
		assert.Equal(t, firstReason, reason)
	}
}

// Even exact duplicates in every ranked attribute resolve the same
// way every time, via the lexicographic tie-break.
func TestSelectBestDeterministicOnExactTies(t *testing.T) {
	makeCandidate := func(n int) *service.ImageCandidate {
		c := service.NewImageCandidate(
			fmt.Sprintf("https://cdn.example.com/covers/%d.jpg", n),
			constants.SourceGoogleBooks,
			testutil.ISBN13)
		c.Width = 600
		c.Height = 900
		return c
	}
	a, b, c := makeCandidate(1), makeCandidate(2), makeCandidate(3)

	winner1, _ := covers.SelectBest([]*service.ImageCandidate{a, b, c}, placeholderPath)
	winner2, _ := covers.SelectBest([]*service.ImageCandidate{c, b, a}, placeholderPath)
	winner3, _ := covers.SelectBest([]*service.ImageCandidate{b, a, c}, placeholderPath)
	assert.Equal(t, winner1, winner2)
	assert.Equal(t, winner2, winner3)
	assert.Equal(t, a, winner1)
}

func TestSelectBestDoesNotMutateInput(t *testing.T) {
	google := testutil.GetImageCandidate(constants.SourceGoogleBooks, 600, 900)
	cached := testutil.GetCachedCandidate(constants.StorageLocationLocal, 300, 300)
	input := []*service.ImageCandidate{google, cached}

	_, _ = covers.SelectBest(input, placeholderPath)
	assert.Equal(t, google, input[0])
	assert.Equal(t, cached, input[1])
}

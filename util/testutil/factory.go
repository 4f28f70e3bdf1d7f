package testutil

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/service"
)

const (
	ISBN13    = "9780316769488"
	ISBN10    = "0316769487"
	SourceID  = "bk-001742"
	BookTitle = "The Catcher in the Rye"
)

func GetBook() *service.Book {
	book := service.NewBook(ISBN13, ISBN10, SourceID)
	book.Title = BookTitle
	return book
}

// GetBookWithoutISBN returns a book identified only by its catalog id.
func GetBookWithoutISBN() *service.Book {
	book := service.NewBook("", "", SourceID)
	book.Title = BookTitle
	return book
}

func GetImageCandidate(source string, width, height int) *service.ImageCandidate {
	candidate := service.NewImageCandidate(URLForSource(source), source, ISBN13)
	candidate.Width = width
	candidate.Height = height
	return candidate
}

// GetCachedCandidate returns a candidate that is resident in the
// given cache tier.
func GetCachedCandidate(storageLocation string, width, height int) *service.ImageCandidate {
	source := constants.SourceForStorageLocation(storageLocation)
	candidate := GetImageCandidate(source, width, height)
	candidate.StorageLocation = storageLocation
	return candidate
}

// GetCandidateSet returns a typical mixed field: one candidate
// resident in the local cache plus two larger provider images.
func GetCandidateSet() []*service.ImageCandidate {
	cached := GetCachedCandidate(constants.StorageLocationLocal, 300, 300)
	google := GetImageCandidate(constants.SourceGoogleBooks, 600, 900)
	openLibrary := GetImageCandidate(constants.SourceOpenLibrary, 500, 800)
	return []*service.ImageCandidate{google, cached, openLibrary}
}

func URLForSource(source string) string {
	switch source {
	case constants.SourceGoogleBooks:
		return "https://books.example.com/content?id=dJVJAQAAIAAJ&zoom=1"
	case constants.SourceOpenLibrary:
		return fmt.Sprintf("https://covers.example.org/b/isbn/%s-M.jpg", ISBN13)
	case constants.SourceLongitood:
		return fmt.Sprintf("https://longitood.example.com/covers/%s.jpg", ISBN13)
	case constants.SourceLocalCache:
		return fmt.Sprintf("/var/cover-cache/%s.jpg", ISBN13)
	case constants.SourceS3Cache:
		return fmt.Sprintf("covers/%s.jpg", ISBN13)
	}
	return fmt.Sprintf("https://cdn.example.com/covers/%s.jpg", ISBN13)
}

func GetResolutionTrace() *service.ResolutionTrace {
	trace := service.NewResolutionTrace(ISBN13)
	trace.RecordAttempt(&service.AttemptedSource{
		Source:        constants.SourceOpenLibrary,
		URLAttempted:  URLForSource(constants.SourceOpenLibrary),
		Status:        constants.AttemptFailure,
		FailureReason: "404 Not Found",
	})
	trace.RecordAttempt(&service.AttemptedSource{
		Source:       constants.SourceGoogleBooks,
		URLAttempted: URLForSource(constants.SourceGoogleBooks),
		Status:       constants.AttemptSuccess,
		FetchedURL:   URLForSource(constants.SourceGoogleBooks),
		Width:        600,
		Height:       900,
	})
	trace.RecordSelection(&service.SelectedImageInfo{
		Source:               constants.SourceGoogleBooks,
		FinalURL:             URLForSource(constants.SourceGoogleBooks),
		ResolutionPreference: constants.PrefAny,
		Width:                600,
		Height:               900,
		SelectionReason:      constants.ReasonLargestArea,
		StorageLocation:      constants.StorageLocationS3,
		StorageKey:           fmt.Sprintf("covers/%s.jpg", ISBN13),
	})
	return trace
}

func GetRefreshResult() *service.RefreshResult {
	result := service.NewRefreshResult(ISBN13)
	result.Start()
	return result
}

// PngBytes returns a well-formed PNG with the given dimensions.
func PngBytes(width, height int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(width, height)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JpegBytes returns a well-formed JPEG with the given dimensions.
func JpegBytes(width, height int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(width, height), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// GifBytes returns a well-formed GIF with the given dimensions.
func GifBytes(width, height int) []byte {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, solidImage(width, height), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// NoisyPngBytes returns a PNG of deterministic pseudo-random pixels.
// Noise does not compress, so these files have a byte size roughly
// proportional to their pixel count, where the solid-color images
// above shrink to almost nothing.
func NoisyPngBytes(width, height int) []byte {
	rng := rand.New(rand.NewSource(int64(width)*100003 + int64(height)))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func solidImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 0x2e, G: 0x51, B: 0x8c, A: 0xff}
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

// ETagFor returns the md5 hex digest of data, which is what S3 uses
// as the ETag for objects uploaded in a single part.
func ETagFor(data []byte) string {
	digest := md5.Sum(data)
	return hex.EncodeToString(digest[:])
}

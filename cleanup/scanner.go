// Package cleanup implements the audit and quarantine workflow for
// the cover object store. A scanner applies heuristics to stored
// objects to find content that should never be served as a cover:
// provider placeholder images, tracking pixels, HTML error pages
// saved as images, and other junk that predates validation in the
// fetch path. The service wraps the scanner in the two operator
// actions, a read-only dry run and a quarantine move.
package cleanup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/util"
	"github.com/richardlehane/siegfried"
)

// Verdict is the scanner's judgment of one stored object.
type Verdict struct {
	Key     string
	Flagged bool
	Reason  string
}

// Scanner examines stored objects one at a time. Cheap checks on the
// object info run first; only objects that pass those get downloaded
// and probed. When a siegfried signature file is configured, its
// format identification runs as the last check.
type Scanner struct {
	Context    *common.Context
	identifier *siegfried.Siegfried
}

// NewScanner builds a scanner. A configured signature file that
// cannot be loaded is an operator error, so this panics rather than
// silently scanning with fewer checks.
func NewScanner(context *common.Context) *Scanner {
	scanner := &Scanner{Context: context}
	signaturePath := context.Config.SiegfriedSignature
	if signaturePath != "" {
		identifier, err := siegfried.Load(signaturePath)
		if err != nil {
			panic(fmt.Sprintf("Could not load siegfried signature %s: %v",
				signaturePath, err))
		}
		scanner.identifier = identifier
	}
	return scanner
}

// Examine applies the flagging heuristics to one object. A non-nil
// error means the object could not be examined, not that it is
// clean or flagged; the caller records it and moves on.
func (scanner *Scanner) Examine(ctx context.Context, info minio.ObjectInfo) (*Verdict, error) {
	verdict := &Verdict{Key: info.Key}
	config := scanner.Context.Config

	etag := strings.Trim(info.ETag, `"`)
	if util.StringListContains(config.PlaceholderETags, etag) {
		verdict.Flagged = true
		verdict.Reason = "content digest matches a known placeholder"
		return verdict, nil
	}
	if info.Size < config.MinPlausibleCoverBytes {
		verdict.Flagged = true
		verdict.Reason = fmt.Sprintf(
			"file size %d is below the plausible cover minimum", info.Size)
		return verdict, nil
	}

	data, err := scanner.Context.PrimaryObjectStore().GetBytes(
		ctx, info.Key, config.MaxObjectScanBytes)
	if err != nil {
		return nil, err
	}

	width, height, _, err := util.ProbeImage(bytes.NewReader(data))
	if err != nil {
		verdict.Flagged = true
		verdict.Reason = fmt.Sprintf("not a decodable image: %v", err)
		return verdict, nil
	}

	// Aspect is width over height. Real front covers are portrait or
	// nearly square; banners and strip ads are not.
	aspect := float64(width) / float64(height)
	if aspect < constants.MinCoverAspect || aspect > constants.MaxCoverAspect {
		verdict.Flagged = true
		verdict.Reason = fmt.Sprintf("implausible cover aspect ratio %dx%d", width, height)
		return verdict, nil
	}

	if scanner.identifier != nil {
		if label, isImage := scanner.identifyFormat(info.Key, data); !isImage {
			verdict.Flagged = true
			verdict.Reason = fmt.Sprintf("identified as %s, not an image", label)
			return verdict, nil
		}
	}
	return verdict, nil
}

// identifyFormat runs siegfried over the object bytes and reports
// whether any known identification carries an image mime type. When
// siegfried cannot identify the format at all we let the object
// through; the decode probe already vouched for it.
func (scanner *Scanner) identifyFormat(key string, data []byte) (string, bool) {
	identifications, err := scanner.identifier.Identify(bytes.NewReader(data), key, "")
	if err != nil || len(identifications) == 0 {
		return "", true
	}
	label := ""
	known := false
	for _, id := range identifications {
		if !id.Known() {
			continue
		}
		known = true
		label = id.String()
		for _, value := range id.Values() {
			if strings.HasPrefix(value, "image/") {
				return value, true
			}
		}
	}
	if !known {
		return "", true
	}
	return label, false
}

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/models/service"
	"github.com/readhaven/cover-services/util/logger"
)

var (
	// ErrQuarantinePrefixRequired rejects a move with no destination.
	ErrQuarantinePrefixRequired = errors.New("quarantinePrefix is required")

	// ErrQuarantinePrefixEqualsPrefix rejects a move onto itself,
	// which would re-scan and re-move its own output forever.
	ErrQuarantinePrefixEqualsPrefix = errors.New("quarantinePrefix must differ from prefix")
)

// ValidateMove checks the move parameters. This runs before any
// object is listed; a bad request never touches the store.
func ValidateMove(prefix, quarantinePrefix string) error {
	if strings.TrimSpace(quarantinePrefix) == "" {
		return ErrQuarantinePrefixRequired
	}
	if quarantinePrefix == prefix {
		return ErrQuarantinePrefixEqualsPrefix
	}
	return nil
}

// Service runs the cleanup workflow against the primary cover
// bucket: scan a prefix for objects that should not be served as
// covers, and optionally quarantine what the scan flags.
type Service struct {
	Context *common.Context
	scanner *Scanner
}

func NewService(context *common.Context) *Service {
	return &Service{
		Context: context,
		scanner: NewScanner(context),
	}
}

// DryRun scans up to limit objects under prefix and reports what
// would be flagged, without changing anything. A limit of zero or
// less means scan everything under the prefix.
func (s *Service) DryRun(ctx context.Context, prefix string, limit int) (*service.DryRunSummary, error) {
	summary := service.NewDryRunSummary(prefix, limit)
	progress := logger.NewScanProgressLogger(s.Context.Logger, prefix, 0)
	s.Context.Logger.Infof("Cleanup scan starting: prefix=%q limit=%d", prefix, limit)

	// Cancelling the listing context stops the bucket walk when the
	// limit cuts the scan short.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for info := range s.Context.PrimaryObjectStore().List(listCtx, prefix) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %v", prefix, info.Err)
		}
		if limit > 0 && summary.TotalScanned >= limit {
			break
		}
		summary.TotalScanned++

		verdict, err := s.scanner.Examine(ctx, info)
		if err != nil {
			summary.AddError(info.Key, err)
			progress.Scanned(info.Key, false)
			continue
		}
		if verdict.Flagged {
			s.Context.Logger.Infof("Flagged %s: %s", verdict.Key, verdict.Reason)
			summary.AddFlagged(verdict.Key)
		}
		progress.Scanned(info.Key, verdict.Flagged)
	}
	progress.Done()
	return summary, nil
}

// MoveFlagged re-runs the scan, then quarantines every flagged
// object: copy under quarantinePrefix, then remove the original. The
// copy must land before anything is removed. Per-object failures go
// into the summary's error list and the batch keeps going.
func (s *Service) MoveFlagged(ctx context.Context, prefix, quarantinePrefix string, limit int) (*service.MoveActionSummary, error) {
	if err := ValidateMove(prefix, quarantinePrefix); err != nil {
		return nil, err
	}

	batchID := uuid.New().String()
	s.Context.Logger.Infof("Cleanup move batch %s: prefix=%q quarantinePrefix=%q limit=%d",
		batchID, prefix, quarantinePrefix, limit)
	summary := service.NewMoveActionSummary(prefix, quarantinePrefix, limit, batchID)

	scan, err := s.DryRun(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	summary.TotalScanned = scan.TotalScanned
	summary.TotalFlagged = scan.TotalFlagged
	summary.FlaggedFileKeys = append(summary.FlaggedFileKeys, scan.FlaggedFileKeys...)
	summary.Errors = append(summary.Errors, scan.Errors...)

	store := s.Context.PrimaryObjectStore()
	for _, key := range summary.FlaggedFileKeys {
		destKey := quarantinePrefix + strings.TrimPrefix(key, prefix)
		if err := store.Move(ctx, key, destKey); err != nil {
			s.Context.Logger.Errorf("Could not quarantine %s: %v", key, err)
			summary.AddError(key, err)
			continue
		}
		s.Context.Logger.Infof("Quarantined %s to %s", key, destKey)
		summary.MovedCount++
	}
	return summary, nil
}

package logger

import (
	"github.com/op/go-logging"
)

// ScanProgressLogger logs the progress of long bucket scans in the
// cleanup workflow, trying not to be too verbose. A scan of a large
// prefix can touch tens of thousands of keys, and we don't want one
// log entry per key.
type ScanProgressLogger struct {
	logger      *logging.Logger
	prefix      string
	scanned     int
	flagged     int
	lastPrinted int
	logEvery    int
}

// NewScanProgressLogger creates a new ScanProgressLogger that writes
// one progress line per logEvery keys scanned. If logEvery is less
// than one, it defaults to 500.
func NewScanProgressLogger(logger *logging.Logger, prefix string, logEvery int) *ScanProgressLogger {
	if logEvery < 1 {
		logEvery = 500
	}
	return &ScanProgressLogger{
		logger:   logger,
		prefix:   prefix,
		logEvery: logEvery,
	}
}

// Scanned records that one key was examined, and that it was or was
// not flagged. It prints a progress line when enough keys have gone
// by since the last line.
func (s *ScanProgressLogger) Scanned(key string, wasFlagged bool) {
	s.scanned++
	if wasFlagged {
		s.flagged++
	}
	if s.scanned-s.lastPrinted >= s.logEvery {
		s.logger.Infof("scan %s: %d keys scanned, %d flagged, at %s",
			s.prefix, s.scanned, s.flagged, key)
		s.lastPrinted = s.scanned
	}
}

// Done prints the final tally for the scan.
func (s *ScanProgressLogger) Done() {
	s.logger.Infof("scan %s complete: %d keys scanned, %d flagged",
		s.prefix, s.scanned, s.flagged)
}

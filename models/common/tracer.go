package common

import (
	"strings"

	"github.com/op/go-logging"
)

// Tracer lets us write Minio trace output to our logs. Trace lines
// are tagged so they can be distinguished from normal debug output
// when several S3 clients share one log.
type Tracer struct {
	label  string
	logger *logging.Logger
}

func NewTracer(label string, logger *logging.Logger) *Tracer {
	return &Tracer{
		label:  label,
		logger: logger,
	}
}

func (t *Tracer) Write(p []byte) (n int, err error) {
	t.logger.Debugf("[s3-trace %s] %s", t.label, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

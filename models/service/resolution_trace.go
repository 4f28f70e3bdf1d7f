package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AttemptedSource records one attempt to get a cover from a provider
// or cache tier during a resolution run.
type AttemptedSource struct {
	Source        string    `json:"source"`
	URLAttempted  string    `json:"urlAttempted"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	FetchedURL    string    `json:"fetchedUrl,omitempty"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// SelectedImageInfo describes the final selection of a resolution run
// and why it won.
type SelectedImageInfo struct {
	Source               string `json:"source"`
	FinalURL             string `json:"finalUrl"`
	ResolutionPreference string `json:"resolutionPreference"`
	Width                int    `json:"width"`
	Height               int    `json:"height"`
	SelectionReason      string `json:"selectionReason"`
	StorageLocation      string `json:"storageLocation"`
	StorageKey           string `json:"storageKey,omitempty"`
}

// ResolutionTrace is the provenance record for one cover resolution
// run: every source attempted, in order, plus the final selection.
// It is append-only while the run is in flight and frozen once
// Finish is called. Traces are exported for diagnostics (logs, the
// admin surface) and are never read back into selection logic.
type ResolutionTrace struct {
	RunID      string             `json:"runId"`
	BookKey    string             `json:"bookKey"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Attempts   []*AttemptedSource `json:"attempts"`
	Selected   *SelectedImageInfo `json:"selected"`

	mutex    *sync.Mutex
	finished bool
}

func NewResolutionTrace(bookKey string) *ResolutionTrace {
	return &ResolutionTrace{
		RunID:     uuid.New().String(),
		BookKey:   bookKey,
		StartedAt: time.Now().UTC(),
		Attempts:  make([]*AttemptedSource, 0),
		mutex:     &sync.Mutex{},
	}
}

// RecordAttempt appends one attempt to the trace. Calls after Finish
// are dropped; a completed run is immutable.
func (t *ResolutionTrace) RecordAttempt(attempt *AttemptedSource) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.finished {
		return
	}
	attempt.RecordedAt = time.Now().UTC()
	t.Attempts = append(t.Attempts, attempt)
}

// RecordSelection sets the final selection. Only the first call
// sticks; attempts recorded earlier are never touched.
func (t *ResolutionTrace) RecordSelection(selected *SelectedImageInfo) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.finished || t.Selected != nil {
		return
	}
	t.Selected = selected
}

// Finish freezes the trace. Further RecordAttempt and RecordSelection
// calls are no-ops.
func (t *ResolutionTrace) Finish() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	t.FinishedAt = time.Now().UTC()
}

func (t *ResolutionTrace) Finished() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.finished
}

// AttemptCount returns the number of attempts recorded so far.
func (t *ResolutionTrace) AttemptCount() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.Attempts)
}

// ResolutionTraceFromJSON rebuilds a trace from its JSON export. The
// rebuilt trace is marked finished, since exported traces are always
// from completed runs and must stay immutable.
func ResolutionTraceFromJSON(jsonData string) (*ResolutionTrace, error) {
	trace := &ResolutionTrace{}
	err := json.Unmarshal([]byte(jsonData), trace)
	if err != nil {
		return nil, err
	}
	trace.mutex = &sync.Mutex{}
	trace.finished = true
	return trace, nil
}

func (t *ResolutionTrace) ToJSON() (string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

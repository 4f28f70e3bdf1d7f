package service

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
)

// RefreshResult records the outcome of one background refresh run for
// a book key. The latest result is exported to Redis for diagnostics,
// so an operator can see when a key was last refreshed, from which
// host, and what went wrong.
type RefreshResult struct {
	// Attempt is the number of the attempt to refresh this key.
	Attempt int `json:"attempt"`

	// BookKey is the canonical cache key being refreshed.
	BookKey string `json:"bookKey"`

	// Host is the name of the network host on which the worker is running.
	Host string `json:"host"`

	// Pid is the pid of the worker doing this work.
	Pid int `json:"pid"`

	// StartedAt is when this refresh attempt began. Zero means the
	// attempt has not started.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when this refresh attempt completed. Completion
	// does not imply success; check Succeeded().
	FinishedAt time.Time `json:"finishedAt"`

	// Errors lists what went wrong during the refresh. Don't write to
	// this directly; it's public only for JSON serialization. Access
	// is locked internally with a mutex.
	Errors []*ProcessingError `json:"errors"`

	mutex *sync.RWMutex
}

func NewRefreshResult(bookKey string) *RefreshResult {
	hostname, _ := os.Hostname()
	return &RefreshResult{
		BookKey: bookKey,
		Host:    hostname,
		Pid:     os.Getpid(),
		Errors:  make([]*ProcessingError, 0),
		mutex:   &sync.RWMutex{},
	}
}

func (result *RefreshResult) Start() {
	result.StartedAt = time.Now().UTC()
}

func (result *RefreshResult) Started() bool {
	return !result.StartedAt.IsZero()
}

func (result *RefreshResult) Finish() {
	result.FinishedAt = time.Now().UTC()
}

func (result *RefreshResult) Finished() bool {
	return !result.FinishedAt.IsZero()
}

func (result *RefreshResult) RunTime() time.Duration {
	startTime := result.StartedAt
	if startTime.IsZero() {
		return time.Duration(0)
	}
	endTime := result.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(startTime)
}

func (result *RefreshResult) Succeeded() bool {
	result.mutex.RLock()
	succeeded := result.Finished() && len(result.Errors) == 0
	result.mutex.RUnlock()
	return succeeded
}

// AddError adds a ProcessingError to the result. The total number of
// errors is capped at 30, unless the error being added is fatal. The
// cap exists because a flaky network link can produce the same
// non-fatal error hundreds of times and there is no point in
// serializing all of them. Fatal errors are always added; processing
// stops on the first one, so there is rarely more than one.
func (result *RefreshResult) AddError(err *ProcessingError) {
	if len(result.Errors) > 29 && !err.IsFatal {
		return
	}
	result.mutex.Lock()
	result.Errors = append(result.Errors, err)
	result.mutex.Unlock()
}

func (result *RefreshResult) ClearErrors() {
	result.mutex.Lock()
	result.Errors = make([]*ProcessingError, 0)
	result.mutex.Unlock()
}

// Reset clears everything but the attempt number and the book key.
func (result *RefreshResult) Reset() {
	result.Host = ""
	result.Pid = 0
	result.StartedAt = time.Time{}
	result.FinishedAt = time.Time{}
	result.ClearErrors()
}

// HasErrors returns true if this result has any errors, fatal or not.
func (result *RefreshResult) HasErrors() bool {
	result.mutex.RLock()
	hasErrors := len(result.Errors) > 0
	result.mutex.RUnlock()
	return hasErrors
}

// FatalErrors returns a list of all of this result's fatal errors.
func (result *RefreshResult) FatalErrors() (errors []*ProcessingError) {
	result.mutex.RLock()
	for _, err := range result.Errors {
		if err.IsFatal {
			errors = append(errors, err)
		}
	}
	result.mutex.RUnlock()
	return errors
}

// HasFatalErrors returns true if this result has any fatal errors.
func (result *RefreshResult) HasFatalErrors() bool {
	return len(result.FatalErrors()) > 0
}

// FatalErrorMessage returns all fatal error messages as a single
// pipe-delimited string.
func (result *RefreshResult) FatalErrorMessage() string {
	errors := result.FatalErrors()
	messages := make([]string, len(errors))
	for i, err := range errors {
		messages[i] = err.Message
	}
	return strings.Join(messages[:], " | ")
}

// RefreshResultFromJSON converts the JSON representation of a
// RefreshResult into a full-fledged object. This initializes the
// internal mutex along with deserializing the JSON; deserializing any
// other way eventually ends in nil pointer panics because the mutex
// won't exist.
func RefreshResultFromJSON(jsonData string) (*RefreshResult, error) {
	result := &RefreshResult{}
	err := json.Unmarshal([]byte(jsonData), result)
	if err != nil {
		return nil, err
	}
	result.mutex = &sync.RWMutex{}
	return result, nil
}

func (result *RefreshResult) ToJSON() (string, error) {
	bytes, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

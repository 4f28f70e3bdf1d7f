package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DryRunSummary reports what a cleanup scan found without having
// changed anything. Purely descriptive; there is no persisted
// identity behind it.
type DryRunSummary struct {
	Prefix          string   `json:"prefix"`
	Limit           int      `json:"limit"`
	TotalScanned    int      `json:"totalScanned"`
	TotalFlagged    int      `json:"totalFlagged"`
	FlaggedFileKeys []string `json:"flaggedFileKeys"`
	Errors          []string `json:"errors"`
}

func NewDryRunSummary(prefix string, limit int) *DryRunSummary {
	return &DryRunSummary{
		Prefix:          prefix,
		Limit:           limit,
		FlaggedFileKeys: make([]string, 0),
		Errors:          make([]string, 0),
	}
}

// AddFlagged records one flagged key.
func (s *DryRunSummary) AddFlagged(key string) {
	s.FlaggedFileKeys = append(s.FlaggedFileKeys, key)
	s.TotalFlagged++
}

// AddError records a per-item scan error. Scan errors do not abort
// the batch.
func (s *DryRunSummary) AddError(key string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", key, err))
}

// PlainText renders the summary in the operator format: the two
// counts, then one flagged key per line.
func (s *DryRunSummary) PlainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned: %d\n", s.TotalScanned)
	fmt.Fprintf(&b, "Flagged: %d\n", s.TotalFlagged)
	for _, key := range s.FlaggedFileKeys {
		fmt.Fprintf(&b, "%s\n", key)
	}
	return b.String()
}

func (s *DryRunSummary) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MoveActionSummary reports the outcome of a quarantine move batch,
// including per-item failures so a partial failure is visible without
// aborting the rest of the batch.
type MoveActionSummary struct {
	Prefix           string   `json:"prefix"`
	QuarantinePrefix string   `json:"quarantinePrefix"`
	Limit            int      `json:"limit"`
	TotalScanned     int      `json:"totalScanned"`
	TotalFlagged     int      `json:"totalFlagged"`
	FlaggedFileKeys  []string `json:"flaggedFileKeys"`
	MovedCount       int      `json:"movedCount"`
	Errors           []string `json:"errors"`
	BatchID          string   `json:"batchId"`
}

func NewMoveActionSummary(prefix, quarantinePrefix string, limit int, batchID string) *MoveActionSummary {
	return &MoveActionSummary{
		Prefix:           prefix,
		QuarantinePrefix: quarantinePrefix,
		Limit:            limit,
		FlaggedFileKeys:  make([]string, 0),
		Errors:           make([]string, 0),
		BatchID:          batchID,
	}
}

func (s *MoveActionSummary) AddFlagged(key string) {
	s.FlaggedFileKeys = append(s.FlaggedFileKeys, key)
	s.TotalFlagged++
}

func (s *MoveActionSummary) AddError(key string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", key, err))
}

func (s *MoveActionSummary) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

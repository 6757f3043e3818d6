package core

import "time"

// Mode selects the driver workflow for a run.
type Mode string

const (
	ModeDelete       Mode = "delete"
	ModeList         Mode = "list"
	ModeSingleDelete Mode = "single-delete"
)

// Comparison is a remote comparison resource as returned by the list endpoint.
type Comparison struct {
	Identifier   string         `json:"identifier,omitempty"`
	CreationTime string         `json:"creation_time,omitempty"`
	ExpiryTime   string         `json:"expiry_time,omitempty"`
	Public       bool           `json:"public,omitempty"`
	Ready        bool           `json:"ready,omitempty"`
	Failed       bool           `json:"failed,omitempty"`
	Raw          map[string]any `json:"-"`
}

// Page is one batch of comparisons with the server-reported total.
type Page struct {
	Items      []Comparison `json:"results"`
	TotalCount int          `json:"count"`
}

// Empty reports whether the page carries no items.
func (p *Page) Empty() bool {
	return p == nil || len(p.Items) == 0
}

// ListRequest is the pagination cursor for a fetch.
// Paged=false requests the collection head (limit only); offset is ignored.
type ListRequest struct {
	Limit  int
	Offset int
	Paged  bool
}

// Next returns the cursor advanced by one page.
func (r ListRequest) Next() ListRequest {
	if r.Paged {
		r.Offset += r.Limit
	}
	return r
}

// DeletionStatus is the outcome of one delete attempt.
type DeletionStatus string

const (
	DeletionDeleted DeletionStatus = "deleted"
	DeletionFailed  DeletionStatus = "failed"
)

// DeletionRecord is a journal entry for one delete attempt.
type DeletionRecord struct {
	ID           int64          `json:"id,omitempty" yaml:"id,omitempty"`
	RunID        string         `json:"run_id" yaml:"run_id"`
	Identifier   string         `json:"identifier" yaml:"identifier"`
	CreationTime string         `json:"creation_time,omitempty" yaml:"creation_time,omitempty"`
	Status       DeletionStatus `json:"status" yaml:"status"`
	StatusCode   int            `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Message      string         `json:"message,omitempty" yaml:"message,omitempty"`
	RecordedAt   time.Time      `json:"recorded_at" yaml:"recorded_at"`
}

// StopReason explains why a driver loop ended.
type StopReason string

const (
	StopCompleted   StopReason = "completed"
	StopExhausted   StopReason = "exhausted"
	StopEmptyPage   StopReason = "empty_page"
	StopDeclined    StopReason = "declined"
	StopFetchFailed StopReason = "fetch_failed"
	StopNoProgress  StopReason = "no_progress"
	StopCanceled    StopReason = "canceled"
)

// Summary reports what a run did.
type Summary struct {
	RunID   string     `json:"run_id"`
	Mode    Mode       `json:"mode"`
	Pages   int        `json:"pages"`
	Listed  int        `json:"listed"`
	Deleted int        `json:"deleted"`
	Failed  int        `json:"failed"`
	Skipped int        `json:"skipped"`
	Stop    StopReason `json:"stop"`
}

// Total returns the count the final summary line reports for the mode.
func (s Summary) Total() int {
	if s.Mode == ModeList {
		return s.Listed
	}
	return s.Deleted
}

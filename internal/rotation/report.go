package rotation

import (
	"sort"
	"time"
)

// Stage names one step of the per-type pipeline
type Stage string

// Pipeline stages, in execution order
const (
	StageCollect Stage = "collect"
	StageArchive Stage = "archive"
	StageUpload  Stage = "upload"
	StageRetain  Stage = "retain"
)

// ItemState is the lifecycle position of a backup item, derived from which
// artifacts exist locally, at the source and in the remote store.
type ItemState string

const (
	// StatePendingSource means the item exists only at the source
	StatePendingSource ItemState = "pending_source"
	// StateCollected means a local copy exists and nothing else was done yet
	StateCollected ItemState = "collected"
	// StateArchived means an archive waits for upload
	StateArchived ItemState = "archived"
	// StateUploaded means the remote object exists
	StateUploaded ItemState = "uploaded"
	// StateExpired means the item is older than every retained local copy
	// and is not collected
	StateExpired ItemState = "expired"
	// StateRemoved means the retainer deleted the local copy during this run
	StateRemoved ItemState = "removed"
)

// ItemReport is the outcome of one run for one item
type ItemReport struct {
	ID          string    `json:"id" yaml:"id"`
	State       ItemState `json:"state" yaml:"state"`
	Actions     []Stage   `json:"actions,omitempty" yaml:"actions,omitempty"`
	FailedStage Stage     `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Failed reports whether a stage failed for the item
func (ir *ItemReport) Failed() bool {
	return ir.FailedStage != ""
}

// StageCounters counts items per outcome for one stage
type StageCounters struct {
	Processed int `json:"processed" yaml:"processed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
}

// TypeReport is the outcome of one run for one backup type
type TypeReport struct {
	Name    string                   `json:"name" yaml:"name"`
	Uploads bool                     `json:"uploads" yaml:"uploads"`
	Stages  map[Stage]*StageCounters `json:"stages" yaml:"stages"`
	Items   []*ItemReport            `json:"items" yaml:"items"`
	Error   string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

func newTypeReport(name string, uploads bool) *TypeReport {
	return &TypeReport{
		Name:    name,
		Uploads: uploads,
		Stages:  make(map[Stage]*StageCounters),
	}
}

// Counters returns the counters of stage, creating them when missing
func (tr *TypeReport) Counters(stage Stage) *StageCounters {
	c, ok := tr.Stages[stage]
	if !ok {
		c = &StageCounters{}
		tr.Stages[stage] = c
	}
	return c
}

// Item returns the report of item id, or nil
func (tr *TypeReport) Item(id string) *ItemReport {
	for _, ir := range tr.Items {
		if ir.ID == id {
			return ir
		}
	}
	return nil
}

// Failures counts items with a failed stage
func (tr *TypeReport) Failures() int {
	n := 0
	for _, ir := range tr.Items {
		if ir.Failed() {
			n++
		}
	}
	return n
}

// RunReport is the outcome of one rotation run
type RunReport struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Branch    string        `json:"branch" yaml:"branch"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Types     []*TypeReport `json:"types" yaml:"types"`
}

// Type returns the report of backup type name, or nil
func (rr *RunReport) Type(name string) *TypeReport {
	for _, tr := range rr.Types {
		if tr.Name == name {
			return tr
		}
	}
	return nil
}

// Failures counts failed items plus types that could not be processed
func (rr *RunReport) Failures() int {
	n := 0
	for _, tr := range rr.Types {
		n += tr.Failures()
		if tr.Error != "" {
			n++
		}
	}
	return n
}

// HasFailures reports whether anything in the run failed
func (rr *RunReport) HasFailures() bool {
	return rr.Failures() > 0
}

// ItemStatus is the derived state of one item at inspection time
type ItemStatus struct {
	ID       string    `json:"id" yaml:"id"`
	State    ItemState `json:"state" yaml:"state"`
	AtSource bool      `json:"at_source" yaml:"at_source"`
	Local    bool      `json:"local" yaml:"local"`
	Archive  bool      `json:"archive" yaml:"archive"`
	Remote   bool      `json:"remote" yaml:"remote"`
}

// TypeStatus lists the derived state of every item of a backup type
type TypeStatus struct {
	Name           string       `json:"name" yaml:"name"`
	Uploads        bool         `json:"uploads" yaml:"uploads"`
	RetentionCount int          `json:"retention_count,omitempty" yaml:"retention_count,omitempty"`
	Items          []ItemStatus `json:"items" yaml:"items"`
	Error          string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Count returns how many items are in state
func (ts *TypeStatus) Count(state ItemState) int {
	n := 0
	for _, it := range ts.Items {
		if it.State == state {
			n++
		}
	}
	return n
}

// StatusReport is the result of Status
type StatusReport struct {
	Branch      string        `json:"branch" yaml:"branch"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Types       []*TypeStatus `json:"types" yaml:"types"`
}

// Type returns the status of backup type name, or nil
func (sr *StatusReport) Type(name string) *TypeStatus {
	for _, ts := range sr.Types {
		if ts.Name == name {
			return ts
		}
	}
	return nil
}

func sortItemReports(items []*ItemReport) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

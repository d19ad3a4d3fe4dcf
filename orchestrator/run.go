package orchestrator

import (
	"time"

	"github.com/toolloop/toolloop/gateway"
	"github.com/toolloop/toolloop/transcript"
)

// Run is the record of one end-to-end orchestration: the transcript it owns,
// its lifecycle status and, on failure, the reason plus last error. It is
// mutated only by the owning orchestrator loop and read by callers once
// terminal.
type Run struct {
	ID         string
	Transcript *transcript.Transcript
	Status     Status
	Iterations int
	Reason     FailReason
	LastErr    error
	Usage      gateway.Usage
	StartedAt  time.Time
	FinishedAt time.Time
}

// Terminal reports whether the run reached a final status.
func (r *Run) Terminal() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// Clone returns an independent snapshot safe to archive or hand to other
// goroutines.
func (r *Run) Clone() *Run {
	c := *r
	if r.Transcript != nil {
		c.Transcript = r.Transcript.Clone()
	}
	return &c
}

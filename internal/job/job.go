// Package job tracks batch recognition jobs in memory: status, progress, and
// accumulated results polled by clients while a batch runs in the background.
package job

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Status describes the job lifecycle. There is no failed state: per-item
// failures are recorded inside the result text and the job still completes.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Result is one (source filename, recognized text) pair.
type Result struct {
	Name string
	Text string
}

// MarshalJSON encodes the pair as a two-element array, the wire format clients
// consume from the results endpoint.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.Name, r.Text})
}

// UnmarshalJSON decodes the two-element array form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode result pair: %w", err)
	}
	r.Name, r.Text = pair[0], pair[1]
	return nil
}

// Job is the mutable server-side record for one upload batch. Exactly one
// batch runner mutates a given job; readers only ever see snapshots.
type Job struct {
	ID       uuid.UUID
	Status   Status
	Message  string
	Progress float64
	Results  []Result
}

// snapshot returns a copy safe to hand to readers while the owning runner
// keeps appending results.
func (j *Job) snapshot() Job {
	out := *j
	out.Results = append([]Result(nil), j.Results...)
	return out
}

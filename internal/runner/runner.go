// Package runner drives recognition over a job's uploaded items in the
// background. Goroutines + channels power the worker pool that keeps the
// blocking recognition engine off the request path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snaptext/snaptext/internal/job"
	"github.com/snaptext/snaptext/internal/recognize"
)

// FailureText is recorded in place of recognized text when the engine reports
// an error for an item. Clients distinguish failed items by inspecting the
// text, not the job status.
const FailureText = "(Failed. Please reduce the image size.)"

// Item is one uploaded file belonging to a batch: the client-supplied filename
// and the staged path on disk.
type Item struct {
	Name string
	Path string
}

type request struct {
	path  string
	reply chan outcome
}

type outcome struct {
	text string
	err  error
}

// Runner owns a pool of recognition workers shared by all jobs and updates the
// job store as each item finishes. Batches are launched detached (go r.Run)
// and rendezvous with their clients only through the store.
type Runner struct {
	store   *job.Store
	rec     recognize.Recognizer
	queue   chan request
	workers int
}

// New builds a Runner with queue capacity tied to worker count.
func New(store *job.Store, rec recognize.Recognizer, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		store:   store,
		rec:     rec,
		queue:   make(chan request, workers*4),
		workers: workers,
	}
}

// Start launches the worker goroutines. Workers exit when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		go r.worker(ctx)
	}
}

func (r *Runner) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.queue:
			text, err := r.rec.Recognize(ctx, req.path)
			req.reply <- outcome{text: text, err: err}
		}
	}
}

// Run processes every item of the job in input order, updating progress after
// each one regardless of outcome, and marks the job completed at the end. A
// started batch always runs to completion; item failures are recorded as data
// and never abort it. Callers launch Run in its own goroutine and discard the
// handle.
func (r *Runner) Run(id uuid.UUID, items []Item) {
	log := zap.S().Named("runner")
	if len(items) == 0 {
		r.finish(id)
		return
	}
	step := 1.0 / float64(len(items))
	for _, item := range items {
		_ = r.store.Update(id, func(j *job.Job) {
			j.Message = fmt.Sprintf("Processing %s.", item.Name)
		})
		text := r.recognizeItem(log, item)
		_ = r.store.Update(id, func(j *job.Job) {
			j.Progress += step
			j.Results = append(j.Results, job.Result{Name: item.Name, Text: text})
		})
		if err := os.Remove(item.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("remove staged file %q: %v", item.Path, err)
		}
	}
	r.finish(id)
}

// finish hard-sets the terminal state. Progress is pinned to exactly 1.0 so
// float accumulation drift never leaks to pollers of a completed job.
func (r *Runner) finish(id uuid.UUID) {
	_ = r.store.Update(id, func(j *job.Job) {
		j.Progress = 1.0
		j.Message = "Completed."
		j.Status = job.StatusCompleted
	})
}

func (r *Runner) recognizeItem(log *zap.SugaredLogger, item Item) string {
	reply := make(chan outcome, 1)
	r.queue <- request{path: item.Path, reply: reply}
	res := <-reply
	if res.err != nil {
		log.Warnf("recognition failed for %q: %v", item.Name, res.err)
		return FailureText
	}
	if res.text == "" {
		log.Warnf("empty recognition result for %q", item.Name)
	}
	return res.text
}

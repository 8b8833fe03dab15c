package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptext/snaptext/internal/job"
	"github.com/snaptext/snaptext/internal/recognize"
)

func newTestRunner(t *testing.T, store *job.Store, rec recognize.Recognizer) *Runner {
	t.Helper()
	r := New(store, rec, 2)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r.Start(ctx)
	return r
}

func stageFiles(t *testing.T, names ...string) []Item {
	t.Helper()
	dir := t.TempDir()
	items := make([]Item, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))
		items = append(items, Item{Name: name, Path: path})
	}
	return items
}

func TestRunProcessesAllItemsInOrder(t *testing.T) {
	store := job.NewStore()
	rec := recognize.Func(func(_ context.Context, path string) (string, error) {
		return "text of " + filepath.Base(path), nil
	})
	r := newTestRunner(t, store, rec)

	created := store.Create()
	items := stageFiles(t, "a.png", "b.png", "c.png")
	r.Run(created.ID, items)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, "Completed.", got.Message)
	require.Len(t, got.Results, 3)
	assert.Equal(t, []job.Result{
		{Name: "a.png", Text: "text of a.png"},
		{Name: "b.png", Text: "text of b.png"},
		{Name: "c.png", Text: "text of c.png"},
	}, got.Results)

	for _, item := range items {
		_, statErr := os.Stat(item.Path)
		assert.True(t, os.IsNotExist(statErr), "staged file %s should be removed", item.Path)
	}
}

func TestRunRecordsFailureWithoutAbortingBatch(t *testing.T) {
	store := job.NewStore()
	rec := recognize.Func(func(_ context.Context, path string) (string, error) {
		if filepath.Base(path) == "b.png" {
			return "", errors.New("engine exploded")
		}
		return "ok", nil
	})
	r := newTestRunner(t, store, rec)

	created := store.Create()
	items := stageFiles(t, "a.png", "b.png", "c.png")
	r.Run(created.ID, items)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	require.Len(t, got.Results, 3)
	assert.Equal(t, "ok", got.Results[0].Text)
	assert.Equal(t, FailureText, got.Results[1].Text)
	assert.Equal(t, "ok", got.Results[2].Text)

	// Failed items still release their staged storage.
	for _, item := range items {
		_, statErr := os.Stat(item.Path)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestRunRecordsEmptyEngineOutput(t *testing.T) {
	store := job.NewStore()
	rec := recognize.Func(func(context.Context, string) (string, error) {
		return "", nil
	})
	r := newTestRunner(t, store, rec)

	created := store.Create()
	r.Run(created.ID, stageFiles(t, "blank.png"))

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "", got.Results[0].Text)
}

func TestRunEmptyBatchCompletesImmediately(t *testing.T) {
	store := job.NewStore()
	var calls int32
	rec := recognize.Func(func(context.Context, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})
	r := newTestRunner(t, store, rec)

	created := store.Create()
	r.Run(created.ID, nil)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Empty(t, got.Results)
	assert.Zero(t, atomic.LoadInt32(&calls), "recognizer must not run for an empty batch")
}

func TestRunMissingStagedFileIsNotAnError(t *testing.T) {
	store := job.NewStore()
	rec := recognize.Func(func(context.Context, string) (string, error) {
		return "", errors.New("no such file")
	})
	r := newTestRunner(t, store, rec)

	created := store.Create()
	r.Run(created.ID, []Item{{Name: "ghost.png", Path: filepath.Join(t.TempDir(), "ghost.png")}})

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, []job.Result{{Name: "ghost.png", Text: FailureText}}, got.Results)
}

func TestProgressAdvancesPerItem(t *testing.T) {
	store := job.NewStore()

	entered := make(chan string)
	release := make(chan struct{})
	rec := recognize.Func(func(_ context.Context, path string) (string, error) {
		entered <- filepath.Base(path)
		<-release
		return "t", nil
	})
	r := newTestRunner(t, store, rec)

	created := store.Create()
	names := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		names = append(names, fmt.Sprintf("f%d.png", i))
	}
	items := stageFiles(t, names...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(created.ID, items)
	}()

	// Step through the batch one item at a time and sample the store between
	// items: progress grows by 1/len per processed item and never decreases.
	prev := 0.0
	for i, name := range names {
		current := <-entered
		assert.Equal(t, name, current)

		snap, err := store.Get(created.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusProcessing, snap.Status)
		assert.Equal(t, fmt.Sprintf("Processing %s.", name), snap.Message)
		assert.InDelta(t, float64(i)*0.25, snap.Progress, 1e-9)
		assert.GreaterOrEqual(t, snap.Progress, prev)
		prev = snap.Progress

		release <- struct{}{}
	}
	<-done

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Len(t, got.Results, 4)
}

package job

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore()
	created := s.Create()
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, StatusProcessing, created.Status)
	assert.Equal(t, "Already started.", created.Message)
	assert.Zero(t, created.Progress)
	assert.Empty(t, created.Results)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestGetUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMutatesStoredJob(t *testing.T) {
	s := NewStore()
	created := s.Create()

	err := s.Update(created.ID, func(j *Job) {
		j.Progress = 0.5
		j.Message = "Processing a.png."
		j.Results = append(j.Results, Result{Name: "a.png", Text: "hello"})
	})
	require.NoError(t, err)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Progress)
	assert.Equal(t, "Processing a.png.", got.Message)
	assert.Equal(t, []Result{{Name: "a.png", Text: "hello"}}, got.Results)

	assert.ErrorIs(t, s.Update(uuid.New(), func(*Job) {}), ErrNotFound)
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	created := s.Create()
	require.NoError(t, s.Update(created.ID, func(j *Job) {
		j.Results = append(j.Results, Result{Name: "a.png", Text: "one"})
	}))

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	got.Results[0].Text = "mutated"

	fresh, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", fresh.Results[0].Text)
}

func TestTakeResultsIsDestructive(t *testing.T) {
	s := NewStore()
	created := s.Create()
	require.NoError(t, s.Update(created.ID, func(j *Job) {
		j.Results = append(j.Results, Result{Name: "a.png", Text: "hello"})
	}))

	results, err := s.TakeResults(created.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, Result{Name: "a.png", Text: "hello"}, results[0])

	_, err = s.TakeResults(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentPollingWithSingleWriter(t *testing.T) {
	s := NewStore()
	created := s.Create()

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := s.Get(created.ID)
				if err != nil {
					return
				}
				// Progress must never be observed going backwards.
				assert.GreaterOrEqual(t, snap.Progress, 0.0)
				assert.LessOrEqual(t, len(snap.Results), 100)
			}
		}()
	}

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Update(created.ID, func(j *Job) {
			j.Progress += 0.01
			j.Results = append(j.Results, Result{Name: "f", Text: "t"})
		}))
	}
	close(done)
	wg.Wait()
}

func TestResultJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Result{Name: "scan.png", Text: "line one\nline two"})
	require.NoError(t, err)
	assert.JSONEq(t, `["scan.png", "line one\nline two"]`, string(data))

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Result{Name: "scan.png", Text: "line one\nline two"}, decoded)
}

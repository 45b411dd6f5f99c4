package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

var jobExpiry = time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC)

func TestJobLifecycle(t *testing.T) {
	r := NewJobRegistry(0)

	job := r.Create("NIFTY", jobExpiry)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobPending, job.Status)

	require.NoError(t, r.MarkRunning(job.ID))
	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobRunning, got.Status)

	require.NoError(t, r.MarkCompleted(job.ID))
	got, _ = r.Get(job.ID)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestJobFailed(t *testing.T) {
	r := NewJobRegistry(0)
	job := r.Create("NIFTY", jobExpiry)

	require.NoError(t, r.MarkFailed(job.ID, errors.New("upstream timed out")))

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	assert.Equal(t, "upstream timed out", got.Error)
}

func TestJobNotFound(t *testing.T) {
	r := NewJobRegistry(0)

	_, err := r.Get("job-0-0")
	assert.ErrorIs(t, err, faststock.ErrJobNotFound)
	assert.ErrorIs(t, r.MarkRunning("job-0-0"), faststock.ErrJobNotFound)
}

func TestJobListNewestFirst(t *testing.T) {
	r := NewJobRegistry(0)
	first := r.Create("NIFTY", jobExpiry)
	second := r.Create("BANKNIFTY", jobExpiry)

	jobs := r.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestJobEviction(t *testing.T) {
	r := NewJobRegistry(2)

	oldest := r.Create("NIFTY", jobExpiry)
	require.NoError(t, r.MarkCompleted(oldest.ID))
	running := r.Create("BANKNIFTY", jobExpiry)
	require.NoError(t, r.MarkRunning(running.ID))

	// pushing past the cap evicts the finished job, never the running one
	r.Create("FINNIFTY", jobExpiry)

	_, err := r.Get(oldest.ID)
	assert.ErrorIs(t, err, faststock.ErrJobNotFound)
	_, err = r.Get(running.ID)
	assert.NoError(t, err)
}

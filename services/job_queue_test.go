package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidos-entegrasyon/core"
	"vidos-entegrasyon/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func shutdownQueue(t *testing.T, q *JobQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}

func waitJob(t *testing.T, q *JobQueue, id string) JobInfo {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := q.Wait(ctx, id)
	require.NoError(t, err)
	return info
}

func waitStatus(t *testing.T, q *JobQueue, id string, status core.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		info, err := q.Get(context.Background(), id)
		return err == nil && info.Status == status
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJobQueue_CompletesAndPersists(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store, err := database.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	q := NewJobQueue(2, 10, store, nil)
	id, err := q.Submit(JobSpec{UserID: 1, JobType: JobStockSync, Marketplace: "trendyol",
		Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
			h.Log("info", "başladı")
			h.Progress(3, 3)
			return JobResult{ProductCount: 3, SuccessCount: 2, FailCount: 1}, nil
		}})
	require.NoError(t, err)

	info := waitJob(t, q, id)
	assert.Equal(t, core.JobCompleted, info.Status)
	assert.Equal(t, 2, info.Result.SuccessCount)
	assert.Equal(t, 3, info.Current)
	require.Len(t, info.Logs, 1)
	assert.Equal(t, "başladı", info.Logs[0].Message)

	shutdownQueue(t, q)

	saved, err := store.BatchLog(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, saved.Status)
	assert.Equal(t, 1, saved.FailCount)
	assert.Len(t, saved.Logs, 1)
}

func TestJobQueue_FailureAndPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewJobQueue(1, 10, nil, nil)
	defer shutdownQueue(t, q)

	failID, err := q.Submit(JobSpec{UserID: 1, JobType: "x", Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		return JobResult{}, errors.New("feed indirilemedi")
	}})
	require.NoError(t, err)
	panicID, err := q.Submit(JobSpec{UserID: 1, JobType: "x", Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		panic("boom")
	}})
	require.NoError(t, err)

	info := waitJob(t, q, failID)
	assert.Equal(t, core.JobFailed, info.Status)
	assert.Equal(t, "feed indirilemedi", info.Error)

	info = waitJob(t, q, panicID)
	assert.Equal(t, core.JobFailed, info.Status)
	assert.Contains(t, info.Error, "boom")
}

func TestJobQueue_CancelRunning(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewJobQueue(1, 10, nil, nil)
	defer shutdownQueue(t, q)

	started := make(chan struct{})
	id, err := q.Submit(JobSpec{UserID: 1, JobType: JobPriceSync, Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		close(started)
		for i := 0; ; i++ {
			if err := h.Checkpoint(ctx); err != nil {
				return JobResult{SuccessCount: i}, err
			}
			time.Sleep(5 * time.Millisecond)
		}
	}})
	require.NoError(t, err)
	<-started

	require.NoError(t, q.Control(id, "cancel"))
	info := waitJob(t, q, id)
	assert.Equal(t, core.JobCancelled, info.Status)

	// bitmiş iş tekrar değiştirilemez
	assert.ErrorIs(t, q.Cancel(id), core.ErrJobFinished)
	assert.ErrorIs(t, q.Resume(id), core.ErrJobFinished)
}

func TestJobQueue_PauseResume(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewJobQueue(1, 10, nil, nil)
	defer shutdownQueue(t, q)

	release := make(chan struct{})
	started := make(chan struct{})
	id, err := q.Submit(JobSpec{UserID: 1, JobType: JobDirectSync, Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		close(started)
		<-release
		if err := h.Checkpoint(ctx); err != nil {
			return JobResult{}, err
		}
		return JobResult{SuccessCount: 1}, nil
	}})
	require.NoError(t, err)
	<-started

	require.NoError(t, q.Pause(id))
	close(release)
	waitStatus(t, q, id, core.JobPaused)

	require.NoError(t, q.Resume(id))
	info := waitJob(t, q, id)
	assert.Equal(t, core.JobCompleted, info.Status)
	assert.Equal(t, 1, info.Result.SuccessCount)
}

func TestJobQueue_CancelQueuedAndExclusive(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewJobQueue(1, 10, nil, nil)
	defer shutdownQueue(t, q)

	block := make(chan struct{})
	first, err := q.Submit(JobSpec{UserID: 7, JobType: JobFeedRefresh, Exclusive: true, Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		<-block
		return JobResult{}, nil
	}})
	require.NoError(t, err)

	_, err = q.Submit(JobSpec{UserID: 7, JobType: JobFeedRefresh, Exclusive: true, Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		return JobResult{}, nil
	}})
	assert.ErrorIs(t, err, core.ErrJobRunning)
	assert.True(t, q.RunningForUser(7, JobFeedRefresh))
	assert.False(t, q.RunningForUser(8, JobFeedRefresh))

	ran := false
	queued, err := q.Submit(JobSpec{UserID: 7, JobType: JobStockSync, Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		ran = true
		return JobResult{}, nil
	}})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(queued))
	close(block)

	waitJob(t, q, first)
	info := waitJob(t, q, queued)
	assert.Equal(t, core.JobCancelled, info.Status)
	assert.False(t, ran)

	_, err = q.Get(context.Background(), "yok")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestJobQueue_EvictsOldestFinished(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewJobQueue(1, 2, nil, nil)
	defer shutdownQueue(t, q)

	noop := func(ctx context.Context, h *JobHandle) (JobResult, error) { return JobResult{}, nil }
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Submit(JobSpec{UserID: 1, JobType: "x", Run: noop})
		require.NoError(t, err)
		waitJob(t, q, id)
		ids = append(ids, id)
	}

	list := q.List(1)
	require.Len(t, list, 2)
	assert.Equal(t, ids[1], list[0].ID)
	_, err := q.Get(context.Background(), ids[0])
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

// slowQueuedStore: "queued" kaydını geciktirir, böylece eski durum yazımı sonrakilerle yarışır
type slowQueuedStore struct {
	*database.Store
}

func (s slowQueuedStore) SaveBatchLog(ctx context.Context, b core.BatchLog) error {
	if b.Status == core.JobQueued {
		time.Sleep(100 * time.Millisecond)
	}
	return s.Store.SaveBatchLog(ctx, b)
}

func TestJobQueue_LateQueuedWriteKeepsFinalStatus(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store, err := database.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	q := NewJobQueue(1, 1, slowQueuedStore{store}, nil)
	noop := func(ctx context.Context, h *JobHandle) (JobResult, error) {
		return JobResult{ProductCount: 1, SuccessCount: 1}, nil
	}

	first, err := q.Submit(JobSpec{UserID: 1, JobType: "x", Run: noop})
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, waitJob(t, q, first).Status)

	// ikinci iş ilkini bellekten düşürür, Get artık batch_logs'a bakar
	second, err := q.Submit(JobSpec{UserID: 1, JobType: "x", Run: noop})
	require.NoError(t, err)
	waitJob(t, q, second)
	shutdownQueue(t, q)

	saved, err := store.BatchLog(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, saved.Status)
	assert.Equal(t, 1, saved.SuccessCount)

	info, err := q.Get(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, info.Status)
}

func TestJobQueue_SubmitAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewJobQueue(1, 10, nil, nil)
	shutdownQueue(t, q)

	_, err := q.Submit(JobSpec{UserID: 1, JobType: "x", Run: func(ctx context.Context, h *JobHandle) (JobResult, error) {
		return JobResult{}, nil
	}})
	assert.ErrorIs(t, err, core.ErrQueueClosed)
}

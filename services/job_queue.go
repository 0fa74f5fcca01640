package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vidos-entegrasyon/core"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	JobFeedRefresh   = "feed_refresh"
	JobDirectSync    = "direct_sync"
	JobStockSync     = "stock_sync"
	JobPriceSync     = "price_sync"
	JobBugZForward   = "bugz_forward"
	JobBarcodeFill   = "barcode_generate"
	JobOrderProfit   = "order_profit"
	maxLogsPerJob    = 500
	defaultQueueSize = 256
)

// BatchLogStore: işlerin kalıcı kaydı (database.Store bunu sağlar)
type BatchLogStore interface {
	SaveBatchLog(ctx context.Context, b core.BatchLog) error
	BatchLog(ctx context.Context, id string) (core.BatchLog, error)
}

type JobResult struct {
	ProductCount int
	SuccessCount int
	FailCount    int
}

// JobFunc: işin gövdesi. Uzun işler parça aralarında h.Checkpoint çağırmalı.
type JobFunc func(ctx context.Context, h *JobHandle) (JobResult, error)

type JobSpec struct {
	UserID      int64
	JobType     string
	Marketplace string
	// Exclusive: aynı kullanıcı için aynı türde iş sürüyorsa ErrJobRunning döner
	Exclusive bool
	Run       JobFunc
}

// JobInfo: işin anlık kopyası
type JobInfo struct {
	ID          string
	UserID      int64
	JobType     string
	Marketplace string
	Status      core.JobStatus
	Current     int
	Total       int
	Result      JobResult
	Error       string
	Logs        []core.JobLogEntry
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

type job struct {
	info   JobInfo
	run    JobFunc
	cancel context.CancelFunc
	resume chan struct{}

	// version q.mu altında artar; saveMu kayıtları sürüm sırasına dizer
	version int64
	saveMu  sync.Mutex
	saved   int64
}

type JobQueue struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	queue   chan *job
	store   BatchLogStore
	log     *zap.Logger
	maxJobs int
	closed  bool

	ctx   context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup
	nowFn func() time.Time
}

// NewJobQueue, workers adet işçiyi başlatır. store nil olabilir (kalıcı kayıt tutulmaz).
func NewJobQueue(workers, maxJobs int, store BatchLogStore, logger *zap.Logger) *JobQueue {
	if workers <= 0 {
		workers = 4
	}
	if maxJobs <= 0 {
		maxJobs = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, stop := context.WithCancel(context.Background())
	q := &JobQueue{
		jobs:    make(map[string]*job),
		queue:   make(chan *job, max(defaultQueueSize, maxJobs)),
		store:   store,
		log:     logger.Named("jobs"),
		maxJobs: maxJobs,
		ctx:     ctx,
		stop:    stop,
		nowFn:   time.Now,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *JobQueue) worker() {
	defer q.wg.Done()
	for j := range q.queue {
		q.execute(j)
	}
}

// Submit, işi kuyruğa alır ve iş id'sini döner.
func (q *JobQueue) Submit(spec JobSpec) (string, error) {
	if spec.Run == nil {
		return "", fmt.Errorf("iş gövdesi boş: %s", spec.JobType)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", core.ErrQueueClosed
	}
	if spec.Exclusive && q.runningForUserLocked(spec.UserID, spec.JobType) {
		q.mu.Unlock()
		return "", core.ErrJobRunning
	}

	j := &job{
		info: JobInfo{
			ID:          uuid.NewString(),
			UserID:      spec.UserID,
			JobType:     spec.JobType,
			Marketplace: spec.Marketplace,
			Status:      core.JobQueued,
			CreatedAt:   q.nowFn(),
		},
		run: spec.Run,
	}

	select {
	case q.queue <- j:
	default:
		q.mu.Unlock()
		return "", core.ErrQueueFull
	}
	q.jobs[j.info.ID] = j
	q.order = append(q.order, j.info.ID)
	q.evictLocked()
	q.mu.Unlock()

	q.persist(j)
	q.log.Info("iş kuyruğa alındı", zap.String("job", j.info.ID), zap.String("type", spec.JobType), zap.Int64("user", spec.UserID))
	return j.info.ID, nil
}

// evictLocked: bellekte maxJobs'tan fazla iş varsa en eski bitmiş işleri düşürür.
// Bitmiş işler batch_logs'ta kalmaya devam eder.
func (q *JobQueue) evictLocked() {
	for len(q.order) > q.maxJobs {
		idx := -1
		for i, id := range q.order {
			if q.jobs[id].info.Status.Terminal() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		delete(q.jobs, q.order[idx])
		q.order = append(q.order[:idx], q.order[idx+1:]...)
	}
}

func (q *JobQueue) execute(j *job) {
	q.mu.Lock()
	if j.info.Status != core.JobQueued {
		// kuyruktayken iptal edildi
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(q.ctx)
	j.cancel = cancel
	j.info.Status = core.JobRunning
	j.info.StartedAt = q.nowFn()
	id := j.info.ID
	q.mu.Unlock()
	q.persist(j)

	res, err := q.safeRun(ctx, j)
	cancel()

	q.mu.Lock()
	j.info.Result = res
	j.info.FinishedAt = q.nowFn()
	switch {
	case j.info.Status == core.JobCancelling || errors.Is(err, core.ErrJobCancelled):
		j.info.Status = core.JobCancelled
	case err != nil:
		j.info.Status = core.JobFailed
		j.info.Error = err.Error()
	default:
		j.info.Status = core.JobCompleted
	}
	j.cancel = nil
	status := j.info.Status
	q.mu.Unlock()
	q.persist(j)

	fields := []zap.Field{zap.String("job", id), zap.String("status", string(status)),
		zap.Int("success", res.SuccessCount), zap.Int("fail", res.FailCount)}
	if err != nil && status == core.JobFailed {
		q.log.Error("iş hata ile bitti", append(fields, zap.Error(err))...)
		return
	}
	q.log.Info("iş bitti", fields...)
}

func (q *JobQueue) safeRun(ctx context.Context, j *job) (res JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iş panikledi: %v", r)
		}
	}()
	return j.run(ctx, &JobHandle{q: q, id: j.info.ID})
}

// Cancel, kuyruktaki işi hemen iptal eder, çalışan işe iptal talebi iletir.
func (q *JobQueue) Cancel(id string) error {
	q.mu.Lock()
	j, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return core.ErrJobNotFound
	}
	switch {
	case j.info.Status.Terminal():
		q.mu.Unlock()
		return core.ErrJobFinished
	case j.info.Status == core.JobQueued:
		j.info.Status = core.JobCancelled
		j.info.FinishedAt = q.nowFn()
	default:
		j.info.Status = core.JobCancelling
		if j.cancel != nil {
			j.cancel()
		}
		if j.resume != nil {
			close(j.resume)
			j.resume = nil
		}
	}
	q.mu.Unlock()
	q.persist(j)
	return nil
}

// Pause: çalışan iş bir sonraki Checkpoint'te bekler
func (q *JobQueue) Pause(id string) error {
	return q.transition(id, func(j *job) error {
		if j.info.Status != core.JobRunning {
			return fmt.Errorf("iş duraklatılamaz (durum: %s)", j.info.Status)
		}
		j.info.Status = core.JobPausing
		return nil
	})
}

func (q *JobQueue) Resume(id string) error {
	return q.transition(id, func(j *job) error {
		if j.info.Status != core.JobPausing && j.info.Status != core.JobPaused {
			return fmt.Errorf("iş devam ettirilemez (durum: %s)", j.info.Status)
		}
		j.info.Status = core.JobRunning
		if j.resume != nil {
			close(j.resume)
			j.resume = nil
		}
		return nil
	})
}

// Control: "cancel", "pause", "resume"
func (q *JobQueue) Control(id, action string) error {
	switch action {
	case "cancel":
		return q.Cancel(id)
	case "pause":
		return q.Pause(id)
	case "resume":
		return q.Resume(id)
	}
	return fmt.Errorf("bilinmeyen işlem: %s", action)
}

func (q *JobQueue) transition(id string, fn func(j *job) error) error {
	q.mu.Lock()
	j, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return core.ErrJobNotFound
	}
	if j.info.Status.Terminal() {
		q.mu.Unlock()
		return core.ErrJobFinished
	}
	if err := fn(j); err != nil {
		q.mu.Unlock()
		return err
	}
	q.mu.Unlock()
	q.persist(j)
	return nil
}

// Get: önce bellekteki iş, yoksa batch_logs kaydı
func (q *JobQueue) Get(ctx context.Context, id string) (JobInfo, error) {
	q.mu.Lock()
	if j, ok := q.jobs[id]; ok {
		info := snapshot(j)
		q.mu.Unlock()
		return info, nil
	}
	q.mu.Unlock()

	if q.store == nil {
		return JobInfo{}, core.ErrJobNotFound
	}
	b, err := q.store.BatchLog(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return JobInfo{}, core.ErrJobNotFound
	}
	if err != nil {
		return JobInfo{}, err
	}
	info := JobInfo{
		ID:          b.ID,
		UserID:      b.UserID,
		JobType:     b.JobType,
		Marketplace: b.Marketplace,
		Status:      b.Status,
		Result:      JobResult{ProductCount: b.ProductCount, SuccessCount: b.SuccessCount, FailCount: b.FailCount},
		Error:       b.Error,
		Logs:        b.Logs,
		CreatedAt:   b.CreatedAt,
	}
	if b.Status.Terminal() {
		info.FinishedAt = b.UpdatedAt
	}
	return info, nil
}

// List: bellekteki işler, eskiden yeniye
func (q *JobQueue) List(userID int64) []JobInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []JobInfo
	for _, id := range q.order {
		j := q.jobs[id]
		if userID == 0 || j.info.UserID == userID {
			out = append(out, snapshot(j))
		}
	}
	return out
}

func (q *JobQueue) RunningForUser(userID int64, jobType string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runningForUserLocked(userID, jobType)
}

func (q *JobQueue) runningForUserLocked(userID int64, jobType string) bool {
	for _, j := range q.jobs {
		if j.info.UserID == userID && (jobType == "" || j.info.JobType == jobType) && !j.info.Status.Terminal() {
			return true
		}
	}
	return false
}

// Wait, iş sonlanana kadar bekler (testler ve CLI için).
func (q *JobQueue) Wait(ctx context.Context, id string) (JobInfo, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		info, err := q.Get(ctx, id)
		if err != nil {
			return info, err
		}
		if info.Status.Terminal() {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown: yeni iş alımını durdurur, kuyruktakilerin bitmesini bekler.
// ctx dolarsa çalışan işler iptal edilir.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.stop()
		return nil
	case <-ctx.Done():
		q.stop()
		<-done
		return ctx.Err()
	}
}

func snapshot(j *job) JobInfo {
	info := j.info
	info.Logs = append([]core.JobLogEntry(nil), j.info.Logs...)
	return info
}

// persist: işin anlık kopyasını batch_logs'a yazar. İş bellekten düşmüş olsa da son durumu kaydedilir.
func (q *JobQueue) persist(j *job) {
	if q.store == nil {
		return
	}
	q.mu.Lock()
	j.version++
	version := j.version
	info := snapshot(j)
	q.mu.Unlock()

	j.saveMu.Lock()
	defer j.saveMu.Unlock()
	if version <= j.saved {
		return
	}

	b := core.BatchLog{
		ID:           info.ID,
		UserID:       info.UserID,
		Marketplace:  info.Marketplace,
		JobType:      info.JobType,
		Status:       info.Status,
		ProductCount: info.Result.ProductCount,
		SuccessCount: info.Result.SuccessCount,
		FailCount:    info.Result.FailCount,
		Error:        info.Error,
		Logs:         info.Logs,
		Version:      version,
		CreatedAt:    info.CreatedAt,
	}
	if err := q.store.SaveBatchLog(context.Background(), b); err != nil {
		q.log.Warn("batch log kaydedilemedi", zap.String("job", info.ID), zap.Error(err))
		return
	}
	j.saved = version
}

// JobHandle: iş gövdesinin kuyrukla konuştuğu nesne
type JobHandle struct {
	q  *JobQueue
	id string
}

func (h *JobHandle) ID() string { return h.id }

func (h *JobHandle) Log(level, msg string) {
	h.q.mu.Lock()
	j, ok := h.q.jobs[h.id]
	if ok {
		j.info.Logs = append(j.info.Logs, core.JobLogEntry{Time: h.q.nowFn(), Level: level, Message: msg})
		if len(j.info.Logs) > maxLogsPerJob {
			j.info.Logs = j.info.Logs[len(j.info.Logs)-maxLogsPerJob:]
		}
	}
	h.q.mu.Unlock()

	switch level {
	case "error":
		h.q.log.Error(msg, zap.String("job", h.id))
	case "warning", "warn":
		h.q.log.Warn(msg, zap.String("job", h.id))
	default:
		h.q.log.Debug(msg, zap.String("job", h.id))
	}
}

func (h *JobHandle) Logf(level, format string, args ...any) {
	h.Log(level, fmt.Sprintf(format, args...))
}

func (h *JobHandle) Progress(current, total int) {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	if j, ok := h.q.jobs[h.id]; ok {
		j.info.Current = current
		j.info.Total = total
	}
}

// Checkpoint: iptal istenmişse ErrJobCancelled döner, duraklatılmışsa devam edilene kadar bekler.
func (h *JobHandle) Checkpoint(ctx context.Context) error {
	q := h.q
	for {
		q.mu.Lock()
		j, ok := q.jobs[h.id]
		if !ok {
			q.mu.Unlock()
			return core.ErrJobNotFound
		}
		switch j.info.Status {
		case core.JobCancelling, core.JobCancelled:
			q.mu.Unlock()
			return core.ErrJobCancelled
		case core.JobPausing, core.JobPaused:
			changed := j.info.Status == core.JobPausing
			j.info.Status = core.JobPaused
			if j.resume == nil {
				j.resume = make(chan struct{})
			}
			ch := j.resume
			q.mu.Unlock()
			if changed {
				q.persist(j)
			}
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			q.mu.Unlock()
			return ctx.Err()
		}
	}
}

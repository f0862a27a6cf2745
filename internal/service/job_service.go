package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// JobHandler executes one job. A returned error schedules a retry until attempts run out.
type JobHandler func(ctx context.Context, job *model.Job) error

type JobService interface {
	Register(jobType string, handler JobHandler)
	// Dispatch records a job once per idempotency key. A failed job under the same key
	// is requeued. Without a running worker, or with async mode off, the job runs
	// synchronously, retrying inline until it succeeds or its attempts run out.
	Dispatch(ctx context.Context, jobType string, payload interface{}, key string) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, status string, page, limit int) ([]model.Job, int64, error)
	// RunNext claims and executes one due job. It reports whether a job was found.
	RunNext(ctx context.Context) (bool, error)
	SetWorkerRunning(running bool)
}

type jobService struct {
	jobRepo     repository.JobRepository
	async       bool
	maxAttempts int
	log         *logger.Logger
	now         func() time.Time

	mu       sync.RWMutex
	handlers map[string]JobHandler
	running  atomic.Bool
}

func NewJobService(jobRepo repository.JobRepository, async bool, maxAttempts int, log *logger.Logger) JobService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &jobService{
		jobRepo:     jobRepo,
		async:       async,
		maxAttempts: maxAttempts,
		log:         log.WithComponent("jobs"),
		now:         time.Now,
		handlers:    make(map[string]JobHandler),
	}
}

func (s *jobService) Register(jobType string, handler JobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

func (s *jobService) handler(jobType string) (JobHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[jobType]
	return h, ok
}

func (s *jobService) SetWorkerRunning(running bool) {
	s.running.Store(running)
}

func (s *jobService) Dispatch(ctx context.Context, jobType string, payload interface{}, key string) (*model.Job, error) {
	if _, ok := s.handler(jobType); !ok {
		return nil, apperror.NewFieldValidation("type", "no handler registered for job type "+jobType)
	}
	if key == "" {
		return nil, apperror.NewFieldValidation("idempotency_key", "idempotency key is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.NewValidation("payload is not serializable").WithCause(err)
	}

	job, created, err := s.jobRepo.CreateIfAbsent(ctx, &model.Job{
		Type:           jobType,
		Status:         model.JobStatusPending,
		Payload:        string(raw),
		IdempotencyKey: key,
		MaxAttempts:    s.maxAttempts,
		RunAt:          s.now(),
	})
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if !created {
		if job.Status != model.JobStatusFailed {
			return job, nil
		}
		requeued, err := s.jobRepo.RequeueFailed(ctx, job.ID, string(raw), s.now())
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		if job, err = s.Get(ctx, job.ID); err != nil || !requeued {
			return job, err
		}
		s.log.Infow("failed job requeued", "job_id", job.ID, "type", job.Type)
	}

	if s.async && s.running.Load() {
		s.log.Debugw("job queued", "job_id", job.ID, "type", job.Type)
		return job, nil
	}
	if err := s.runInline(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// runInline executes job in the caller until it leaves the pending state.
// Retries skip the backoff delay; a worker taking over ends the loop.
func (s *jobService) runInline(ctx context.Context, job *model.Job) error {
	for {
		job.Status = model.JobStatusRunning
		job.Attempts++
		if err := s.jobRepo.Update(ctx, job); err != nil {
			return apperror.NewInternal(err)
		}
		if err := s.execute(ctx, job); err != nil {
			return err
		}
		if job.Status != model.JobStatusPending || ctx.Err() != nil {
			return nil
		}
		if s.async && s.running.Load() {
			return nil
		}
	}
}

func (s *jobService) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "job", id)
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, status string, page, limit int) ([]model.Job, int64, error) {
	jobs, total, err := s.jobRepo.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	return jobs, total, nil
}

func (s *jobService) RunNext(ctx context.Context) (bool, error) {
	job, err := s.jobRepo.ClaimNext(ctx, s.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return true, s.execute(ctx, job)
}

// execute runs a claimed job and records the outcome. Handler failures are
// recorded on the job, not returned; only storage failures are.
func (s *jobService) execute(ctx context.Context, job *model.Job) error {
	log := s.log.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempts)

	handler, ok := s.handler(job.Type)
	var runErr error
	if !ok {
		runErr = fmt.Errorf("no handler for job type %s", job.Type)
		job.Attempts = job.MaxAttempts
	} else {
		runErr = handler(ctx, job)
	}

	now := s.now()
	switch {
	case runErr == nil:
		job.Status = model.JobStatusSucceeded
		job.LastError = ""
		job.FinishedAt = &now
		log.Infow("job succeeded")
	case job.Attempts >= job.MaxAttempts:
		job.Status = model.JobStatusFailed
		job.LastError = runErr.Error()
		job.FinishedAt = &now
		log.Errorw("job failed", "error", runErr)
	default:
		job.Status = model.JobStatusPending
		job.LastError = runErr.Error()
		job.RunAt = now.Add(time.Duration(job.Attempts) * 10 * time.Second)
		log.Warnw("job will retry", "error", runErr, "run_at", job.RunAt)
	}

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// Worker polls the job table with a fixed number of goroutines.
type Worker struct {
	jobs         JobService
	workers      int
	pollInterval time.Duration
	log          *logger.Logger
}

func NewWorker(jobs JobService, workers int, pollInterval time.Duration, log *logger.Logger) *Worker {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		jobs:         jobs,
		workers:      workers,
		pollInterval: pollInterval,
		log:          log.WithComponent("job-worker"),
	}
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.jobs.SetWorkerRunning(true)
	defer w.jobs.SetWorkerRunning(false)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		id := i
		g.Go(func() error {
			w.poll(ctx, id)
			return nil
		})
	}
	w.log.Infow("job worker started", "workers", w.workers, "poll_interval", w.pollInterval)
	return g.Wait()
}

func (w *Worker) poll(ctx context.Context, id int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		// Drain everything that is due before sleeping again.
		for {
			found, err := w.jobs.RunNext(ctx)
			if err != nil {
				w.log.Errorw("job poll failed", "worker", id, "error", err)
				break
			}
			if !found || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

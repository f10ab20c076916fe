package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/service"
)

const (
	// DefaultLockDuration is how long a claimed job stays exclusive
	// without a renewal.
	DefaultLockDuration = 60 * time.Second

	// DefaultRenewInterval is the heartbeat period for lock renewal.
	DefaultRenewInterval = 15 * time.Second

	// DefaultMaxRetries is the maximum number of retries for a failed job
	DefaultMaxRetries = 3

	// DefaultPollInterval is how often an idle worker checks the queue.
	DefaultPollInterval = 10 * time.Second
)

// AnalysisJobRepository defines the interface for analysis job persistence
type AnalysisJobRepository interface {
	// ClaimPending retrieves and claims pending jobs of a kind
	ClaimPending(ctx context.Context, kind domain.AnalysisJobKind, limit int, lockDuration time.Duration) ([]*domain.AnalysisJob, error)

	// RenewLock extends the lock on a processing job
	RenewLock(ctx context.Context, id string, lockDuration time.Duration) error

	// UpdateProgress records a completed pipeline stage
	UpdateProgress(ctx context.Context, id string, step, totalSteps int) error

	// UpdateStatus updates the status of a job
	UpdateStatus(ctx context.Context, id string, status domain.AnalysisJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error

	// ReapStalled requeues processing jobs whose lock has lapsed
	ReapStalled(ctx context.Context) (int, error)
}

// Pipeline defines the document processing runs a worker can dispatch
type Pipeline interface {
	Run(ctx context.Context, documentID string, progress service.ProgressFunc) error
	RunEmbeddingOnly(ctx context.Context, documentID string, progress service.ProgressFunc) error
}

// AnalysisWorker polls the queue for jobs of one kind and runs the
// pipeline for each claim. One instance owns one goroutine's poll loop;
// claimed jobs within a pass run in parallel up to the concurrency
// limit.
type AnalysisWorker struct {
	repo     AnalysisJobRepository
	pipeline Pipeline
	kind     domain.AnalysisJobKind

	concurrency   int
	pollInterval  time.Duration
	lockDuration  time.Duration
	renewInterval time.Duration
	maxRetries    int

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewAnalysisWorker creates a new AnalysisWorker instance
func NewAnalysisWorker(repo AnalysisJobRepository, pipeline Pipeline, kind domain.AnalysisJobKind, concurrency int) *AnalysisWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AnalysisWorker{
		repo:          repo,
		pipeline:      pipeline,
		kind:          kind,
		concurrency:   concurrency,
		pollInterval:  DefaultPollInterval,
		lockDuration:  DefaultLockDuration,
		renewInterval: DefaultRenewInterval,
		maxRetries:    DefaultMaxRetries,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// SetPollInterval overrides the queue polling period (for testing).
func (w *AnalysisWorker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}

// Start runs the poll loop until the context is cancelled or Stop is
// called. Each tick is one ProcessJobs pass; a failed pass is logged
// and the loop keeps going.
func (w *AnalysisWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("jobs: %s worker polling every %v", w.kind, w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("jobs: %s worker stopping, context cancelled", w.kind)
			return
		case <-w.stopChan:
			log.Printf("jobs: %s worker stopping", w.kind)
			return
		case <-ticker.C:
			if err := w.ProcessJobs(ctx); err != nil {
				log.Printf("jobs: %s worker pass failed: %v", w.kind, err)
			}
		}
	}
}

// Stop signals the poll loop and waits for the in-flight pass to
// finish.
func (w *AnalysisWorker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}

// SetLockPolicy overrides the lock duration, renewal interval and retry
// ceiling (for configuration and testing).
func (w *AnalysisWorker) SetLockPolicy(lockDuration, renewInterval time.Duration, maxRetries int) {
	if lockDuration > 0 {
		w.lockDuration = lockDuration
	}
	if renewInterval > 0 {
		w.renewInterval = renewInterval
	}
	if maxRetries > 0 {
		w.maxRetries = maxRetries
	}
}

// ProcessJobs is one pass over the queue: requeue stalled jobs, claim
// up to the concurrency limit, run the claimed batch in parallel.
func (w *AnalysisWorker) ProcessJobs(ctx context.Context) error {
	reaped, err := w.repo.ReapStalled(ctx)
	if err != nil {
		return fmt.Errorf("failed to reap stalled jobs: %w", err)
	}
	if reaped > 0 {
		log.Printf("jobs: requeued %d stalled %s jobs", reaped, w.kind)
	}

	jobs, err := w.repo.ClaimPending(ctx, w.kind, w.concurrency, w.lockDuration)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("jobs: claimed %d %s jobs", len(jobs), w.kind)

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *domain.AnalysisJob) {
			defer wg.Done()
			if err := w.processJob(ctx, job); err != nil {
				log.Printf("jobs: job %s failed: %v", job.ID, err)
			}
		}(job)
	}
	wg.Wait()

	return nil
}

func (w *AnalysisWorker) processJob(ctx context.Context, job *domain.AnalysisJob) error {
	log.Printf("jobs: running %s job %s for document %s", job.Kind, job.ID, job.DocumentID)

	stopHeartbeat := w.startHeartbeat(ctx, job.ID)
	defer stopHeartbeat()

	progress := func(ctx context.Context, step, total int) error {
		return w.repo.UpdateProgress(ctx, job.ID, step, total)
	}

	var err error
	switch job.Kind {
	case domain.AnalysisJobKindEmbedding:
		err = w.pipeline.RunEmbeddingOnly(ctx, job.DocumentID, progress)
	default:
		err = w.pipeline.Run(ctx, job.DocumentID, progress)
	}

	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.AnalysisJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("jobs: job %s completed", job.ID)
	return nil
}

// startHeartbeat renews the job's lock on an interval until the
// returned stop function is called. A job that stops heartbeating is
// requeued by the reaper once its lock lapses.
func (w *AnalysisWorker) startHeartbeat(ctx context.Context, jobID string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.renewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := w.repo.RenewLock(ctx, jobID, w.lockDuration); err != nil {
					log.Printf("jobs: lock renewal for job %s failed: %v", jobID, err)
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

// handleJobFailure applies the retry policy to a failed run: requeue
// with an attempt marker, or mark failed once the ceiling is reached.
func (w *AnalysisWorker) handleJobFailure(ctx context.Context, job *domain.AnalysisJob, jobErr error) error {
	log.Printf("jobs: job %s run failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if int(job.Retries)+1 >= w.maxRetries {
		log.Printf("jobs: job %s exhausted %d retries, marking failed", job.ID, w.maxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.AnalysisJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("jobs: job %s requeued for retry %d/%d", job.ID, job.Retries+1, w.maxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.AnalysisJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OrchestratorOptions sizes the worker pool and job bookkeeping.
type OrchestratorOptions struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
}

// Orchestrator runs ingestion jobs from a bounded queue on a fixed
// worker pool. Within one document the pipeline stays sequential;
// parallelism exists only across documents.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	ingestor *Ingestor
	workers  int
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator builds the pool. Call Start before submitting jobs.
func NewOrchestrator(ingestor *Ingestor, opts OrchestratorOptions, log *slog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		jobs:     NewJobStore(opts.JobTTL),
		queue:    make(chan *Job, opts.QueueSize),
		ingestor: ingestor,
		workers:  opts.Workers,
		log:      log,
	}
}

// Start launches the workers and the job store cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop shuts the pool down. A document already being processed runs to
// completion; queued jobs that never started are abandoned.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit registers and enqueues a job for the document key. When the
// key already has an unfinished job, the active job is returned with
// ErrKeyActive. A full queue fails the job immediately.
func (o *Orchestrator) Submit(key string) (*Job, error) {
	job, err := o.jobs.NewJob(key)
	if err != nil {
		return job, err
	}
	select {
	case o.queue <- job:
		return job, nil
	default:
		o.jobs.Finish(job, &Result{
			DocumentKey: key,
			Status:      StatusFailed,
			Err:         "job queue is full",
		})
		return job, fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by id, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns how many jobs are waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	job.SetProcessing()
	o.log.Info("job started", "job", job.ID, "document", job.DocumentKey)
	start := time.Now()

	// A started document runs to completion even through shutdown, so
	// external calls get the job's own uncancellable context.
	res := o.ingestor.Ingest(context.WithoutCancel(ctx), job.DocumentKey)

	o.jobs.Finish(job, res)
	o.log.Info("job finished",
		"job", job.ID,
		"document", job.DocumentKey,
		"status", res.Status,
		"duration", time.Since(start).Round(time.Millisecond))
}

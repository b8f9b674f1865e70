package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/lecture-notebook/internal/storage"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

// Transcriber converts staged audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Summarizer turns a transcript into the note-page JSON document.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// NotebookStore is the slice of the record store the pipeline writes to.
type NotebookStore interface {
	UpdateStatus(ctx context.Context, id int64, status types.Status) error
	SetTranscription(ctx context.Context, id int64, text string, status types.Status) error
	SetSummary(ctx context.Context, id int64, summary string, status types.Status) error
}

// WorkerPool drives accepted recordings through the processing state machine:
// transcribing -> summarizing -> completed, with failed absorbing any error.
// One job touches only its own notebook row, so jobs for different notebooks
// run concurrently without coordination.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	transcriber Transcriber
	summarizer  Summarizer
	blobs       storage.BlobStore
	store       NotebookStore
	log         *zap.SugaredLogger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorkerPool creates a pool; call Start to launch the workers.
func NewWorkerPool(
	workerCount int,
	transcriber Transcriber,
	summarizer Summarizer,
	blobs storage.BlobStore,
	store NotebookStore,
	log *zap.SugaredLogger,
) *WorkerPool {
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		transcriber: transcriber,
		summarizer:  summarizer,
		blobs:       blobs,
		store:       store,
		log:         log,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	wp.log.Infow("starting worker pool", "workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes intake and blocks until every in-flight and queued job has
// reached a terminal state. Accepted submissions are never silently dropped
// on graceful shutdown.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
	})
	wp.wg.Wait()
	wp.log.Info("worker pool drained")
}

// Enqueue hands an accepted job to the pool. Blocks if the queue is full
// rather than dropping the job.
func (wp *WorkerPool) Enqueue(job *Job) error {
	defer func() {
		// Enqueue after Stop is a programming error; report it instead of
		// crashing the submitting handler.
		if r := recover(); r != nil {
			wp.log.Errorw("enqueue on stopped pool", "notebook_id", job.NotebookID)
		}
	}()

	wp.jobQueue <- job
	wp.log.Infow("job enqueued", "notebook_id", job.NotebookID, "file", job.FileName)
	return nil
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	wp.log.Debugw("worker started", "worker", id)

	for job := range wp.jobQueue {
		wp.runJob(id, job)
	}
}

// runJob isolates panics so one poisoned job cannot take down a worker.
func (wp *WorkerPool) runJob(workerID int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.log.Errorw("panic processing job",
				"worker", workerID, "notebook_id", job.NotebookID,
				"panic", r, "stack", string(debug.Stack()))
			wp.markFailed(job.NotebookID)
			wp.deleteBlob(job)
		}
	}()

	wp.processJob(workerID, job)
}

// processJob is the pipeline for one notebook. Each status transition is
// persisted before the next stage begins, so a poller observes transitions
// strictly in order. Any stage error reduces to a failed status; nothing is
// surfaced to the original caller.
func (wp *WorkerPool) processJob(workerID int, job *Job) {
	ctx := context.Background()
	log := wp.log.With("worker", workerID, "notebook_id", job.NotebookID)
	log.Info("processing recording")

	if err := wp.store.UpdateStatus(ctx, job.NotebookID, types.StatusTranscribing); err != nil {
		log.Errorw("failed to mark transcribing", "error", err)
		wp.markFailed(job.NotebookID)
		wp.deleteBlob(job)
		return
	}

	audio, err := wp.blobs.Fetch(ctx, job.BlobURL)
	if err != nil {
		log.Errorw("failed to fetch staged audio", "error", err)
		wp.markFailed(job.NotebookID)
		wp.deleteBlob(job)
		return
	}

	transcript, err := wp.transcriber.Transcribe(ctx, job.FileName, audio)
	if err != nil {
		log.Errorw("transcription failed", "error", err)
		wp.markFailed(job.NotebookID)
		wp.deleteBlob(job)
		return
	}

	if err := wp.store.SetTranscription(ctx, job.NotebookID, transcript, types.StatusSummarizing); err != nil {
		log.Errorw("failed to persist transcription", "error", err)
		wp.markFailed(job.NotebookID)
		wp.deleteBlob(job)
		return
	}

	// The staged audio is no longer needed. A deletion failure is logged and
	// must never fail the pipeline.
	wp.deleteBlob(job)

	summary, err := wp.summarizer.Summarize(ctx, transcript)
	if err != nil {
		log.Errorw("summarization failed", "error", err)
		wp.markFailed(job.NotebookID)
		return
	}

	if err := wp.store.SetSummary(ctx, job.NotebookID, summary, types.StatusCompleted); err != nil {
		log.Errorw("failed to persist summary", "error", err)
		wp.markFailed(job.NotebookID)
		return
	}

	log.Info("recording completed")
}

// markFailed is a best-effort terminal write. If the store is unavailable the
// error is logged and swallowed so it cannot mask the original failure.
func (wp *WorkerPool) markFailed(notebookID int64) {
	err := wp.store.UpdateStatus(context.Background(), notebookID, types.StatusFailed)
	if err != nil && !errors.Is(err, context.Canceled) {
		wp.log.Errorw("failed to mark notebook failed",
			"notebook_id", notebookID, "error", fmt.Errorf("terminal write: %w", err))
	}
}

func (wp *WorkerPool) deleteBlob(job *Job) {
	if job.BlobURL == "" {
		return
	}
	if err := wp.blobs.Delete(context.Background(), job.BlobURL); err != nil {
		wp.log.Warnw("failed to delete staged audio",
			"notebook_id", job.NotebookID, "blob_url", job.BlobURL, "error", err)
	}
}

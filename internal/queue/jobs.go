package queue

import "time"

// Job is one accepted recording waiting for pipeline processing. The audio is
// already staged in the blob store; the notebook row already exists in
// pending state and its id has been returned to the caller.
type Job struct {
	NotebookID int64
	FileName   string
	BlobURL    string
	EnqueuedAt time.Time
}

// NewJob creates a job for a staged recording.
func NewJob(notebookID int64, fileName, blobURL string) *Job {
	return &Job{
		NotebookID: notebookID,
		FileName:   fileName,
		BlobURL:    blobURL,
		EnqueuedAt: time.Now(),
	}
}

package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced synchronously to the upload caller.
var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrQuotaExceeded = errors.New("daily limit reached, come back tomorrow")
	ErrNotFound      = errors.New("not found")
)

// ValidationError rejects an upload before any record is created.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation constructs a ValidationError with a stable machine code.
func Validation(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// Validation error codes, returned in the response body alongside the message.
const (
	CodeNoFile        = "ERR_NO_FILE"
	CodeEmptyFile     = "ERR_EMPTY_FILE"
	CodeFileTooLarge  = "ERR_FILE_TOO_LARGE"
	CodeInvalidFormat = "ERR_INVALID_FORMAT"
)

// Stage identifies the pipeline stage that produced a StageError.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageSummarization Stage = "summarization"
)

// FailureKind categorizes provider failures instead of leaking raw errors.
type FailureKind string

const (
	KindTimeout        FailureKind = "timeout"
	KindRateLimited    FailureKind = "rate_limited"
	KindInvalidFormat  FailureKind = "invalid_format"
	KindQuotaExhausted FailureKind = "quota_exhausted"
	KindEmptyResult    FailureKind = "empty_result"
	KindInvalidJSON    FailureKind = "invalid_json"
	KindUnknown        FailureKind = "unknown"
)

// StageError is a mid-pipeline failure. It is logged and reduced to a failed
// notebook status; it never reaches the original caller.
type StageError struct {
	Stage Stage
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed (%s)", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TranscriptionFailed wraps err as a transcription-stage failure.
func TranscriptionFailed(kind FailureKind, err error) *StageError {
	return &StageError{Stage: StageTranscription, Kind: kind, Err: err}
}

// SummarizationFailed wraps err as a summarization-stage failure.
func SummarizationFailed(kind FailureKind, err error) *StageError {
	return &StageError{Stage: StageSummarization, Kind: kind, Err: err}
}

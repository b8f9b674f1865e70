package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := TranscriptionFailed(KindTimeout, cause)

	if !errors.Is(err, cause) {
		t.Error("StageError should unwrap to its cause")
	}

	var stageErr *StageError
	if !errors.As(error(err), &stageErr) {
		t.Fatal("errors.As should match *StageError")
	}
	if stageErr.Stage != StageTranscription || stageErr.Kind != KindTimeout {
		t.Errorf("unexpected stage/kind: %s/%s", stageErr.Stage, stageErr.Kind)
	}
}

func TestStageErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", SummarizationFailed(KindInvalidJSON, nil))

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatal("errors.As should find StageError through wrapping")
	}
	if stageErr.Kind != KindInvalidJSON {
		t.Errorf("Kind = %s, want %s", stageErr.Kind, KindInvalidJSON)
	}
}

func TestValidationError(t *testing.T) {
	err := Validation(CodeFileTooLarge, "file too large (max 25MB)")

	var ve *ValidationError
	if !errors.As(error(err), &ve) {
		t.Fatal("errors.As should match *ValidationError")
	}
	if ve.Code != CodeFileTooLarge {
		t.Errorf("Code = %q", ve.Code)
	}
	if ve.Error() != "file too large (max 25MB)" {
		t.Errorf("Error() = %q", ve.Error())
	}
}

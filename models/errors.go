package models

import "fmt"

// Error codes used in log lines and run results.
const (
	ErrCodeBrowserLaunch    = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeTimeout          = "WAIT_TIMEOUT"
	ErrCodeNoCandidates     = "NO_CANDIDATES"
	ErrCodeActivation       = "ACTIVATION_FAILED"
	ErrCodeCollect          = "COLLECT_FAILED"
	ErrCodeRetriesExhausted = "RETRIES_EXHAUSTED"
	ErrCodePersist          = "PERSIST_FAILED"
	ErrCodeInvalidProfile   = "INVALID_PROFILE"
	ErrCodeCanceled         = "CANCELED"
)

// HarvestError is the internal error type carrying an error code and the
// navigation stage it was raised in. It supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Stage   string // empty outside the navigation loop
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	prefix := e.Code
	if e.Stage != "" {
		prefix = e.Code + " [" + e.Stage + "]"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError without a stage.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// NewStageError creates a new HarvestError raised at the given stage.
func NewStageError(code, stage, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Stage: stage, Message: message, Err: err}
}

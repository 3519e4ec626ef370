package types

import "errors"

// ReasonCode classifies why a task or run failed.
type ReasonCode string

const (
	ReasonNone                       ReasonCode = ""
	ReasonInsufficientAuthentication ReasonCode = "insufficient_authentication"
	ReasonNavigationTimeout          ReasonCode = "navigation_timeout"
	ReasonInteractionFailed          ReasonCode = "interaction_failed"
	ReasonUploadProcessingTimeout    ReasonCode = "upload_processing_timeout"
	ReasonSchedulingMismatch         ReasonCode = "scheduling_mismatch"
	ReasonFailedToUpload             ReasonCode = "failed_to_upload"
	ReasonProxyUnreachable           ReasonCode = "proxy_unreachable"
	ReasonInvalidTask                ReasonCode = "invalid_task"
)

var (
	// ErrInsufficientAuthentication means no usable credential was supplied,
	// or the login never produced the session cookie.
	ErrInsufficientAuthentication = errors.New("insufficient authentication")
	// ErrNavigationTimeout means the upload page never became usable.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrInteractionFailed means every click strategy failed on a required element.
	ErrInteractionFailed = errors.New("interaction failed")
	// ErrUploadProcessingTimeout means the file never finished processing.
	ErrUploadProcessingTimeout = errors.New("upload processing timeout")
	// ErrSchedulingMismatch means the picker read back a different date or time.
	ErrSchedulingMismatch = errors.New("scheduling mismatch")
	// ErrFailedToUpload means the retry budget for a task was exhausted.
	ErrFailedToUpload = errors.New("failed to upload")
	// ErrProxyUnreachable means the configured proxy failed its check.
	ErrProxyUnreachable = errors.New("proxy unreachable")
	// ErrInvalidTask means a task was rejected before any browser work.
	ErrInvalidTask = errors.New("invalid task")
)

var reasons = []struct {
	err    error
	reason ReasonCode
}{
	// Order matters: ErrFailedToUpload wraps the last attempt's error, so it
	// has to be checked first.
	{ErrFailedToUpload, ReasonFailedToUpload},
	{ErrInsufficientAuthentication, ReasonInsufficientAuthentication},
	{ErrProxyUnreachable, ReasonProxyUnreachable},
	{ErrInvalidTask, ReasonInvalidTask},
	{ErrNavigationTimeout, ReasonNavigationTimeout},
	{ErrUploadProcessingTimeout, ReasonUploadProcessingTimeout},
	{ErrSchedulingMismatch, ReasonSchedulingMismatch},
	{ErrInteractionFailed, ReasonInteractionFailed},
}

// ReasonOf maps err to its reason code. Errors outside the taxonomy
// classify as ReasonFailedToUpload, and nil as ReasonNone.
func ReasonOf(err error) ReasonCode {
	if err == nil {
		return ReasonNone
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonFailedToUpload
}

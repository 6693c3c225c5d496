package copier

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Kind classifies a copy failure.
type Kind string

// Failure kinds.
const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindPrecondition  Kind = "precondition"
	KindProvider      Kind = "provider"
	KindWait          Kind = "wait"
	KindUnknown       Kind = "unknown"
)

// ValidationError is a missing or malformed parameter detected locally.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Kind returns KindValidation.
func (e *ValidationError) Kind() Kind { return KindValidation }

// ConfigurationError means no usable region or AWS configuration could be resolved.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Kind returns KindConfiguration.
func (e *ConfigurationError) Kind() Kind { return KindConfiguration }

// NotFoundError means the source snapshot does not exist in the source region.
type NotFoundError struct {
	SnapshotID string
	Err        error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find snapshot with identifier %s", e.SnapshotID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Kind returns KindNotFound.
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// PreconditionError means the source snapshot is not in the available state.
type PreconditionError struct {
	SnapshotID string
	Status     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("snapshot not available with identifier %s (status: %s)", e.SnapshotID, e.Status)
}

// Kind returns KindPrecondition.
func (e *PreconditionError) Kind() Kind { return KindPrecondition }

// ProviderError is a failure reported by the RDS API. Code and Message are
// taken verbatim from the provider when it returned a structured error.
type ProviderError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Kind returns KindProvider.
func (e *ProviderError) Kind() Kind { return KindProvider }

// WaitError means the copy was requested but the new snapshot did not become
// available. The copy itself is not undone.
type WaitError struct {
	SnapshotID string
	Err        error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("copy of snapshot %s requested but it did not become available: %v", e.SnapshotID, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// Kind returns KindWait.
func (e *WaitError) Kind() Kind { return KindWait }

func newProviderError(op string, err error) *ProviderError {
	pe := &ProviderError{Op: op, Message: err.Error(), Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
		pe.Message = apiErr.ErrorMessage()
	}
	return pe
}

// KindOf returns the failure kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ProviderCode returns the provider error code carried by err, if any.
// Errors that wrap a provider fault, such as NotFoundError, report its code.
func ProviderCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

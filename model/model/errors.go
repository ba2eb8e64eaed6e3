package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. NotFound and InvalidState are terminal for a (journey, model) pair.
// ProviderFailure and PersistenceFailure may be retried by callers.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrProviderFailure    = errors.New("provider failure")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// InvalidState reasons.
const (
	ReasonNoConversion                = "no-conversion"
	ReasonNoTouchpoints               = "no-touchpoints"
	ReasonInconsistentModelParameters = "inconsistent-model-parameters"
	ReasonUnsupportedModelType        = "unsupported-model-type"
	ReasonInvalidInput                = "invalid-input"
)

type AttributionError struct {
	Kind      error
	Reason    string
	JourneyID string
	ModelID   string
	Message   string
	Err       error
}

func (e *AttributionError) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.JourneyID != "" || e.ModelID != "" {
		msg = fmt.Sprintf("%s journey=%s model=%s", msg, e.JourneyID, e.ModelID)
	}
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AttributionError) Unwrap() error {
	return e.Err
}

// Is matches the error kind, i.e. errors.Is(err, ErrNotFound).
func (e *AttributionError) Is(target error) bool {
	return e.Kind == target
}

func NewNotFoundError(entity, id string) error {
	return &AttributionError{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s", entity, id)}
}

func NewInvalidStateError(reason, journeyID, modelID, message string) error {
	return &AttributionError{Kind: ErrInvalidState, Reason: reason, JourneyID: journeyID,
		ModelID: modelID, Message: message}
}

func NewProviderFailureError(err error, message string) error {
	return &AttributionError{Kind: ErrProviderFailure, Message: message, Err: err}
}

func NewPersistenceFailureError(err error, message string) error {
	return &AttributionError{Kind: ErrPersistenceFailure, Message: message, Err: err}
}

// WithPair returns a copy of an AttributionError scoped to the pair. Other errors are returned as is.
func WithPair(err error, journeyID, modelID string) error {
	var attributionErr *AttributionError
	if !errors.As(err, &attributionErr) {
		return err
	}
	scoped := *attributionErr
	if scoped.JourneyID == "" {
		scoped.JourneyID = journeyID
	}
	if scoped.ModelID == "" {
		scoped.ModelID = modelID
	}
	return &scoped
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsRetryable true for failures of an external collaborator.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderFailure) || errors.Is(err, ErrPersistenceFailure)
}

// GetReason returns the InvalidState reason, if any.
func GetReason(err error) string {
	var attributionErr *AttributionError
	if errors.As(err, &attributionErr) {
		return attributionErr.Reason
	}
	return ""
}

// ErrorKindName name used on logs and api responses.
func ErrorKindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrProviderFailure):
		return "provider_failure"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	default:
		return "unknown"
	}
}

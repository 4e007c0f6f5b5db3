package appointment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidDate             = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime             = errors.New("invalid time, expected HH:MM")
	ErrNotFuture               = errors.New("requested date and time must be in the future")
	ErrAlreadyCancelled        = errors.New("appointment is already cancelled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrHoldExpired             = errors.New("pending appointment has expired")

	ErrServiceNotFound     = errors.New("service not found or disabled")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrShiftNotFound       = errors.New("work shift not found")

	ErrServiceNotAvailableForSize = errors.New("service not available for pet size")
	ErrDurationRulesMissing       = errors.New("duration rules missing for pet size or service")

	ErrNoAvailability = errors.New("no availability in the look-ahead window")

	// ErrSlotConflict means another writer claimed an overlapping slot after
	// the availability search. Callers must search again before retrying.
	ErrSlotConflict = errors.New("requested slot is no longer available")

	// ErrDuplicateAppointmentID is returned by repositories when a generated
	// appointment id collides with an existing row.
	ErrDuplicateAppointmentID = errors.New("appointment id already exists")
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConstraint
	KindExhausted
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConstraint:
		return "constraint"
	case KindExhausted:
		return "exhausted"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "internal"
	}
}

// KindOf classifies err into the failure taxonomy used at the API boundary.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrSlotConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidTime),
		errors.Is(err, ErrNotFuture),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrHoldExpired):
		return KindValidation
	case errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrAppointmentNotFound):
		return KindNotFound
	case errors.Is(err, ErrServiceNotAvailableForSize),
		errors.Is(err, ErrDurationRulesMissing):
		return KindConstraint
	case errors.Is(err, ErrNoAvailability):
		return KindExhausted
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller should re-run the availability
// search and try booking again.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflict
}

// ServicesError names the services that caused a lookup or size check to fail.
type ServicesError struct {
	Err      error
	Services []string
}

func (e *ServicesError) Error() string {
	return fmt.Sprintf("%s [%s]", e.Err.Error(), strings.Join(e.Services, ", "))
}

func (e *ServicesError) Unwrap() error {
	return e.Err
}

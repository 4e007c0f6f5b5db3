package appointment

import (
	"context"
	"time"
)

// CatalogRepository serves immutable reference data.
type CatalogRepository interface {
	// FindServicesByNames returns the enabled services whose names match.
	FindServicesByNames(ctx context.Context, names []string) ([]Service, error)
	// GetDurationRules returns the rule for each (service, size) pair that has one.
	GetDurationRules(ctx context.Context, serviceIDs []string, size PetSize) ([]DurationRule, error)
	// GetWorkShift returns ErrShiftNotFound when the weekday has no shift.
	GetWorkShift(ctx context.Context, weekday time.Weekday) (*WorkShift, error)
}

type CalendarRepository interface {
	// GetClosure returns nil when the day is not closed.
	GetClosure(ctx context.Context, day time.Time) (*Closure, error)
	// ListBusyAppointments returns the day's CONFIRMED appointments and the
	// PENDING ones whose hold has not expired at now.
	ListBusyAppointments(ctx context.Context, day time.Time, now time.Time) ([]Appointment, error)
}

type RuleRepository interface {
	// ListBusinessRules returns enabled rules scoped to any of serviceIDs or to size.
	ListBusinessRules(ctx context.Context, serviceIDs []string, size PetSize) ([]BusinessRule, error)
	CountServiceAppointments(ctx context.Context, day time.Time, serviceID string, now time.Time) (int, error)
	CountSizeAppointments(ctx context.Context, day time.Time, size PetSize, now time.Time) (int, error)
}

type BookingRepository interface {
	// CreatePendingAppointment runs the overlap check and the insert inside a
	// critical section exclusive per calendar day. It returns ErrSlotConflict
	// without writing anything when a busy appointment overlaps.
	CreatePendingAppointment(ctx context.Context, appt NewAppointment, now time.Time) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id string) (*Appointment, error)
	// UpdateAppointmentStatus moves id from one status to another and returns
	// ErrAppointmentNotFound when the row is missing or no longer in from.
	UpdateAppointmentStatus(ctx context.Context, id string, from, to AppointmentStatus, reason string) (*Appointment, error)
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository contains all store interactions needed by the scheduling engine.
type Repository interface {
	CatalogRepository
	CalendarRepository
	RuleRepository
	BookingRepository
}

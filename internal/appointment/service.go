package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

// Publisher forwards appointment lifecycle events to other systems.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
}

// Recorder observes search and booking outcomes.
type Recorder interface {
	ObserveSearch(outcome string, d time.Duration)
	ObserveBooking(outcome string, d time.Duration)
}

type Options struct {
	Policy  Policy
	Now     func() time.Time
	Logger  *slog.Logger
	Events  Publisher
	Metrics Recorder
}

// Scheduler is the entry point used by transports. It wires the planner and
// the booking transaction to one repository and adds lookup and status
// changes on top.
type Scheduler struct {
	repo    Repository
	planner *Planner
	booker  *Booker
	policy  Policy
	now     func() time.Time
	logger  *slog.Logger
	events  Publisher
	metrics Recorder
}

func NewScheduler(repo Repository, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		repo:    repo,
		planner: NewPlanner(repo, opts.Policy, opts.Now, opts.Logger),
		booker:  NewBooker(repo, opts.Policy, opts.Now),
		policy:  opts.Policy,
		now:     opts.Now,
		logger:  opts.Logger,
		events:  opts.Events,
		metrics: opts.Metrics,
	}
}

func (s *Scheduler) GetAvailability(ctx context.Context, req AvailabilityRequest) (*Availability, error) {
	start := time.Now()
	avail, err := s.planner.GetAvailability(ctx, req)
	s.observeSearch(err, time.Since(start))
	if err != nil {
		if KindOf(err) == KindInternal {
			s.logger.Error("availability search failed", "day", req.Day, "err", err)
		}
		return nil, err
	}

	s.logger.Info("availability found",
		"requested_day", req.Day,
		"day", avail.Day.Format(DateLayout),
		"start", avail.StartHHMM(),
		"end", avail.EndHHMM(),
		"required_minutes", avail.RequiredMinutes,
	)
	return avail, nil
}

// ResolveServiceIDs maps service names to ids, failing with the missing names.
func (s *Scheduler) ResolveServiceIDs(ctx context.Context, names []string) ([]string, error) {
	names = normalizeNames(names)
	services, err := s.repo.FindServicesByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find services: %w", err)
	}
	if len(services) != len(names) {
		return nil, &ServicesError{Err: ErrServiceNotFound, Services: missingNames(names, services)}
	}
	ids := make([]string, 0, len(services))
	for _, svc := range services {
		ids = append(ids, svc.ID)
	}
	return ids, nil
}

func (s *Scheduler) CreateAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	start := time.Now()
	appt, err := s.booker.CreateAppointment(ctx, req)
	s.observeBooking(err, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.logger.Warn("booking conflict", "day", req.Day, "start", req.Start, "end", req.End)
		} else if KindOf(err) == KindInternal {
			s.logger.Error("create appointment failed", "day", req.Day, "err", err)
		}
		return nil, err
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"day", appt.Date.Format(DateLayout),
		"start", MinutesToHHMM(appt.Start),
		"end", MinutesToHHMM(appt.End),
		"expires_at", appt.ExpiresAt,
	)
	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"day":        appt.Date.Format(DateLayout),
		"start":      MinutesToHHMM(appt.Start),
		"end":        MinutesToHHMM(appt.End),
		"pet_size":   appt.Pet.Size,
		"services":   appt.ServiceNames(),
		"expires_at": appt.ExpiresAt,
	})
	return appt, nil
}

func (s *Scheduler) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Scheduler) CancelAppointment(ctx context.Context, id, reason string) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !canTransition(appt.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusCancelled)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled, reason)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{
		"from":   appt.Status,
		"reason": reason,
	})
	return updated, nil
}

// UpdateStatus applies a staff decision to a PENDING appointment.
func (s *Scheduler) UpdateStatus(ctx context.Context, id string, to AppointmentStatus) (*Appointment, error) {
	if to == StatusCancelled {
		return s.CancelAppointment(ctx, id, "")
	}

	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}
	if to == StatusConfirmed && !appt.IsBusy(s.now()) {
		return nil, ErrHoldExpired
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, "")
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
		"from": appt.Status,
		"to":   to,
	})
	return updated, nil
}

func canTransition(from, to AppointmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusRejected || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	case StatusRejected, StatusCancelled:
		return false
	default:
		return false
	}
}

func (s *Scheduler) logEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload", "event_type", eventType, "err", err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log", "event_type", eventType, "appointment_id", appointmentID, "err", err)
	}

	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, appointmentID, data); err != nil {
		s.logger.Error("publish event", "event_type", eventType, "appointment_id", appointmentID, "err", err)
	}
}

func (s *Scheduler) observeSearch(err error, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSearch(outcome(err), d)
	}
}

func (s *Scheduler) observeBooking(err error, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveBooking(outcome(err), d)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}

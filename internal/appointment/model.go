package appointment

import (
	"fmt"
	"strings"
	"time"
)

type PetSize string

const (
	SizeSmall  PetSize = "SMALL"
	SizeMedium PetSize = "MEDIUM"
	SizeLarge  PetSize = "LARGE"
)

// ParsePetSize accepts the canonical upper-case names in any letter case.
func ParsePetSize(s string) (PetSize, error) {
	size := PetSize(strings.ToUpper(strings.TrimSpace(s)))
	if !size.Valid() {
		return "", fmt.Errorf("%w: unknown pet size %q", ErrInvalidRequest, s)
	}
	return size, nil
}

func (p PetSize) Valid() bool {
	switch p {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	default:
		return false
	}
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusRejected  AppointmentStatus = "REJECTED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

func ParseStatus(s string) (AppointmentStatus, error) {
	status := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown appointment status %q", ErrInvalidRequest, s)
	}
	return status, nil
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

type RuleKind string

const (
	RuleDailyServiceLimit RuleKind = "DAILY_SERVICE_LIMIT"
	RuleDailySizeLimit    RuleKind = "DAILY_SIZE_LIMIT"
)

func (k RuleKind) Valid() bool {
	switch k {
	case RuleDailyServiceLimit, RuleDailySizeLimit:
		return true
	default:
		return false
	}
}

type Service struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// DurationRule says how long a service takes for a pet size. Zero minutes
// means the service is not offered for that size.
type DurationRule struct {
	ServiceID string  `json:"service_id"`
	Size      PetSize `json:"size"`
	Minutes   int     `json:"minutes"`
}

// WorkShift holds opening hours for one weekday as minutes since midnight.
type WorkShift struct {
	Weekday time.Weekday `json:"weekday"`
	Start   int          `json:"start"`
	End     int          `json:"end"`
	Enabled bool         `json:"enabled"`
}

type Closure struct {
	Date   time.Time
	Reason string
}

// BusinessRule caps appointments per day. ServiceID is set for
// DAILY_SERVICE_LIMIT rules and Size for DAILY_SIZE_LIMIT rules.
type BusinessRule struct {
	ID        int64
	Kind      RuleKind
	ServiceID string
	Size      PetSize
	MaxPerDay int
	Enabled   bool
}

func (r BusinessRule) String() string {
	switch r.Kind {
	case RuleDailyServiceLimit:
		return fmt.Sprintf("%s(service=%s max=%d)", r.Kind, r.ServiceID, r.MaxPerDay)
	case RuleDailySizeLimit:
		return fmt.Sprintf("%s(size=%s max=%d)", r.Kind, r.Size, r.MaxPerDay)
	default:
		return fmt.Sprintf("%s(max=%d)", r.Kind, r.MaxPerDay)
	}
}

type Owner struct {
	Name  string
	Phone string
}

type Pet struct {
	Name  string
	Size  PetSize
	Breed string
}

type Appointment struct {
	ID              string
	Date            time.Time
	Start           int
	End             int
	Status          AppointmentStatus
	Owner           Owner
	Pet             Pet
	Notes           string
	Services        []Service
	ExpiresAt       *time.Time
	CancelledReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsBusy reports whether the appointment occupies its time range at now.
// A PENDING hold only counts until it expires.
func (a *Appointment) IsBusy(now time.Time) bool {
	switch a.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return a.ExpiresAt != nil && now.Before(*a.ExpiresAt)
	case StatusRejected, StatusCancelled:
		return false
	default:
		return false
	}
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

func (a *Appointment) ServiceNames() []string {
	names := make([]string, 0, len(a.Services))
	for _, s := range a.Services {
		names = append(names, s.Name)
	}
	return names
}

// NewAppointment is the write model handed to the repository by the booking
// transaction.
type NewAppointment struct {
	ID         string
	Date       time.Time
	Start      int
	End        int
	Owner      Owner
	Pet        Pet
	Notes      string
	ServiceIDs []string
	ExpiresAt  time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *string
	Payload       []byte
	CreatedAt     time.Time
}

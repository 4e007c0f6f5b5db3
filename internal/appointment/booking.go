package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxIDAttempts = 3

type BookingRequest struct {
	Day        string // YYYY-MM-DD
	Start      string // HH:MM
	End        string // HH:MM
	OwnerName  string
	OwnerPhone string
	PetName    string
	PetSize    PetSize
	PetBreed   string
	Notes      string
	ServiceIDs []string
	// PendingTTL replaces the weekday hold duration when positive.
	PendingTTL time.Duration
}

// Booker commits appointments for a previously suggested slot.
type Booker struct {
	repo   BookingRepository
	policy Policy
	now    func() time.Time
	newID  func() string
}

func NewBooker(repo BookingRepository, policy Policy, now func() time.Time) *Booker {
	if now == nil {
		now = time.Now
	}
	return &Booker{
		repo:   repo,
		policy: policy,
		now:    now,
		newID:  NewAppointmentID,
	}
}

// CreateAppointment stores a PENDING appointment for [Start, End) on Day.
// The repository re-checks overlaps under the day lock, so a stale
// suggestion fails with ErrSlotConflict and nothing is written.
func (b *Booker) CreateAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	loc := b.policy.location()
	now := b.now().In(loc)

	day, err := ParseDay(req.Day, loc)
	if err != nil {
		return nil, err
	}
	start, err := HHMMToMinutes(req.Start)
	if err != nil {
		return nil, err
	}
	end, err := HHMMToMinutes(req.End)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidRequest, req.Start, req.End)
	}
	if !AtMinutes(day, start).After(now) {
		return nil, ErrNotFuture
	}
	if err := validateBooking(req); err != nil {
		return nil, err
	}

	appt := NewAppointment{
		Date:       day,
		Start:      start,
		End:        end,
		Owner:      Owner{Name: strings.TrimSpace(req.OwnerName), Phone: strings.TrimSpace(req.OwnerPhone)},
		Pet:        Pet{Name: strings.TrimSpace(req.PetName), Size: req.PetSize, Breed: strings.TrimSpace(req.PetBreed)},
		Notes:      strings.TrimSpace(req.Notes),
		ServiceIDs: dedupe(req.ServiceIDs),
		ExpiresAt:  b.policy.Expiration().ComputeWithTTL(now, req.PendingTTL),
	}

	for attempt := 1; ; attempt++ {
		appt.ID = b.newID()
		created, err := b.repo.CreatePendingAppointment(ctx, appt, now)
		if errors.Is(err, ErrDuplicateAppointmentID) && attempt < maxIDAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}
}

func validateBooking(req BookingRequest) error {
	var missing []string
	if strings.TrimSpace(req.OwnerName) == "" {
		missing = append(missing, "owner_name")
	}
	if strings.TrimSpace(req.OwnerPhone) == "" {
		missing = append(missing, "owner_phone")
	}
	if strings.TrimSpace(req.PetName) == "" {
		missing = append(missing, "pet_name")
	}
	if len(dedupe(req.ServiceIDs)) == 0 {
		missing = append(missing, "service_ids")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing [%s]", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if !req.PetSize.Valid() {
		return fmt.Errorf("%w: unknown pet size %q", ErrInvalidRequest, req.PetSize)
	}
	return nil
}

// NewAppointmentID returns a short id customers can read back, e.g.
// "apt_089ddfe4". The suffix comes from a random (v4) UUID.
func NewAppointmentID() string {
	id := uuid.New()
	return "apt_" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package appointment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	svcSimple   = "svc-simple"
	svcMedicado = "svc-medicado"
	svcCorte    = "svc-corte"
	svcVacuna   = "svc-vacuna"
)

// memRepo is an in-memory Repository. Creates take a per-day mutex so the
// overlap check and insert behave like the Postgres advisory lock.
type memRepo struct {
	mu       sync.Mutex
	dayLocks map[int64]*sync.Mutex

	services  []Service
	durations []DurationRule
	shifts    map[time.Weekday]WorkShift
	closures  map[string]string
	rules     []BusinessRule

	appts        map[string]*Appointment
	apptServices map[string][]string
	events       []EventLog

	// createErrs are returned, in order, by the next CreatePendingAppointment calls.
	createErrs []error
	// insertDelay widens the window between the overlap check and the insert.
	insertDelay time.Duration
}

func newMemRepo() *memRepo {
	r := &memRepo{
		dayLocks:     make(map[int64]*sync.Mutex),
		shifts:       make(map[time.Weekday]WorkShift),
		closures:     make(map[string]string),
		appts:        make(map[string]*Appointment),
		apptServices: make(map[string][]string),
		services: []Service{
			{ID: svcSimple, Name: "bano_simple", Enabled: true},
			{ID: svcMedicado, Name: "bano_medicado", Enabled: true},
			{ID: svcCorte, Name: "bano_corte", Enabled: true},
			{ID: svcVacuna, Name: "vacuna", Enabled: true},
		},
		durations: []DurationRule{
			{ServiceID: svcSimple, Size: SizeSmall, Minutes: 60},
			{ServiceID: svcSimple, Size: SizeMedium, Minutes: 60},
			{ServiceID: svcSimple, Size: SizeLarge, Minutes: 120},
			{ServiceID: svcMedicado, Size: SizeSmall, Minutes: 60},
			{ServiceID: svcMedicado, Size: SizeMedium, Minutes: 60},
			{ServiceID: svcMedicado, Size: SizeLarge, Minutes: 120},
			{ServiceID: svcCorte, Size: SizeSmall, Minutes: 90},
			{ServiceID: svcCorte, Size: SizeMedium, Minutes: 120},
			{ServiceID: svcCorte, Size: SizeLarge, Minutes: 0},
			{ServiceID: svcVacuna, Size: SizeSmall, Minutes: 15},
			{ServiceID: svcVacuna, Size: SizeMedium, Minutes: 15},
		},
		rules: []BusinessRule{
			{ID: 1, Kind: RuleDailyServiceLimit, ServiceID: svcCorte, MaxPerDay: 2, Enabled: true},
			{ID: 2, Kind: RuleDailySizeLimit, Size: SizeLarge, MaxPerDay: 2, Enabled: true},
		},
	}
	for d := time.Monday; d <= time.Saturday; d++ {
		r.shifts[d] = WorkShift{Weekday: d, Start: 9 * 60, End: 18*60 + 30, Enabled: true}
	}
	return r
}

func (r *memRepo) dayLock(day time.Time) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := DateKey(day)
	l, ok := r.dayLocks[key]
	if !ok {
		l = &sync.Mutex{}
		r.dayLocks[key] = l
	}
	return l
}

func (r *memRepo) FindServicesByNames(_ context.Context, names []string) ([]Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Service
	for _, s := range r.services {
		if !s.Enabled {
			continue
		}
		for _, n := range names {
			if s.Name == n {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (r *memRepo) GetDurationRules(_ context.Context, serviceIDs []string, size PetSize) ([]DurationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DurationRule
	for _, d := range r.durations {
		if d.Size == size && contains(serviceIDs, d.ServiceID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) GetWorkShift(_ context.Context, weekday time.Weekday) (*WorkShift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[weekday]
	if !ok {
		return nil, ErrShiftNotFound
	}
	return &s, nil
}

func (r *memRepo) GetClosure(_ context.Context, day time.Time) (*Closure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.closures[day.Format(DateLayout)]
	if !ok {
		return nil, nil
	}
	return &Closure{Date: day, Reason: reason}, nil
}

func (r *memRepo) ListBusyAppointments(_ context.Context, day time.Time, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busyLocked(day, now), nil
}

func (r *memRepo) busyLocked(day time.Time, now time.Time) []Appointment {
	var out []Appointment
	for _, a := range r.appts {
		if sameDay(a.Date, day) && a.IsBusy(now) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (r *memRepo) ListBusinessRules(_ context.Context, serviceIDs []string, size PetSize) ([]BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BusinessRule
	for _, br := range r.rules {
		if br.Enabled && appliesTo(br, serviceIDs, size) {
			out = append(out, br)
		}
	}
	return out, nil
}

func (r *memRepo) CountServiceAppointments(_ context.Context, day time.Time, serviceID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.busyLocked(day, now) {
		if contains(r.apptServices[a.ID], serviceID) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountSizeAppointments(_ context.Context, day time.Time, size PetSize, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.busyLocked(day, now) {
		if a.Pet.Size == size {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CreatePendingAppointment(_ context.Context, appt NewAppointment, now time.Time) (*Appointment, error) {
	l := r.dayLock(appt.Date)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		r.mu.Unlock()
		return nil, err
	}
	want := Interval{Start: appt.Start, End: appt.End}
	for _, a := range r.busyLocked(appt.Date, now) {
		if a.Interval().Overlaps(want) {
			r.mu.Unlock()
			return nil, ErrSlotConflict
		}
	}
	r.mu.Unlock()

	if r.insertDelay > 0 {
		time.Sleep(r.insertDelay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[appt.ID]; ok {
		return nil, ErrDuplicateAppointmentID
	}
	expiresAt := appt.ExpiresAt
	created := &Appointment{
		ID:        appt.ID,
		Date:      appt.Date,
		Start:     appt.Start,
		End:       appt.End,
		Status:    StatusPending,
		Owner:     appt.Owner,
		Pet:       appt.Pet,
		Notes:     appt.Notes,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, id := range appt.ServiceIDs {
		for _, s := range r.services {
			if s.ID == id {
				created.Services = append(created.Services, s)
			}
		}
	}
	r.appts[created.ID] = created
	r.apptServices[created.ID] = append([]string(nil), appt.ServiceIDs...)
	out := *created
	return &out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id string, from, to AppointmentStatus, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if reason != "" {
		a.CancelledReason = reason
	}
	out := *a
	return &out, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

// seed stores an appointment directly, bypassing the booking checks.
func (r *memRepo) seed(t *testing.T, a Appointment, serviceIDs ...string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, a.ID)
	r.appts[a.ID] = &a
	r.apptServices[a.ID] = serviceIDs
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Test fixtures

func lima(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func testPolicy(t *testing.T) Policy {
	t.Helper()
	p := DefaultPolicy()
	p.Location = lima(t)
	return p
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDay(s, lima(t))
	require.NoError(t, err)
	return d
}

func mustMinutes(t *testing.T, hhmm string) int {
	t.Helper()
	m, err := HHMMToMinutes(hhmm)
	require.NoError(t, err)
	return m
}

func appt(t *testing.T, id, day, start, end string, status AppointmentStatus, size PetSize, expiresAt *time.Time) Appointment {
	t.Helper()
	return Appointment{
		ID:        id,
		Date:      mustDay(t, day),
		Start:     mustMinutes(t, start),
		End:       mustMinutes(t, end),
		Status:    status,
		Pet:       Pet{Name: "Firulais", Size: size},
		Owner:     Owner{Name: "Ana", Phone: "999111222"},
		ExpiresAt: expiresAt,
	}
}

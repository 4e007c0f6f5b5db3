package appointment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPlanner(t *testing.T, repo *memRepo, now time.Time) *Planner {
	t.Helper()
	return NewPlanner(repo, testPolicy(t), fixedClock(now), discardLogger())
}

// mondayMorning is 2025-06-02 08:00 in Lima, before the shift opens.
func mondayMorning(t *testing.T) time.Time {
	return time.Date(2025, 6, 2, 8, 0, 0, 0, lima(t))
}

func TestGetAvailabilityFirstSlot(t *testing.T) {
	p := newTestPlanner(t, newMemRepo(), mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-02",
		ServiceNames: []string{"bano_simple"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", avail.Day.Format(DateLayout))
	assert.Equal(t, "09:00", avail.StartHHMM())
	assert.Equal(t, "10:00", avail.EndHHMM())
	assert.Equal(t, 60, avail.RequiredMinutes)
	require.Len(t, avail.Services, 1)
	assert.Equal(t, svcSimple, avail.Services[0].ID)
}

func TestGetAvailabilityPreferredTime(t *testing.T) {
	p := newTestPlanner(t, newMemRepo(), mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		PreferredTime: "10:00",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-03", avail.Day.Format(DateLayout))
	assert.Equal(t, Interval{Start: 600, End: 660}, avail.Slot)
}

func TestGetAvailabilityPreferredTimeOnlyOnFirstDay(t *testing.T) {
	p := newTestPlanner(t, newMemRepo(), mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		PreferredTime: "17:45",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-04", avail.Day.Format(DateLayout))
	assert.Equal(t, "09:00", avail.StartHHMM())
}

func TestGetAvailabilityRequiredMinutes(t *testing.T) {
	repo := newMemRepo()
	repo.durations = []DurationRule{
		{ServiceID: svcSimple, Size: SizeSmall, Minutes: 50},
		{ServiceID: svcVacuna, Size: SizeSmall, Minutes: 40},
		{ServiceID: svcMedicado, Size: SizeSmall, Minutes: 15},
	}
	p := newTestPlanner(t, repo, mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple", "vacuna"},
		PetSize:      SizeSmall,
		BlockMinutes: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, 90, avail.RequiredMinutes)
	assert.Equal(t, Interval{Start: 540, End: 630}, avail.Slot)

	avail, err = p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple", "medicado_typo", "bano_medicado"},
		PetSize:      SizeSmall,
	})
	require.Error(t, err)
	assert.Nil(t, avail)

	avail, err = p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple", "bano_medicado", " bano_simple "},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, 75, avail.RequiredMinutes, "duplicates are counted once and the sum is rounded up")
}

func TestGetAvailabilityClampsToNow(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 7, 0, 0, lima(t))
	p := newTestPlanner(t, newMemRepo(), now)

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-02",
		ServiceNames: []string{"bano_simple"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", avail.Day.Format(DateLayout))
	assert.Equal(t, "10:15", avail.StartHHMM())
}

func TestGetAvailabilitySkipsClosedDays(t *testing.T) {
	repo := newMemRepo()
	repo.closures["2025-06-03"] = "feriado"
	p := newTestPlanner(t, repo, mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"vacuna"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-04", avail.Day.Format(DateLayout))

	// Sunday is closed by policy even if a shift exists.
	repo.shifts[time.Sunday] = WorkShift{Weekday: time.Sunday, Start: 540, End: 1110, Enabled: true}
	avail, err = p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-08",
		ServiceNames: []string{"vacuna"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-09", avail.Day.Format(DateLayout))
	assert.Equal(t, time.Monday, avail.Day.Weekday())
}

func TestGetAvailabilitySkipsDisabledShift(t *testing.T) {
	repo := newMemRepo()
	repo.shifts[time.Tuesday] = WorkShift{Weekday: time.Tuesday, Start: 540, End: 1110, Enabled: false}
	delete(repo.shifts, time.Wednesday)
	p := newTestPlanner(t, repo, mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"vacuna"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-05", avail.Day.Format(DateLayout))
}

func TestGetAvailabilityBusyIntervals(t *testing.T) {
	repo := newMemRepo()
	now := mondayMorning(t)
	live := now.Add(2 * time.Hour)
	expired := now.Add(-time.Minute)

	repo.seed(t, appt(t, "apt_00000001", "2025-06-03", "09:00", "10:00", StatusConfirmed, SizeSmall, nil), svcSimple)
	repo.seed(t, appt(t, "apt_00000002", "2025-06-03", "10:00", "10:30", StatusPending, SizeSmall, &live), svcVacuna)
	repo.seed(t, appt(t, "apt_00000003", "2025-06-03", "10:30", "12:00", StatusPending, SizeSmall, &expired), svcSimple)
	repo.seed(t, appt(t, "apt_00000004", "2025-06-03", "10:30", "12:00", StatusRejected, SizeSmall, nil), svcSimple)
	p := newTestPlanner(t, repo, now)

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "10:30", avail.StartHHMM())
	assert.Equal(t, "11:30", avail.EndHHMM())
}

func TestGetAvailabilityFullyBookedDayAdvances(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, appt(t, "apt_full0001", "2025-06-03", "09:00", "18:30", StatusConfirmed, SizeSmall, nil), svcSimple)
	p := newTestPlanner(t, repo, mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple"},
		PetSize:      SizeSmall,
		BlockMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-04", avail.Day.Format(DateLayout))
	assert.Equal(t, "09:00", avail.StartHHMM())
}

func TestGetAvailabilitySizeLimitBlocksWholeDay(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, appt(t, "apt_large001", "2025-06-03", "09:00", "11:00", StatusConfirmed, SizeLarge, nil), svcSimple)
	repo.seed(t, appt(t, "apt_large002", "2025-06-03", "11:00", "13:00", StatusConfirmed, SizeLarge, nil), svcSimple)
	p := newTestPlanner(t, repo, mondayMorning(t))

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		PreferredTime: "15:00",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeLarge,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-04", avail.Day.Format(DateLayout))
	assert.Equal(t, "09:00", avail.StartHHMM())
	assert.Equal(t, 120, avail.RequiredMinutes)
}

func TestGetAvailabilityNoAvailability(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, appt(t, "apt_full0001", "2025-06-03", "09:00", "18:30", StatusConfirmed, SizeSmall, nil), svcSimple)
	repo.closures["2025-06-04"] = "inventario"
	p := newTestPlanner(t, repo, mondayMorning(t))

	_, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeSmall,
		LookAheadDays: days(1),
	})
	require.ErrorIs(t, err, ErrNoAvailability)
	assert.Equal(t, KindExhausted, KindOf(err))
}

func days(n int) *int { return &n }

func TestGetAvailabilityZeroLookAheadSearchesOnlyRequestedDay(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, appt(t, "apt_full0002", "2025-06-03", "09:00", "18:30", StatusConfirmed, SizeSmall, nil), svcSimple)
	p := newTestPlanner(t, repo, mondayMorning(t))

	_, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeSmall,
		LookAheadDays: days(0),
	})
	require.ErrorIs(t, err, ErrNoAvailability)

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err, "nil look-ahead uses the policy window")
	assert.Equal(t, "2025-06-04", avail.Day.Format(DateLayout))
}

func TestGetAvailabilityRejectsNegativeLookAhead(t *testing.T) {
	p := newTestPlanner(t, newMemRepo(), mondayMorning(t))

	_, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeSmall,
		LookAheadDays: days(-1),
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGetAvailabilityErrors(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, lima(t))

	cases := []struct {
		name     string
		req      AvailabilityRequest
		wantErr  error
		wantKind ErrorKind
	}{
		{
			name:     "bad date",
			req:      AvailabilityRequest{Day: "2025/06/03", ServiceNames: []string{"vacuna"}, PetSize: SizeSmall},
			wantErr:  ErrInvalidDate,
			wantKind: KindValidation,
		},
		{
			name:     "bad preferred time",
			req:      AvailabilityRequest{Day: "2025-06-03", PreferredTime: "25:00", ServiceNames: []string{"vacuna"}, PetSize: SizeSmall},
			wantErr:  ErrInvalidTime,
			wantKind: KindValidation,
		},
		{
			name:     "past day",
			req:      AvailabilityRequest{Day: "2025-06-01", ServiceNames: []string{"vacuna"}, PetSize: SizeSmall},
			wantErr:  ErrNotFuture,
			wantKind: KindValidation,
		},
		{
			name:     "preferred time already passed today",
			req:      AvailabilityRequest{Day: "2025-06-02", PreferredTime: "11:00", ServiceNames: []string{"vacuna"}, PetSize: SizeSmall},
			wantErr:  ErrNotFuture,
			wantKind: KindValidation,
		},
		{
			name:     "no services",
			req:      AvailabilityRequest{Day: "2025-06-03", ServiceNames: []string{" "}, PetSize: SizeSmall},
			wantErr:  ErrInvalidRequest,
			wantKind: KindValidation,
		},
		{
			name:     "unknown size",
			req:      AvailabilityRequest{Day: "2025-06-03", ServiceNames: []string{"vacuna"}, PetSize: "XL"},
			wantErr:  ErrInvalidRequest,
			wantKind: KindValidation,
		},
		{
			name:     "unknown service",
			req:      AvailabilityRequest{Day: "2025-06-03", ServiceNames: []string{"vacuna", "spa"}, PetSize: SizeSmall},
			wantErr:  ErrServiceNotFound,
			wantKind: KindNotFound,
		},
		{
			name:     "service not offered for size",
			req:      AvailabilityRequest{Day: "2025-06-03", ServiceNames: []string{"bano_corte"}, PetSize: SizeLarge},
			wantErr:  ErrServiceNotAvailableForSize,
			wantKind: KindConstraint,
		},
		{
			name:     "duration rule missing",
			req:      AvailabilityRequest{Day: "2025-06-03", ServiceNames: []string{"vacuna"}, PetSize: SizeLarge},
			wantErr:  ErrDurationRulesMissing,
			wantKind: KindConstraint,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPlanner(t, newMemRepo(), now)
			avail, err := p.GetAvailability(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, avail)
			assert.Equal(t, tc.wantKind, KindOf(err))
		})
	}
}

func TestGetAvailabilityUnknownServiceNamesMissing(t *testing.T) {
	p := newTestPlanner(t, newMemRepo(), mondayMorning(t))

	_, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"vacuna", "spa", "masaje"},
		PetSize:      SizeSmall,
	})

	var svcErr *ServicesError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, []string{"spa", "masaje"}, svcErr.Services)
	assert.Contains(t, err.Error(), "spa, masaje")
}

func TestGetAvailabilityNotOfferedNamesServices(t *testing.T) {
	p := newTestPlanner(t, newMemRepo(), mondayMorning(t))

	_, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-03",
		ServiceNames: []string{"bano_simple", "bano_corte"},
		PetSize:      SizeLarge,
	})

	var svcErr *ServicesError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, []string{"bano_corte"}, svcErr.Services)
}

func TestGetAvailabilityTodayAcceptedWithoutPreferredTime(t *testing.T) {
	// 18:00 on Monday leaves no room today; the search rolls to Tuesday.
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, lima(t))
	p := newTestPlanner(t, newMemRepo(), now)

	avail, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:          "2025-06-02",
		ServiceNames: []string{"bano_simple"},
		PetSize:      SizeSmall,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-03", avail.Day.Format(DateLayout))
	assert.True(t, AtMinutes(avail.Day, avail.Slot.Start).After(now))
}

func TestGetAvailabilityRuleBlockedWindowIsExhausted(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, appt(t, "apt_large003", "2025-06-03", "09:00", "11:00", StatusConfirmed, SizeLarge, nil), svcSimple)
	repo.seed(t, appt(t, "apt_large004", "2025-06-03", "11:00", "13:00", StatusConfirmed, SizeLarge, nil), svcSimple)
	p := newTestPlanner(t, repo, mondayMorning(t))

	_, err := p.GetAvailability(context.Background(), AvailabilityRequest{
		Day:           "2025-06-03",
		ServiceNames:  []string{"bano_simple"},
		PetSize:       SizeLarge,
		LookAheadDays: days(0),
	})
	require.ErrorIs(t, err, ErrNoAvailability)
	assert.Equal(t, KindExhausted, KindOf(err))
}

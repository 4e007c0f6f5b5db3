package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type AvailabilityRequest struct {
	Day           string // YYYY-MM-DD
	PreferredTime string // optional HH:MM
	ServiceNames  []string
	PetSize       PetSize
	BlockMinutes  int  // 0 means the policy default
	LookAheadDays *int // nil means the policy default; 0 searches only Day
}

// Availability is a suggested slot. It is not a reservation.
type Availability struct {
	Day             time.Time
	Slot            Interval
	RequiredMinutes int
	Services        []Service
}

func (a *Availability) StartHHMM() string { return MinutesToHHMM(a.Slot.Start) }
func (a *Availability) EndHHMM() string   { return MinutesToHHMM(a.Slot.End) }

// PlannerRepository is the read side the planner needs.
type PlannerRepository interface {
	CatalogRepository
	CalendarRepository
	RuleRepository
}

// Planner searches the look-ahead window for the first free slot. It only
// reads, so any number of planners may run concurrently.
type Planner struct {
	repo   PlannerRepository
	rules  *RuleEngine
	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

func NewPlanner(repo PlannerRepository, policy Policy, now func() time.Time, logger *slog.Logger) *Planner {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		repo:   repo,
		rules:  NewRuleEngine(repo),
		policy: policy,
		now:    now,
		logger: logger,
	}
}

func (p *Planner) GetAvailability(ctx context.Context, req AvailabilityRequest) (*Availability, error) {
	loc := p.policy.location()
	now := p.now().In(loc)

	blockMinutes := req.BlockMinutes
	if blockMinutes == 0 {
		blockMinutes = p.policy.BlockMinutes
	}
	lookAheadDays := p.policy.LookAheadDays
	if req.LookAheadDays != nil {
		lookAheadDays = *req.LookAheadDays
	}
	if blockMinutes <= 0 || lookAheadDays < 0 {
		return nil, fmt.Errorf("%w: block minutes must be positive and look-ahead days non-negative", ErrInvalidRequest)
	}

	// 1) input
	day, err := ParseDay(req.Day, loc)
	if err != nil {
		return nil, err
	}
	preferred := -1
	if strings.TrimSpace(req.PreferredTime) != "" {
		if preferred, err = HHMMToMinutes(req.PreferredTime); err != nil {
			return nil, err
		}
	}
	if day.Before(DayOf(now, loc)) {
		return nil, ErrNotFuture
	}
	if preferred >= 0 && !AtMinutes(day, preferred).After(now) {
		return nil, ErrNotFuture
	}
	if !req.PetSize.Valid() {
		return nil, fmt.Errorf("%w: unknown pet size %q", ErrInvalidRequest, req.PetSize)
	}
	names := normalizeNames(req.ServiceNames)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrInvalidRequest)
	}

	// 2) services
	services, err := p.repo.FindServicesByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find services: %w", err)
	}
	if len(services) != len(names) {
		return nil, &ServicesError{Err: ErrServiceNotFound, Services: missingNames(names, services)}
	}
	serviceIDs := make([]string, 0, len(services))
	for _, s := range services {
		serviceIDs = append(serviceIDs, s.ID)
	}

	// 3) durations
	requiredMinutes, err := p.requiredMinutes(ctx, services, req.PetSize, blockMinutes)
	if err != nil {
		return nil, err
	}

	// 5) day-by-day search
	today := DayOf(now, loc)
	for i := 0; i <= lookAheadDays; i++ {
		candidate := day.AddDate(0, 0, i)
		log := p.logger.With("day", candidate.Format(DateLayout))

		slot, ok, err := p.searchDay(ctx, log, candidate, searchInput{
			first:           i == 0,
			preferred:       preferred,
			today:           today,
			now:             now,
			serviceIDs:      serviceIDs,
			size:            req.PetSize,
			blockMinutes:    blockMinutes,
			requiredMinutes: requiredMinutes,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			return &Availability{
				Day:             candidate,
				Slot:            slot,
				RequiredMinutes: requiredMinutes,
				Services:        services,
			}, nil
		}
	}

	return nil, ErrNoAvailability
}

func (p *Planner) requiredMinutes(ctx context.Context, services []Service, size PetSize, blockMinutes int) (int, error) {
	ids := make([]string, 0, len(services))
	for _, s := range services {
		ids = append(ids, s.ID)
	}
	rules, err := p.repo.GetDurationRules(ctx, ids, size)
	if err != nil {
		return 0, fmt.Errorf("get duration rules: %w", err)
	}

	byService := make(map[string]DurationRule, len(rules))
	for _, r := range rules {
		byService[r.ServiceID] = r
	}

	total := 0
	var notOffered []string
	for _, s := range services {
		rule, ok := byService[s.ID]
		if !ok {
			return 0, ErrDurationRulesMissing
		}
		if rule.Minutes == 0 {
			notOffered = append(notOffered, s.Name)
			continue
		}
		total += rule.Minutes
	}
	if len(notOffered) > 0 {
		return 0, &ServicesError{Err: ErrServiceNotAvailableForSize, Services: notOffered}
	}

	return CeilToBlock(total, blockMinutes), nil
}

type searchInput struct {
	first           bool
	preferred       int
	today           time.Time
	now             time.Time
	serviceIDs      []string
	size            PetSize
	blockMinutes    int
	requiredMinutes int
}

func (p *Planner) searchDay(ctx context.Context, log *slog.Logger, day time.Time, in searchInput) (Interval, bool, error) {
	if p.policy.isClosedWeekday(day.Weekday()) {
		log.Debug("skip day", "reason", "closed_weekday")
		return Interval{}, false, nil
	}

	closure, err := p.repo.GetClosure(ctx, day)
	if err != nil {
		return Interval{}, false, fmt.Errorf("check closure: %w", err)
	}
	if closure != nil {
		log.Debug("skip day", "reason", "closure", "closure_reason", closure.Reason)
		return Interval{}, false, nil
	}

	shift, err := p.repo.GetWorkShift(ctx, day.Weekday())
	if err != nil && !errors.Is(err, ErrShiftNotFound) {
		return Interval{}, false, fmt.Errorf("get work shift: %w", err)
	}
	if shift == nil || !shift.Enabled {
		log.Debug("skip day", "reason", "no_shift")
		return Interval{}, false, nil
	}

	check, err := p.rules.Check(ctx, day, in.serviceIDs, in.size, in.now)
	if err != nil {
		return Interval{}, false, err
	}
	if !check.Allowed {
		log.Debug("skip day", "reason", "business_rule", "rule", check.Violated.String(), "count", check.Count)
		return Interval{}, false, nil
	}

	appts, err := p.repo.ListBusyAppointments(ctx, day, in.now)
	if err != nil {
		return Interval{}, false, fmt.Errorf("list busy appointments: %w", err)
	}
	busy := make([]Interval, 0, len(appts))
	for i := range appts {
		busy = append(busy, appts[i].Interval())
	}

	start := shift.Start
	if in.first && in.preferred >= 0 && in.preferred > start {
		start = in.preferred
	}
	if sameDay(day, in.today) {
		if nowMinute := MinuteOfDay(in.now) + 1; nowMinute > start {
			start = nowMinute
		}
	}

	slot, ok := FindFirstSlot(SlotSearch{
		ShiftStart:      start,
		ShiftEnd:        shift.End,
		Busy:            MergeIntervals(busy),
		BlockMinutes:    in.blockMinutes,
		RequiredMinutes: in.requiredMinutes,
	})
	if !ok || !AtMinutes(day, slot.Start).After(in.now) {
		log.Debug("skip day", "reason", "no_slot")
		return Interval{}, false, nil
	}
	return slot, true, nil
}

func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func missingNames(requested []string, found []Service) []string {
	have := make(map[string]struct{}, len(found))
	for _, s := range found {
		have[s.Name] = struct{}{}
	}
	var missing []string
	for _, n := range requested {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var appointmentColumns = []string{
	"a.id",
	"a.date",
	"a.start_minute",
	"a.end_minute",
	"a.status",
	"a.owner_name",
	"a.owner_phone",
	"a.pet_name",
	"a.pet_size",
	"a.pet_breed",
	"a.notes",
	"a.expires_at",
	"a.cancelled_reason",
	"a.created_at",
	"a.updated_at",
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var expiresAt *time.Time

	err := row.Scan(
		&a.ID,
		&date,
		&a.Start,
		&a.End,
		&a.Status,
		&a.Owner.Name,
		&a.Owner.Phone,
		&a.Pet.Name,
		&a.Pet.Size,
		&a.Pet.Breed,
		&a.Notes,
		&expiresAt,
		&a.CancelledReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	a.ExpiresAt = expiresAt
	return &a, nil
}

func busyAt(now time.Time) sq.Sqlizer {
	return sq.Or{
		sq.Eq{"a.status": string(StatusConfirmed)},
		sq.And{
			sq.Eq{"a.status": string(StatusPending)},
			sq.Gt{"a.expires_at": now},
		},
	}
}

func dateArg(day time.Time) string {
	return day.Format(DateLayout)
}

// dayLockSQL takes the per-day writer lock. It is released with the
// enclosing transaction.
const dayLockSQL = `SELECT pg_advisory_xact_lock($1)`

func busyAppointmentsQuery(day, now time.Time) sq.SelectBuilder {
	return psql.Select(appointmentColumns...).
		From("appointments a").
		Where("a.date = ?::date", dateArg(day)).
		Where(busyAt(now)).
		OrderBy("a.start_minute")
}

// overlapQuery finds a busy appointment whose [start,end) intersects slot.
// Touching intervals do not overlap.
func overlapQuery(day time.Time, slot Interval, now time.Time) sq.SelectBuilder {
	return psql.Select("a.id").
		From("appointments a").
		Where("a.date = ?::date", dateArg(day)).
		Where(busyAt(now)).
		Where(sq.Lt{"a.start_minute": slot.End}).
		Where(sq.Gt{"a.end_minute": slot.Start}).
		Limit(1)
}

func businessRulesQuery(serviceIDs []string, size PetSize) sq.SelectBuilder {
	return psql.Select(
		"id",
		"rule_type",
		"COALESCE(service_id, '')",
		"COALESCE(pet_size, '')",
		"max_per_day",
		"enabled",
	).
		From("business_rules").
		Where(sq.Eq{"enabled": true}).
		Where(sq.Or{
			sq.And{
				sq.Eq{"rule_type": string(RuleDailyServiceLimit)},
				sq.Eq{"service_id": serviceIDs},
			},
			sq.And{
				sq.Eq{"rule_type": string(RuleDailySizeLimit)},
				sq.Eq{"pet_size": string(size)},
			},
		}).
		OrderBy("id")
}

func (r *PgRepository) loadServices(ctx context.Context, q querier, appointmentIDs []string) (map[string][]Service, error) {
	query, args, err := psql.Select("s.appointment_id", "sv.id", "sv.name", "sv.enabled").
		From("appointment_services s").
		Join("services sv ON sv.id = s.service_id").
		Where(sq.Eq{"s.appointment_id": appointmentIDs}).
		OrderBy("sv.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build services query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]Service)
	for rows.Next() {
		var apptID string
		var svc Service
		if err := rows.Scan(&apptID, &svc.ID, &svc.Name, &svc.Enabled); err != nil {
			return nil, err
		}
		result[apptID] = append(result[apptID], svc)
	}
	return result, rows.Err()
}

// Catalog

func (r *PgRepository) FindServicesByNames(ctx context.Context, names []string) ([]Service, error) {
	query, args, err := psql.Select("id", "name", "enabled").
		From("services").
		Where(sq.Eq{"name": names, "enabled": true}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build services query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Enabled); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetDurationRules(ctx context.Context, serviceIDs []string, size PetSize) ([]DurationRule, error) {
	query, args, err := psql.Select("service_id", "pet_size", "minutes").
		From("duration_rules").
		Where(sq.Eq{"service_id": serviceIDs, "pet_size": string(size), "enabled": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build duration rules query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DurationRule
	for rows.Next() {
		var d DurationRule
		if err := rows.Scan(&d.ServiceID, &d.Size, &d.Minutes); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetWorkShift(ctx context.Context, weekday time.Weekday) (*WorkShift, error) {
	shift := WorkShift{Weekday: weekday}
	err := r.pool.QueryRow(ctx, `
		SELECT start_minute, end_minute, enabled
		FROM work_shifts
		WHERE day_of_week = $1
	`, int(weekday)).Scan(&shift.Start, &shift.End, &shift.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return &shift, nil
}

// Calendar

func (r *PgRepository) GetClosure(ctx context.Context, day time.Time) (*Closure, error) {
	c := Closure{Date: day}
	err := r.pool.QueryRow(ctx, `
		SELECT reason
		FROM closures
		WHERE date = $1::date
	`, dateArg(day)).Scan(&c.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) ListBusyAppointments(ctx context.Context, day time.Time, now time.Time) ([]Appointment, error) {
	query, args, err := busyAppointmentsQuery(day, now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build busy query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Business rules

func (r *PgRepository) ListBusinessRules(ctx context.Context, serviceIDs []string, size PetSize) ([]BusinessRule, error) {
	query, args, err := businessRulesQuery(serviceIDs, size).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build business rules query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BusinessRule
	for rows.Next() {
		var br BusinessRule
		if err := rows.Scan(&br.ID, &br.Kind, &br.ServiceID, &br.Size, &br.MaxPerDay, &br.Enabled); err != nil {
			return nil, err
		}
		result = append(result, br)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountServiceAppointments(ctx context.Context, day time.Time, serviceID string, now time.Time) (int, error) {
	query, args, err := psql.Select("count(DISTINCT a.id)").
		From("appointments a").
		Join("appointment_services s ON s.appointment_id = a.id").
		Where("a.date = ?::date", dateArg(day)).
		Where(sq.Eq{"s.service_id": serviceID}).
		Where(busyAt(now)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build service count query: %w", err)
	}

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) CountSizeAppointments(ctx context.Context, day time.Time, size PetSize, now time.Time) (int, error) {
	query, args, err := psql.Select("count(*)").
		From("appointments a").
		Where("a.date = ?::date", dateArg(day)).
		Where(sq.Eq{"a.pet_size": string(size)}).
		Where(busyAt(now)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build size count query: %w", err)
	}

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Booking

// CreatePendingAppointment serializes writers per day with a transaction
// scoped advisory lock keyed by yyyymmdd. The lock is released on commit or
// rollback.
func (r *PgRepository) CreatePendingAppointment(ctx context.Context, appt NewAppointment, now time.Time) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, dayLockSQL, DateKey(appt.Date)); err != nil {
		return nil, fmt.Errorf("acquire day lock: %w", err)
	}

	overlapSQL, args, err := overlapQuery(appt.Date, Interval{Start: appt.Start, End: appt.End}, now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build overlap query: %w", err)
	}

	var overlapping string
	err = tx.QueryRow(ctx, overlapSQL, args...).Scan(&overlapping)
	switch {
	case err == nil:
		return nil, ErrSlotConflict
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("check overlap: %w", err)
	}

	insertQuery, args, err := psql.Insert("appointments").
		Columns(
			"id",
			"date",
			"start_minute",
			"end_minute",
			"status",
			"owner_name",
			"owner_phone",
			"pet_name",
			"pet_size",
			"pet_breed",
			"notes",
			"expires_at",
		).
		Values(
			appt.ID,
			sq.Expr("?::date", dateArg(appt.Date)),
			appt.Start,
			appt.End,
			string(StatusPending),
			appt.Owner.Name,
			appt.Owner.Phone,
			appt.Pet.Name,
			string(appt.Pet.Size),
			appt.Pet.Breed,
			appt.Notes,
			appt.ExpiresAt,
		).
		Suffix("RETURNING id, date, start_minute, end_minute, status, owner_name, owner_phone, pet_name, pet_size, pet_breed, notes, expires_at, cancelled_reason, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert query: %w", err)
	}

	created, err := r.scanAppointment(tx.QueryRow(ctx, insertQuery, args...))
	if err != nil {
		return nil, translatePgError(err, "insert appointment")
	}

	items := psql.Insert("appointment_services").Columns("appointment_id", "service_id")
	for _, serviceID := range appt.ServiceIDs {
		items = items.Values(created.ID, serviceID)
	}
	itemsQuery, args, err := items.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build services insert: %w", err)
	}
	if _, err := tx.Exec(ctx, itemsQuery, args...); err != nil {
		return nil, translatePgError(err, "attach services")
	}

	services, err := r.loadServices(ctx, tx, []string{created.ID})
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	created.Services = services[created.ID]

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	query, args, err := psql.Select(appointmentColumns...).
		From("appointments a").
		Where(sq.Eq{"a.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build appointment query: %w", err)
	}

	appt, err := r.scanAppointment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	services, err := r.loadServices(ctx, r.pool, []string{appt.ID})
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	appt.Services = services[appt.ID]
	return appt, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id string, from, to AppointmentStatus, reason string) (*Appointment, error) {
	update := psql.Update("appointments a").
		Set("status", string(to)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"a.id": id, "a.status": string(from)})
	if reason != "" {
		update = update.Set("cancelled_reason", reason)
	}

	query, args, err := update.Suffix("RETURNING id, date, start_minute, end_minute, status, owner_name, owner_phone, pet_name, pet_size, pet_breed, notes, expires_at, cancelled_reason, created_at, updated_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status update: %w", err)
	}

	appt, err := r.scanAppointment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	services, err := r.loadServices(ctx, r.pool, []string{appt.ID})
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	appt.Services = services[appt.ID]
	return appt, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func translatePgError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateAppointmentID
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrServiceNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
)

// Apply upserts the catalog in one transaction. Business rules have no
// natural key, so they are replaced wholesale.
func Apply(ctx context.Context, pool *pgxpool.Pool, c *Catalog) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, s := range c.WorkShifts() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO work_shifts (day_of_week, start_minute, end_minute, enabled)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (day_of_week) DO UPDATE
				SET start_minute = EXCLUDED.start_minute,
				    end_minute = EXCLUDED.end_minute,
				    enabled = EXCLUDED.enabled
			`, int(s.Weekday), s.Start, s.End, s.Enabled); err != nil {
				return fmt.Errorf("upsert shift %s: %w", s.Weekday, err)
			}
		}

		ids := make(map[string]string, len(c.Services))
		for _, svc := range c.Services {
			var id string
			err := tx.QueryRow(ctx, `
				INSERT INTO services (name, enabled)
				VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled
				RETURNING id
			`, svc.Name, enabled(svc.Enabled)).Scan(&id)
			if err != nil {
				return fmt.Errorf("upsert service %s: %w", svc.Name, err)
			}
			ids[svc.Name] = id

			for size, minutes := range svc.Durations {
				if _, err := tx.Exec(ctx, `
					INSERT INTO duration_rules (service_id, pet_size, minutes, enabled)
					VALUES ($1, $2, $3, TRUE)
					ON CONFLICT (service_id, pet_size) DO UPDATE
					SET minutes = EXCLUDED.minutes, enabled = TRUE
				`, id, size, minutes); err != nil {
					return fmt.Errorf("upsert duration %s/%s: %w", svc.Name, size, err)
				}
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM business_rules`); err != nil {
			return fmt.Errorf("clear business rules: %w", err)
		}
		for _, r := range c.BusinessRules {
			var serviceID, size *string
			switch appointment.RuleKind(r.Kind) {
			case appointment.RuleDailyServiceLimit:
				id := ids[r.Service]
				serviceID = &id
			case appointment.RuleDailySizeLimit:
				s := r.Size
				size = &s
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO business_rules (rule_type, service_id, pet_size, max_per_day, enabled)
				VALUES ($1, $2, $3, $4, $5)
			`, r.Kind, serviceID, size, r.MaxPerDay, enabled(r.Enabled)); err != nil {
				return fmt.Errorf("insert business rule %s: %w", r.Kind, err)
			}
		}

		for _, cl := range c.Closures {
			if _, err := tx.Exec(ctx, `
				INSERT INTO closures (date, reason)
				VALUES ($1::date, $2)
				ON CONFLICT (date) DO UPDATE SET reason = EXCLUDED.reason
			`, cl.Date, cl.Reason); err != nil {
				return fmt.Errorf("upsert closure %s: %w", cl.Date, err)
			}
		}
		return nil
	})
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
	"github.com/hackgods/grooming-scheduler/internal/catalog"
	"github.com/hackgods/grooming-scheduler/internal/config"
	"github.com/hackgods/grooming-scheduler/internal/db"
	"github.com/hackgods/grooming-scheduler/internal/logging"
	redisclient "github.com/hackgods/grooming-scheduler/internal/redis"
)

var sizes = []appointment.PetSize{appointment.SizeSmall, appointment.SizeMedium, appointment.SizeLarge}

var breeds = []string{"Schnauzer", "Shih Tzu", "Golden Retriever", "Poodle", "Labrador", "Pug", "Mestizo"}

func main() {
	catalogFile := flag.String("catalog", "", "YAML catalog file (defaults to the built-in catalog)")
	count := flag.Int("appointments", 0, "number of fake appointments to book after loading the catalog")
	confirmRatio := flag.Float64("confirm-ratio", 0.7, "share of fake appointments confirmed right away")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("seed", "prod").Error("config load error", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("seed", cfg.Env)

	if err := run(cfg, logger, *catalogFile, *count, *confirmRatio); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func run(cfg config.Config, logger *slog.Logger, catalogFile string, count int, confirmRatio float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	policy, err := cfg.Scheduling.Policy()
	if err != nil {
		return fmt.Errorf("scheduling policy: %w", err)
	}

	cat, err := loadCatalog(catalogFile)
	if err != nil {
		return err
	}

	pool, err := db.Open(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalog.Apply(ctx, pool, cat); err != nil {
		return fmt.Errorf("apply catalog: %w", err)
	}
	logger.Info("catalog applied",
		"shifts", len(cat.Shifts),
		"services", len(cat.Services),
		"business_rules", len(cat.BusinessRules),
		"closures", len(cat.Closures),
	)

	repo := appointment.NewPgRepository(pool, policy.Location)
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn("redis unavailable, cached catalog entries expire on their own", "err", err)
		} else {
			defer rdb.Close()
			if err := redisclient.NewCatalogCache(repo, rdb, cfg.CatalogCacheTTL, logger).Invalidate(ctx); err != nil {
				logger.Warn("catalog cache invalidation failed", "err", err)
			}
		}
	}

	if count <= 0 {
		return nil
	}

	svc := appointment.NewScheduler(repo, appointment.Options{Policy: policy, Logger: logger})
	return seedAppointments(ctx, logger, svc, cat, policy, count, confirmRatio)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// seedAppointments books through the same search and booking path the API
// uses, so the seeded calendar honours every shift, closure and daily cap.
func seedAppointments(ctx context.Context, logger *slog.Logger, svc *appointment.Scheduler, cat *catalog.Catalog, policy appointment.Policy, count int, confirmRatio float64) error {
	names := make([]string, 0, len(cat.Services))
	for _, s := range cat.Services {
		names = append(names, s.Name)
	}
	if len(names) == 0 {
		return errors.New("catalog has no services")
	}

	tomorrow := appointment.DayOf(time.Now(), policy.Location).AddDate(0, 0, 1).Format(appointment.DateLayout)

	var created, skipped int
	for i := 0; i < count; i++ {
		size := sizes[gofakeit.Number(0, len(sizes)-1)]
		service := names[gofakeit.Number(0, len(names)-1)]

		avail, err := svc.GetAvailability(ctx, appointment.AvailabilityRequest{
			Day:          tomorrow,
			ServiceNames: []string{service},
			PetSize:      size,
		})
		if err != nil {
			if appointment.KindOf(err) == appointment.KindInternal {
				return err
			}
			skipped++
			continue
		}

		appt, err := svc.CreateAppointment(ctx, appointment.BookingRequest{
			Day:        avail.Day.Format(appointment.DateLayout),
			Start:      avail.StartHHMM(),
			End:        avail.EndHHMM(),
			OwnerName:  gofakeit.Name(),
			OwnerPhone: gofakeit.Phone(),
			PetName:    gofakeit.PetName(),
			PetSize:    size,
			PetBreed:   breeds[gofakeit.Number(0, len(breeds)-1)],
			ServiceIDs: []string{avail.Services[0].ID},
		})
		if err != nil {
			if appointment.KindOf(err) == appointment.KindInternal {
				return err
			}
			skipped++
			continue
		}

		if gofakeit.Float64Range(0, 1) < confirmRatio {
			if _, err := svc.UpdateStatus(ctx, appt.ID, appointment.StatusConfirmed); err != nil {
				return fmt.Errorf("confirm %s: %w", appt.ID, err)
			}
		}
		created++
	}

	logger.Info("appointments seeded", "created", created, "skipped", skipped)
	return nil
}

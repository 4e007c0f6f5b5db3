package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/grooming-scheduler/internal/logging"
)

// The simulator races concurrent bookings for one suggested slot per round
// and checks that exactly one of them wins.
type SimConfig struct {
	APIBaseURL  string
	Rounds      int
	Concurrency int
	Day         string
	Services    []string
	PetSize     string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Search  OperationMetrics
	Booking OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	logger  *slog.Logger
	metrics Metrics

	// roundsWithDoubleBooking counts rounds where more than one writer won.
	roundsWithDoubleBooking int64
}

type slot struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Services []struct {
		ID string `json:"id"`
	} `json:"services"`
}

func main() {
	logger := logging.NewLogger("simulate", getEnv("APP_ENV", "dev"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger.Info("simulator starting",
		"api", cfg.APIBaseURL,
		"rounds", cfg.Rounds,
		"concurrency", cfg.Concurrency,
		"day", cfg.Day,
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	if err := sim.Run(context.Background()); err != nil {
		logger.Error("simulation aborted", "err", err)
	}
	sim.PrintReport()

	if atomic.LoadInt64(&sim.roundsWithDoubleBooking) > 0 {
		os.Exit(2)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Rounds:      getInt("SIM_ROUNDS", 20),
		Concurrency: getInt("SIM_CONCURRENCY", 10),
		Day:         getEnv("SIM_DAY", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		Services:    strings.Split(getEnv("SIM_SERVICES", "bano_simple"), ","),
		PetSize:     getEnv("SIM_PET_SIZE", "SMALL"),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.Concurrency < 2 {
		return fmt.Errorf("SIM_CONCURRENCY must be >= 2 to race bookings")
	}
	return nil
}

func (s *Simulator) Run(ctx context.Context) error {
	for round := 1; round <= s.config.Rounds; round++ {
		target, err := s.search(ctx)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		var winners int64
		g, gctx := errgroup.WithContext(ctx)
		start := make(chan struct{})
		for i := 0; i < s.config.Concurrency; i++ {
			g.Go(func() error {
				<-start
				ok, err := s.book(gctx, target)
				if ok {
					atomic.AddInt64(&winners, 1)
				}
				return err
			})
		}
		close(start)
		if err := g.Wait(); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		if winners > 1 {
			atomic.AddInt64(&s.roundsWithDoubleBooking, 1)
		}
		s.logger.Info("round finished",
			"round", round,
			"day", target.Day,
			"start", target.Start,
			"end", target.End,
			"winners", winners,
		)
	}
	return nil
}

func (s *Simulator) search(ctx context.Context) (*slot, error) {
	body, err := json.Marshal(map[string]any{
		"day":      s.config.Day,
		"services": s.config.Services,
		"pet_size": s.config.PetSize,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.post(ctx, "/availability", body)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Search.Record(latency, false, false)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.Search.Record(latency, false, false)
		return nil, fmt.Errorf("availability returned %d", resp.StatusCode)
	}
	s.metrics.Search.Record(latency, true, false)

	var out slot
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return &out, nil
}

// book reports whether this writer won the slot. Transport failures are
// recorded, not returned, so one slow request does not cancel the round.
func (s *Simulator) book(ctx context.Context, target *slot) (bool, error) {
	ids := make([]string, 0, len(target.Services))
	for _, svc := range target.Services {
		ids = append(ids, svc.ID)
	}
	body, err := json.Marshal(map[string]any{
		"day":         target.Day,
		"start":       target.Start,
		"end":         target.End,
		"owner_name":  gofakeit.Name(),
		"owner_phone": gofakeit.Phone(),
		"pet_name":    gofakeit.PetName(),
		"pet_size":    s.config.PetSize,
		"service_ids": ids,
	})
	if err != nil {
		return false, err
	}

	start := time.Now()
	resp, err := s.post(ctx, "/appointments", body)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return false, nil
	}
	defer resp.Body.Close()

	success := resp.StatusCode == http.StatusCreated
	conflict := resp.StatusCode == http.StatusConflict
	s.metrics.Booking.Record(latency, success, conflict)
	return success, nil
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Rounds: %d\n", s.config.Rounds)
	fmt.Printf("Concurrency: %d\n", s.config.Concurrency)
	fmt.Printf("Rounds with more than one winner: %d\n", atomic.LoadInt64(&s.roundsWithDoubleBooking))
	fmt.Println()

	printOperationReport("Search", &s.metrics.Search)
	printOperationReport("Booking", &s.metrics.Booking)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

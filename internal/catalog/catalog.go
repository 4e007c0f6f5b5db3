package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the reference data the scheduler reads but never writes:
// opening hours, services with per-size durations, daily caps and closures.
type Catalog struct {
	Shifts        []Shift   `yaml:"shifts"`
	Services      []Service `yaml:"services"`
	BusinessRules []Rule    `yaml:"business_rules"`
	Closures      []Closure `yaml:"closures"`
}

type Shift struct {
	Weekday string `yaml:"weekday"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

type Service struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled,omitempty"`
	// Durations maps pet size to minutes. 0 means not offered for that size.
	Durations map[string]int `yaml:"durations"`
}

type Rule struct {
	Kind      string `yaml:"kind"`
	Service   string `yaml:"service,omitempty"`
	Size      string `yaml:"size,omitempty"`
	MaxPerDay int    `yaml:"max_per_day"`
	Enabled   *bool  `yaml:"enabled,omitempty"`
}

type Closure struct {
	Date   string `yaml:"date"`
	Reason string `yaml:"reason"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("catalog: payload is empty")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) Validate() error {
	var problems []string

	seenDays := make(map[time.Weekday]bool)
	for i, s := range c.Shifts {
		day, err := ParseWeekday(s.Weekday)
		if err != nil {
			problems = append(problems, fmt.Sprintf("shifts[%d]: %v", i, err))
			continue
		}
		if seenDays[day] {
			problems = append(problems, fmt.Sprintf("shifts[%d]: duplicate weekday %s", i, s.Weekday))
		}
		seenDays[day] = true
		if _, err := s.toWorkShift(day); err != nil {
			problems = append(problems, fmt.Sprintf("shifts[%d]: %v", i, err))
		}
	}

	names := make(map[string]bool)
	for i, s := range c.Services {
		if strings.TrimSpace(s.Name) == "" {
			problems = append(problems, fmt.Sprintf("services[%d]: name is required", i))
			continue
		}
		if names[s.Name] {
			problems = append(problems, fmt.Sprintf("services[%d]: duplicate name %s", i, s.Name))
		}
		names[s.Name] = true
		for size, minutes := range s.Durations {
			if !appointment.PetSize(size).Valid() {
				problems = append(problems, fmt.Sprintf("services[%d]: unknown size %s", i, size))
			}
			if minutes < 0 {
				problems = append(problems, fmt.Sprintf("services[%d]: negative duration for %s", i, size))
			}
		}
	}

	for i, r := range c.BusinessRules {
		if r.MaxPerDay < 0 {
			problems = append(problems, fmt.Sprintf("business_rules[%d]: max_per_day must be >= 0", i))
		}
		switch appointment.RuleKind(r.Kind) {
		case appointment.RuleDailyServiceLimit:
			if !names[r.Service] {
				problems = append(problems, fmt.Sprintf("business_rules[%d]: unknown service %q", i, r.Service))
			}
		case appointment.RuleDailySizeLimit:
			if !appointment.PetSize(r.Size).Valid() {
				problems = append(problems, fmt.Sprintf("business_rules[%d]: unknown size %q", i, r.Size))
			}
		default:
			problems = append(problems, fmt.Sprintf("business_rules[%d]: unknown kind %q", i, r.Kind))
		}
	}

	for i, cl := range c.Closures {
		if _, err := time.Parse(appointment.DateLayout, cl.Date); err != nil {
			problems = append(problems, fmt.Sprintf("closures[%d]: invalid date %q", i, cl.Date))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("catalog: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WorkShifts converts the shift table. It assumes Validate passed.
func (c *Catalog) WorkShifts() []appointment.WorkShift {
	out := make([]appointment.WorkShift, 0, len(c.Shifts))
	for _, s := range c.Shifts {
		day, err := ParseWeekday(s.Weekday)
		if err != nil {
			continue
		}
		ws, err := s.toWorkShift(day)
		if err != nil {
			continue
		}
		out = append(out, ws)
	}
	return out
}

func (s Shift) toWorkShift(day time.Weekday) (appointment.WorkShift, error) {
	start, err := appointment.HHMMToMinutes(s.Start)
	if err != nil {
		return appointment.WorkShift{}, err
	}
	end, err := appointment.HHMMToMinutes(s.End)
	if err != nil {
		return appointment.WorkShift{}, err
	}
	if start >= end {
		return appointment.WorkShift{}, fmt.Errorf("start %s must be before end %s", s.Start, s.End)
	}
	return appointment.WorkShift{Weekday: day, Start: start, End: end, Enabled: enabled(s.Enabled)}, nil
}

func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func enabled(b *bool) bool {
	return b == nil || *b
}

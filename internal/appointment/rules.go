package appointment

import (
	"context"
	"fmt"
	"time"
)

type RuleCheck struct {
	Allowed  bool
	Violated *BusinessRule
	Count    int
}

// RuleEngine is the day-level admission gate. A rule that hits its cap
// excludes the whole day for the request, whatever time was asked for.
type RuleEngine struct {
	repo RuleRepository
}

func NewRuleEngine(repo RuleRepository) *RuleEngine {
	return &RuleEngine{repo: repo}
}

func (e *RuleEngine) Check(ctx context.Context, day time.Time, serviceIDs []string, size PetSize, now time.Time) (RuleCheck, error) {
	rules, err := e.repo.ListBusinessRules(ctx, serviceIDs, size)
	if err != nil {
		return RuleCheck{}, fmt.Errorf("list business rules: %w", err)
	}

	for i := range rules {
		rule := rules[i]
		if !rule.Enabled || !appliesTo(rule, serviceIDs, size) {
			continue
		}

		var count int
		switch rule.Kind {
		case RuleDailyServiceLimit:
			count, err = e.repo.CountServiceAppointments(ctx, day, rule.ServiceID, now)
		case RuleDailySizeLimit:
			count, err = e.repo.CountSizeAppointments(ctx, day, rule.Size, now)
		default:
			continue
		}
		if err != nil {
			return RuleCheck{}, fmt.Errorf("count appointments for %s: %w", rule, err)
		}

		if count >= rule.MaxPerDay {
			return RuleCheck{Allowed: false, Violated: &rule, Count: count}, nil
		}
	}

	return RuleCheck{Allowed: true}, nil
}

func appliesTo(rule BusinessRule, serviceIDs []string, size PetSize) bool {
	switch rule.Kind {
	case RuleDailyServiceLimit:
		for _, id := range serviceIDs {
			if id == rule.ServiceID {
				return true
			}
		}
		return false
	case RuleDailySizeLimit:
		return rule.Size == size
	default:
		return false
	}
}

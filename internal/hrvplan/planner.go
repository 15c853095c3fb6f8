// Package hrvplan maintains the daily HRV-driven workout plan-step log.
package hrvplan

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"example.com/training/internal/domain"
)

// Plan steps, one per day.
const (
	StepRecovery = "Recovery"
	StepModerate = "Moderate"
	StepIntense  = "Intense"
)

const baselineWindowDays = 30

// Store is the persistence surface the planner needs.
type Store interface {
	ListSleepSummaries(ctx context.Context, athleteID int64) ([]domain.SleepSummary, error)
	ListActivities(ctx context.Context, athleteID int64) ([]domain.ActivitySummary, error)
	AppendPlanStep(ctx context.Context, step domain.HrvPlanStep) error
}

// Planner recomputes the plan step for the current day from the HRV baseline
// band and recent training.
type Planner struct {
	store  Store
	logger *zap.Logger
}

func NewPlanner(store Store, logger *zap.Logger) *Planner {
	return &Planner{store: store, logger: logger}
}

// Recompute appends today's plan step. The latest HRV reading is classified
// against the 30-day mean plus or minus half a standard deviation: below the
// band prescribes recovery, above it clears intense work. minNonWarmupSec
// filters out warm-up-only workouts when checking whether yesterday held a
// real session.
func (p *Planner) Recompute(ctx context.Context, athleteID int64, minNonWarmupSec int) error {
	sleep, err := p.store.ListSleepSummaries(ctx, athleteID)
	if err != nil {
		return fmt.Errorf("list sleep summaries: %w", err)
	}
	if len(sleep) == 0 {
		p.logger.Info("no sleep data, skipping plan recomputation")
		return nil
	}

	latest := sleep[len(sleep)-1]
	mean, std := baselineBand(sleep, latest.ReportDate)

	var step, rationale string
	switch {
	case std > 0 && latest.RMSSD < mean-0.5*std:
		step = StepRecovery
		rationale = fmt.Sprintf("HRV %.1f below adaptive band (baseline %.1f)", latest.RMSSD, mean)
	case std > 0 && latest.RMSSD > mean+0.5*std:
		step = StepIntense
		rationale = fmt.Sprintf("HRV %.1f above adaptive band (baseline %.1f)", latest.RMSSD, mean)
	default:
		step = StepModerate
		rationale = fmt.Sprintf("HRV %.1f within adaptive band (baseline %.1f)", latest.RMSSD, mean)
	}

	if step == StepIntense {
		trainedYesterday, err := p.realWorkoutOn(ctx, athleteID, latest.ReportDate.AddDate(0, 0, -1), minNonWarmupSec)
		if err != nil {
			return err
		}
		if trainedYesterday {
			step = StepModerate
			rationale += "; intense session already completed yesterday"
		}
	}

	entry := domain.HrvPlanStep{
		AthleteID: athleteID,
		Date:      dateOf(latest.ReportDate),
		Step:      step,
		Rationale: rationale,
	}
	if err := p.store.AppendPlanStep(ctx, entry); err != nil {
		return fmt.Errorf("append plan step: %w", err)
	}

	p.logger.Info("recomputed plan step",
		zap.String("step", step),
		zap.Time("date", entry.Date),
	)
	return nil
}

// baselineBand computes the 30-day HRV mean and sample standard deviation
// ending on the given date.
func baselineBand(sleep []domain.SleepSummary, until time.Time) (mean, std float64) {
	cutoff := dateOf(until).AddDate(0, 0, -baselineWindowDays)
	var values []float64
	for _, s := range sleep {
		if s.RMSSD > 0 && s.ReportDate.After(cutoff) && !s.ReportDate.After(until) {
			values = append(values, s.RMSSD)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}

func (p *Planner) realWorkoutOn(ctx context.Context, athleteID int64, date time.Time, minNonWarmupSec int) (bool, error) {
	activities, err := p.store.ListActivities(ctx, athleteID)
	if err != nil {
		return false, fmt.Errorf("list activities: %w", err)
	}
	day := dateOf(date)
	for _, a := range activities {
		if dateOf(a.StartDayLocal).Equal(day) && a.ElapsedSec >= minNonWarmupSec {
			return true, nil
		}
	}
	return false, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package load

import (
	"context"
	"fmt"

	"example.com/training/internal/domain"
)

// Reader is the store surface the engine snapshots before computing.
type Reader interface {
	ListActivities(ctx context.Context, athleteID int64) ([]domain.ActivitySummary, error)
	ListSleepSummaries(ctx context.Context, athleteID int64) ([]domain.SleepSummary, error)
	ListReadinessSummaries(ctx context.Context, athleteID int64) ([]domain.ReadinessSummary, error)
	ListPlanSteps(ctx context.Context, athleteID int64) ([]domain.HrvPlanStep, error)
	AthleteProfile(ctx context.Context, athleteID int64) (*domain.AthleteProfile, error)
}

// ComputeFromStore snapshots the athlete timeline and computes the model.
// Sports filters which sports count toward the fitness trend; nil means all.
func ComputeFromStore(ctx context.Context, reader Reader, athleteID int64, sports map[domain.Sport]bool) (*Frame, error) {
	activities, err := reader.ListActivities(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	sleep, err := reader.ListSleepSummaries(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list sleep summaries: %w", err)
	}
	readiness, err := reader.ListReadinessSummaries(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list readiness summaries: %w", err)
	}
	plan, err := reader.ListPlanSteps(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list plan steps: %w", err)
	}
	profile, err := reader.AthleteProfile(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("athlete profile: %w", err)
	}

	return Compute(Input{
		Activities: activities,
		Sleep:      sleep,
		Readiness:  readiness,
		PlanSteps:  plan,
		Profile:    *profile,
		Sports:     sports,
	})
}

package domain

import (
	"context"
	"time"
)

// TimeSeriesEntity names a truncatable time-series table.
type TimeSeriesEntity string

const (
	EntityActivitySummaries  TimeSeriesEntity = "activity_summaries"
	EntityActivitySamples    TimeSeriesEntity = "activity_samples"
	EntityBestSamples        TimeSeriesEntity = "activity_best_samples"
	EntitySleepSummaries     TimeSeriesEntity = "sleep_summaries"
	EntityReadinessSummaries TimeSeriesEntity = "readiness_summaries"
	EntityHrvPlanSteps       TimeSeriesEntity = "hrv_plan_steps"
	EntityBodyComposition    TimeSeriesEntity = "body_composition"
)

// TimeSeriesEntities returns every truncatable entity in truncation order.
func TimeSeriesEntities() []TimeSeriesEntity {
	return []TimeSeriesEntity{
		EntityActivitySummaries,
		EntityActivitySamples,
		EntityBestSamples,
		EntitySleepSummaries,
		EntityReadinessSummaries,
		EntityHrvPlanSteps,
		EntityBodyComposition,
	}
}

// ActivityStore persists and reads workout records.
type ActivityStore interface {
	// KnownActivityIDs returns the distinct set of every activity id already
	// stored for the athlete, unbounded by date.
	KnownActivityIDs(ctx context.Context, athleteID int64) (map[int64]struct{}, error)
	// InsertActivity writes the summary with its samples and best-sample rows
	// in one transaction.
	InsertActivity(ctx context.Context, summary ActivitySummary, samples []ActivitySample, best []BestSample) error
	ListActivities(ctx context.Context, athleteID int64) ([]ActivitySummary, error)
}

// RecoveryStore persists and reads recovery-provider daily summaries.
type RecoveryStore interface {
	UpsertSleepSummaries(ctx context.Context, summaries []SleepSummary) error
	UpsertReadinessSummaries(ctx context.Context, summaries []ReadinessSummary) error
	ListSleepSummaries(ctx context.Context, athleteID int64) ([]SleepSummary, error)
	ListReadinessSummaries(ctx context.Context, athleteID int64) ([]ReadinessSummary, error)
}

// BodyStore persists body-composition entries.
type BodyStore interface {
	UpsertBodyComposition(ctx context.Context, entries []BodyComposition) error
}

// StrengthStore persists strength-training sets.
type StrengthStore interface {
	UpsertStrengthSets(ctx context.Context, sets []StrengthSet) error
}

// PlanStore persists and reads the HRV plan-step log.
type PlanStore interface {
	AppendPlanStep(ctx context.Context, step HrvPlanStep) error
	LatestPlanStep(ctx context.Context, athleteID int64) (*HrvPlanStep, error)
	ListPlanSteps(ctx context.Context, athleteID int64) ([]HrvPlanStep, error)
}

// LedgerStore writes and reads the append-only refresh ledger.
type LedgerStore interface {
	InsertRefreshStatus(ctx context.Context, status RefreshStatus) error
	LatestRefresh(ctx context.Context, athleteID int64) (*time.Time, error)
	ListRefreshStatuses(ctx context.Context, athleteID int64, limit int) ([]RefreshStatus, error)
}

// ProfileStore reads athlete configuration.
type ProfileStore interface {
	AthleteProfile(ctx context.Context, athleteID int64) (*AthleteProfile, error)
}

// Truncator deletes time-series rows, optionally restricted to rows on or
// after a date. Each entity's delete is its own transaction scope.
type Truncator interface {
	TruncateEntity(ctx context.Context, athleteID int64, entity TimeSeriesEntity, after *time.Time) error
}

// Store is the full persistence surface consumed by the refresher and API.
type Store interface {
	ActivityStore
	RecoveryStore
	BodyStore
	StrengthStore
	PlanStore
	LedgerStore
	ProfileStore
	Truncator
}

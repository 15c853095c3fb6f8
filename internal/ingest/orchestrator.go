// Package ingest sequences the provider pulls of one refresh run, applies
// the recovery-before-activity gate, merges new activities against stored
// history, and records the run in the append-only ledger.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/training/internal/domain"
	"example.com/training/internal/observability"
)

// Ledger status for the activity step when the recovery gate stays closed.
const statusAwaitingRecovery = "Awaiting recovery cloud update"

// Ledger status for a recovery pull that reached the cloud but found no
// fresh reports.
const statusRecoveryNotUpdated = "Recovery cloud not yet updated"

// WeightSource pulls body-composition entries.
type WeightSource interface {
	Measurements(ctx context.Context) ([]domain.BodyComposition, error)
}

// StrengthSource pulls strength-training sets.
type StrengthSource interface {
	Sets(ctx context.Context) ([]domain.StrengthSet, error)
}

// RecoverySource pulls daily sleep and readiness reports. updated is false
// when the cloud has not published the current reports yet.
type RecoverySource interface {
	DailyReports(ctx context.Context) (sleep []domain.SleepSummary, readiness []domain.ReadinessSummary, updated bool, err error)
}

// ActivitySource pulls workouts after a cutoff, oldest first.
type ActivitySource interface {
	ActivitiesAfter(ctx context.Context, after time.Time) ([]domain.ProviderActivity, error)
}

// ActivityAnalyzer derives and persists the full record for one new workout.
type ActivityAnalyzer interface {
	Analyze(ctx context.Context, athleteID int64, act domain.ProviderActivity, profile domain.AthleteProfile, restingHR float64) error
}

// PlanRecomputer extends the HRV plan-step log after new data lands.
type PlanRecomputer interface {
	Recompute(ctx context.Context, athleteID int64, minNonWarmupSec int) error
}

// Options control one refresh run.
type Options struct {
	// Process identifies the trigger, such as "system" or "manual".
	Process string
	// Truncate deletes every time-series entity before pulling.
	Truncate bool
	// TruncateAfter restricts the delete to rows on or after the date.
	TruncateAfter *time.Time
}

// Orchestrator runs refresh cycles. Runs must be serialized by the caller;
// concurrent runs may race on truncate and insert.
type Orchestrator struct {
	store    domain.Store
	weight   WeightSource
	strength StrengthSource
	recovery RecoverySource
	activity ActivitySource
	analyzer ActivityAnalyzer
	planner  PlanRecomputer

	activitiesAfter time.Time
	logger          *zap.Logger
}

func NewOrchestrator(
	store domain.Store,
	weight WeightSource,
	strength StrengthSource,
	recovery RecoverySource,
	activity ActivitySource,
	analyzer ActivityAnalyzer,
	planner PlanRecomputer,
	activitiesAfter time.Time,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:           store,
		weight:          weight,
		strength:        strength,
		recovery:        recovery,
		activity:        activity,
		analyzer:        analyzer,
		planner:         planner,
		activitiesAfter: activitiesAfter,
		logger:          logger,
	}
}

// Refresh executes one run: optional truncate, the four provider pulls in
// strict order with per-step isolation, and the ledger write. It returns the
// run's UTC timestamp on every path; only the passed context's cancellation
// can cut a run short.
func (o *Orchestrator) Refresh(ctx context.Context, athleteID int64, opts Options) time.Time {
	runAt := time.Now().UTC()

	if opts.Truncate || opts.TruncateAfter != nil {
		o.truncateAll(ctx, athleteID, opts.TruncateAfter)
	}

	weightResult := o.pullWeight(ctx, athleteID)
	strengthResult := o.pullStrength(ctx, athleteID)
	recoveryResult := o.pullRecovery(ctx, athleteID)

	var activityResult domain.PullResult
	if recoveryResult.Successful() {
		activityResult = o.pullActivities(ctx, athleteID)
	} else {
		activityResult = domain.PullAwaiting(statusAwaitingRecovery)
		o.logger.Info("activity pull skipped, recovery gate closed")
	}

	record(weightResult, "weight")
	record(strengthResult, "strength")
	record(recoveryResult, "recovery")
	record(activityResult, "activity")

	status := domain.RefreshStatus{
		RunID:          uuid.NewString(),
		AthleteID:      athleteID,
		TimestampUTC:   runAt,
		WeightStatus:   weightResult.LedgerString(),
		StrengthStatus: strengthResult.LedgerString(),
		RecoveryStatus: recoveryResult.LedgerString(),
		ActivityStatus: activityResult.LedgerString(),
		Truncate:       opts.Truncate,
		TruncateAfter:  opts.TruncateAfter,
		Process:        opts.Process,
	}
	if err := o.store.InsertRefreshStatus(ctx, status); err != nil {
		o.logger.Error("ledger write failed", zap.Error(err))
	}

	observability.RecordRefreshRun(runAt)
	return runAt
}

// truncateAll deletes every time-series entity in order. A failure on one
// entity is logged and the remaining deletes continue.
func (o *Orchestrator) truncateAll(ctx context.Context, athleteID int64, after *time.Time) {
	for _, entity := range domain.TimeSeriesEntities() {
		if err := o.store.TruncateEntity(ctx, athleteID, entity, after); err != nil {
			o.logger.Error("truncate failed",
				zap.String("entity", string(entity)),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) pullWeight(ctx context.Context, athleteID int64) domain.PullResult {
	entries, err := o.weight.Measurements(ctx)
	if err != nil {
		return domain.PullError(err)
	}
	for i := range entries {
		entries[i].AthleteID = athleteID
	}
	if err := o.store.UpsertBodyComposition(ctx, entries); err != nil {
		return domain.PullError(fmt.Errorf("persist body composition: %w", err))
	}
	return domain.PullOK()
}

func (o *Orchestrator) pullStrength(ctx context.Context, athleteID int64) domain.PullResult {
	sets, err := o.strength.Sets(ctx)
	if err != nil {
		return domain.PullError(err)
	}
	for i := range sets {
		sets[i].AthleteID = athleteID
	}
	if err := o.store.UpsertStrengthSets(ctx, sets); err != nil {
		return domain.PullError(fmt.Errorf("persist strength sets: %w", err))
	}
	return domain.PullOK()
}

func (o *Orchestrator) pullRecovery(ctx context.Context, athleteID int64) domain.PullResult {
	sleep, readiness, updated, err := o.recovery.DailyReports(ctx)
	if err != nil {
		return domain.PullError(err)
	}
	if !updated {
		return domain.PullAwaiting(statusRecoveryNotUpdated)
	}
	for i := range sleep {
		sleep[i].AthleteID = athleteID
	}
	for i := range readiness {
		readiness[i].AthleteID = athleteID
	}
	if err := o.store.UpsertSleepSummaries(ctx, sleep); err != nil {
		return domain.PullError(fmt.Errorf("persist sleep summaries: %w", err))
	}
	if err := o.store.UpsertReadinessSummaries(ctx, readiness); err != nil {
		return domain.PullError(fmt.Errorf("persist readiness summaries: %w", err))
	}
	return domain.PullOK()
}

// pullActivities fetches, merges, and analyzes new workouts, then triggers
// the plan recomputation. Zone derivation needs the freshest resting heart
// rate, so this only runs after a fully successful recovery pull.
func (o *Orchestrator) pullActivities(ctx context.Context, athleteID int64) domain.PullResult {
	profile, err := o.store.AthleteProfile(ctx, athleteID)
	if err != nil {
		return domain.PullError(fmt.Errorf("load profile: %w", err))
	}

	provided, err := o.activity.ActivitiesAfter(ctx, o.activitiesAfter)
	if err != nil {
		return domain.PullError(err)
	}

	known, err := o.store.KnownActivityIDs(ctx, athleteID)
	if err != nil {
		return domain.PullError(fmt.Errorf("known activity ids: %w", err))
	}

	restingHR := o.latestRestingHR(ctx, athleteID)

	fresh := NewActivities(provided, known)
	for _, act := range fresh {
		if err := o.analyzer.Analyze(ctx, athleteID, act, *profile, restingHR); err != nil {
			return domain.PullError(err)
		}
	}
	o.logger.Info("imported new activities",
		zap.Int("provided", len(provided)),
		zap.Int("new", len(fresh)),
	)

	if err := o.planner.Recompute(ctx, athleteID, profile.MinNonWarmupSec); err != nil {
		return domain.PullError(fmt.Errorf("plan recomputation: %w", err))
	}
	return domain.PullOK()
}

func (o *Orchestrator) latestRestingHR(ctx context.Context, athleteID int64) float64 {
	sleep, err := o.store.ListSleepSummaries(ctx, athleteID)
	if err != nil || len(sleep) == 0 {
		return 0
	}
	return sleep[len(sleep)-1].RestingHR
}

func record(result domain.PullResult, source string) {
	switch result.State {
	case domain.PullSuccessful:
		observability.RecordPullOutcome(source, "successful")
	case domain.PullAwaitingUpstream:
		observability.RecordPullOutcome(source, "awaiting_upstream")
	default:
		observability.RecordPullOutcome(source, "failed")
	}
}

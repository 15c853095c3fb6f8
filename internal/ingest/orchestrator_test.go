package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/training/internal/domain"
)

type fakeStore struct {
	activities []domain.ActivitySummary
	sleep      []domain.SleepSummary
	ledger     []domain.RefreshStatus
	truncated  []domain.TimeSeriesEntity

	truncateErrFor domain.TimeSeriesEntity
	ledgerErr      error
}

func (f *fakeStore) KnownActivityIDs(ctx context.Context, athleteID int64) (map[int64]struct{}, error) {
	known := make(map[int64]struct{})
	for _, a := range f.activities {
		known[a.ActivityID] = struct{}{}
	}
	return known, nil
}

func (f *fakeStore) InsertActivity(ctx context.Context, summary domain.ActivitySummary, samples []domain.ActivitySample, best []domain.BestSample) error {
	f.activities = append(f.activities, summary)
	return nil
}

func (f *fakeStore) ListActivities(ctx context.Context, athleteID int64) ([]domain.ActivitySummary, error) {
	return f.activities, nil
}

func (f *fakeStore) UpsertSleepSummaries(ctx context.Context, summaries []domain.SleepSummary) error {
	f.sleep = append(f.sleep, summaries...)
	return nil
}

func (f *fakeStore) UpsertReadinessSummaries(ctx context.Context, summaries []domain.ReadinessSummary) error {
	return nil
}

func (f *fakeStore) ListSleepSummaries(ctx context.Context, athleteID int64) ([]domain.SleepSummary, error) {
	return f.sleep, nil
}

func (f *fakeStore) ListReadinessSummaries(ctx context.Context, athleteID int64) ([]domain.ReadinessSummary, error) {
	return nil, nil
}

func (f *fakeStore) UpsertBodyComposition(ctx context.Context, entries []domain.BodyComposition) error {
	return nil
}

func (f *fakeStore) UpsertStrengthSets(ctx context.Context, sets []domain.StrengthSet) error {
	return nil
}

func (f *fakeStore) AppendPlanStep(ctx context.Context, step domain.HrvPlanStep) error {
	return nil
}

func (f *fakeStore) LatestPlanStep(ctx context.Context, athleteID int64) (*domain.HrvPlanStep, error) {
	return nil, nil
}

func (f *fakeStore) ListPlanSteps(ctx context.Context, athleteID int64) ([]domain.HrvPlanStep, error) {
	return nil, nil
}

func (f *fakeStore) InsertRefreshStatus(ctx context.Context, status domain.RefreshStatus) error {
	if f.ledgerErr != nil {
		return f.ledgerErr
	}
	f.ledger = append(f.ledger, status)
	return nil
}

func (f *fakeStore) LatestRefresh(ctx context.Context, athleteID int64) (*time.Time, error) {
	if len(f.ledger) == 0 {
		return nil, nil
	}
	ts := f.ledger[len(f.ledger)-1].TimestampUTC
	return &ts, nil
}

func (f *fakeStore) ListRefreshStatuses(ctx context.Context, athleteID int64, limit int) ([]domain.RefreshStatus, error) {
	return f.ledger, nil
}

func (f *fakeStore) AthleteProfile(ctx context.Context, athleteID int64) (*domain.AthleteProfile, error) {
	return &domain.AthleteProfile{AthleteID: athleteID, MinNonWarmupSec: 900, RestingHR: 50, MaxHR: 190}, nil
}

func (f *fakeStore) TruncateEntity(ctx context.Context, athleteID int64, entity domain.TimeSeriesEntity, after *time.Time) error {
	if entity == f.truncateErrFor {
		return errors.New("truncate boom")
	}
	f.truncated = append(f.truncated, entity)
	return nil
}

type fakeWeight struct {
	err    error
	called bool
}

func (f *fakeWeight) Measurements(ctx context.Context) ([]domain.BodyComposition, error) {
	f.called = true
	return nil, f.err
}

type fakeStrength struct {
	called bool
}

func (f *fakeStrength) Sets(ctx context.Context) ([]domain.StrengthSet, error) {
	f.called = true
	return nil, nil
}

type fakeRecovery struct {
	updated bool
	err     error
	sleep   []domain.SleepSummary
}

func (f *fakeRecovery) DailyReports(ctx context.Context) ([]domain.SleepSummary, []domain.ReadinessSummary, bool, error) {
	return f.sleep, nil, f.updated, f.err
}

type fakeActivitySource struct {
	activities []domain.ProviderActivity
	calls      int
}

func (f *fakeActivitySource) ActivitiesAfter(ctx context.Context, after time.Time) ([]domain.ProviderActivity, error) {
	f.calls++
	return f.activities, nil
}

type fakeAnalyzer struct {
	analyzed []int64
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, athleteID int64, act domain.ProviderActivity, profile domain.AthleteProfile, restingHR float64) error {
	f.analyzed = append(f.analyzed, act.ID)
	return nil
}

type fakePlanner struct {
	calls int
}

func (f *fakePlanner) Recompute(ctx context.Context, athleteID int64, minNonWarmupSec int) error {
	f.calls++
	return nil
}

type fixture struct {
	store    *fakeStore
	weight   *fakeWeight
	strength *fakeStrength
	recovery *fakeRecovery
	source   *fakeActivitySource
	analyzer *fakeAnalyzer
	planner  *fakePlanner
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		store:    &fakeStore{},
		weight:   &fakeWeight{},
		strength: &fakeStrength{},
		recovery: &fakeRecovery{updated: true},
		source:   &fakeActivitySource{},
		analyzer: &fakeAnalyzer{},
		planner:  &fakePlanner{},
	}
	f.orch = NewOrchestrator(
		f.store, f.weight, f.strength, f.recovery, f.source, f.analyzer, f.planner,
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), zap.NewNop(),
	)
	return f
}

func TestRefreshHappyPathWritesLedger(t *testing.T) {
	f := newFixture()
	f.source.activities = []domain.ProviderActivity{{ID: 1}, {ID: 2}}

	runAt := f.orch.Refresh(context.Background(), 1, Options{Process: "system"})
	require.False(t, runAt.IsZero())

	require.Len(t, f.store.ledger, 1)
	entry := f.store.ledger[0]
	require.Equal(t, domain.StatusSuccessful, entry.WeightStatus)
	require.Equal(t, domain.StatusSuccessful, entry.StrengthStatus)
	require.Equal(t, domain.StatusSuccessful, entry.RecoveryStatus)
	require.Equal(t, domain.StatusSuccessful, entry.ActivityStatus)
	require.Equal(t, "system", entry.Process)
	require.NotEmpty(t, entry.RunID)
	require.Equal(t, runAt, entry.TimestampUTC)

	require.Equal(t, []int64{1, 2}, f.analyzer.analyzed)
	require.Equal(t, 1, f.planner.calls)
}

func TestRefreshGateClosedWhenRecoveryNotUpdated(t *testing.T) {
	f := newFixture()
	f.recovery.updated = false
	f.source.activities = []domain.ProviderActivity{{ID: 1}}

	f.orch.Refresh(context.Background(), 1, Options{Process: "system"})

	require.Zero(t, f.source.calls, "activity pull must not run")
	require.Empty(t, f.analyzer.analyzed)
	require.Zero(t, f.planner.calls)

	entry := f.store.ledger[0]
	require.Equal(t, statusRecoveryNotUpdated, entry.RecoveryStatus)
	require.Equal(t, statusAwaitingRecovery, entry.ActivityStatus)
}

func TestRefreshGateClosedWhenRecoveryFails(t *testing.T) {
	f := newFixture()
	f.recovery.err = errors.New("recovery down")

	f.orch.Refresh(context.Background(), 1, Options{Process: "system"})

	require.Zero(t, f.source.calls)
	entry := f.store.ledger[0]
	require.Equal(t, "recovery down", entry.RecoveryStatus)
	require.Equal(t, statusAwaitingRecovery, entry.ActivityStatus)
}

func TestRefreshStepIsolation(t *testing.T) {
	f := newFixture()
	f.weight.err = errors.New("weight down")

	f.orch.Refresh(context.Background(), 1, Options{Process: "system"})

	require.True(t, f.strength.called, "strength pull must still run")
	require.Equal(t, 1, f.source.calls, "activity pull must still run")

	entry := f.store.ledger[0]
	require.Equal(t, "weight down", entry.WeightStatus)
	require.Equal(t, domain.StatusSuccessful, entry.StrengthStatus)
}

func TestRefreshLedgerFailureDoesNotRaise(t *testing.T) {
	f := newFixture()
	f.store.ledgerErr = errors.New("ledger down")

	runAt := f.orch.Refresh(context.Background(), 1, Options{Process: "system"})
	require.False(t, runAt.IsZero())
	require.Empty(t, f.store.ledger)
}

func TestRefreshSecondRunImportsNothingNew(t *testing.T) {
	f := newFixture()
	f.source.activities = []domain.ProviderActivity{{ID: 1}, {ID: 2}}

	f.orch.Refresh(context.Background(), 1, Options{Process: "system"})
	require.Len(t, f.analyzer.analyzed, 2)
	for _, id := range f.analyzer.analyzed {
		f.store.activities = append(f.store.activities, domain.ActivitySummary{ActivityID: id})
	}

	f.analyzer.analyzed = nil
	f.orch.Refresh(context.Background(), 1, Options{Process: "system"})
	require.Empty(t, f.analyzer.analyzed)
}

func TestRefreshTruncateCoversAllEntitiesAndContinuesOnError(t *testing.T) {
	f := newFixture()
	f.store.truncateErrFor = domain.EntitySleepSummaries

	f.orch.Refresh(context.Background(), 1, Options{Process: "manual", Truncate: true})

	require.Len(t, f.store.truncated, len(domain.TimeSeriesEntities())-1)
	require.NotContains(t, f.store.truncated, domain.EntitySleepSummaries)
	require.Contains(t, f.store.truncated, domain.EntityBodyComposition)

	require.Len(t, f.store.ledger, 1)
	require.True(t, f.store.ledger[0].Truncate)
}

func TestRefreshTruncateAfterDateIsRecorded(t *testing.T) {
	f := newFixture()
	after := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	f.orch.Refresh(context.Background(), 1, Options{Process: "manual", TruncateAfter: &after})

	require.Len(t, f.store.truncated, len(domain.TimeSeriesEntities()))
	require.NotNil(t, f.store.ledger[0].TruncateAfter)
	require.Equal(t, after, *f.store.ledger[0].TruncateAfter)
}

func TestRefreshPassesLatestRestingHRToAnalyzer(t *testing.T) {
	f := newFixture()
	f.recovery.sleep = []domain.SleepSummary{
		{ReportDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), RestingHR: 47},
	}
	f.source.activities = []domain.ProviderActivity{{ID: 5}}

	var gotRestingHR float64
	f.orch.analyzer = analyzerFunc(func(ctx context.Context, athleteID int64, act domain.ProviderActivity, profile domain.AthleteProfile, restingHR float64) error {
		gotRestingHR = restingHR
		return nil
	})

	f.orch.Refresh(context.Background(), 1, Options{Process: "system"})
	require.Equal(t, 47.0, gotRestingHR)
}

type analyzerFunc func(ctx context.Context, athleteID int64, act domain.ProviderActivity, profile domain.AthleteProfile, restingHR float64) error

func (fn analyzerFunc) Analyze(ctx context.Context, athleteID int64, act domain.ProviderActivity, profile domain.AthleteProfile, restingHR float64) error {
	return fn(ctx, athleteID, act, profile, restingHR)
}

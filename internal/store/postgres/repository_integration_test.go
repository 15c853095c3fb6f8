//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/training/internal/domain"
)

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("training"),
		postgrescontainer.WithUsername("training"),
		postgrescontainer.WithPassword("training"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, `INSERT INTO athletes (athlete_id, name) VALUES (1, 'integration')`)
	require.NoError(t, err)

	repo := NewRepository(pool)

	start := time.Date(2024, 4, 2, 7, 30, 0, 0, time.UTC)
	tss := 85.0
	summary := domain.ActivitySummary{
		AthleteID:     1,
		ActivityID:    1001,
		Name:          "Morning Ride",
		Type:          "Ride",
		StartUTC:      start,
		StartLocal:    start.Add(2 * time.Hour),
		StartDayLocal: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		ElapsedSec:    3600,
		TSS:           &tss,
		CreatedAt:     time.Now().UTC(),
	}
	samples := []domain.ActivitySample{
		{AthleteID: 1, ActivityID: 1001, OffsetSec: 0, TimestampLocal: summary.StartLocal, Watts: 180, HeartRate: 120},
		{AthleteID: 1, ActivityID: 1001, OffsetSec: 1, TimestampLocal: summary.StartLocal.Add(time.Second), Watts: 200, HeartRate: 130},
	}
	best := []domain.BestSample{
		{AthleteID: 1, ActivityID: 1001, DurationSec: 5, Watts: 210, TimestampLocal: summary.StartLocal},
	}

	require.NoError(t, repo.InsertActivity(ctx, summary, samples, best))

	known, err := repo.KnownActivityIDs(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, known, int64(1001))

	listed, err := repo.ListActivities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, int64(1001), listed[0].ActivityID)
	require.NotNil(t, listed[0].TSS)

	// The insert must have queued exactly one outbox event.
	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE event_type='activity.imported'`).Scan(&outboxCount))
	require.Equal(t, 1, outboxCount)
}

func TestTruncateEntityBoundedByDate(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("training"),
		postgrescontainer.WithUsername("training"),
		postgrescontainer.WithPassword("training"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)

	old := domain.SleepSummary{AthleteID: 1, ReportDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), RMSSD: 55}
	recent := domain.SleepSummary{AthleteID: 1, ReportDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), RMSSD: 60}
	require.NoError(t, repo.UpsertSleepSummaries(ctx, []domain.SleepSummary{old, recent}))

	after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TruncateEntity(ctx, 1, domain.EntitySleepSummaries, &after))

	remaining, err := repo.ListSleepSummaries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.True(t, remaining[0].ReportDate.Equal(old.ReportDate))
}

func TestLedgerAppendAndPage(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("training"),
		postgrescontainer.WithUsername("training"),
		postgrescontainer.WithPassword("training"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)

	base := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.InsertRefreshStatus(ctx, domain.RefreshStatus{
			RunID:          uuid.NewString(),
			AthleteID:      1,
			TimestampUTC:   base.Add(time.Duration(i) * time.Hour),
			WeightStatus:   domain.StatusSuccessful,
			StrengthStatus: domain.StatusSuccessful,
			RecoveryStatus: domain.StatusSuccessful,
			ActivityStatus: domain.StatusSuccessful,
			Process:        "system",
		}))
	}

	latest, err := repo.LatestRefresh(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.True(t, latest.Equal(base.Add(2*time.Hour)))

	page, next, err := repo.ListRefreshStatusesPage(ctx, 1, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	require.True(t, page[0].TimestampUTC.After(page[1].TimestampUTC))

	rest, next, err := repo.ListRefreshStatusesPage(ctx, 1, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

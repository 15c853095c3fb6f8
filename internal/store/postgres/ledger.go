package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/training/internal/domain"
	"example.com/training/internal/store"
)

// truncateTargets maps each time-series entity to its table and the timestamp
// column a date-bounded truncate filters on.
var truncateTargets = map[domain.TimeSeriesEntity]struct {
	table  string
	column string
}{
	domain.EntityActivitySummaries:  {table: "activity_summaries", column: "start_utc"},
	domain.EntityActivitySamples:    {table: "activity_samples", column: "timestamp_local"},
	domain.EntityBestSamples:        {table: "activity_best_samples", column: "timestamp_local"},
	domain.EntitySleepSummaries:     {table: "sleep_summaries", column: "report_date"},
	domain.EntityReadinessSummaries: {table: "readiness_summaries", column: "report_date"},
	domain.EntityHrvPlanSteps:       {table: "hrv_plan_steps", column: "date"},
	domain.EntityBodyComposition:    {table: "body_composition", column: "date"},
}

// TruncateEntity deletes one entity's rows for the athlete, restricted to
// rows on or after the given date when one is supplied. The delete runs in
// its own transaction so a failure rolls back only this entity.
func (r *Repository) TruncateEntity(ctx context.Context, athleteID int64, entity domain.TimeSeriesEntity, after *time.Time) error {
	target, ok := truncateTargets[entity]
	if !ok {
		return fmt.Errorf("unknown time-series entity: %s", entity)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if after != nil {
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE athlete_id=$1 AND %s >= $2`, target.table, target.column),
			athleteID, *after)
	} else {
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE athlete_id=$1`, target.table),
			athleteID)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertRefreshStatus appends one ledger row and records a refresh.completed
// outbox event in the same transaction.
func (r *Repository) InsertRefreshStatus(ctx context.Context, status domain.RefreshStatus) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO refresh_status
        (run_id, athlete_id, timestamp_utc, weight_status, strength_status, recovery_status, activity_status,
         truncate_requested, truncate_after, process)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = tx.Exec(ctx, stmt,
		status.RunID,
		status.AthleteID,
		status.TimestampUTC,
		status.WeightStatus,
		status.StrengthStatus,
		status.RecoveryStatus,
		status.ActivityStatus,
		status.Truncate,
		status.TruncateAfter,
		status.Process,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, status.AthleteID, "refresh", status.RunID,
		"refresh.completed", refreshCompletedEvent{
			RunID:          status.RunID,
			AthleteID:      status.AthleteID,
			CompletedAt:    status.TimestampUTC,
			WeightStatus:   status.WeightStatus,
			StrengthStatus: status.StrengthStatus,
			RecoveryStatus: status.RecoveryStatus,
			ActivityStatus: status.ActivityStatus,
			Process:        status.Process,
		}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// LatestRefresh returns the timestamp of the most recent ledger row, or nil
// when no run has been recorded yet.
func (r *Repository) LatestRefresh(ctx context.Context, athleteID int64) (*time.Time, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT max(timestamp_utc) FROM refresh_status WHERE athlete_id=$1`, athleteID)

	var ts *time.Time
	if err := row.Scan(&ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// ListRefreshStatuses returns the most recent ledger rows, newest first.
func (r *Repository) ListRefreshStatuses(ctx context.Context, athleteID int64, limit int) ([]domain.RefreshStatus, error) {
	const query = `SELECT run_id, athlete_id, timestamp_utc, weight_status, strength_status, recovery_status,
        activity_status, truncate_requested, truncate_after, process
        FROM refresh_status WHERE athlete_id=$1 ORDER BY timestamp_utc DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, athleteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshStatus
	for rows.Next() {
		var s domain.RefreshStatus
		if err := rows.Scan(&s.RunID, &s.AthleteID, &s.TimestampUTC, &s.WeightStatus, &s.StrengthStatus,
			&s.RecoveryStatus, &s.ActivityStatus, &s.Truncate, &s.TruncateAfter, &s.Process); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListRefreshStatusesPage returns one keyset-paginated page of ledger rows,
// newest first, and the cursor for the next page when more rows remain.
func (r *Repository) ListRefreshStatusesPage(ctx context.Context, athleteID int64, cursor *store.Cursor, limit int) ([]domain.RefreshStatus, *store.Cursor, error) {
	const base = `SELECT run_id, athlete_id, timestamp_utc, weight_status, strength_status, recovery_status,
        activity_status, truncate_requested, truncate_after, process
        FROM refresh_status WHERE athlete_id=$1`

	var (
		rows pgx.Rows
		err  error
	)
	if cursor != nil {
		rows, err = r.pool.Query(ctx, base+
			` AND (timestamp_utc, run_id) < ($2, $3) ORDER BY timestamp_utc DESC, run_id DESC LIMIT $4`,
			athleteID, cursor.Timestamp, cursor.RunID, limit+1)
	} else {
		rows, err = r.pool.Query(ctx, base+
			` ORDER BY timestamp_utc DESC, run_id DESC LIMIT $2`,
			athleteID, limit+1)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []domain.RefreshStatus
	for rows.Next() {
		var s domain.RefreshStatus
		if err := rows.Scan(&s.RunID, &s.AthleteID, &s.TimestampUTC, &s.WeightStatus, &s.StrengthStatus,
			&s.RecoveryStatus, &s.ActivityStatus, &s.Truncate, &s.TruncateAfter, &s.Process); err != nil {
			return nil, nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *store.Cursor
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = &store.Cursor{Timestamp: last.TimestampUTC, RunID: last.RunID}
	}
	return out, next, nil
}

type refreshCompletedEvent struct {
	RunID          string    `json:"run_id"`
	AthleteID      int64     `json:"athlete_id"`
	CompletedAt    time.Time `json:"completed_at"`
	WeightStatus   string    `json:"weight_status"`
	StrengthStatus string    `json:"strength_status"`
	RecoveryStatus string    `json:"recovery_status"`
	ActivityStatus string    `json:"activity_status"`
	Process        string    `json:"process"`
}

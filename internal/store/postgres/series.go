package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/training/internal/domain"
)

// UpsertSleepSummaries writes daily sleep reports, replacing any existing row
// for the same report date. Idempotent across runs.
func (r *Repository) UpsertSleepSummaries(ctx context.Context, summaries []domain.SleepSummary) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO sleep_summaries (athlete_id, report_date, rmssd, resting_hr, total_sleep_sec)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (athlete_id, report_date) DO UPDATE
        SET rmssd=EXCLUDED.rmssd, resting_hr=EXCLUDED.resting_hr, total_sleep_sec=EXCLUDED.total_sleep_sec`

	for _, s := range summaries {
		if _, err = tx.Exec(ctx, stmt, s.AthleteID, s.ReportDate, s.RMSSD, s.RestingHR, s.TotalSleepSec); err != nil {
			return err
		}
	}
	err = tx.Commit(ctx)
	return err
}

// UpsertReadinessSummaries writes daily readiness reports keyed by report date.
func (r *Repository) UpsertReadinessSummaries(ctx context.Context, summaries []domain.ReadinessSummary) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO readiness_summaries (athlete_id, report_date, score)
        VALUES ($1,$2,$3)
        ON CONFLICT (athlete_id, report_date) DO UPDATE SET score=EXCLUDED.score`

	for _, s := range summaries {
		if _, err = tx.Exec(ctx, stmt, s.AthleteID, s.ReportDate, s.Score); err != nil {
			return err
		}
	}
	err = tx.Commit(ctx)
	return err
}

// ListSleepSummaries returns sleep reports in ascending date order.
func (r *Repository) ListSleepSummaries(ctx context.Context, athleteID int64) ([]domain.SleepSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT athlete_id, report_date, rmssd, resting_hr, total_sleep_sec
         FROM sleep_summaries WHERE athlete_id=$1 ORDER BY report_date ASC`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SleepSummary
	for rows.Next() {
		var s domain.SleepSummary
		if err := rows.Scan(&s.AthleteID, &s.ReportDate, &s.RMSSD, &s.RestingHR, &s.TotalSleepSec); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListReadinessSummaries returns readiness reports in ascending date order.
func (r *Repository) ListReadinessSummaries(ctx context.Context, athleteID int64) ([]domain.ReadinessSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT athlete_id, report_date, score
         FROM readiness_summaries WHERE athlete_id=$1 ORDER BY report_date ASC`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReadinessSummary
	for rows.Next() {
		var s domain.ReadinessSummary
		if err := rows.Scan(&s.AthleteID, &s.ReportDate, &s.Score); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertBodyComposition writes daily weight/composition entries keyed by date.
func (r *Repository) UpsertBodyComposition(ctx context.Context, entries []domain.BodyComposition) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO body_composition (athlete_id, date, weight_kg, body_fat_pct)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (athlete_id, date) DO UPDATE
        SET weight_kg=EXCLUDED.weight_kg, body_fat_pct=EXCLUDED.body_fat_pct`

	for _, e := range entries {
		if _, err = tx.Exec(ctx, stmt, e.AthleteID, e.Date, e.WeightKg, e.BodyFatPct); err != nil {
			return err
		}
	}
	err = tx.Commit(ctx)
	return err
}

// UpsertStrengthSets writes strength-training sets, replacing same-day rows
// for the same exercise so repeated pulls stay idempotent.
func (r *Repository) UpsertStrengthSets(ctx context.Context, sets []domain.StrengthSet) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO strength_sets (athlete_id, date, exercise, reps, weight_kg)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (athlete_id, date, exercise, reps, weight_kg) DO NOTHING`

	for _, s := range sets {
		if _, err = tx.Exec(ctx, stmt, s.AthleteID, s.Date, s.Exercise, s.Reps, s.WeightKg); err != nil {
			return err
		}
	}
	err = tx.Commit(ctx)
	return err
}

// AppendPlanStep writes one day's HRV plan step, replacing that day's entry
// if the plan was recomputed.
func (r *Repository) AppendPlanStep(ctx context.Context, step domain.HrvPlanStep) error {
	const stmt = `INSERT INTO hrv_plan_steps (athlete_id, date, step, rationale)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (athlete_id, date) DO UPDATE
        SET step=EXCLUDED.step, rationale=EXCLUDED.rationale`

	_, err := r.pool.Exec(ctx, stmt, step.AthleteID, step.Date, step.Step, step.Rationale)
	return err
}

// LatestPlanStep returns the most recent plan-step row, or nil when the log
// is empty.
func (r *Repository) LatestPlanStep(ctx context.Context, athleteID int64) (*domain.HrvPlanStep, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT athlete_id, date, step, rationale
         FROM hrv_plan_steps WHERE athlete_id=$1 ORDER BY date DESC LIMIT 1`, athleteID)

	var s domain.HrvPlanStep
	if err := row.Scan(&s.AthleteID, &s.Date, &s.Step, &s.Rationale); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListPlanSteps returns the plan-step log in ascending date order.
func (r *Repository) ListPlanSteps(ctx context.Context, athleteID int64) ([]domain.HrvPlanStep, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT athlete_id, date, step, rationale
         FROM hrv_plan_steps WHERE athlete_id=$1 ORDER BY date ASC`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HrvPlanStep
	for rows.Next() {
		var s domain.HrvPlanStep
		if err := rows.Scan(&s.AthleteID, &s.Date, &s.Step, &s.Rationale); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Package postgres provides the pgx-backed record store for the training service.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/training/internal/domain"
	"example.com/training/internal/observability"
)

// Repository provides Postgres-backed persistence for the athlete timeline
// and the refresh ledger. It implements domain.Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// KnownActivityIDs returns every stored activity id for the athlete. The set
// is unbounded by date so merges stay idempotent across arbitrarily long gaps
// between runs.
func (r *Repository) KnownActivityIDs(ctx context.Context, athleteID int64) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT activity_id FROM activity_summaries WHERE athlete_id=$1`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// InsertActivity writes the summary, its samples, and its best-sample rows in
// a single transaction, and records an activity.imported outbox event.
func (r *Repository) InsertActivity(ctx context.Context, summary domain.ActivitySummary, samples []domain.ActivitySample, best []domain.BestSample) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertSummary = `INSERT INTO activity_summaries
        (athlete_id, activity_id, name, type, start_utc, start_local, start_day_local,
         elapsed_sec, distance_m, tss, hrss, trimp,
         low_intensity_sec, med_intensity_sec, high_intensity_sec, ftp, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err = tx.Exec(ctx, insertSummary,
		summary.AthleteID,
		summary.ActivityID,
		summary.Name,
		summary.Type,
		summary.StartUTC,
		summary.StartLocal,
		summary.StartDayLocal,
		summary.ElapsedSec,
		summary.DistanceMeters,
		summary.TSS,
		summary.HRSS,
		summary.TRIMP,
		summary.LowIntensitySec,
		summary.MedIntensitySec,
		summary.HighIntensitySec,
		summary.FTP,
		summary.CreatedAt,
	)
	if err != nil {
		return err
	}

	if len(samples) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"activity_samples"},
			[]string{"athlete_id", "activity_id", "offset_sec", "timestamp_local", "watts", "heart_rate", "velocity_ms", "cadence"},
			pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
				s := samples[i]
				return []any{s.AthleteID, s.ActivityID, s.OffsetSec, s.TimestampLocal, s.Watts, s.HeartRate, s.VelocityMS, s.Cadence}, nil
			}),
		)
		if err != nil {
			return err
		}
	}

	for _, b := range best {
		if _, err = tx.Exec(ctx,
			`INSERT INTO activity_best_samples (athlete_id, activity_id, duration_sec, watts, timestamp_local)
             VALUES ($1,$2,$3,$4,$5)`,
			b.AthleteID, b.ActivityID, b.DurationSec, b.Watts, b.TimestampLocal,
		); err != nil {
			return err
		}
	}

	if err = r.insertOutbox(ctx, tx, summary.AthleteID, "activity", fmt.Sprintf("%d", summary.ActivityID),
		"activity.imported", activityImportedEvent{
			ActivityID: summary.ActivityID,
			AthleteID:  summary.AthleteID,
			Name:       summary.Name,
			Type:       summary.Type,
			StartedAt:  summary.StartUTC,
			ElapsedSec: summary.ElapsedSec,
		}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(summary.StartUTC)
	return nil
}

// ListActivities returns every stored workout summary in ascending start order.
func (r *Repository) ListActivities(ctx context.Context, athleteID int64) ([]domain.ActivitySummary, error) {
	const query = `SELECT athlete_id, activity_id, name, type, start_utc, start_local, start_day_local,
        elapsed_sec, distance_m, tss, hrss, trimp,
        low_intensity_sec, med_intensity_sec, high_intensity_sec, ftp, created_at
        FROM activity_summaries WHERE athlete_id=$1 ORDER BY start_utc ASC`

	rows, err := r.pool.Query(ctx, query, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivitySummary
	for rows.Next() {
		var a domain.ActivitySummary
		if err := rows.Scan(&a.AthleteID, &a.ActivityID, &a.Name, &a.Type, &a.StartUTC, &a.StartLocal, &a.StartDayLocal,
			&a.ElapsedSec, &a.DistanceMeters, &a.TSS, &a.HRSS, &a.TRIMP,
			&a.LowIntensitySec, &a.MedIntensitySec, &a.HighIntensitySec, &a.FTP, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AthleteProfile reads the athlete's configuration row.
func (r *Repository) AthleteProfile(ctx context.Context, athleteID int64) (*domain.AthleteProfile, error) {
	const query = `SELECT athlete_id, name, min_non_warmup_sec, weekly_stress_goal,
        ramp_rate_min_goal, ramp_rate_max_goal, resting_hr, max_hr, run_ftp, ride_ftp
        FROM athletes WHERE athlete_id=$1`

	row := r.pool.QueryRow(ctx, query, athleteID)
	var p domain.AthleteProfile
	if err := row.Scan(&p.AthleteID, &p.Name, &p.MinNonWarmupSec, &p.WeeklyStressGoal,
		&p.RampRateMinGoal, &p.RampRateMaxGoal, &p.RestingHR, &p.MaxHR, &p.RunFTP, &p.RideFTP); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("athlete %d not found", athleteID)
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, athleteID int64, aggregateType, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (athlete_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		athleteID,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		fmt.Sprintf("%d", athleteID),
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"activity.imported": {
		Topic:         "training_activity_events",
		SchemaSubject: "training_activity_events-value",
	},
	"refresh.completed": {
		Topic:         "training_refresh_events",
		SchemaSubject: "training_refresh_events-value",
	},
}

type activityImportedEvent struct {
	ActivityID int64     `json:"activity_id"`
	AthleteID  int64     `json:"athlete_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	StartedAt  time.Time `json:"started_at"`
	ElapsedSec int       `json:"elapsed_sec"`
}

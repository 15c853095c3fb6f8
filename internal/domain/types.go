// Package domain defines the athlete timeline entities shared across the service.
package domain

import (
	"strings"
	"time"
)

// ActivitySummary is the canonical record for one completed workout. The
// activity id is assigned by the activity provider and is unique per athlete;
// it is the sole deduplication key across refresh runs.
type ActivitySummary struct {
	AthleteID        int64
	ActivityID       int64
	Name             string
	Type             string
	StartUTC         time.Time
	StartLocal       time.Time
	StartDayLocal    time.Time
	ElapsedSec       int
	DistanceMeters   float64
	TSS              *float64
	HRSS             *float64
	TRIMP            *float64
	LowIntensitySec  int
	MedIntensitySec  int
	HighIntensitySec int
	FTP              *float64
	CreatedAt        time.Time
}

// StressScore is the unified daily training load unit: power-based when
// available, heart-rate-based otherwise, zero when neither exists.
func (a ActivitySummary) StressScore() float64 {
	if a.TSS != nil {
		return *a.TSS
	}
	if a.HRSS != nil {
		return *a.HRSS
	}
	return 0
}

// ActivitySample is one elapsed-time tick of an activity's stream data. Rows
// belong to exactly one ActivitySummary and are removed with its window.
type ActivitySample struct {
	AthleteID      int64
	ActivityID     int64
	OffsetSec      int
	TimestampLocal time.Time
	Watts          float64
	HeartRate      float64
	VelocityMS     float64
	Cadence        float64
}

// BestSample is a per-activity best rolling-average power over a standard
// duration, kept for power-curve displays.
type BestSample struct {
	AthleteID      int64
	ActivityID     int64
	DurationSec    int
	Watts          float64
	TimestampLocal time.Time
}

// SleepSummary is the daily sleep report from the recovery provider.
type SleepSummary struct {
	AthleteID     int64
	ReportDate    time.Time
	RMSSD         float64
	RestingHR     float64
	TotalSleepSec int
}

// ReadinessSummary is the daily readiness report from the recovery provider.
// Score is in [0,100]; zero means unscored.
type ReadinessSummary struct {
	AthleteID  int64
	ReportDate time.Time
	Score      int
}

// BodyComposition is a daily weight/composition entry from the weight provider.
type BodyComposition struct {
	AthleteID  int64
	Date       time.Time
	WeightKg   float64
	BodyFatPct *float64
}

// StrengthSet is one logged set from the strength-training provider.
type StrengthSet struct {
	AthleteID int64
	Date      time.Time
	Exercise  string
	Reps      int
	WeightKg  float64
}

// HrvPlanStep records one day's HRV-driven plan step and its rationale.
// Produced by the plan recomputation, consumed read-only for display merge.
type HrvPlanStep struct {
	AthleteID int64
	Date      time.Time
	Step      string
	Rationale string
}

// RefreshStatus is one row of the append-only ingestion ledger. Status fields
// hold the serialized terminal outcome of each provider pull.
type RefreshStatus struct {
	RunID          string
	AthleteID      int64
	TimestampUTC   time.Time
	WeightStatus   string
	StrengthStatus string
	RecoveryStatus string
	ActivityStatus string
	Truncate       bool
	TruncateAfter  *time.Time
	Process        string
}

// AthleteProfile is the per-athlete configuration consumed read-only by the
// core. Ramp-rate goals are sport-agnostic CTL deltas over seven days.
type AthleteProfile struct {
	AthleteID        int64
	Name             string
	MinNonWarmupSec  int
	WeeklyStressGoal float64
	RampRateMinGoal  float64
	RampRateMaxGoal  float64
	RestingHR        int
	MaxHR            int
	RunFTP           float64
	RideFTP          float64
}

// FTPForType returns the profile FTP applicable to a workout type, or zero
// when the sport has no power model.
func (p AthleteProfile) FTPForType(workoutType string) float64 {
	switch SportOf(workoutType) {
	case SportRun:
		return p.RunFTP
	case SportRide:
		return p.RideFTP
	default:
		return 0
	}
}

// ProviderActivity is a provider-native workout record before analysis.
type ProviderActivity struct {
	ID             int64
	Name           string
	Type           string
	StartUTC       time.Time
	StartLocal     time.Time
	ElapsedSec     int
	DistanceMeters float64
	AverageWatts   *float64
}

// Sport buckets workout types the way the load model filters them.
type Sport string

const (
	SportRun   Sport = "run"
	SportRide  Sport = "ride"
	SportOther Sport = "other"
)

// SportOf classifies a provider workout type string into a sport bucket.
func SportOf(workoutType string) Sport {
	lower := strings.ToLower(workoutType)
	switch {
	case strings.Contains(lower, "run"):
		return SportRun
	case strings.Contains(lower, "ride"):
		return SportRide
	default:
		return SportOther
	}
}

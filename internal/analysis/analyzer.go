// Package analysis derives stress scores, intensity buckets, and best-sample
// aggregates for newly imported workouts and persists the result.
package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"example.com/training/internal/domain"
	"example.com/training/internal/provider"
)

// bestDurations are the rolling-average power windows kept per activity.
var bestDurations = []int{5, 60, 300, 1200}

// StreamSource fetches raw per-second sample streams for one activity.
type StreamSource interface {
	ActivityStreams(ctx context.Context, activityID int64) (*provider.Streams, error)
}

// Analyzer turns a provider activity into a persisted summary with samples
// and best-sample rows.
type Analyzer struct {
	streams StreamSource
	store   domain.ActivityStore
	logger  *zap.Logger
}

func NewAnalyzer(streams StreamSource, store domain.ActivityStore, logger *zap.Logger) *Analyzer {
	return &Analyzer{streams: streams, store: store, logger: logger}
}

// Analyze fetches the activity's streams, derives its load metrics, and
// persists the full record. restingHR comes from the most recent recovery
// report; heart-rate zones cannot be derived without it, which is why the
// activity pull is gated on a successful recovery pull.
func (a *Analyzer) Analyze(ctx context.Context, athleteID int64, act domain.ProviderActivity, profile domain.AthleteProfile, restingHR float64) error {
	streams, err := a.streams.ActivityStreams(ctx, act.ID)
	if err != nil {
		return fmt.Errorf("streams for activity %d: %w", act.ID, err)
	}

	if restingHR <= 0 {
		restingHR = float64(profile.RestingHR)
	}
	maxHR := float64(profile.MaxHR)
	ftp := profile.FTPForType(act.Type)

	summary := domain.ActivitySummary{
		AthleteID:      athleteID,
		ActivityID:     act.ID,
		Name:           act.Name,
		Type:           act.Type,
		StartUTC:       act.StartUTC,
		StartLocal:     act.StartLocal,
		StartDayLocal:  time.Date(act.StartLocal.Year(), act.StartLocal.Month(), act.StartLocal.Day(), 0, 0, 0, 0, time.UTC),
		ElapsedSec:     act.ElapsedSec,
		DistanceMeters: act.DistanceMeters,
		CreatedAt:      time.Now().UTC(),
	}
	if ftp > 0 {
		f := ftp
		summary.FTP = &f
	}

	if len(streams.Watts) > 0 && ftp > 0 {
		np := normalizedPower(streams.Watts)
		tss := trainingStress(np, ftp, act.ElapsedSec)
		summary.TSS = &tss
	}

	if len(streams.HeartRate) > 0 && maxHR > restingHR && restingHR > 0 {
		trimp := trimpScore(streams.HeartRate, restingHR, maxHR)
		summary.TRIMP = &trimp
		hrss := hrStress(trimp, restingHR, maxHR)
		summary.HRSS = &hrss

		low, med, high := intensityBuckets(streams.HeartRate, restingHR, maxHR)
		summary.LowIntensitySec = low
		summary.MedIntensitySec = med
		summary.HighIntensitySec = high
	}

	samples := buildSamples(athleteID, act, streams)
	best := bestSamples(athleteID, act, streams.Watts)

	if err := a.store.InsertActivity(ctx, summary, samples, best); err != nil {
		return fmt.Errorf("persist activity %d: %w", act.ID, err)
	}

	a.logger.Info("analyzed activity",
		zap.Int64("activity_id", act.ID),
		zap.String("type", act.Type),
		zap.Int("samples", len(samples)),
	)
	return nil
}

// normalizedPower is the fourth-root of the mean fourth power of a 30-second
// rolling average of the power stream.
func normalizedPower(watts []float64) float64 {
	const window = 30
	if len(watts) == 0 {
		return 0
	}
	var sum, count float64
	rolling := 0.0
	for i, w := range watts {
		rolling += w
		if i >= window {
			rolling -= watts[i-window]
		}
		n := float64(window)
		if i < window-1 {
			n = float64(i + 1)
		}
		avg := rolling / n
		sum += avg * avg * avg * avg
		count++
	}
	return math.Pow(sum/count, 0.25)
}

func trainingStress(np, ftp float64, elapsedSec int) float64 {
	intensity := np / ftp
	return float64(elapsedSec) * np * intensity / (ftp * 3600) * 100
}

// trimpScore is Banister's TRIMP over one-second samples.
func trimpScore(heartRate []float64, restingHR, maxHR float64) float64 {
	reserve := maxHR - restingHR
	var trimp float64
	for _, hr := range heartRate {
		hrr := (hr - restingHR) / reserve
		if hrr <= 0 {
			continue
		}
		trimp += (1.0 / 60.0) * hrr * 0.64 * math.Exp(1.92*hrr)
	}
	return trimp
}

// hrStress scales TRIMP so that one hour at lactate threshold equals 100,
// making it commensurable with the power-based stress score.
func hrStress(trimp, restingHR, maxHR float64) float64 {
	lthr := restingHR + 0.85*(maxHR-restingHR)
	hrrLT := (lthr - restingHR) / (maxHR - restingHR)
	hourAtThreshold := 60 * hrrLT * 0.64 * math.Exp(1.92*hrrLT)
	if hourAtThreshold == 0 {
		return 0
	}
	return trimp / hourAtThreshold * 100
}

// intensityBuckets splits the heart-rate stream into seconds below, around,
// and above threshold using heart-rate-reserve fractions.
func intensityBuckets(heartRate []float64, restingHR, maxHR float64) (low, med, high int) {
	reserve := maxHR - restingHR
	for _, hr := range heartRate {
		hrr := (hr - restingHR) / reserve
		switch {
		case hrr < 0.7:
			low++
		case hrr < 0.85:
			med++
		default:
			high++
		}
	}
	return low, med, high
}

func buildSamples(athleteID int64, act domain.ProviderActivity, streams *provider.Streams) []domain.ActivitySample {
	samples := make([]domain.ActivitySample, 0, len(streams.OffsetSec))
	for i, offset := range streams.OffsetSec {
		s := domain.ActivitySample{
			AthleteID:      athleteID,
			ActivityID:     act.ID,
			OffsetSec:      offset,
			TimestampLocal: act.StartLocal.Add(time.Duration(offset) * time.Second),
		}
		if i < len(streams.Watts) {
			s.Watts = streams.Watts[i]
		}
		if i < len(streams.HeartRate) {
			s.HeartRate = streams.HeartRate[i]
		}
		if i < len(streams.VelocityMS) {
			s.VelocityMS = streams.VelocityMS[i]
		}
		if i < len(streams.Cadence) {
			s.Cadence = streams.Cadence[i]
		}
		samples = append(samples, s)
	}
	return samples
}

// bestSamples finds the highest rolling-average power for each standard
// duration the activity is long enough to cover.
func bestSamples(athleteID int64, act domain.ProviderActivity, watts []float64) []domain.BestSample {
	var out []domain.BestSample
	for _, dur := range bestDurations {
		if len(watts) < dur {
			continue
		}
		var rolling float64
		for i := 0; i < dur; i++ {
			rolling += watts[i]
		}
		best := rolling
		bestEnd := dur - 1
		for i := dur; i < len(watts); i++ {
			rolling += watts[i] - watts[i-dur]
			if rolling > best {
				best = rolling
				bestEnd = i
			}
		}
		out = append(out, domain.BestSample{
			AthleteID:      athleteID,
			ActivityID:     act.ID,
			DurationSec:    dur,
			Watts:          best / float64(dur),
			TimestampLocal: act.StartLocal.Add(time.Duration(bestEnd) * time.Second),
		})
	}
	return out
}

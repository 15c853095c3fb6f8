// Package load implements the daily training-load model: fitness and fatigue
// recursions over a gap-filled calendar series, form and ramp-rate banding,
// intensity distribution, the HRV baseline band, and a zero-load forecast.
package load

import (
	"errors"
	"math"
	"time"

	"example.com/training/internal/domain"
)

// ErrNoData is returned when the stress series is empty. Callers distinguish
// "no data yet" from a computation failure through this sentinel.
var ErrNoData = errors.New("no activity data")

const (
	// fatigueDays and fitnessDays are the exponential time constants.
	fatigueDays = 7.0
	fitnessDays = 42.0

	// forecastDays extends the series past the last recorded day with
	// zero-stress rows so the recursion projects forward.
	forecastDays = 13

	// convergenceDays is one full fitness time constant; earlier rows are
	// computed to seed the recursion but flagged as not converged.
	convergenceDays = 42

	// intensityWindowDays is the rolling window for the 80/20 distribution.
	intensityWindowDays = 42

	// intensityCeiling is the recommended high-intensity share ceiling.
	intensityCeiling = 0.20
)

// Training zones classify form (TSB).
const (
	ZoneTransition = "Transition"
	ZoneFreshness  = "Freshness"
	ZoneNeutral    = "Neutral"
	ZoneOptimal    = "Optimal"
	ZoneOverload   = "Overload"
)

// Ramp-rate injury-risk bands.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Readiness recommendation tiers.
const (
	TierRest     = "Rest"
	TierLow      = "Low"
	TierModerate = "Moderate"
	TierHigh     = "High"
)

// Input is the snapshot the engine computes over. Activities must be in
// ascending start order.
type Input struct {
	Activities []domain.ActivitySummary
	Sleep      []domain.SleepSummary
	Readiness  []domain.ReadinessSummary
	PlanSteps  []domain.HrvPlanStep
	Profile    domain.AthleteProfile

	// Sports selects which sports count toward the fitness trend. Nil or
	// empty means all. Fatigue always includes every sport.
	Sports map[domain.Sport]bool
}

// Day is one calendar day of the computed model.
type Day struct {
	Date time.Time

	Stress         float64 // all-sport daily stress total
	FilteredStress float64 // stress from the selected sports only

	Fitness float64 // CTL
	Fatigue float64 // ATL
	Form    float64 // TSB, from yesterday's balance

	Zone     string
	RampRate float64
	RampRisk string

	LowIntensitySec  int // rolling window sum
	HighIntensitySec int // rolling window sum, medium plus high
	HighIntensityPct *float64
	OverIntensity    bool

	HRV        *float64
	HRVShort   *float64 // 7-day rolling mean
	HRVUpper   *float64 // 30-day mean + 0.5 std
	HRVLower   *float64 // 30-day mean - 0.5 std
	Readiness  int
	Tier       string
	PlanStep   string
	Forecast   bool
	Converged  bool
}

// Frame is the full computed model plus per-activity annotations.
type Frame struct {
	Days []Day

	// FTPFlags marks the workout immediately preceding an FTP change,
	// keyed by activity id: +1 for an increase, -1 for a decrease.
	FTPFlags map[int64]int
}

// Compute derives the daily load model from the input snapshot. It is pure:
// the input is not mutated and repeated calls produce identical output.
func Compute(in Input) (*Frame, error) {
	if len(in.Activities) == 0 {
		return nil, ErrNoData
	}

	first := dateOf(in.Activities[0].StartDayLocal)
	last := first
	for _, a := range in.Activities {
		d := dateOf(a.StartDayLocal)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	type daily struct {
		stress         float64
		filteredStress float64
		lowSec         int
		highSec        int
	}
	byDay := make(map[time.Time]*daily)
	for _, a := range in.Activities {
		d := dateOf(a.StartDayLocal)
		agg := byDay[d]
		if agg == nil {
			agg = &daily{}
			byDay[d] = agg
		}
		agg.stress += a.StressScore()
		if sportSelected(in.Sports, a.Type) {
			agg.filteredStress += a.StressScore()
		}
		agg.lowSec += a.LowIntensitySec
		agg.highSec += a.MedIntensitySec + a.HighIntensitySec
	}

	hrv := make(map[time.Time]float64, len(in.Sleep))
	for _, s := range in.Sleep {
		if s.RMSSD > 0 {
			hrv[dateOf(s.ReportDate)] = s.RMSSD
		}
	}
	readiness := make(map[time.Time]int, len(in.Readiness))
	for _, r := range in.Readiness {
		readiness[dateOf(r.ReportDate)] = r.Score
	}
	plan := make(map[time.Time]string, len(in.PlanSteps))
	for _, p := range in.PlanSteps {
		plan[dateOf(p.Date)] = p.Step
	}

	actualDays := int(last.Sub(first).Hours()/24) + 1
	total := actualDays + forecastDays

	alphaATL := math.Exp(-1 / fatigueDays)
	alphaCTL := math.Exp(-1 / fitnessDays)

	days := make([]Day, total)
	var prevATL, prevCTL float64
	for i := 0; i < total; i++ {
		date := first.AddDate(0, 0, i)
		day := Day{
			Date:     date,
			Forecast: i >= actualDays,
		}
		if agg := byDay[date]; agg != nil {
			day.Stress = agg.stress
			day.FilteredStress = agg.filteredStress
		}

		day.Fatigue = day.Stress*(1-alphaATL) + prevATL*alphaATL
		day.Fitness = day.FilteredStress*(1-alphaCTL) + prevCTL*alphaCTL
		day.Form = prevCTL - prevATL
		day.Zone = zoneOf(day.Form)
		prevATL, prevCTL = day.Fatigue, day.Fitness

		if i >= 7 {
			day.RampRate = day.Fitness - days[i-7].Fitness
		}
		day.RampRisk = rampRisk(day.RampRate, in.Profile)
		day.Converged = i >= convergenceDays

		lowSum, highSum := 0, 0
		for j := i; j >= 0 && j > i-intensityWindowDays; j-- {
			d := first.AddDate(0, 0, j)
			if agg := byDay[d]; agg != nil {
				lowSum += agg.lowSec
				highSum += agg.highSec
			}
		}
		day.LowIntensitySec = lowSum
		day.HighIntensitySec = highSum
		if lowSum+highSum > 0 {
			pct := float64(highSum) / float64(highSum+lowSum)
			day.HighIntensityPct = &pct
			day.OverIntensity = pct > intensityCeiling
		}

		if v, ok := hrv[date]; ok {
			hv := v
			day.HRV = &hv
		}
		day.HRVShort = rollingMean(hrv, first, i, 7)
		if mean, std := rollingMeanStd(hrv, first, i, 30); mean != nil {
			upper := *mean
			lower := *mean
			if std != nil {
				upper += 0.5 * *std
				lower -= 0.5 * *std
			}
			day.HRVUpper = &upper
			day.HRVLower = &lower
		}

		if score, ok := readiness[date]; ok {
			day.Readiness = score
			day.Tier = readinessTier(score)
		}
		day.PlanStep = plan[date]

		days[i] = day
	}

	return &Frame{
		Days:     days,
		FTPFlags: ftpChangeFlags(in.Activities),
	}, nil
}

// zoneOf classifies form into a training zone. Boundaries are inclusive on
// the lower-value side of each band.
func zoneOf(tsb float64) string {
	switch {
	case tsb > 25:
		return ZoneTransition
	case tsb > 5:
		return ZoneFreshness
	case tsb > -10:
		return ZoneNeutral
	case tsb >= -30:
		return ZoneOptimal
	default:
		return ZoneOverload
	}
}

func rampRisk(ramp float64, p domain.AthleteProfile) string {
	switch {
	case p.RampRateMaxGoal != 0 && ramp >= p.RampRateMaxGoal:
		return RiskHigh
	case p.RampRateMinGoal != 0 && ramp >= p.RampRateMinGoal:
		return RiskMedium
	default:
		return RiskLow
	}
}

// readinessTier maps a readiness score to a workout recommendation tier.
// Zero means the day was unscored.
func readinessTier(score int) string {
	switch {
	case score <= 0:
		return ""
	case score < 70:
		return TierRest
	case score < 80:
		return TierLow
	case score < 85:
		return TierModerate
	default:
		return TierHigh
	}
}

// ftpChangeFlags finds FTP transitions per sport and flags the workout
// immediately preceding each transition, the one that likely caused the
// retest. Run and ride are tracked independently.
func ftpChangeFlags(activities []domain.ActivitySummary) map[int64]int {
	flags := make(map[int64]int)
	prev := make(map[domain.Sport]*domain.ActivitySummary)
	for i := range activities {
		a := &activities[i]
		sport := domain.SportOf(a.Type)
		if sport == domain.SportOther || a.FTP == nil {
			continue
		}
		if p := prev[sport]; p != nil && p.FTP != nil && *p.FTP != *a.FTP {
			if *a.FTP > *p.FTP {
				flags[p.ActivityID] = 1
			} else {
				flags[p.ActivityID] = -1
			}
		}
		prev[sport] = a
	}
	return flags
}

func sportSelected(sports map[domain.Sport]bool, workoutType string) bool {
	if len(sports) == 0 {
		return true
	}
	return sports[domain.SportOf(workoutType)]
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func rollingMean(series map[time.Time]float64, first time.Time, idx, window int) *float64 {
	sum, n := 0.0, 0
	for j := idx; j >= 0 && j > idx-window; j-- {
		if v, ok := series[first.AddDate(0, 0, j)]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func rollingMeanStd(series map[time.Time]float64, first time.Time, idx, window int) (*float64, *float64) {
	var values []float64
	for j := idx; j >= 0 && j > idx-window; j-- {
		if v, ok := series[first.AddDate(0, 0, j)]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return &mean, nil
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)-1))
	return &mean, &std
}

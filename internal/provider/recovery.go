package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"example.com/training/internal/domain"
)

// RecoveryClient pulls daily sleep and readiness reports from the recovery
// cloud. The cloud finalises a day's reports some hours after wake-up, so a
// pull can succeed transport-wise while the current reports are not yet
// published.
type RecoveryClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewRecoveryClient(baseURL, token string, logger *zap.Logger) *RecoveryClient {
	return &RecoveryClient{
		httpClient: newClient(baseURL, token),
		logger:     logger,
	}
}

type recoveryPayload struct {
	Updated   bool              `json:"updated"`
	Sleep     []sleepReport     `json:"sleep"`
	Readiness []readinessReport `json:"readiness"`
}

type sleepReport struct {
	ReportDate    string  `json:"report_date"`
	RMSSD         float64 `json:"rmssd"`
	RestingHR     float64 `json:"resting_hr"`
	TotalSleepSec int     `json:"total_sleep_sec"`
}

type readinessReport struct {
	ReportDate string `json:"report_date"`
	Score      int    `json:"score"`
}

// DailyReports returns the sleep and readiness reports the provider holds.
// The updated flag is false when the cloud has not yet published the current
// day's reports; callers must not treat that case as success.
func (c *RecoveryClient) DailyReports(ctx context.Context) (sleep []domain.SleepSummary, readiness []domain.ReadinessSummary, updated bool, err error) {
	var response envelope
	_, err = c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/v1/daily")
	if err != nil {
		c.logger.Error("recovery cloud call failed", zap.Error(err))
		return nil, nil, false, fmt.Errorf("recovery cloud: %w", err)
	}
	if response.Status != 0 {
		return nil, nil, false, fmt.Errorf("recovery cloud error: %s (status %d)", response.Msg, response.Status)
	}

	var payload recoveryPayload
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		return nil, nil, false, fmt.Errorf("recovery cloud payload: %w", err)
	}

	if !payload.Updated {
		c.logger.Info("recovery cloud not yet updated")
		return nil, nil, false, nil
	}

	for _, r := range payload.Sleep {
		date, perr := time.Parse("2006-01-02", r.ReportDate)
		if perr != nil {
			return nil, nil, false, fmt.Errorf("recovery cloud sleep date %q: %w", r.ReportDate, perr)
		}
		sleep = append(sleep, domain.SleepSummary{
			ReportDate:    date,
			RMSSD:         r.RMSSD,
			RestingHR:     r.RestingHR,
			TotalSleepSec: r.TotalSleepSec,
		})
	}
	for _, r := range payload.Readiness {
		date, perr := time.Parse("2006-01-02", r.ReportDate)
		if perr != nil {
			return nil, nil, false, fmt.Errorf("recovery cloud readiness date %q: %w", r.ReportDate, perr)
		}
		readiness = append(readiness, domain.ReadinessSummary{
			ReportDate: date,
			Score:      r.Score,
		})
	}

	c.logger.Info("pulled recovery reports",
		zap.Int("sleep", len(sleep)),
		zap.Int("readiness", len(readiness)),
	)
	return sleep, readiness, true, nil
}

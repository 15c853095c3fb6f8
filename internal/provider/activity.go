package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"example.com/training/internal/domain"
)

// ActivityClient pulls workout summaries and raw sample streams from the
// activity cloud.
type ActivityClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewActivityClient(baseURL, token string, logger *zap.Logger) *ActivityClient {
	return &ActivityClient{
		httpClient: newClient(baseURL, token),
		logger:     logger,
	}
}

type activityRecord struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	StartUTC       string   `json:"start_date"`
	StartLocal     string   `json:"start_date_local"`
	ElapsedSec     int      `json:"elapsed_time"`
	DistanceMeters float64  `json:"distance"`
	AverageWatts   *float64 `json:"average_watts"`
}

// Streams holds the per-second sample arrays for one activity. All slices
// share the index space of OffsetSec; absent channels are nil.
type Streams struct {
	OffsetSec  []int     `json:"time"`
	Watts      []float64 `json:"watts"`
	HeartRate  []float64 `json:"heartrate"`
	VelocityMS []float64 `json:"velocity_smooth"`
	Cadence    []float64 `json:"cadence"`
}

// ActivitiesAfter returns every workout that started strictly after the
// cutoff, oldest first.
func (c *ActivityClient) ActivitiesAfter(ctx context.Context, after time.Time) ([]domain.ProviderActivity, error) {
	var response envelope
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("after", strconv.FormatInt(after.Unix(), 10)).
		SetResult(&response).
		Get("/v1/activities")
	if err != nil {
		c.logger.Error("activity cloud call failed", zap.Error(err))
		return nil, fmt.Errorf("activity cloud: %w", err)
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("activity cloud error: %s (status %d)", response.Msg, response.Status)
	}

	var records []activityRecord
	if err := json.Unmarshal(response.Data, &records); err != nil {
		return nil, fmt.Errorf("activity cloud payload: %w", err)
	}

	out := make([]domain.ProviderActivity, 0, len(records))
	for _, r := range records {
		startUTC, err := time.Parse(time.RFC3339, r.StartUTC)
		if err != nil {
			return nil, fmt.Errorf("activity %d start date %q: %w", r.ID, r.StartUTC, err)
		}
		startLocal, err := time.Parse("2006-01-02T15:04:05", r.StartLocal)
		if err != nil {
			return nil, fmt.Errorf("activity %d local start date %q: %w", r.ID, r.StartLocal, err)
		}
		out = append(out, domain.ProviderActivity{
			ID:             r.ID,
			Name:           r.Name,
			Type:           r.Type,
			StartUTC:       startUTC,
			StartLocal:     startLocal,
			ElapsedSec:     r.ElapsedSec,
			DistanceMeters: r.DistanceMeters,
			AverageWatts:   r.AverageWatts,
		})
	}

	c.logger.Info("pulled activities", zap.Int("count", len(out)), zap.Time("after", after))
	return out, nil
}

// ActivityStreams returns the raw sample streams for one activity.
func (c *ActivityClient) ActivityStreams(ctx context.Context, activityID int64) (*Streams, error) {
	var response envelope
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get(fmt.Sprintf("/v1/activities/%d/streams", activityID))
	if err != nil {
		c.logger.Error("activity stream call failed",
			zap.Error(err),
			zap.Int64("activity_id", activityID),
		)
		return nil, fmt.Errorf("activity cloud streams: %w", err)
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("activity cloud streams error: %s (status %d)", response.Msg, response.Status)
	}

	var streams Streams
	if err := json.Unmarshal(response.Data, &streams); err != nil {
		return nil, fmt.Errorf("activity cloud streams payload: %w", err)
	}
	return &streams, nil
}

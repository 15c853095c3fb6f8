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

// WeightClient pulls body-composition entries from the weight cloud.
type WeightClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewWeightClient(baseURL, token string, logger *zap.Logger) *WeightClient {
	return &WeightClient{
		httpClient: newClient(baseURL, token),
		logger:     logger,
	}
}

type weightEntry struct {
	Date       string   `json:"date"`
	WeightKg   float64  `json:"weight_kg"`
	BodyFatPct *float64 `json:"body_fat_pct"`
}

// Measurements returns every body-composition entry the provider holds.
func (c *WeightClient) Measurements(ctx context.Context) ([]domain.BodyComposition, error) {
	var response envelope
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/v1/measurements")
	if err != nil {
		c.logger.Error("weight cloud call failed", zap.Error(err))
		return nil, fmt.Errorf("weight cloud: %w", err)
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("weight cloud error: %s (status %d)", response.Msg, response.Status)
	}

	var entries []weightEntry
	if err := json.Unmarshal(response.Data, &entries); err != nil {
		return nil, fmt.Errorf("weight cloud payload: %w", err)
	}

	out := make([]domain.BodyComposition, 0, len(entries))
	for _, e := range entries {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return nil, fmt.Errorf("weight cloud entry date %q: %w", e.Date, err)
		}
		out = append(out, domain.BodyComposition{
			Date:       date,
			WeightKg:   e.WeightKg,
			BodyFatPct: e.BodyFatPct,
		})
	}

	c.logger.Info("pulled weight measurements", zap.Int("count", len(out)))
	return out, nil
}

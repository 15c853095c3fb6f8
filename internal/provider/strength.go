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

// StrengthClient pulls logged strength-training sets from the strength cloud.
type StrengthClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewStrengthClient(baseURL, token string, logger *zap.Logger) *StrengthClient {
	return &StrengthClient{
		httpClient: newClient(baseURL, token),
		logger:     logger,
	}
}

type strengthSet struct {
	Date     string  `json:"date"`
	Exercise string  `json:"exercise"`
	Reps     int     `json:"reps"`
	WeightKg float64 `json:"weight_kg"`
}

// Sets returns every logged strength set the provider holds.
func (c *StrengthClient) Sets(ctx context.Context) ([]domain.StrengthSet, error) {
	var response envelope
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		Get("/v1/workouts/sets")
	if err != nil {
		c.logger.Error("strength cloud call failed", zap.Error(err))
		return nil, fmt.Errorf("strength cloud: %w", err)
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("strength cloud error: %s (status %d)", response.Msg, response.Status)
	}

	var sets []strengthSet
	if err := json.Unmarshal(response.Data, &sets); err != nil {
		return nil, fmt.Errorf("strength cloud payload: %w", err)
	}

	out := make([]domain.StrengthSet, 0, len(sets))
	for _, s := range sets {
		date, err := time.Parse("2006-01-02", s.Date)
		if err != nil {
			return nil, fmt.Errorf("strength cloud set date %q: %w", s.Date, err)
		}
		out = append(out, domain.StrengthSet{
			Date:     date,
			Exercise: s.Exercise,
			Reps:     s.Reps,
			WeightKg: s.WeightKg,
		})
	}

	c.logger.Info("pulled strength sets", zap.Int("count", len(out)))
	return out, nil
}

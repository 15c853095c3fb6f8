package ingest

import "example.com/training/internal/domain"

// NewActivities filters provider activities down to those not yet stored.
// known must be the full-history id set so the merge stays idempotent across
// arbitrarily long gaps between runs. Input order is preserved.
func NewActivities(provided []domain.ProviderActivity, known map[int64]struct{}) []domain.ProviderActivity {
	out := make([]domain.ProviderActivity, 0, len(provided))
	for _, a := range provided {
		if _, ok := known[a.ID]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

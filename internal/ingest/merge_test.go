package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/training/internal/domain"
)

func TestNewActivitiesFiltersKnownIDs(t *testing.T) {
	provided := []domain.ProviderActivity{{ID: 1}, {ID: 2}, {ID: 3}}
	known := map[int64]struct{}{2: {}}

	fresh := NewActivities(provided, known)
	require.Len(t, fresh, 2)
	require.Equal(t, int64(1), fresh[0].ID)
	require.Equal(t, int64(3), fresh[1].ID)
}

func TestNewActivitiesIsIdempotent(t *testing.T) {
	provided := []domain.ProviderActivity{{ID: 1}, {ID: 2}}
	known := map[int64]struct{}{1: {}}

	first := NewActivities(provided, known)
	second := NewActivities(provided, known)
	require.Equal(t, first, second)
	require.Len(t, known, 1, "merge must not mutate the known set")
}

func TestNewActivitiesAllKnownReturnsEmpty(t *testing.T) {
	provided := []domain.ProviderActivity{{ID: 1}, {ID: 2}}
	known := map[int64]struct{}{1: {}, 2: {}}

	require.Empty(t, NewActivities(provided, known))
}

func TestNewActivitiesPreservesProviderOrder(t *testing.T) {
	provided := []domain.ProviderActivity{{ID: 9}, {ID: 4}, {ID: 7}}

	fresh := NewActivities(provided, nil)
	require.Equal(t, provided, fresh)
}

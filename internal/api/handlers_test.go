package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/training/internal/auth"
	"example.com/training/internal/domain"
	"example.com/training/internal/ingest"
	"example.com/training/internal/store"
)

func authedRequest(method, target string, body string, scopes ...string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	scopeSet := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		scopeSet[s] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "tester",
		AthleteID: 1,
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestLoadFrameSuccess(t *testing.T) {
	tss := 100.0
	reader := &mockReader{
		activities: []domain.ActivitySummary{{
			AthleteID:     1,
			ActivityID:    1,
			Type:          "Run",
			StartDayLocal: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			TSS:           &tss,
		}},
		profile: &domain.AthleteProfile{AthleteID: 1},
	}
	handler := NewHandler(reader, &mockLedger{}, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.loadFrame(rr, authedRequest(http.MethodGet, "/v1/load?include_unconverged=true", "", auth.ScopeTrainingRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp LoadFrameResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Days) != 14 {
		t.Fatalf("expected 14 days (1 actual + 13 forecast) got %d", len(resp.Days))
	}
	if resp.Days[0].Forecast {
		t.Fatalf("first day must not be a forecast row")
	}
	if !resp.Days[1].Forecast {
		t.Fatalf("second day must be a forecast row")
	}
}

func TestLoadFrameHidesUnconvergedByDefault(t *testing.T) {
	tss := 100.0
	reader := &mockReader{
		activities: []domain.ActivitySummary{{
			AthleteID:     1,
			ActivityID:    1,
			Type:          "Run",
			StartDayLocal: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			TSS:           &tss,
		}},
		profile: &domain.AthleteProfile{AthleteID: 1},
	}
	handler := NewHandler(reader, &mockLedger{}, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.loadFrame(rr, authedRequest(http.MethodGet, "/v1/load", "", auth.ScopeTrainingRead))

	var resp LoadFrameResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Days) != 0 {
		t.Fatalf("expected all rows hidden before convergence, got %d", len(resp.Days))
	}
}

func TestLoadFrameNoDataReturnsEmptyFrame(t *testing.T) {
	handler := NewHandler(&mockReader{profile: &domain.AthleteProfile{}}, &mockLedger{}, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.loadFrame(rr, authedRequest(http.MethodGet, "/v1/load", "", auth.ScopeTrainingRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp LoadFrameResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Days) != 0 {
		t.Fatalf("expected empty frame got %d days", len(resp.Days))
	}
}

func TestLoadFrameRejectsUnknownSport(t *testing.T) {
	handler := NewHandler(&mockReader{profile: &domain.AthleteProfile{}}, &mockLedger{}, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.loadFrame(rr, authedRequest(http.MethodGet, "/v1/load?sports=swim", "", auth.ScopeTrainingRead))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestLoadFrameRequiresReadScope(t *testing.T) {
	handler := NewHandler(&mockReader{}, &mockLedger{}, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.loadFrame(rr, authedRequest(http.MethodGet, "/v1/load", ""))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestTriggerRefreshManual(t *testing.T) {
	refresher := &mockRefresher{}
	handler := NewHandler(&mockReader{}, &mockLedger{}, refresher)

	body := `{"truncate": true, "truncate_after": "2024-06-01"}`
	rr := httptest.NewRecorder()
	handler.triggerRefresh(rr, authedRequest(http.MethodPost, "/v1/refresh", body, auth.ScopeTrainingRefresh))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh call got %d", refresher.calls)
	}
	if refresher.lastOpts.Process != "manual" {
		t.Fatalf("expected manual process got %q", refresher.lastOpts.Process)
	}
	if !refresher.lastOpts.Truncate {
		t.Fatalf("expected truncate option set")
	}
	if refresher.lastOpts.TruncateAfter == nil || refresher.lastOpts.TruncateAfter.Format("2006-01-02") != "2024-06-01" {
		t.Fatalf("unexpected truncate_after %v", refresher.lastOpts.TruncateAfter)
	}
}

func TestTriggerRefreshRequiresRefreshScope(t *testing.T) {
	refresher := &mockRefresher{}
	handler := NewHandler(&mockReader{}, &mockLedger{}, refresher)

	rr := httptest.NewRecorder()
	handler.triggerRefresh(rr, authedRequest(http.MethodPost, "/v1/refresh", "", auth.ScopeTrainingRead))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
	if refresher.calls != 0 {
		t.Fatalf("refresh must not run without scope")
	}
}

func TestRefreshStatusPagination(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	ledger := &mockLedger{
		statuses: []domain.RefreshStatus{
			{RunID: "run-2", AthleteID: 1, TimestampUTC: now, WeightStatus: "Successful", Process: "system"},
			{RunID: "run-1", AthleteID: 1, TimestampUTC: now.Add(-time.Hour), WeightStatus: "Successful", Process: "system"},
		},
		next:   &store.Cursor{Timestamp: now.Add(-time.Hour), RunID: "run-1"},
		latest: &now,
	}
	handler := NewHandler(&mockReader{}, ledger, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.refreshStatus(rr, authedRequest(http.MethodGet, "/v1/refresh/status?limit=2", "", auth.ScopeTrainingRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp RefreshStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(resp.Items))
	}
	if resp.Items[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got %s", resp.Items[0].RunID)
	}
	if resp.NextCursor == "" {
		t.Fatalf("expected next cursor")
	}
	if resp.LatestRefresh == nil || !resp.LatestRefresh.Equal(now) {
		t.Fatalf("unexpected latest refresh %v", resp.LatestRefresh)
	}
}

func TestRefreshStatusInvalidCursor(t *testing.T) {
	handler := NewHandler(&mockReader{}, &mockLedger{}, &mockRefresher{})

	rr := httptest.NewRecorder()
	handler.refreshStatus(rr, authedRequest(http.MethodGet, "/v1/refresh/status?cursor=%21bad", "", auth.ScopeTrainingRead))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

type mockReader struct {
	activities []domain.ActivitySummary
	sleep      []domain.SleepSummary
	readiness  []domain.ReadinessSummary
	plan       []domain.HrvPlanStep
	profile    *domain.AthleteProfile
}

func (m *mockReader) ListActivities(ctx context.Context, athleteID int64) ([]domain.ActivitySummary, error) {
	return m.activities, nil
}

func (m *mockReader) ListSleepSummaries(ctx context.Context, athleteID int64) ([]domain.SleepSummary, error) {
	return m.sleep, nil
}

func (m *mockReader) ListReadinessSummaries(ctx context.Context, athleteID int64) ([]domain.ReadinessSummary, error) {
	return m.readiness, nil
}

func (m *mockReader) ListPlanSteps(ctx context.Context, athleteID int64) ([]domain.HrvPlanStep, error) {
	return m.plan, nil
}

func (m *mockReader) AthleteProfile(ctx context.Context, athleteID int64) (*domain.AthleteProfile, error) {
	if m.profile == nil {
		return &domain.AthleteProfile{AthleteID: athleteID}, nil
	}
	return m.profile, nil
}

type mockLedger struct {
	statuses []domain.RefreshStatus
	next     *store.Cursor
	latest   *time.Time
}

func (m *mockLedger) ListRefreshStatusesPage(ctx context.Context, athleteID int64, cursor *store.Cursor, limit int) ([]domain.RefreshStatus, *store.Cursor, error) {
	return m.statuses, m.next, nil
}

func (m *mockLedger) LatestRefresh(ctx context.Context, athleteID int64) (*time.Time, error) {
	return m.latest, nil
}

type mockRefresher struct {
	calls    int
	lastOpts ingest.Options
}

func (m *mockRefresher) Refresh(ctx context.Context, athleteID int64, opts ingest.Options) time.Time {
	m.calls++
	m.lastOpts = opts
	return time.Now().UTC()
}

// Package api exposes HTTP handlers for the training service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/training/internal/auth"
	"example.com/training/internal/domain"
	"example.com/training/internal/ingest"
	"example.com/training/internal/load"
	"example.com/training/internal/store"
)

// Refresher triggers one ingestion run.
type Refresher interface {
	Refresh(ctx context.Context, athleteID int64, opts ingest.Options) time.Time
}

// LedgerReader pages through the refresh ledger.
type LedgerReader interface {
	ListRefreshStatusesPage(ctx context.Context, athleteID int64, cursor *store.Cursor, limit int) ([]domain.RefreshStatus, *store.Cursor, error)
	LatestRefresh(ctx context.Context, athleteID int64) (*time.Time, error)
}

// Handler coordinates HTTP requests with the load engine and the refresher.
type Handler struct {
	reader    load.Reader
	ledger    LedgerReader
	refresher Refresher
}

// NewHandler builds a Handler.
func NewHandler(reader load.Reader, ledger LedgerReader, refresher Refresher) *Handler {
	return &Handler{reader: reader, ledger: ledger, refresher: refresher}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/load", h.loadFrame)
	mux.HandleFunc("/v1/refresh", h.triggerRefresh)
	mux.HandleFunc("/v1/refresh/status", h.refreshStatus)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) loadFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeTrainingRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope training:read required")
		return
	}

	sports, err := parseSports(r.URL.Query().Get("sports"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	frame, err := load.ComputeFromStore(r.Context(), h.reader, claims.AthleteID, sports)
	if err != nil {
		if errors.Is(err, load.ErrNoData) {
			writeJSON(w, http.StatusOK, LoadFrameResponse{Days: []DayView{}})
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	includeAll := r.URL.Query().Get("include_unconverged") == "true"
	writeJSON(w, http.StatusOK, toLoadFrameResponse(frame, includeAll))
}

func (h *Handler) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeTrainingRefresh) {
		writeError(w, http.StatusForbidden, "forbidden", "scope training:refresh required")
		return
	}

	var req RefreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
	}

	var truncateAfter *time.Time
	if req.TruncateAfter != "" {
		parsed, err := time.Parse("2006-01-02", req.TruncateAfter)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "truncate_after must be YYYY-MM-DD")
			return
		}
		truncateAfter = &parsed
	}

	runAt := h.refresher.Refresh(r.Context(), claims.AthleteID, ingest.Options{
		Process:       "manual",
		Truncate:      req.Truncate,
		TruncateAfter: truncateAfter,
	})

	writeJSON(w, http.StatusAccepted, RefreshResponse{RunTimestamp: runAt})
}

func (h *Handler) refreshStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeTrainingRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope training:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := store.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	statuses, next, err := h.ledger.ListRefreshStatusesPage(r.Context(), claims.AthleteID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	latest, err := h.ledger.LatestRefresh(r.Context(), claims.AthleteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]RefreshStatusView, 0, len(statuses))
	for _, s := range statuses {
		items = append(items, toRefreshStatusView(s))
	}

	writeJSON(w, http.StatusOK, RefreshStatusResponse{
		Items:         items,
		NextCursor:    store.EncodeCursor(next),
		LatestRefresh: latest,
	})
}

func parseSports(raw string) (map[domain.Sport]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[domain.Sport]bool)
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "run":
			out[domain.SportRun] = true
		case "ride":
			out[domain.SportRide] = true
		case "other":
			out[domain.SportOther] = true
		default:
			return nil, errors.New("sports must be a comma-separated subset of run, ride, other")
		}
	}
	return out, nil
}

// RefreshRequest is the payload for POST /v1/refresh.
type RefreshRequest struct {
	Truncate      bool   `json:"truncate"`
	TruncateAfter string `json:"truncate_after"`
}

// RefreshResponse returns the run's UTC timestamp.
type RefreshResponse struct {
	RunTimestamp time.Time `json:"run_timestamp"`
}

// DayView is one calendar day of the load model.
type DayView struct {
	Date             string   `json:"date"`
	Stress           float64  `json:"stress"`
	Fitness          float64  `json:"fitness"`
	Fatigue          float64  `json:"fatigue"`
	Form             float64  `json:"form"`
	Zone             string   `json:"zone"`
	RampRate         float64  `json:"ramp_rate"`
	RampRisk         string   `json:"ramp_risk"`
	HighIntensityPct *float64 `json:"high_intensity_pct,omitempty"`
	OverIntensity    bool     `json:"over_intensity"`
	HRV              *float64 `json:"hrv,omitempty"`
	HRVShort         *float64 `json:"hrv_short,omitempty"`
	HRVUpper         *float64 `json:"hrv_upper,omitempty"`
	HRVLower         *float64 `json:"hrv_lower,omitempty"`
	Readiness        int      `json:"readiness"`
	Tier             string   `json:"tier,omitempty"`
	PlanStep         string   `json:"plan_step,omitempty"`
	Forecast         bool     `json:"forecast"`
}

// LoadFrameResponse packages the computed model.
type LoadFrameResponse struct {
	Days     []DayView     `json:"days"`
	FTPFlags map[int64]int `json:"ftp_flags,omitempty"`
}

// RefreshStatusView is one ledger row.
type RefreshStatusView struct {
	RunID          string     `json:"run_id"`
	TimestampUTC   time.Time  `json:"timestamp_utc"`
	WeightStatus   string     `json:"weight_status"`
	StrengthStatus string     `json:"strength_status"`
	RecoveryStatus string     `json:"recovery_status"`
	ActivityStatus string     `json:"activity_status"`
	Truncate       bool       `json:"truncate"`
	TruncateAfter  *time.Time `json:"truncate_after,omitempty"`
	Process        string     `json:"process"`
}

// RefreshStatusResponse packages ledger pages.
type RefreshStatusResponse struct {
	Items         []RefreshStatusView `json:"items"`
	NextCursor    string              `json:"next_cursor,omitempty"`
	LatestRefresh *time.Time          `json:"latest_refresh,omitempty"`
}

func toLoadFrameResponse(frame *load.Frame, includeUnconverged bool) LoadFrameResponse {
	days := make([]DayView, 0, len(frame.Days))
	for _, d := range frame.Days {
		// The first fitness time constant has not converged; hide it from
		// presentation unless explicitly requested.
		if !d.Converged && !includeUnconverged {
			continue
		}
		days = append(days, DayView{
			Date:             d.Date.Format("2006-01-02"),
			Stress:           d.Stress,
			Fitness:          d.Fitness,
			Fatigue:          d.Fatigue,
			Form:             d.Form,
			Zone:             d.Zone,
			RampRate:         d.RampRate,
			RampRisk:         d.RampRisk,
			HighIntensityPct: d.HighIntensityPct,
			OverIntensity:    d.OverIntensity,
			HRV:              d.HRV,
			HRVShort:         d.HRVShort,
			HRVUpper:         d.HRVUpper,
			HRVLower:         d.HRVLower,
			Readiness:        d.Readiness,
			Tier:             d.Tier,
			PlanStep:         d.PlanStep,
			Forecast:         d.Forecast,
		})
	}
	return LoadFrameResponse{Days: days, FTPFlags: frame.FTPFlags}
}

func toRefreshStatusView(s domain.RefreshStatus) RefreshStatusView {
	return RefreshStatusView{
		RunID:          s.RunID,
		TimestampUTC:   s.TimestampUTC,
		WeightStatus:   s.WeightStatus,
		StrengthStatus: s.StrengthStatus,
		RecoveryStatus: s.RecoveryStatus,
		ActivityStatus: s.ActivityStatus,
		Truncate:       s.Truncate,
		TruncateAfter:  s.TruncateAfter,
		Process:        s.Process,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

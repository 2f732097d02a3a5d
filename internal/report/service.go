// Package report generates research reports: deterministic selection of the
// study corpus, statistics, settlement, and report persistence.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/apperr"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/events"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/metrics"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/settle"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/store"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/validate"
)

// defaultRecentLimit caps GET /reports/recent when no limit is given.
const defaultRecentLimit = 10

// maxRecentLimit is the hard ceiling for the recent-reports query.
const maxRecentLimit = 100

// Service generates and serves reports.
type Service struct {
	store        store.Store
	orchestrator *settle.Orchestrator
	hub          *events.Hub // optional
	now          func() time.Time
}

// NewService creates a report service. Pass nil for hub if event
// broadcasting is not needed.
func NewService(st store.Store, orch *settle.Orchestrator, hub *events.Hub) *Service {
	return &Service{store: st, orchestrator: orch, hub: hub, now: time.Now}
}

// Generate selects studies for the filters, settles payment, and persists
// the report. The report id is minted up front so a retried settlement
// keys to the same report.
func (s *Service) Generate(ctx context.Context, requesterID string, filters map[string]string) (*model.ReportRecord, error) {
	if err := validate.OwnerID(requesterID); err != nil {
		return nil, err
	}
	if filters == nil {
		filters = map[string]string{}
	}
	if err := validate.Filters(filters); err != nil {
		return nil, err
	}

	corpus, err := s.store.ListStudies(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	criteria := Interpret(filters)
	selection := Select(criteria, corpus)

	keys := make([]model.ContentKey, 0, len(selection))
	for _, rec := range selection {
		keys = append(keys, rec.ContentKey)
	}

	reportID := "REPORT_" + uuid.New().String()

	outcome, err := s.orchestrator.Settle(ctx, requesterID, reportID, keys)
	if err != nil {
		return nil, err
	}

	rec := &model.ReportRecord{
		ReportID:            reportID,
		RequesterID:         requesterID,
		Filters:             filters,
		SelectedContentKeys: keys,
		Statistics:          buildStatistics(selection, criteria.DateRange),
		Charts:              buildCharts(selection),
		Payment:             outcome,
		GeneratedAt:         s.now().UTC(),
	}

	if err := s.store.SaveReport(ctx, rec); err != nil {
		return nil, apperr.Internal(err)
	}

	metrics.ReportsGenerated.Inc()
	slog.Info("report generated",
		"report_id", reportID,
		"requester", requesterID,
		"studies", len(keys),
		"total_usdc", outcome.TotalAmount.String(),
		"payment_complete", outcome.Complete,
	)

	if s.hub != nil {
		s.hub.Broadcast(events.Message{
			Type:        events.TypeReportGenerated,
			ReportID:    reportID,
			Studies:     len(keys),
			TotalAmount: outcome.TotalAmount.String(),
		})
	}

	return rec, nil
}

// --- HTTP handlers ---

// GenerateRequest is the JSON body for POST /api/v1/reports/generate.
type GenerateRequest struct {
	RequesterID string            `json:"requester_id"`
	Filters     map[string]string `json:"filters"`
}

// HandleGenerate handles POST /api/v1/reports/generate.
func (s *Service) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	rec, err := s.Generate(r.Context(), req.RequesterID, req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

// HandleGetByID handles GET /api/v1/reports/{reportID}.
func (s *Service) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")

	rec, err := s.store.GetReport(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			writeError(w, apperr.NotFound("report"))
			return
		}
		writeError(w, apperr.Internal(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// HandleListByRequester handles GET /api/v1/reports?requester={ownerID}.
func (s *Service) HandleListByRequester(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("requester")
	if err := validate.OwnerID(requester); err != nil {
		writeError(w, err)
		return
	}

	records, err := s.store.ListReportsByRequester(r.Context(), requester)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if records == nil {
		records = []model.ReportRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// HandleRecent handles GET /api/v1/reports/recent?limit=N.
func (s *Service) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, apperr.Validation("limit must be a positive integer"))
			return
		}
		if n > maxRecentLimit {
			n = maxRecentLimit
		}
		limit = n
	}

	records, err := s.store.ListRecentReports(r.Context(), limit)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if records == nil {
		records = []model.ReportRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

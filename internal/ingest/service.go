// Package ingest runs the document-intake pipeline: redact, extract,
// fingerprint, register atomically, attest, and anchor on the ledger.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/apperr"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/events"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/fingerprint"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ledger"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/metrics"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/store"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/validate"
)

// Service coordinates document intake.
type Service struct {
	studies   store.StudyStore
	gateway   ledger.Gateway
	redactor  Redactor
	extractor Extractor
	hub       *events.Hub // optional
	now       func() time.Time
}

// NewService creates an ingestion coordinator. Pass nil for hub if event
// broadcasting is not needed.
func NewService(studies store.StudyStore, gw ledger.Gateway, red Redactor, ext Extractor, hub *events.Hub) *Service {
	return &Service{
		studies:   studies,
		gateway:   gw,
		redactor:  red,
		extractor: ext,
		hub:       hub,
		now:       time.Now,
	}
}

// Result is the outcome of a successful (or duplicate) intake.
type Result struct {
	Study         *model.StudyRecord `json:"study,omitempty"`
	ContentKey    model.ContentKey   `json:"content_key"`
	LedgerTxRef   string             `json:"ledger_tx_ref,omitempty"`
	LedgerWarning string             `json:"ledger_warning,omitempty"`
}

// Ingest runs the intake pipeline for one document. On a duplicate content
// key it returns a Result carrying the key alongside the conflict error, so
// callers can report the same key on both attempts.
func (s *Service) Ingest(ctx context.Context, ownerID string, raw []byte) (*Result, error) {
	if err := validate.OwnerID(ownerID); err != nil {
		return nil, err
	}
	if err := validate.UploadSize(len(raw)); err != nil {
		return nil, err
	}

	redacted, err := s.redactor.Redact(raw)
	if err != nil {
		return nil, apperr.Validation("redaction failed: %v", err)
	}

	labID, biomarkers, err := s.extractor.Extract(redacted)
	if err != nil {
		return nil, apperr.Validation("extraction failed: %v", err)
	}

	key := fingerprint.ContentKey(len(redacted), labID, biomarkers)
	registeredAt := s.now().UTC()

	rec := &model.StudyRecord{
		ContentKey:     key,
		OwnerID:        ownerID,
		LabID:          labID,
		Biomarkers:     biomarkers,
		AttestationKey: fingerprint.AttestationKey(key, registeredAt),
		RegisteredAt:   registeredAt,
	}

	// Single atomic insert-or-reject; a concurrent identical upload loses
	// here, not in a separate existence check.
	if err := s.studies.InsertStudy(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateStudy) {
			metrics.DuplicateRejections.Inc()
			return &Result{ContentKey: key},
				apperr.Conflict("study already registered: %s", key.String())
		}
		return nil, apperr.Internal(err)
	}

	result := &Result{Study: rec, ContentKey: key}

	// Anchoring on the ledger is a side effect, not a precondition: the
	// local record is the source of truth for report selection, so a
	// ledger failure is surfaced as a warning, never as overall failure.
	res := s.gateway.RegisterStudy(ctx, ownerID, key, registeredAt, labID, rec.AttestationKey)
	if res.OK {
		result.LedgerTxRef = res.TxRef
	} else {
		result.LedgerWarning = res.Err
		metrics.LedgerCallFailures.Inc()
		slog.Warn("ledger anchoring failed, study kept locally",
			"content_key", key.Short(), "err", res.Err)
	}

	metrics.StudiesIngested.Inc()
	slog.Info("study registered",
		"content_key", key.Short(),
		"lab", labID,
		"biomarkers", len(biomarkers),
		"tx_ref", result.LedgerTxRef,
	)

	if s.hub != nil {
		s.hub.Broadcast(events.Message{
			Type:       events.TypeStudyRegistered,
			ContentKey: key.String(),
			LabID:      labID,
		})
	}

	return result, nil
}

// --- HTTP handlers ---

// UploadRequest is the JSON body for POST /api/v1/studies.
// Document is base64-encoded raw bytes.
type UploadRequest struct {
	OwnerID  string `json:"owner_id"`
	Document []byte `json:"document"`
}

// HandleUpload handles POST /api/v1/studies.
func (s *Service) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, validate.MaxUploadBytes*2)).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	result, err := s.Ingest(r.Context(), req.OwnerID, req.Document)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apperr.Status(err))
		resp := map[string]string{"error": err.Error()}
		if result != nil {
			// Duplicate: report the same content key as the first attempt.
			resp["content_key"] = result.ContentKey.String()
		}
		json.NewEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// HandleListByOwner handles GET /api/v1/studies/{ownerID}.
// Returns anonymous metadata only: no owner identity in the payload.
func (s *Service) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerID")
	if err := validate.OwnerID(owner); err != nil {
		writeError(w, err)
		return
	}

	records, err := s.studies.ListStudiesByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	metas := make([]model.StudyMeta, 0, len(records))
	for _, rec := range records {
		metas = append(metas, rec.Meta())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metas)
}

// HandleLedgerStudies handles GET /api/v1/studies/ledger/{ownerID}.
// Passes through to the ledger's own registry view.
func (s *Service) HandleLedgerStudies(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerID")
	if err := validate.OwnerID(owner); err != nil {
		writeError(w, err)
		return
	}

	anchors, err := s.gateway.QueryStudiesByOwner(r.Context(), owner)
	if err != nil {
		metrics.LedgerCallFailures.Inc()
		slog.Error("ledger study query failed", "owner", owner, "err", err)
		writeError(w, apperr.Internal(err))
		return
	}
	if anchors == nil {
		anchors = []model.StudyAnchor{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(anchors)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

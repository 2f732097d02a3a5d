package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/credit"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ingest"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ledger"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/report"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/settle"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/store"
)

const centralDoc = `Laboratorio Central
Nombre: Juan Pérez
Glucosa: 95 mg/dL
`

const questDoc = `Quest Diagnostics
Patient: Jane Doe
HDL: 45 mg/dL
Triglycerides: 150 mg/dL
`

type testEnv struct {
	gateway *ledger.StubGateway
	store   *store.MemoryStore
	credits *credit.Service
	router  chi.Router
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gw := ledger.NewStubGateway()
	ms := store.NewMemoryStore()
	credits := credit.NewService(gw, credit.NewMemoryCache(credit.DefaultTTL))
	orch := settle.NewOrchestrator(credits, gw, ms, "TREASURY", decimal.Zero)
	ingestSvc := ingest.NewService(ms, gw, ingest.LineRedactor{}, ingest.TokenExtractor{}, nil)
	reportSvc := report.NewService(ms, orch, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/studies", ingestSvc.HandleUpload)
	r.Post("/api/v1/credits/purchase", credits.HandlePurchase)
	r.Get("/api/v1/credits/balance/{ownerID}", credits.HandleBalance)
	r.Post("/api/v1/reports/generate", reportSvc.HandleGenerate)
	r.Get("/api/v1/reports/recent", reportSvc.HandleRecent)
	r.Get("/api/v1/reports/{reportID}", reportSvc.HandleGetByID)
	r.Get("/api/v1/reports", reportSvc.HandleListByRequester)

	return &testEnv{gateway: gw, store: ms, credits: credits, router: r}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, owner, doc string) model.ContentKey {
	t.Helper()
	w := e.post(t, "/api/v1/studies", ingest.UploadRequest{OwnerID: owner, Document: []byte(doc)})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	var result ingest.Result
	json.Unmarshal(w.Body.Bytes(), &result)
	return result.ContentKey
}

// The full researcher flow: upload, duplicate rejection, purchase, report,
// settlement, and the resulting balances.
func TestReportFlow_EndToEnd(t *testing.T) {
	env := newEnv(t)

	k1 := env.upload(t, "contributor-1", centralDoc)
	env.upload(t, "contributor-2", questDoc)

	// Re-uploading the first document yields 409 with the same key.
	w := env.post(t, "/api/v1/studies", ingest.UploadRequest{OwnerID: "contributor-1", Document: []byte(centralDoc)})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", w.Code)
	}
	var dup map[string]string
	json.Unmarshal(w.Body.Bytes(), &dup)
	if dup["content_key"] != k1.String() {
		t.Errorf("duplicate should report key %s, got %s", k1, dup["content_key"])
	}

	// Researcher buys one credit.
	w = env.post(t, "/api/v1/credits/purchase", credit.PurchaseRequest{OwnerID: "researcher", Amount: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("purchase failed: %d %s", w.Code, w.Body.String())
	}

	w = env.get(t, "/api/v1/credits/balance/researcher")
	var balance map[string]int64
	json.Unmarshal(w.Body.Bytes(), &balance)
	if balance["balance"] != 1 {
		t.Fatalf("expected balance 1, got %d", balance["balance"])
	}

	// Generate a report filtered to the central lab: selects exactly k1.
	w = env.post(t, "/api/v1/reports/generate", report.GenerateRequest{
		RequesterID: "researcher",
		Filters:     map[string]string{"laboratories": "CENTRAL"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("generate failed: %d %s", w.Code, w.Body.String())
	}

	var rec model.ReportRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rec.SelectedContentKeys) != 1 || rec.SelectedContentKeys[0] != k1 {
		t.Errorf("expected selection [%s], got %v", k1.Short(), rec.SelectedContentKeys)
	}
	if !rec.Payment.CreditConsumed || !rec.Payment.Complete {
		t.Errorf("unexpected payment outcome: %+v", rec.Payment)
	}
	if !rec.Payment.TotalAmount.Equal(settle.DefaultRateUSDC) {
		t.Errorf("one study pays the per-study rate, got %s", rec.Payment.TotalAmount)
	}
	if rec.Statistics.TotalStudies != 1 {
		t.Errorf("statistics should count 1 study, got %d", rec.Statistics.TotalStudies)
	}
	if len(rec.Charts) != 2 {
		t.Errorf("expected bar and pie charts, got %d", len(rec.Charts))
	}

	// The credit is gone; the cache was invalidated by the debit.
	w = env.get(t, "/api/v1/credits/balance/researcher")
	json.Unmarshal(w.Body.Bytes(), &balance)
	if balance["balance"] != 0 {
		t.Errorf("expected balance 0 after generation, got %d", balance["balance"])
	}

	// The report is retrievable by id and appears in the recent list.
	w = env.get(t, "/api/v1/reports/"+rec.ReportID)
	if w.Code != http.StatusOK {
		t.Fatalf("get report: %d", w.Code)
	}
	w = env.get(t, "/api/v1/reports/recent")
	var recent []model.ReportRecord
	json.Unmarshal(w.Body.Bytes(), &recent)
	if len(recent) != 1 || recent[0].ReportID != rec.ReportID {
		t.Errorf("recent list should hold the new report, got %v", recent)
	}
}

func TestGenerate_WithoutCreditIs402(t *testing.T) {
	env := newEnv(t)
	env.upload(t, "contributor-1", centralDoc)

	w := env.post(t, "/api/v1/reports/generate", report.GenerateRequest{
		RequesterID: "researcher",
		Filters:     map[string]string{"laboratories": "CENTRAL"},
	})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}

	// No report must exist after a failed settlement.
	recent := env.get(t, "/api/v1/reports/recent")
	var records []model.ReportRecord
	json.Unmarshal(recent.Body.Bytes(), &records)
	if len(records) != 0 {
		t.Errorf("failed generation must not persist a report, got %d", len(records))
	}
}

func TestGenerate_UnknownFilterIs400(t *testing.T) {
	env := newEnv(t)

	w := env.post(t, "/api/v1/reports/generate", report.GenerateRequest{
		RequesterID: "researcher",
		Filters:     map[string]string{"laboratory": "CENTRAL"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown filter should fail fast with 400, got %d", w.Code)
	}
}

func TestGenerate_EmptySelectionIs400(t *testing.T) {
	env := newEnv(t)
	env.upload(t, "contributor-1", centralDoc)
	env.post(t, "/api/v1/credits/purchase", credit.PurchaseRequest{OwnerID: "researcher", Amount: 1})

	w := env.post(t, "/api/v1/reports/generate", report.GenerateRequest{
		RequesterID: "researcher",
		Filters:     map[string]string{"laboratories": "NO_SUCH_LAB"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty selection should be 400, got %d: %s", w.Code, w.Body.String())
	}

	// The credit survives: nothing was settled.
	balance := env.get(t, "/api/v1/credits/balance/researcher")
	var b map[string]int64
	json.Unmarshal(balance.Body.Bytes(), &b)
	if b["balance"] != 1 {
		t.Errorf("credit must survive an empty selection, got %d", b["balance"])
	}
}

func TestGetReport_UnknownIdIs404(t *testing.T) {
	env := newEnv(t)

	w := env.get(t, "/api/v1/reports/REPORT_missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListReports_ByRequester(t *testing.T) {
	env := newEnv(t)
	env.upload(t, "contributor-1", centralDoc)
	env.post(t, "/api/v1/credits/purchase", credit.PurchaseRequest{OwnerID: "researcher", Amount: 2})

	for i := 0; i < 2; i++ {
		w := env.post(t, "/api/v1/reports/generate", report.GenerateRequest{
			RequesterID: "researcher",
			Filters:     map[string]string{"laboratories": "CENTRAL"},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("generate %d failed: %d %s", i, w.Code, w.Body.String())
		}
	}

	w := env.get(t, "/api/v1/reports?requester=researcher")
	var records []model.ReportRecord
	json.Unmarshal(w.Body.Bytes(), &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(records))
	}

	w = env.get(t, "/api/v1/reports?requester=nobody")
	json.Unmarshal(w.Body.Bytes(), &records)
	if len(records) != 0 {
		t.Errorf("unknown requester should have no reports, got %d", len(records))
	}
}

func TestHandleRecent_RejectsBadLimit(t *testing.T) {
	env := newEnv(t)

	if w := env.get(t, "/api/v1/reports/recent?limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric limit, got %d", w.Code)
	}
	if w := env.get(t, "/api/v1/reports/recent?limit=-1"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative limit, got %d", w.Code)
	}
}

// Generation is denied before any side effect when the requester id is bad,
// keeping the flow free of partially settled state.
func TestGenerate_InvalidRequester(t *testing.T) {
	env := newEnv(t)

	svc := report.NewService(env.store, settle.NewOrchestrator(env.credits, env.gateway, env.store, "TREASURY", decimal.Zero), nil)
	if _, err := svc.Generate(context.Background(), "", nil); err == nil {
		t.Error("empty requester should fail validation")
	}
}

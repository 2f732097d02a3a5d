package ingest_test

import (
	"strings"
	"testing"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ingest"
)

const sampleDoc = `Laboratorio Central
Nombre: Juan Pérez
Fecha de nacimiento: 1980-01-01
Glucosa: 95 mg/dL
Colesterol Total: 180 mg/dL
HDL: 45 mg/dL
`

func TestLineRedactor_DropsPIILines(t *testing.T) {
	redacted, err := ingest.LineRedactor{}.Redact([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("redact: %v", err)
	}

	text := string(redacted)
	if strings.Contains(text, "Juan Pérez") {
		t.Error("patient name survived redaction")
	}
	if strings.Contains(text, "1980-01-01") {
		t.Error("date of birth survived redaction")
	}
	if !strings.Contains(text, "Glucosa: 95") {
		t.Error("biomarker line should survive redaction")
	}
	if !strings.Contains(text, "Laboratorio Central") {
		t.Error("lab line should survive redaction")
	}
}

func TestLineRedactor_Deterministic(t *testing.T) {
	a, _ := ingest.LineRedactor{}.Redact([]byte(sampleDoc))
	b, _ := ingest.LineRedactor{}.Redact([]byte(sampleDoc))
	if string(a) != string(b) {
		t.Error("redaction must be byte-for-byte reproducible")
	}
}

func TestTokenExtractor_SpanishDocument(t *testing.T) {
	redacted, _ := ingest.LineRedactor{}.Redact([]byte(sampleDoc))

	labID, biomarkers, err := ingest.TokenExtractor{}.Extract(redacted)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if labID != "LAB_CENTRAL_001" {
		t.Errorf("expected LAB_CENTRAL_001, got %s", labID)
	}

	want := []string{
		"Glucose: 95 mg/dL",
		"Total Cholesterol: 180 mg/dL",
		"HDL: 45 mg/dL",
	}
	if len(biomarkers) != len(want) {
		t.Fatalf("expected %d biomarkers, got %v", len(want), biomarkers)
	}
	for i := range want {
		if biomarkers[i] != want[i] {
			t.Errorf("biomarker %d: expected %q, got %q", i, want[i], biomarkers[i])
		}
	}
}

func TestTokenExtractor_EnglishDocument(t *testing.T) {
	doc := "Quest Diagnostics\nGlucose: 102.5\nTriglycerides: 150 mg/dL\nHemoglobin: 14 g/dL\n"

	labID, biomarkers, err := ingest.TokenExtractor{}.Extract([]byte(doc))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if labID != "LAB_QUEST_002" {
		t.Errorf("expected LAB_QUEST_002, got %s", labID)
	}
	// Missing unit defaults to mg/dL.
	if biomarkers[0] != "Glucose: 102.5 mg/dL" {
		t.Errorf("unexpected first biomarker: %q", biomarkers[0])
	}
	if biomarkers[len(biomarkers)-1] != "Hemoglobin: 14 g/dL" {
		t.Errorf("unexpected hemoglobin entry: %q", biomarkers[len(biomarkers)-1])
	}
}

func TestTokenExtractor_UnknownLab(t *testing.T) {
	_, _, err := ingest.TokenExtractor{}.Extract([]byte("Some Clinic\nGlucose: 95 mg/dL\n"))
	if err == nil {
		t.Error("document without a recognized lab should fail extraction")
	}
}

func TestTokenExtractor_NoBiomarkers(t *testing.T) {
	_, _, err := ingest.TokenExtractor{}.Extract([]byte("Laboratorio Central\nno measurements here\n"))
	if err == nil {
		t.Error("document without biomarkers should fail extraction")
	}
}

package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// Redactor removes personally identifying content from a raw document.
// The real implementation runs inside the confidential VM; this contract is
// all the pipeline depends on.
type Redactor interface {
	Redact(raw []byte) ([]byte, error)
}

// Extractor derives the lab identifier and the ordered biomarker list from
// a redacted document.
type Extractor interface {
	Extract(redacted []byte) (labID string, biomarkers []string, err error)
}

// LineRedactor removes whole lines that carry patient-identifying fields.
// Deterministic: the same input always yields the same output bytes, which
// the content key depends on.
type LineRedactor struct{}

var piiLineRegex = regexp.MustCompile(
	`(?i)^\s*(name|nombre|patient|paciente|dob|date of birth|fecha de nacimiento|address|direcci[oó]n|phone|tel[eé]fono|email)\b`,
)

func (LineRedactor) Redact(raw []byte) ([]byte, error) {
	lines := strings.Split(string(raw), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if piiLineRegex.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return []byte(strings.Join(kept, "\n")), nil
}

// TokenExtractor scans a redacted document for known laboratory names and
// biomarker measurements. Output order follows the fixed tables below so
// identical documents always produce identical feature lists.
type TokenExtractor struct{}

// labTable maps document tokens to canonical lab identifiers.
var labTable = []struct {
	token string
	labID string
}{
	{"laboratorio central", "LAB_CENTRAL_001"},
	{"central", "LAB_CENTRAL_001"},
	{"quest", "LAB_QUEST_002"},
	{"bioreference", "LAB_BIO_REF_003"},
	{"labcorp", "LAB_LABCORP_004"},
}

// biomarkerTable lists recognized biomarkers. Each entry matches either the
// English or Spanish spelling.
var biomarkerTable = []struct {
	canonical string
	pattern   *regexp.Regexp
}{
	{"Glucose", regexp.MustCompile(`(?i)(glucose|glucosa)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*(mg/dL)?`)},
	{"Total Cholesterol", regexp.MustCompile(`(?i)(total cholesterol|colesterol total)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*(mg/dL)?`)},
	{"HDL", regexp.MustCompile(`(?i)(hdl)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*(mg/dL)?`)},
	{"LDL", regexp.MustCompile(`(?i)(ldl)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*(mg/dL)?`)},
	{"Triglycerides", regexp.MustCompile(`(?i)(triglycerides|triglic[eé]ridos)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*(mg/dL)?`)},
	{"Hemoglobin", regexp.MustCompile(`(?i)(hemoglobin|hemoglobina)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*(g/dL)?`)},
}

func (TokenExtractor) Extract(redacted []byte) (string, []string, error) {
	text := string(redacted)
	lower := strings.ToLower(text)

	labID := ""
	for _, entry := range labTable {
		if strings.Contains(lower, entry.token) {
			labID = entry.labID
			break
		}
	}
	if labID == "" {
		return "", nil, fmt.Errorf("no recognized laboratory identifier")
	}

	var biomarkers []string
	for _, entry := range biomarkerTable {
		m := entry.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		unit := m[3]
		if unit == "" {
			unit = "mg/dL"
		}
		biomarkers = append(biomarkers, fmt.Sprintf("%s: %s %s", entry.canonical, m[2], unit))
	}
	if len(biomarkers) == 0 {
		return "", nil, fmt.Errorf("no recognized biomarkers")
	}
	return labID, biomarkers, nil
}

package report

import (
	"strings"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// Criteria is the interpreted form of the researcher's filter map.
type Criteria struct {
	Laboratories []string
	Biomarkers   []string
	DateRange    string
}

// descriptionKeywords maps free-text terms (English and Spanish) to
// canonical biomarker tokens. Fixed table, no language interpretation.
var descriptionKeywords = []struct {
	term  string
	token string
}{
	{"glucose", "Glucose"},
	{"glucosa", "Glucose"},
	{"cholesterol", "Cholesterol"},
	{"colesterol", "Cholesterol"},
	{"hdl", "HDL"},
	{"ldl", "LDL"},
	{"triglycerides", "Triglycerides"},
	{"triglicéridos", "Triglycerides"},
	{"hemoglobin", "Hemoglobin"},
	{"hemoglobina", "Hemoglobin"},
}

// Interpret parses the raw filter map into selection criteria. The
// description filter contributes extra biomarker terms via the keyword
// table; it never excludes on its own axis.
func Interpret(filters map[string]string) Criteria {
	var c Criteria

	if labs := filters["laboratories"]; labs != "" {
		for _, lab := range strings.Split(labs, ",") {
			if lab = strings.TrimSpace(lab); lab != "" {
				c.Laboratories = append(c.Laboratories, lab)
			}
		}
	}
	if bms := filters["biomarkers"]; bms != "" {
		for _, bm := range strings.Split(bms, ",") {
			if bm = strings.TrimSpace(bm); bm != "" {
				c.Biomarkers = append(c.Biomarkers, bm)
			}
		}
	}
	if desc := strings.ToLower(filters["description"]); desc != "" {
		for _, kw := range descriptionKeywords {
			if strings.Contains(desc, kw.term) {
				c.Biomarkers = append(c.Biomarkers, kw.token)
			}
		}
	}

	c.DateRange = filters["date_range"]
	if c.DateRange == "" {
		c.DateRange = "last 6 months"
	}
	return c
}

// Select filters the corpus conjunctively against the criteria. An absent
// filter excludes nothing on that axis. Corpus order is preserved so
// statistics and payment lists are reproducible.
func Select(c Criteria, corpus []model.StudyRecord) []model.StudyRecord {
	var out []model.StudyRecord
	for _, rec := range corpus {
		if len(c.Laboratories) > 0 && !labMatches(rec.LabID, c.Laboratories) {
			continue
		}
		if len(c.Biomarkers) > 0 && !biomarkerMatches(rec.Biomarkers, c.Biomarkers) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// labMatches reports whether the record's lab id contains any filter term,
// case-insensitively.
func labMatches(labID string, filters []string) bool {
	lab := strings.ToLower(labID)
	for _, f := range filters {
		if strings.Contains(lab, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// biomarkerMatches reports whether any biomarker contains any filter term
// as a case-insensitive substring.
func biomarkerMatches(biomarkers, filters []string) bool {
	for _, bm := range biomarkers {
		lower := strings.ToLower(bm)
		for _, f := range filters {
			if strings.Contains(lower, strings.ToLower(f)) {
				return true
			}
		}
	}
	return false
}

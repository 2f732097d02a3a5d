package validate_test

import (
	"strings"
	"testing"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/validate"
)

func TestOwnerID(t *testing.T) {
	valid := []string{
		"GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", // Stellar address form
		"researcher",
		"contributor-1",
		"user_42",
	}
	for _, id := range valid {
		if err := validate.OwnerID(id); err != nil {
			t.Errorf("%q should be accepted: %v", id, err)
		}
	}

	invalid := []string{
		"",
		"has spaces",
		"éclair",
		strings.Repeat("a", 65),
	}
	for _, id := range invalid {
		if err := validate.OwnerID(id); err == nil {
			t.Errorf("%q should be rejected", id)
		}
	}
}

func TestUploadSize(t *testing.T) {
	if err := validate.UploadSize(0); err == nil {
		t.Error("empty document should be rejected")
	}
	if err := validate.UploadSize(1024); err != nil {
		t.Errorf("small document should pass: %v", err)
	}
	if err := validate.UploadSize(validate.MaxUploadBytes); err != nil {
		t.Errorf("document at the limit should pass: %v", err)
	}
	if err := validate.UploadSize(validate.MaxUploadBytes + 1); err == nil {
		t.Error("oversized document should be rejected")
	}
}

func TestFilters(t *testing.T) {
	ok := map[string]string{
		"laboratories": "LAB_CENTRAL_001",
		"biomarkers":   "Glucose",
		"description":  "glucose study",
		"date_range":   "last 6 months",
	}
	if err := validate.Filters(ok); err != nil {
		t.Errorf("known filters should pass: %v", err)
	}
	if err := validate.Filters(nil); err != nil {
		t.Errorf("nil filters should pass: %v", err)
	}
	if err := validate.Filters(map[string]string{"laboratory": "x"}); err == nil {
		t.Error("unknown filter name should be rejected")
	}
}

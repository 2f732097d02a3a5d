// Package model defines the core domain types shared across the BioChain
// backend. All USDC amounts use shopspring/decimal — never float64 for money.
package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ContentKey is a 32-byte digest identifying the derived content of one
// study document. Two identical documents always produce the same key.
type ContentKey [32]byte

// String returns the lowercase hex encoding of the key.
func (k ContentKey) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns a truncated hex prefix for log lines.
func (k ContentKey) Short() string {
	return hex.EncodeToString(k[:8]) + "..."
}

// ParseContentKey decodes a 64-character hex string (optional 0x prefix).
func ParseContentKey(s string) (ContentKey, error) {
	var k ContentKey
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("content key: %w", err)
	}
	if len(raw) != 32 {
		return k, fmt.Errorf("content key: expected 32 bytes, got %d", len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// MarshalJSON encodes the key as a hex string.
func (k ContentKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the key from a hex string.
func (k *ContentKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseContentKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// StudyRecord is an immutable provenance record created on successful
// document intake. Once created, these are never modified or deleted.
type StudyRecord struct {
	ContentKey     ContentKey `json:"content_key"`
	OwnerID        string     `json:"owner_id"`
	LabID          string     `json:"lab_id"`
	Biomarkers     []string   `json:"biomarkers"`
	AttestationKey ContentKey `json:"attestation_key"`
	RegisteredAt   time.Time  `json:"registered_at"`
}

// StudyMeta is the anonymous view of a StudyRecord returned to callers:
// everything except the owner identity.
type StudyMeta struct {
	ContentKey     ContentKey `json:"content_key"`
	LabID          string     `json:"lab_id"`
	Biomarkers     []string   `json:"biomarkers"`
	AttestationKey ContentKey `json:"attestation_key"`
	RegisteredAt   time.Time  `json:"registered_at"`
}

// Meta returns the anonymous metadata view of the record.
func (s StudyRecord) Meta() StudyMeta {
	return StudyMeta{
		ContentKey:     s.ContentKey,
		LabID:          s.LabID,
		Biomarkers:     s.Biomarkers,
		AttestationKey: s.AttestationKey,
		RegisteredAt:   s.RegisteredAt,
	}
}

// Payment is one contributor payout within a settlement batch.
type Payment struct {
	Contributor string          `json:"contributor"`
	ContentKey  ContentKey      `json:"content_key"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentOutcome records how the settlement of one report went.
// Complete is false when any ledger-side call (credit transfer or
// contributor payout) failed; the report is still created.
type PaymentOutcome struct {
	CreditConsumed   bool            `json:"credit_consumed"`
	ContributorsPaid int             `json:"contributors_paid"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	LedgerTxRefs     []string        `json:"ledger_tx_refs"`
	Complete         bool            `json:"complete"`
}

// ReportStatistics summarizes the studies selected for a report.
type ReportStatistics struct {
	TotalStudies    int      `json:"total_studies"`
	TotalBiomarkers int      `json:"total_biomarkers"`
	Laboratories    []string `json:"laboratories"`
	DateRange       string   `json:"date_range"`
}

// Chart is a pre-shaped chart descriptor rendered by the frontend.
type Chart struct {
	Type   string   `json:"type"` // "bar" or "pie"
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// ReportRecord is created once, after credit consumption and payout attempts
// have both resolved. Immutable thereafter.
type ReportRecord struct {
	ReportID            string            `json:"report_id"`
	RequesterID         string            `json:"requester_id"`
	Filters             map[string]string `json:"filters"`
	SelectedContentKeys []ContentKey      `json:"selected_content_keys"`
	Statistics          ReportStatistics  `json:"statistics"`
	Charts              []Chart           `json:"charts"`
	Payment             PaymentOutcome    `json:"payment"`
	GeneratedAt         time.Time         `json:"generated_at"`
}

// StudyAnchor is one on-ledger study registration, as reported by the
// ledger's own registry.
type StudyAnchor struct {
	ContentKey     ContentKey `json:"content_key"`
	RegisteredAt   time.Time  `json:"registered_at"`
	LabID          string     `json:"lab_id"`
	AttestationKey ContentKey `json:"attestation_key"`
}

// PaymentEvent is one on-ledger contributor payout event.
type PaymentEvent struct {
	ReportID   string          `json:"report_id"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	ContentKey *ContentKey     `json:"content_key,omitempty"`
}

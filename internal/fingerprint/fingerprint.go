// Package fingerprint derives the content-addressing digests used to
// deduplicate study documents and to attest their registration time.
package fingerprint

import (
	"crypto/sha256"
	"strconv"
	"strings"
	"time"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// ContentKey computes the deterministic content key for a document.
// The preimage is the lab identifier, the ordered biomarker list, and the
// redacted document length, joined by underscores. Pure: identical inputs
// always yield the identical key, across restarts.
func ContentKey(redactedLen int, labID string, biomarkers []string) model.ContentKey {
	var b strings.Builder
	b.WriteString(labID)
	for _, bm := range biomarkers {
		b.WriteByte('_')
		b.WriteString(bm)
	}
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(redactedLen))
	return sha256.Sum256([]byte(b.String()))
}

// AttestationKey binds a content key to the moment of registration.
// Not reproducible across calls — the timestamp varies. It marks when
// attestation occurred, not what was attested.
func AttestationKey(contentKey model.ContentKey, at time.Time) model.ContentKey {
	preimage := contentKey.String() + "_" + at.UTC().Format(time.RFC3339) + "_attestation"
	return sha256.Sum256([]byte(preimage))
}

// Package validate holds strict identifier and input validation shared by
// the HTTP-facing services.
package validate

import (
	"regexp"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/apperr"
)

// MaxUploadBytes caps raw document uploads at 10 MiB.
const MaxUploadBytes = 10 * 1024 * 1024

// stellarAddressRegex matches a Stellar account id: G followed by 55
// base32 characters.
var stellarAddressRegex = regexp.MustCompile(`^G[A-Z0-9]{55}$`)

// opaqueIDRegex admits non-chain identifiers used in development and tests.
var opaqueIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// OwnerID validates a contributor or requester identity: either a Stellar
// account address or an opaque development id.
func OwnerID(id string) error {
	if id == "" {
		return apperr.Validation("owner id is required")
	}
	if stellarAddressRegex.MatchString(id) || opaqueIDRegex.MatchString(id) {
		return nil
	}
	return apperr.Validation("malformed owner id: %q", id)
}

// UploadSize validates a raw document length before any processing.
func UploadSize(n int) error {
	if n == 0 {
		return apperr.Validation("empty document")
	}
	if n > MaxUploadBytes {
		return apperr.Validation("document exceeds %d byte limit", MaxUploadBytes)
	}
	return nil
}

// Filters validates a report filter map. Unknown filter names are rejected
// so typos fail fast instead of silently selecting everything.
func Filters(filters map[string]string) error {
	for name := range filters {
		switch name {
		case "laboratories", "biomarkers", "description", "date_range":
		default:
			return apperr.Validation("unknown filter: %q", name)
		}
	}
	return nil
}

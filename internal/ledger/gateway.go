// Package ledger abstracts the distributed ledger behind a narrow gateway
// contract. Two implementations exist: RPCGateway talks to a ledger RPC
// service over HTTP, StubGateway is the deterministic stand-in used when no
// ledger endpoint is configured. The variant is chosen once at startup by
// configuration, never by a runtime presence probe.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// ErrTimeout marks a ledger call that neither succeeded nor permanently
// failed. Callers may retry using the operation's natural idempotency key.
var ErrTimeout = errors.New("ledger: call timed out")

// ReasonInsufficient marks a balance precondition failure. It is part of the
// gateway contract: every variant sets it when a debit or transfer fails for
// lack of funds, so callers never parse failure text.
const ReasonInsufficient = "insufficient_funds"

// Result is the outcome of a ledger mutation. Expected remote failures are
// values, not errors: OK is false, Err carries the diagnostic text, and
// Reason carries the machine-readable code when one applies. Transport-level
// failures leave Reason empty.
type Result struct {
	OK     bool   `json:"ok"`
	TxRef  string `json:"tx_ref,omitempty"`
	Reason string `json:"reason,omitempty"`
	Err    string `json:"err,omitempty"`
}

// Failure builds a failed Result from an error.
func Failure(err error) Result {
	return Result{OK: false, Err: err.Error()}
}

// Gateway is the core-facing ledger contract. All operations are
// asynchronous I/O and must respect ctx deadlines; a deadline expiry
// surfaces as a Result wrapping ErrTimeout, never a hang.
type Gateway interface {
	// RegisterStudy anchors a study registration on the ledger.
	RegisterStudy(ctx context.Context, owner string, key model.ContentKey, at time.Time, labID string, attestation model.ContentKey) Result

	// QueryStudiesByOwner lists the on-ledger registrations for an owner.
	QueryStudiesByOwner(ctx context.Context, owner string) ([]model.StudyAnchor, error)

	// GetBalance returns the authoritative credit balance for an owner.
	GetBalance(ctx context.Context, owner string) (int64, error)

	// Mint issues credits to an owner.
	Mint(ctx context.Context, owner string, amount int64) Result

	// Transfer moves credits between owners.
	Transfer(ctx context.Context, from, to string, amount int64) Result

	// DebitIfSufficient atomically moves amount from owner to the `to`
	// account if owner's balance is at least amount. A plain
	// read-then-transfer would let two concurrent settlements both pass the
	// balance check. Insufficiency fails with ReasonInsufficient.
	DebitIfSufficient(ctx context.Context, owner, to string, amount int64) Result

	// BatchPay disburses contributor payouts as a single batch.
	BatchPay(ctx context.Context, payments []model.Payment) Result

	// QueryPaymentEvents lists contributor payout events for an owner.
	QueryPaymentEvents(ctx context.Context, owner string) ([]model.PaymentEvent, error)
}

// BatchTotal sums the amounts of a payout batch.
func BatchTotal(payments []model.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

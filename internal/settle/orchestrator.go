// Package settle implements the settlement orchestrator: consume one credit
// from the requester, then disburse per-study payments to contributors.
package settle

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/apperr"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/credit"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ledger"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/metrics"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/store"
)

// DefaultRateUSDC is the fixed payout per deduplicated study.
var DefaultRateUSDC = decimal.NewFromInt(5)

// Orchestrator runs the payment flow for one generated report.
//
// A consumed credit is never refunded: if the contributor payout fails
// after the debit, the report is still produced and the loss is surfaced
// through PaymentOutcome.Complete plus a logged diagnostic. Accepted risk,
// carried over from the reference behavior.
type Orchestrator struct {
	credits    *credit.Service
	gateway    ledger.Gateway
	studies    store.StudyStore
	treasuryID string
	rate       decimal.Decimal
}

// NewOrchestrator creates a settlement orchestrator with the given payout
// rate per study. A zero rate falls back to DefaultRateUSDC.
func NewOrchestrator(credits *credit.Service, gw ledger.Gateway, studies store.StudyStore, treasuryID string, rate decimal.Decimal) *Orchestrator {
	if rate.LessThanOrEqual(decimal.Zero) {
		rate = DefaultRateUSDC
	}
	return &Orchestrator{
		credits:    credits,
		gateway:    gw,
		studies:    studies,
		treasuryID: treasuryID,
		rate:       rate,
	}
}

// Rate returns the per-study payout rate.
func (o *Orchestrator) Rate() decimal.Decimal { return o.rate }

// Settle consumes one credit from the requester and pays each contributor
// whose study appears in selected. Duplicated content keys are paid once.
//
// Only invalid input and a failed consume return an error; ledger-side
// payout failures are absorbed into the PaymentOutcome.
func (o *Orchestrator) Settle(ctx context.Context, requesterID, reportID string, selected []model.ContentKey) (model.PaymentOutcome, error) {
	outcome := model.PaymentOutcome{TotalAmount: decimal.Zero, LedgerTxRefs: []string{}}

	if requesterID == "" {
		return outcome, apperr.Validation("requester id is required")
	}
	if len(selected) == 0 {
		return outcome, apperr.Validation("empty study selection")
	}

	// Step 1: consume exactly one credit, atomically against the
	// authoritative balance; the credit accrues to the treasury in the
	// same call. Insufficiency or a debit that never landed both stop
	// the flow before any payout.
	debitRef, err := o.credits.ConsumeOne(ctx, requesterID, o.treasuryID)
	if err != nil {
		return outcome, err
	}
	outcome.CreditConsumed = true
	outcome.Complete = true
	if debitRef != "" {
		outcome.LedgerTxRefs = append(outcome.LedgerTxRefs, debitRef)
	}
	slog.Info("credit consumed",
		"requester", requesterID,
		"report_id", reportID,
		"treasury", o.treasuryID,
		"tx_ref", debitRef,
	)

	// Step 2: dedupe, preserving selection order so payout lists are
	// reproducible.
	seen := make(map[model.ContentKey]bool, len(selected))
	var distinct []model.ContentKey
	for _, key := range selected {
		if seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, key)
	}

	// Step 3: resolve each study's contributor and build the batch.
	var payments []model.Payment
	for _, key := range distinct {
		rec, err := o.studies.GetStudy(ctx, key)
		if err != nil {
			// Selection came from the local corpus, so a miss here is a
			// store inconsistency; skip the study rather than fail the
			// whole settlement.
			slog.Error("contributor resolution failed", "content_key", key.Short(), "err", err)
			outcome.Complete = false
			continue
		}
		payments = append(payments, model.Payment{
			Contributor: rec.OwnerID,
			ContentKey:  key,
			Amount:      o.rate,
		})
	}

	outcome.TotalAmount = ledger.BatchTotal(payments)
	if len(payments) == 0 {
		return outcome, nil
	}

	// Step 4: one batch call for all contributors.
	res := o.gateway.BatchPay(ctx, payments)
	if res.OK {
		outcome.ContributorsPaid = len(payments)
		if res.TxRef != "" {
			outcome.LedgerTxRefs = append(outcome.LedgerTxRefs, res.TxRef)
		}
		total, _ := outcome.TotalAmount.Float64()
		metrics.PayoutUSDC.Add(total)
		slog.Info("contributors paid",
			"report_id", reportID,
			"contributors", len(payments),
			"total_usdc", outcome.TotalAmount.String(),
			"tx_ref", res.TxRef,
		)
	} else {
		// The credit stays consumed; no compensating refund.
		outcome.Complete = false
		metrics.LedgerCallFailures.Inc()
		slog.Error("contributor payout failed, credit not refunded",
			"report_id", reportID,
			"contributors", len(payments),
			"err", res.Err,
		)
	}

	return outcome, nil
}

package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// StubGateway is the deterministic stand-in used when no ledger endpoint is
// configured. Mutations succeed with a generated reference id; study and
// payment-event queries return empty results. Balances are tracked for real
// so that settlement preconditions (and the insufficient-credit path) behave
// the same as against a live ledger.
type StubGateway struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewStubGateway creates an empty stand-in ledger.
func NewStubGateway() *StubGateway {
	return &StubGateway{balances: make(map[string]int64)}
}

func stubRef(op string) string {
	return "stub-" + op + "-" + uuid.New().String()
}

func (g *StubGateway) RegisterStudy(_ context.Context, owner string, key model.ContentKey, _ time.Time, labID string, _ model.ContentKey) Result {
	slog.Debug("stub ledger: register study", "owner", owner, "content_key", key.Short(), "lab", labID)
	return Result{OK: true, TxRef: stubRef("register")}
}

func (g *StubGateway) QueryStudiesByOwner(_ context.Context, _ string) ([]model.StudyAnchor, error) {
	return nil, nil
}

func (g *StubGateway) GetBalance(_ context.Context, owner string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[owner], nil
}

func (g *StubGateway) Mint(_ context.Context, owner string, amount int64) Result {
	if amount <= 0 {
		return Failure(errors.New("mint amount must be positive"))
	}
	g.mu.Lock()
	g.balances[owner] += amount
	g.mu.Unlock()
	return Result{OK: true, TxRef: stubRef("mint")}
}

func (g *StubGateway) Transfer(_ context.Context, from, to string, amount int64) Result {
	if amount <= 0 {
		return Failure(errors.New("transfer amount must be positive"))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balances[from] < amount {
		return Result{Reason: ReasonInsufficient, Err: "transfer: insufficient balance"}
	}
	g.balances[from] -= amount
	g.balances[to] += amount
	return Result{OK: true, TxRef: stubRef("transfer")}
}

// DebitIfSufficient checks and moves the balance under one lock. This is the
// primitive the settlement consume step relies on.
func (g *StubGateway) DebitIfSufficient(_ context.Context, owner, to string, amount int64) Result {
	if amount <= 0 {
		return Failure(errors.New("debit amount must be positive"))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balances[owner] < amount {
		return Result{Reason: ReasonInsufficient, Err: "debit: insufficient balance"}
	}
	g.balances[owner] -= amount
	g.balances[to] += amount
	return Result{OK: true, TxRef: stubRef("debit")}
}

func (g *StubGateway) BatchPay(_ context.Context, payments []model.Payment) Result {
	if len(payments) == 0 {
		return Failure(errors.New("batch pay: empty batch"))
	}
	return Result{OK: true, TxRef: stubRef("batchpay")}
}

func (g *StubGateway) QueryPaymentEvents(_ context.Context, _ string) ([]model.PaymentEvent, error) {
	return nil, nil
}

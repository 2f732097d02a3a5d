package credit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/apperr"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ledger"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/metrics"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/validate"
)

// PriceUSD is the fiat price of one credit.
var PriceUSD = decimal.NewFromInt(60)

// Service owns credit balances as seen by this backend: reads go through the
// cache, mutations invalidate it before the ledger call completes so a
// concurrent reader never observes a stale positive balance mid-debit.
type Service struct {
	gateway ledger.Gateway
	cache   BalanceCache

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

// NewService creates a credit service over the given gateway and cache.
func NewService(gw ledger.Gateway, cache BalanceCache) *Service {
	return &Service{
		gateway: gw,
		cache:   cache,
		owners:  make(map[string]*sync.Mutex),
	}
}

// ownerLock returns the per-owner mutex, creating it on first use.
func (s *Service) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.owners[owner]
	if !ok {
		l = &sync.Mutex{}
		s.owners[owner] = l
	}
	return l
}

// Balance returns the owner's credit balance, served from cache while the
// entry is fresh, otherwise re-fetched from the ledger.
func (s *Service) Balance(ctx context.Context, owner string) (int64, error) {
	if balance, ok := s.cache.Get(ctx, owner); ok {
		return balance, nil
	}
	balance, err := s.gateway.GetBalance(ctx, owner)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, owner, balance)
	return balance, nil
}

// PurchaseResult describes one completed credit purchase.
type PurchaseResult struct {
	OwnerID       string          `json:"owner_id"`
	Credits       int64           `json:"credits"`
	USDCharged    decimal.Decimal `json:"usd_charged"`
	LedgerTxRef   string          `json:"ledger_tx_ref,omitempty"`
	LedgerWarning string          `json:"ledger_warning,omitempty"`
}

// Purchase simulates the fiat → USDC → credit flow and mints the credits.
func (s *Service) Purchase(ctx context.Context, owner string, amount int64) (*PurchaseResult, error) {
	if owner == "" {
		return nil, apperr.Validation("owner_id is required")
	}
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}

	// Invalidate before the mint lands so no reader keeps a stale balance.
	s.cache.Invalidate(ctx, owner)

	res := s.gateway.Mint(ctx, owner, amount)
	if !res.OK {
		return nil, apperr.Internal(nil)
	}

	usd := PriceUSD.Mul(decimal.NewFromInt(amount))
	slog.Info("credits purchased",
		"owner", owner,
		"credits", amount,
		"usd", usd.String(),
		"tx_ref", res.TxRef,
	)
	metrics.CreditsPurchased.Add(float64(amount))

	return &PurchaseResult{
		OwnerID:     owner,
		Credits:     amount,
		USDCharged:  usd,
		LedgerTxRef: res.TxRef,
	}, nil
}

// ConsumeOne debits exactly one credit against the authoritative balance,
// crediting it to the treasury account. The debit is a single
// move-if-sufficient primitive on the gateway and consumes are serialized
// per owner, so two concurrent settlements cannot both pass the balance
// check. Returns the ledger tx reference.
func (s *Service) ConsumeOne(ctx context.Context, owner, treasury string) (string, error) {
	l := s.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	// Invalidate before the debit completes, per the cache contract.
	s.cache.Invalidate(ctx, owner)

	res := s.gateway.DebitIfSufficient(ctx, owner, treasury, 1)
	if !res.OK {
		// The ledger reports insufficiency by reason code; any other
		// failure means the debit never landed and is retryable.
		if res.Reason == ledger.ReasonInsufficient {
			return "", apperr.InsufficientCredit(owner)
		}
		metrics.LedgerCallFailures.Inc()
		return "", apperr.LedgerUnavailable(errors.New(res.Err))
	}
	metrics.CreditsConsumed.Inc()
	return res.TxRef, nil
}

// --- HTTP handlers ---

// PurchaseRequest is the JSON body for POST /api/v1/credits/purchase.
type PurchaseRequest struct {
	OwnerID string `json:"owner_id"`
	Amount  int64  `json:"amount"` // 0 → 1 credit
}

// HandlePurchase handles POST /api/v1/credits/purchase.
func (s *Service) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if err := validate.OwnerID(req.OwnerID); err != nil {
		writeError(w, err)
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	result, err := s.Purchase(r.Context(), req.OwnerID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleBalance handles GET /api/v1/credits/balance/{ownerID}.
func (s *Service) HandleBalance(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerID")
	if err := validate.OwnerID(owner); err != nil {
		writeError(w, err)
		return
	}

	balance, err := s.Balance(r.Context(), owner)
	if err != nil {
		slog.Error("balance read failed", "owner", owner, "err", err)
		metrics.LedgerCallFailures.Inc()
		writeError(w, apperr.Internal(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"balance": balance})
}

// HandlePaymentEvents handles GET /api/v1/payments/{ownerID}: the
// contributor-facing view of on-ledger payout events.
func (s *Service) HandlePaymentEvents(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerID")
	if err := validate.OwnerID(owner); err != nil {
		writeError(w, err)
		return
	}

	events, err := s.gateway.QueryPaymentEvents(r.Context(), owner)
	if err != nil {
		metrics.LedgerCallFailures.Inc()
		slog.Error("payment event query failed", "owner", owner, "err", err)
		writeError(w, apperr.Internal(err))
		return
	}
	if events == nil {
		events = []model.PaymentEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

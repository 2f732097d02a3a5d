package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// RPCGateway talks JSON-RPC 2.0 to the ledger service fronting the chain
// (study registry, credit token, and payment contracts live behind it).
// Every call carries a timeout; a deadline expiry surfaces as a retryable
// failure, never a hang.
type RPCGateway struct {
	endpoint   string
	passphrase string
	client     *http.Client
	timeout    time.Duration
}

// RPCOption configures an RPCGateway.
type RPCOption func(*RPCGateway)

// WithTimeout overrides the default per-call timeout of 10s.
func WithTimeout(d time.Duration) RPCOption {
	return func(g *RPCGateway) { g.timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) RPCOption {
	return func(g *RPCGateway) { g.client = c }
}

// NewRPCGateway creates a gateway for the given ledger RPC endpoint.
// The network passphrase is echoed on every call so the service can reject
// requests aimed at the wrong network.
func NewRPCGateway(endpoint, passphrase string, opts ...RPCOption) *RPCGateway {
	g := &RPCGateway{
		endpoint:   endpoint,
		passphrase: passphrase,
		client:     &http.Client{},
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call issues one JSON-RPC request and decodes the result into out.
func (g *RPCGateway) call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("ledger rpc: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger rpc: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Network-Passphrase", g.passphrase)

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, method)
		}
		return fmt.Errorf("ledger rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger rpc: %s: unexpected status %d", method, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ledger rpc: %s: read response: %w", method, err)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("ledger rpc: %s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("ledger rpc: %s: remote error %d: %s", method, rr.Error.Code, rr.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("ledger rpc: %s: decode result: %w", method, err)
		}
	}
	return nil
}

// mutate issues a mutation and folds transport errors into a failed Result.
func (g *RPCGateway) mutate(ctx context.Context, method string, params any) Result {
	var res Result
	if err := g.call(ctx, method, params, &res); err != nil {
		return Failure(err)
	}
	return res
}

func (g *RPCGateway) RegisterStudy(ctx context.Context, owner string, key model.ContentKey, at time.Time, labID string, attestation model.ContentKey) Result {
	return g.mutate(ctx, "ledger.registerStudy", map[string]any{
		"owner":           owner,
		"content_key":     key.String(),
		"timestamp":       at.UTC().Unix(),
		"lab_id":          labID,
		"attestation_key": attestation.String(),
	})
}

func (g *RPCGateway) QueryStudiesByOwner(ctx context.Context, owner string) ([]model.StudyAnchor, error) {
	var anchors []model.StudyAnchor
	err := g.call(ctx, "ledger.getStudiesByOwner", map[string]any{"owner": owner}, &anchors)
	if err != nil {
		return nil, err
	}
	return anchors, nil
}

func (g *RPCGateway) GetBalance(ctx context.Context, owner string) (int64, error) {
	var balance int64
	if err := g.call(ctx, "ledger.getBalance", map[string]any{"owner": owner}, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (g *RPCGateway) Mint(ctx context.Context, owner string, amount int64) Result {
	return g.mutate(ctx, "ledger.mint", map[string]any{"owner": owner, "amount": amount})
}

func (g *RPCGateway) Transfer(ctx context.Context, from, to string, amount int64) Result {
	return g.mutate(ctx, "ledger.transfer", map[string]any{"from": from, "to": to, "amount": amount})
}

func (g *RPCGateway) DebitIfSufficient(ctx context.Context, owner, to string, amount int64) Result {
	// Single remote call so the ledger service can enforce the
	// check-and-move transactionally. The decoded Result carries the
	// service's reason code on a precondition failure.
	return g.mutate(ctx, "ledger.debitIfSufficient", map[string]any{"owner": owner, "to": to, "amount": amount})
}

func (g *RPCGateway) BatchPay(ctx context.Context, payments []model.Payment) Result {
	type wirePayment struct {
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount"`
		Memo   string          `json:"memo"`
	}
	wire := make([]wirePayment, 0, len(payments))
	for _, p := range payments {
		wire = append(wire, wirePayment{To: p.Contributor, Amount: p.Amount, Memo: p.ContentKey.String()})
	}
	return g.mutate(ctx, "ledger.batchPay", map[string]any{"payments": wire})
}

func (g *RPCGateway) QueryPaymentEvents(ctx context.Context, owner string) ([]model.PaymentEvent, error) {
	var events []model.PaymentEvent
	err := g.call(ctx, "ledger.getPaymentEvents", map[string]any{"owner": owner}, &events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

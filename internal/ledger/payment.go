package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"

	"anchor-e2e/internal/config"
	"anchor-e2e/pkg/logger"
)

// ErrInvalidMemo is returned when an anchor memo is not a 32 byte hash
var ErrInvalidMemo = errors.New("invalid hash memo")

// Payment describes a settlement payment for one anchor transaction
type Payment struct {
	AssetCode   string
	AssetIssuer string
	Destination string
	Amount      decimal.Decimal
	MemoHash    txnbuild.MemoHash
}

// Horizon is the subset of the Horizon client used to settle payments
type Horizon interface {
	AccountDetail(request horizonclient.AccountRequest) (horizon.Account, error)
	SubmitTransaction(transaction *txnbuild.Transaction) (horizon.Transaction, error)
}

// Sender builds, signs and submits settlement payments
type Sender struct {
	connect   func(ctx context.Context) Horizon
	signer    *Signer
	baseFee   int64
	txTimeout time.Duration
	logger    *logger.Logger
}

// NewSender creates a sender talking to cfg.HorizonURL. Each payment gets
// a Horizon client whose requests end when the payment's context does.
func NewSender(cfg *config.LedgerConfig, httpTimeout time.Duration, signer *Signer, log *logger.Logger) *Sender {
	httpClient := &http.Client{Timeout: httpTimeout}
	s := newSender(cfg, signer, log)
	s.connect = func(ctx context.Context) Horizon {
		return &horizonclient.Client{
			HorizonURL: cfg.HorizonURL,
			HTTP:       contextHTTP{ctx: ctx, client: httpClient},
		}
	}
	return s
}

// NewSenderWithHorizon creates a sender over an existing Horizon client
func NewSenderWithHorizon(h Horizon, cfg *config.LedgerConfig, signer *Signer, log *logger.Logger) *Sender {
	s := newSender(cfg, signer, log)
	s.connect = func(context.Context) Horizon { return h }
	return s
}

func newSender(cfg *config.LedgerConfig, signer *Signer, log *logger.Logger) *Sender {
	baseFee := cfg.BaseFee
	if baseFee <= 0 {
		baseFee = txnbuild.MinBaseFee
	}
	txTimeout := cfg.TxTimeout
	if txTimeout <= 0 {
		txTimeout = 30 * time.Second
	}
	return &Sender{
		signer:    signer,
		baseFee:   baseFee,
		txTimeout: txTimeout,
		logger:    log,
	}
}

// DecodeMemoHash turns the base64 memo returned by the anchor into a hash memo
func DecodeMemoHash(encoded string) (txnbuild.MemoHash, error) {
	var memo txnbuild.MemoHash

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return memo, fmt.Errorf("%w: %v", ErrInvalidMemo, err)
	}
	if len(raw) != len(memo) {
		return memo, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidMemo, len(memo), len(raw))
	}
	copy(memo[:], raw)
	return memo, nil
}

// buildPayment loads the source account sequence and returns the signed
// payment transaction.
func (s *Sender) buildPayment(h Horizon, p Payment) (*txnbuild.Transaction, error) {
	account, err := h.AccountDetail(horizonclient.AccountRequest{AccountID: s.signer.Address()})
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", s.signer.Address(), err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		BaseFee:              s.baseFee,
		Memo:                 p.MemoHash,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(int64(s.txTimeout.Seconds())),
		},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: p.Destination,
				Amount:      p.Amount.String(),
				Asset:       txnbuild.CreditAsset{Code: p.AssetCode, Issuer: p.AssetIssuer},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build payment: %w", err)
	}

	tx, err = tx.Sign(s.signer.NetworkPassphrase(), s.signer.full())
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment: %w", err)
	}
	return tx, nil
}

// SendPayment submits the payment and returns the ledger transaction hash.
// Submission failures are returned as-is; nothing is retried.
func (s *Sender) SendPayment(ctx context.Context, p Payment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := s.connect(ctx)
	tx, err := s.buildPayment(h, p)
	if err != nil {
		return "", err
	}

	if envelope, err := tx.Base64(); err == nil {
		s.logger.Debug("Submitting payment", "envelope_xdr", envelope)
	}

	resp, err := h.SubmitTransaction(tx)
	if err != nil {
		var herr *horizonclient.Error
		if errors.As(err, &herr) {
			if codes, cerr := herr.ResultCodes(); cerr == nil {
				return "", fmt.Errorf("payment rejected (%s %v): %w", codes.TransactionCode, codes.OperationCodes, err)
			}
		}
		return "", fmt.Errorf("failed to submit payment: %w", err)
	}

	s.logger.Info("Payment submitted",
		"hash", resp.Hash,
		"ledger", resp.Ledger,
		"destination", p.Destination,
		"asset", p.AssetCode,
		"amount", p.Amount.String(),
	)
	return resp.Hash, nil
}

// contextHTTP ties Horizon requests to a caller context. horizonclient
// replaces the request context with its own timeout, so cancellation has to
// be joined in here.
type contextHTTP struct {
	ctx    context.Context
	client *http.Client
}

func (c contextHTTP) Do(req *http.Request) (*http.Response, error) {
	// The derived context ends with horizonclient's own, after the body is read
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(c.ctx, cancel)
	context.AfterFunc(ctx, func() { stop() })

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil && c.ctx.Err() != nil {
		return nil, fmt.Errorf("horizon request aborted: %w", context.Cause(c.ctx))
	}
	return resp, err
}

func (c contextHTTP) Get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c contextHTTP) PostForm(rawURL string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, rawURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

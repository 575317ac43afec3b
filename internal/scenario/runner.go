package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"anchor-e2e/internal/anchor"
	"anchor-e2e/internal/ledger"
	"anchor-e2e/internal/metrics"
	"anchor-e2e/internal/model"
	"anchor-e2e/internal/poll"
	"anchor-e2e/pkg/logger"
)

// ErrAssertion is returned when the anchor answers with something other
// than what a scenario expects
var ErrAssertion = errors.New("assertion failed")

// expireAfterLayout matches the timestamp format anchors accept for
// SEP-38 expire_after
const expireAfterLayout = "2006-01-02T15:04:05.000000Z"

// AnchorAPI is the anchor platform surface the scenarios drive
type AnchorAPI interface {
	ObtainToken(ctx context.Context, signer anchor.ChallengeSigner) (string, error)
	ChallengeStatus(ctx context.Context, account string) (int, error)
	PutCustomer(ctx context.Context, auth anchor.AuthHeader, profile model.CustomerProfile) (string, error)
	CreateQuote(ctx context.Context, auth anchor.AuthHeader, req model.QuoteRequest) (*model.Quote, error)
	CreateTransaction(ctx context.Context, auth anchor.AuthHeader, req model.TransactionRequest) (*model.TransactionCreated, error)
	GetTransaction(ctx context.Context, auth anchor.AuthHeader, id string) (*model.Transaction, error)
}

// PaymentSender settles anchor transactions on the ledger
type PaymentSender interface {
	SendPayment(ctx context.Context, p ledger.Payment) (string, error)
}

// Options tunes a Runner
type Options struct {
	PaymentAmount decimal.Decimal
	QuoteTTL      time.Duration
	StatusPoll    poll.Options
	TargetStatus  string

	// NewAddress generates the key used for the disallowed half of the
	// allowlist check. Defaults to a random keypair.
	NewAddress func() (string, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner sequences the end-to-end scenarios against one anchor
type Runner struct {
	anchor   AnchorAPI
	payments PaymentSender
	signer   anchor.ChallengeSigner
	recorder Recorder
	opts     Options
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewRunner creates a scenario runner. recorder may be nil.
func NewRunner(api AnchorAPI, payments PaymentSender, signer anchor.ChallengeSigner, recorder Recorder, opts Options, log *logger.Logger, m *metrics.Metrics) *Runner {
	if opts.PaymentAmount.IsZero() {
		opts.PaymentAmount = decimal.NewFromInt(10)
	}
	if opts.QuoteTTL <= 0 {
		opts.QuoteTTL = 48 * time.Hour
	}
	if opts.TargetStatus == "" {
		opts.TargetStatus = model.StatusCompleted
	}
	if opts.NewAddress == nil {
		opts.NewAddress = ledger.RandomAddress
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if recorder == nil {
		recorder = Recorders(nil)
	}

	return &Runner{
		anchor:   api,
		payments: payments,
		signer:   signer,
		recorder: recorder,
		opts:     opts,
		logger:   log,
		metrics:  m,
	}
}

// trace collects the records a scenario created
type trace struct {
	transactionIDs []string
	quoteIDs       []string
}

func (r *Runner) authenticate(ctx context.Context) (anchor.AuthHeader, error) {
	token, err := r.anchor.ObtainToken(ctx, r.signer)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	return anchor.Bearer(token), nil
}

// Sep31Flow sends one SEP-31 payment end to end and returns the anchor
// transaction ID. When quoteReq is non-nil a SEP-38 quote is created first
// and referenced by the transaction.
func (r *Runner) Sep31Flow(ctx context.Context, txReq model.TransactionRequest, quoteReq *model.QuoteRequest) (string, error) {
	return r.sep31Flow(ctx, &trace{}, txReq, quoteReq)
}

func (r *Runner) sep31Flow(ctx context.Context, tr *trace, txReq model.TransactionRequest, quoteReq *model.QuoteRequest) (string, error) {
	auth, err := r.authenticate(ctx)
	if err != nil {
		return "", err
	}

	senderID, err := r.anchor.PutCustomer(ctx, auth, SendingCustomer())
	if err != nil {
		return "", fmt.Errorf("sender customer: %w", err)
	}
	txReq.SenderID = senderID

	receiverID, err := r.anchor.PutCustomer(ctx, auth, ReceivingCustomer())
	if err != nil {
		return "", fmt.Errorf("receiver customer: %w", err)
	}
	txReq.ReceiverID = receiverID

	if quoteReq != nil {
		quote, err := r.createQuote(ctx, auth, *quoteReq)
		if err != nil {
			return "", err
		}
		tr.quoteIDs = append(tr.quoteIDs, quote.ID)
		txReq.QuoteID = quote.ID
	}

	created, err := r.anchor.CreateTransaction(ctx, auth, txReq)
	if err != nil {
		return "", err
	}
	tr.transactionIDs = append(tr.transactionIDs, created.ID)
	log := r.logger.WithTransaction(created.ID)

	memo, err := ledger.DecodeMemoHash(created.StellarMemo)
	if err != nil {
		return created.ID, fmt.Errorf("transaction %s: %w", created.ID, err)
	}

	log.Info("Sending asset on Stellar network", "destination", created.StellarAccountID)
	hash, err := r.payments.SendPayment(ctx, ledger.Payment{
		AssetCode:   txReq.AssetCode,
		AssetIssuer: txReq.AssetIssuer,
		Destination: created.StellarAccountID,
		Amount:      r.opts.PaymentAmount,
		MemoHash:    memo,
	})
	if err != nil {
		return created.ID, fmt.Errorf("settlement payment for %s: %w", created.ID, err)
	}
	log.Info("Settlement payment submitted", "stellar_transaction_hash", hash)

	if err := r.pollStatus(ctx, auth, created.ID); err != nil {
		return created.ID, err
	}
	return created.ID, nil
}

// pollStatus waits for the transaction to reach the target status
func (r *Runner) pollStatus(ctx context.Context, auth anchor.AuthHeader, id string) error {
	log := r.logger.WithTransaction(id)
	log.Info("Polling transaction status", "target", r.opts.TargetStatus)

	opts := r.opts.StatusPoll
	opts.OnAttempt = func(attempt int, err error) {
		outcome := "done"
		switch {
		case anchor.IsPermanent(err):
			outcome = "rejected"
		case err != nil:
			outcome = "pending"
		}
		r.metrics.ObservePoll("transaction_status", outcome)
	}

	err := poll.PollStatus(ctx, opts, r.opts.TargetStatus, func(ctx context.Context) (string, error) {
		tx, err := r.anchor.GetTransaction(ctx, auth, id)
		if err != nil {
			if anchor.IsPermanent(err) {
				log.Error("Transaction status request rejected", "error", err)
				return "", poll.Stop(err)
			}
			log.Warn("Failed to fetch transaction status", "error", err)
			return "", err
		}
		log.Info("Transaction status", "status", tx.Status)
		return tx.Status, nil
	})
	if err != nil {
		return fmt.Errorf("transaction %s: %w", id, err)
	}
	return nil
}

func (r *Runner) createQuote(ctx context.Context, auth anchor.AuthHeader, req model.QuoteRequest) (*model.Quote, error) {
	req.ExpireAfter = r.opts.Now().UTC().Add(r.opts.QuoteTTL).Format(expireAfterLayout)
	return r.anchor.CreateQuote(ctx, auth, req)
}

// Sep31FlowWithSep38 runs the quoted flow twice: USDC to JPYC, then JPYC to
// fiat USD.
func (r *Runner) Sep31FlowWithSep38(ctx context.Context) ([]string, error) {
	tr := &trace{}
	err := r.sep31FlowWithSep38(ctx, tr)
	return tr.transactionIDs, err
}

func (r *Runner) sep31FlowWithSep38(ctx context.Context, tr *trace) error {
	usdcToJPYC := USDCToJPYCQuote()
	r.logger.Info("Testing SEP-31/38 USDC to JPYC flow")
	if _, err := r.sep31Flow(ctx, tr, TransactionFor("USDC"), &usdcToJPYC); err != nil {
		return fmt.Errorf("USDC to JPYC: %w", err)
	}

	jpycToUSD := JPYCToUSDQuote()
	r.logger.Info("Testing SEP-31/38 JPYC to USD flow")
	if _, err := r.sep31Flow(ctx, tr, TransactionFor("JPYC"), &jpycToUSD); err != nil {
		return fmt.Errorf("JPYC to USD: %w", err)
	}
	return nil
}

// Sep38CreateQuote authenticates and creates a single quote
func (r *Runner) Sep38CreateQuote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error) {
	auth, err := r.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return r.createQuote(ctx, auth, req)
}

// OmnibusAllowlist checks that the configured account may request a
// challenge and that an unknown account is refused.
func (r *Runner) OmnibusAllowlist(ctx context.Context) error {
	allowed := r.signer.Address()
	r.logger.Info("Omnibus allowlist: testing with allowed key", "account", allowed)
	if err := r.expectChallengeStatus(ctx, allowed, http.StatusOK); err != nil {
		return err
	}

	random, err := r.opts.NewAddress()
	if err != nil {
		return err
	}
	r.logger.Info("Omnibus allowlist: testing with disallowed (random) key", "account", random)
	return r.expectChallengeStatus(ctx, random, http.StatusForbidden)
}

func (r *Runner) expectChallengeStatus(ctx context.Context, account string, want int) error {
	got, err := r.anchor.ChallengeStatus(ctx, account)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: challenge for %s should return %d, got %d", ErrAssertion, account, want, got)
	}
	r.logger.Info("Omnibus allowlist: check passed", "account", account, "status", got)
	return nil
}

package model

import "github.com/shopspring/decimal"

// Transaction statuses reported by the anchor platform. The set is open
// ended; only StatusCompleted is acted upon.
const (
	StatusPendingSender   = "pending_sender"
	StatusPendingStellar  = "pending_stellar"
	StatusPendingReceiver = "pending_receiver"
	StatusCompleted       = "completed"
	StatusError           = "error"
)

// ChallengeResponse is returned by GET {auth}?account=G...
type ChallengeResponse struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"network_passphrase,omitempty"`
}

// TokenResponse is returned by POST {auth}
type TokenResponse struct {
	Token string `json:"token"`
}

// CustomerProfile is a free-form KYC payload sent with PUT /customer
type CustomerProfile map[string]string

// CustomerResponse is returned by PUT /customer
type CustomerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// QuoteRequest is the body of POST /quote
type QuoteRequest struct {
	SellAsset   string          `json:"sell_asset"`
	SellAmount  decimal.Decimal `json:"sell_amount"`
	BuyAsset    string          `json:"buy_asset"`
	Context     string          `json:"context"`
	ExpireAfter string          `json:"expire_after,omitempty"`
}

// Quote is the firm quote returned by POST /quote
type Quote struct {
	ID         string          `json:"id"`
	ExpiresAt  string          `json:"expires_at"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"total_price,omitempty"`
	SellAsset  string          `json:"sell_asset"`
	SellAmount decimal.Decimal `json:"sell_amount"`
	BuyAsset   string          `json:"buy_asset"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
}

// TransactionFields holds the nested, free-form "fields" object of a
// transaction request, keyed by section ("transaction", "sender", ...).
type TransactionFields map[string]map[string]string

// TransactionRequest is the body of POST /transactions
type TransactionRequest struct {
	Amount      string            `json:"amount"`
	AssetCode   string            `json:"asset_code"`
	AssetIssuer string            `json:"asset_issuer"`
	SenderID    string            `json:"sender_id,omitempty"`
	ReceiverID  string            `json:"receiver_id,omitempty"`
	QuoteID     string            `json:"quote_id,omitempty"`
	Fields      TransactionFields `json:"fields,omitempty"`
}

// TransactionCreated is returned by POST /transactions
type TransactionCreated struct {
	ID               string `json:"id"`
	StellarAccountID string `json:"stellar_account_id"`
	StellarMemo      string `json:"stellar_memo"`
	StellarMemoType  string `json:"stellar_memo_type,omitempty"`
}

// Transaction is the record returned by GET /transactions/{id}
type Transaction struct {
	ID                   string `json:"id"`
	Status               string `json:"status"`
	AmountIn             string `json:"amount_in,omitempty"`
	AmountOut            string `json:"amount_out,omitempty"`
	QuoteID              string `json:"quote_id,omitempty"`
	StellarAccountID     string `json:"stellar_account_id,omitempty"`
	StellarMemo          string `json:"stellar_memo,omitempty"`
	StellarTransactionID string `json:"stellar_transaction_id,omitempty"`
	Message              string `json:"message,omitempty"`
}

// TransactionResponse wraps the record returned by GET /transactions/{id}
type TransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

// ErrorResponse is the error body returned by the anchor platform
type ErrorResponse struct {
	Error string `json:"error"`
}

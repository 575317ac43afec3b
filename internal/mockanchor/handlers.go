package mockanchor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"anchor-e2e/internal/anchor"
	"anchor-e2e/internal/model"
)

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) homeDomain(r *http.Request) string {
	if s.cfg.HomeDomain != "" {
		return s.cfg.HomeDomain
	}
	return r.Host
}

// serveToml handles GET /.well-known/stellar.toml
func (s *Server) serveToml(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	doc := anchor.StellarToml{
		NetworkPassphrase:   s.cfg.NetworkPassphrase,
		SigningKey:          s.signingKey.Address(),
		WebAuthEndpoint:     base + "/auth",
		KYCServer:           base + "/sep12",
		AnchorQuoteServer:   base + "/sep38",
		DirectPaymentServer: base + "/sep31",
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		s.logger.Error("Failed to encode stellar.toml", "error", err)
	}
}

// getChallenge handles GET /auth?account=G...
func (s *Server) getChallenge(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if _, err := keypair.ParseAddress(account); err != nil {
		sendError(w, http.StatusBadRequest, "invalid 'account'")
		return
	}

	if len(s.allowlist) > 0 && !s.allowlist[account] {
		s.logger.Warn("Account not in allowlist", "account", account)
		sendError(w, http.StatusForbidden, "the source account is not allowed")
		return
	}

	tx, err := txnbuild.BuildChallengeTx(s.signingKey.Seed(), account, r.Host, s.homeDomain(r),
		s.cfg.NetworkPassphrase, s.cfg.ChallengeTTL, nil)
	if err != nil {
		s.logger.Error("Failed to build challenge", "error", err)
		sendError(w, http.StatusInternalServerError, "failed to build challenge")
		return
	}
	envelope, err := tx.Base64()
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to encode challenge")
		return
	}

	sendJSON(w, http.StatusOK, model.ChallengeResponse{
		Transaction:       envelope,
		NetworkPassphrase: s.cfg.NetworkPassphrase,
	})
}

// postChallenge handles POST /auth with form field transaction
func (s *Server) postChallenge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendError(w, http.StatusBadRequest, "invalid form")
		return
	}
	envelope := r.PostForm.Get("transaction")
	if envelope == "" {
		sendError(w, http.StatusBadRequest, "missing 'transaction'")
		return
	}

	homeDomains := []string{s.homeDomain(r)}
	_, account, _, _, err := txnbuild.ReadChallengeTx(envelope, s.signingKey.Address(),
		s.cfg.NetworkPassphrase, r.Host, homeDomains)
	if err != nil {
		s.logger.Warn("Invalid challenge", "error", err)
		sendError(w, http.StatusBadRequest, "invalid challenge transaction")
		return
	}

	if _, err := txnbuild.VerifyChallengeTxSigners(envelope, s.signingKey.Address(),
		s.cfg.NetworkPassphrase, r.Host, homeDomains, account); err != nil {
		s.logger.Warn("Challenge signature rejected", "account", account, "error", err)
		sendError(w, http.StatusUnauthorized, "challenge signature verification failed")
		return
	}

	sendJSON(w, http.StatusOK, model.TokenResponse{Token: s.store.issueToken(account)})
}

// putCustomer handles PUT /sep12/customer
func (s *Server) putCustomer(w http.ResponseWriter, r *http.Request) {
	var profile model.CustomerProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if profile["first_name"] == "" || profile["last_name"] == "" {
		sendError(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}

	account := accountFrom(r.Context())
	id := s.store.saveCustomer(account)
	s.logger.Info("Customer created", "customer_id", id, "account", account)
	sendJSON(w, http.StatusAccepted, model.CustomerResponse{ID: id, Status: "ACCEPTED"})
}

// postQuote handles POST /sep38/quote
func (s *Server) postQuote(w http.ResponseWriter, r *http.Request) {
	var req model.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SellAsset == "" || req.BuyAsset == "" {
		sendError(w, http.StatusBadRequest, "sell_asset and buy_asset are required")
		return
	}
	if !req.SellAmount.IsPositive() {
		sendError(w, http.StatusBadRequest, "sell_amount must be positive")
		return
	}

	expiresAt := time.Now().UTC().Add(time.Hour)
	if req.ExpireAfter != "" {
		after, err := time.Parse(time.RFC3339Nano, req.ExpireAfter)
		if err != nil {
			sendError(w, http.StatusBadRequest, "invalid expire_after")
			return
		}
		if after.After(expiresAt) {
			expiresAt = after.Add(time.Hour)
		}
	}

	price := s.cfg.QuotePrice
	quote := s.store.saveQuote(model.Quote{
		ExpiresAt:  expiresAt.Format(time.RFC3339),
		Price:      price,
		TotalPrice: price,
		SellAsset:  req.SellAsset,
		SellAmount: req.SellAmount,
		BuyAsset:   req.BuyAsset,
		BuyAmount:  req.SellAmount.DivRound(price, 7),
	})

	s.logger.Info("Quote created", "quote_id", quote.ID, "sell_asset", quote.SellAsset, "buy_asset", quote.BuyAsset)
	sendJSON(w, http.StatusCreated, quote)
}

// postTransaction handles POST /sep31/transactions
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req model.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		sendError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if req.AssetCode == "" {
		sendError(w, http.StatusBadRequest, "asset_code is required")
		return
	}
	account := accountFrom(r.Context())
	if !s.store.hasCustomer(account, req.SenderID) {
		sendError(w, http.StatusBadRequest, "sender_id not found")
		return
	}
	if !s.store.hasCustomer(account, req.ReceiverID) {
		sendError(w, http.StatusBadRequest, "receiver_id not found")
		return
	}
	if req.QuoteID != "" {
		quote, ok := s.store.getQuote(req.QuoteID)
		if !ok {
			sendError(w, http.StatusBadRequest, "quote_id not found")
			return
		}
		if !quote.SellAmount.Equal(amount) {
			sendError(w, http.StatusBadRequest, "amount does not match quote sell_amount")
			return
		}
	}

	rec, err := s.store.createTransaction(account, req, s.signingKey.Address(), model.StatusPendingSender)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.logger.Info("Transaction created", "transaction_id", rec.ID, "asset_code", req.AssetCode, "amount", req.Amount)
	sendJSON(w, http.StatusCreated, model.TransactionCreated{
		ID:               rec.ID,
		StellarAccountID: rec.StellarAccountID,
		StellarMemo:      rec.StellarMemo,
		StellarMemoType:  "hash",
	})
}

// getTransaction handles GET /sep31/transactions/{id}
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tx, ok := s.store.pollTransaction(accountFrom(r.Context()), id, s.statuses)
	if !ok {
		sendError(w, http.StatusNotFound, "transaction not found")
		return
	}
	sendJSON(w, http.StatusOK, model.TransactionResponse{Transaction: tx})
}

package mockanchor_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"

	"anchor-e2e/internal/anchor"
	"anchor-e2e/internal/ledger"
	"anchor-e2e/internal/metrics"
	"anchor-e2e/internal/mockanchor"
	"anchor-e2e/internal/model"
	"anchor-e2e/pkg/logger"
)

const testIssuer = "GDQOE23CFSUMSVQK4Y5JHPPYK73VYCNHZHA7ENKCV37P6SUEO6XQBKPP"

func newServer(t *testing.T, cfg mockanchor.Config) (*mockanchor.Server, *httptest.Server) {
	t.Helper()
	cfg.NetworkPassphrase = network.TestNetworkPassphrase
	s, err := mockanchor.New(cfg, logger.Discard(), metrics.New("mock_anchor"))
	if err != nil {
		t.Fatalf("new mock anchor: %v", err)
	}
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return s, srv
}

// login runs the SEP-10 exchange with a fresh account and returns its token
func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("random keypair: %v", err)
	}

	resp, err := http.Get(srv.URL + "/auth?account=" + kp.Address())
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	var challenge model.ChallengeResponse
	json.NewDecoder(resp.Body).Decode(&challenge)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("challenge status %d", resp.StatusCode)
	}

	signer, err := ledger.NewSigner(kp.Seed(), network.TestNetworkPassphrase)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	signed, err := signer.SignChallenge(challenge.Transaction)
	if err != nil {
		t.Fatalf("sign challenge: %v", err)
	}

	resp, err = http.PostForm(srv.URL+"/auth", map[string][]string{"transaction": {signed}})
	if err != nil {
		t.Fatalf("post challenge: %v", err)
	}
	defer resp.Body.Close()
	var token model.TokenResponse
	json.NewDecoder(resp.Body).Decode(&token)
	if resp.StatusCode != http.StatusOK || token.Token == "" {
		t.Fatalf("token exchange failed with %d", resp.StatusCode)
	}
	return token.Token
}

func send(t *testing.T, method, url, token string, payload any, out any) int {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestServesStellarToml(t *testing.T) {
	s, srv := newServer(t, mockanchor.Config{})

	resp, err := http.Get(srv.URL + anchor.WellKnownPath)
	if err != nil {
		t.Fatalf("get toml: %v", err)
	}
	defer resp.Body.Close()

	var doc anchor.StellarToml
	if _, err := toml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	if doc.SigningKey != s.SigningAddress() {
		t.Fatalf("expected signing key %s, got %s", s.SigningAddress(), doc.SigningKey)
	}
	if doc.WebAuthEndpoint != srv.URL+"/auth" {
		t.Fatalf("unexpected web auth endpoint %s", doc.WebAuthEndpoint)
	}
	if got := doc.Endpoints().Transactions; got != srv.URL+"/sep31/transactions" {
		t.Fatalf("unexpected transactions endpoint %s", got)
	}
}

func TestChallengeRejectsInvalidAccount(t *testing.T) {
	_, srv := newServer(t, mockanchor.Config{})

	resp, err := http.Get(srv.URL + "/auth?account=not-a-key")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCustomerRequiresName(t *testing.T) {
	_, srv := newServer(t, mockanchor.Config{})
	token := login(t, srv)

	code := send(t, http.MethodPut, srv.URL+"/sep12/customer", token, model.CustomerProfile{"email_address": "x@y.z"}, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestTransactionWalksStatusSequence(t *testing.T) {
	s, srv := newServer(t, mockanchor.Config{CompleteAfter: 2})
	token := login(t, srv)

	var sender, receiver model.CustomerResponse
	send(t, http.MethodPut, srv.URL+"/sep12/customer", token, model.CustomerProfile{"first_name": "A", "last_name": "B"}, &sender)
	send(t, http.MethodPut, srv.URL+"/sep12/customer", token, model.CustomerProfile{"first_name": "C", "last_name": "D"}, &receiver)

	var created model.TransactionCreated
	code := send(t, http.MethodPost, srv.URL+"/sep31/transactions", token, model.TransactionRequest{
		Amount:     "10.0",
		AssetCode:  "USDC",
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.StellarAccountID != s.SigningAddress() || created.StellarMemoType != "hash" {
		t.Fatalf("unexpected settlement instructions %+v", created)
	}

	want := []string{
		model.StatusPendingReceiver,
		model.StatusPendingReceiver,
		model.StatusCompleted,
		model.StatusCompleted,
	}
	for i, status := range want {
		var resp model.TransactionResponse
		send(t, http.MethodGet, srv.URL+"/sep31/transactions/"+created.ID, token, nil, &resp)
		if resp.Transaction.Status != status {
			t.Fatalf("poll %d: expected %s, got %s", i+1, status, resp.Transaction.Status)
		}
	}

	if _, polls, _ := s.Transaction(created.ID); polls != len(want) {
		t.Fatalf("expected %d polls, got %d", len(want), polls)
	}
}

func TestTransactionRejectsUnknownCustomersAndQuoteMismatch(t *testing.T) {
	_, srv := newServer(t, mockanchor.Config{})
	token := login(t, srv)

	code := send(t, http.MethodPost, srv.URL+"/sep31/transactions", token, model.TransactionRequest{
		Amount:     "10",
		AssetCode:  "USDC",
		SenderID:   "nobody",
		ReceiverID: "nobody",
	}, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown customers, got %d", code)
	}

	var c model.CustomerResponse
	send(t, http.MethodPut, srv.URL+"/sep12/customer", token, model.CustomerProfile{"first_name": "A", "last_name": "B"}, &c)

	var quote model.Quote
	if code := send(t, http.MethodPost, srv.URL+"/sep38/quote", token, map[string]string{
		"sell_asset":  "stellar:USDC:" + testIssuer,
		"sell_amount": "5",
		"buy_asset":   "iso4217:USD",
	}, &quote); code != http.StatusCreated {
		t.Fatalf("expected 201 for quote, got %d", code)
	}

	var errResp model.ErrorResponse
	code = send(t, http.MethodPost, srv.URL+"/sep31/transactions", token, model.TransactionRequest{
		Amount:     "10",
		AssetCode:  "USDC",
		SenderID:   c.ID,
		ReceiverID: c.ID,
		QuoteID:    quote.ID,
	}, &errResp)
	if code != http.StatusBadRequest || !strings.Contains(errResp.Error, "sell_amount") {
		t.Fatalf("expected sell_amount mismatch, got %d %q", code, errResp.Error)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	_, srv := newServer(t, mockanchor.Config{})

	if code := send(t, http.MethodPost, srv.URL+"/sep38/quote", "", map[string]string{}, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRecordsAreScopedToTheAuthenticatedAccount(t *testing.T) {
	_, srv := newServer(t, mockanchor.Config{})
	owner := login(t, srv)
	other := login(t, srv)

	var c model.CustomerResponse
	send(t, http.MethodPut, srv.URL+"/sep12/customer", owner, model.CustomerProfile{"first_name": "A", "last_name": "B"}, &c)

	req := model.TransactionRequest{Amount: "10", AssetCode: "USDC", SenderID: c.ID, ReceiverID: c.ID}
	if code := send(t, http.MethodPost, srv.URL+"/sep31/transactions", other, req, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for another account's customers, got %d", code)
	}

	var created model.TransactionCreated
	if code := send(t, http.MethodPost, srv.URL+"/sep31/transactions", owner, req, &created); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := send(t, http.MethodGet, srv.URL+"/sep31/transactions/"+created.ID, other, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for another account's transaction, got %d", code)
	}
	if code := send(t, http.MethodGet, srv.URL+"/sep31/transactions/"+created.ID, owner, nil, nil); code != http.StatusOK {
		t.Fatalf("expected 200 for the owner, got %d", code)
	}
}

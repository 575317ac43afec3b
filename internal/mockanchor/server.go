// Package mockanchor is an in-memory stand-in for an anchor platform. It
// speaks the same stellar.toml, SEP-10, SEP-12, SEP-31 and SEP-38 surface the
// harness drives, issues real SEP-10 challenges and verifies their
// signatures, but never watches the ledger: a transaction walks through a
// fixed status sequence, one step per status request.
package mockanchor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"

	"anchor-e2e/internal/metrics"
	"anchor-e2e/internal/model"
	"anchor-e2e/pkg/logger"
)

// Config holds mock anchor behaviour
type Config struct {
	// HomeDomain is embedded in challenges; defaults to the request host.
	HomeDomain string
	// SigningSecret is the SEP-10 server key; random when empty.
	SigningSecret     string
	NetworkPassphrase string
	// Allowlist restricts which accounts may authenticate. Empty allows all.
	Allowlist []string
	// StatusSequence is walked one step per GET /transactions/{id}; the
	// last entry repeats. Defaults to CompleteAfter pending statuses
	// followed by "completed".
	StatusSequence []string
	CompleteAfter  int
	// QuotePrice is sell units per buy unit; defaults to 1.
	QuotePrice decimal.Decimal
	// ChallengeTTL bounds challenge validity; defaults to 5 minutes.
	ChallengeTTL time.Duration
}

// Server is the mock anchor platform
type Server struct {
	cfg        Config
	signingKey *keypair.Full
	allowlist  map[string]bool
	statuses   []string
	store      *memoryStore
	logger     *logger.Logger
	metrics    *metrics.Metrics
	startTime  time.Time
}

// New creates a mock anchor
func New(cfg Config, log *logger.Logger, m *metrics.Metrics) (*Server, error) {
	var (
		kp  *keypair.Full
		err error
	)
	if cfg.SigningSecret != "" {
		kp, err = keypair.ParseFull(cfg.SigningSecret)
	} else {
		kp, err = keypair.Random()
	}
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	if cfg.NetworkPassphrase == "" {
		return nil, fmt.Errorf("network passphrase is required")
	}
	if cfg.QuotePrice.IsZero() {
		cfg.QuotePrice = decimal.NewFromInt(1)
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}

	statuses := cfg.StatusSequence
	if len(statuses) == 0 {
		for i := 0; i < cfg.CompleteAfter; i++ {
			statuses = append(statuses, model.StatusPendingReceiver)
		}
		statuses = append(statuses, model.StatusCompleted)
	}

	allow := make(map[string]bool, len(cfg.Allowlist))
	for _, a := range cfg.Allowlist {
		allow[a] = true
	}

	return &Server{
		cfg:        cfg,
		signingKey: kp,
		allowlist:  allow,
		statuses:   statuses,
		store:      newMemoryStore(),
		logger:     log,
		metrics:    m,
		startTime:  time.Now(),
	}, nil
}

// SigningAddress is the SEP-10 server account
func (s *Server) SigningAddress() string {
	return s.signingKey.Address()
}

// Transaction returns a created transaction and how often its status was
// requested.
func (s *Server) Transaction(id string) (model.Transaction, int, bool) {
	return s.store.transaction(id)
}

// Counts returns how many customers, quotes and transactions exist
func (s *Server) Counts() (customers, quotes, transactions int) {
	return s.store.counts()
}

// Routes builds the HTTP router
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.checkHealth).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/stellar.toml", s.serveToml).Methods(http.MethodGet)

	r.HandleFunc("/auth", s.getChallenge).Methods(http.MethodGet)
	r.HandleFunc("/auth", s.postChallenge).Methods(http.MethodPost)

	r.HandleFunc("/sep12/customer", s.authenticate(s.putCustomer)).Methods(http.MethodPut)
	r.HandleFunc("/sep38/quote", s.authenticate(s.postQuote)).Methods(http.MethodPost)
	r.HandleFunc("/sep31/transactions", s.authenticate(s.postTransaction)).Methods(http.MethodPost)
	r.HandleFunc("/sep31/transactions/{id}", s.authenticate(s.getTransaction)).Methods(http.MethodGet)

	return r
}

func (s *Server) checkHealth(w http.ResponseWriter, r *http.Request) {
	customers, quotes, transactions := s.store.counts()
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"signing_key":     s.signingKey.Address(),
		"customers":       customers,
		"quotes":          quotes,
		"transactions":    transactions,
		"uptime":          time.Since(s.startTime).String(),
		"timestamp":       time.Now().Format(time.RFC3339),
		"status_sequence": s.statuses,
	})
}

func sendJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, model.ErrorResponse{Error: message})
}

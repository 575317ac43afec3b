package mockanchor

import (
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/google/uuid"

	"anchor-e2e/internal/model"
)

type transactionRecord struct {
	model.Transaction
	owner string
	polls int
}

// memoryStore keeps everything the mock anchor creates. Customers and
// transactions belong to the account that created them and are invisible
// to other accounts. Safe for concurrent use.
type memoryStore struct {
	mu           sync.Mutex
	tokens       map[string]string // token -> account
	customers    map[string]string // customer id -> owner
	quotes       map[string]model.Quote
	transactions map[string]*transactionRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tokens:       make(map[string]string),
		customers:    make(map[string]string),
		quotes:       make(map[string]model.Quote),
		transactions: make(map[string]*transactionRecord),
	}
}

func (s *memoryStore) issueToken(account string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = account
	return token
}

func (s *memoryStore) accountForToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.tokens[token]
	return account, ok
}

func (s *memoryStore) saveCustomer(owner string) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[id] = owner
	return id
}

func (s *memoryStore) hasCustomer(owner, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.customers[id]
	return ok && o == owner
}

func (s *memoryStore) saveQuote(q model.Quote) model.Quote {
	q.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID] = q
	return q
}

func (s *memoryStore) getQuote(id string) (model.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	return q, ok
}

func (s *memoryStore) createTransaction(owner string, req model.TransactionRequest, settleTo, initialStatus string) (*transactionRecord, error) {
	memo := make([]byte, 32)
	if _, err := rand.Read(memo); err != nil {
		return nil, err
	}

	rec := &transactionRecord{
		Transaction: model.Transaction{
			ID:               uuid.NewString(),
			Status:           initialStatus,
			AmountIn:         req.Amount,
			QuoteID:          req.QuoteID,
			StellarAccountID: settleTo,
			StellarMemo:      base64.StdEncoding.EncodeToString(memo),
		},
		owner: owner,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[rec.ID] = rec
	return rec, nil
}

// pollTransaction returns the owner's record and advances it one step
// along seq
func (s *memoryStore) pollTransaction(owner, id string, seq []string) (model.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.transactions[id]
	if !ok || rec.owner != owner {
		return model.Transaction{}, false
	}
	if len(seq) > 0 {
		i := rec.polls
		if i >= len(seq) {
			i = len(seq) - 1
		}
		rec.Status = seq[i]
	}
	rec.polls++
	return rec.Transaction, true
}

// Transaction returns a snapshot of a created transaction. Used by tests.
func (s *memoryStore) transaction(id string) (model.Transaction, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, 0, false
	}
	return rec.Transaction, rec.polls, true
}

func (s *memoryStore) counts() (customers, quotes, transactions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers), len(s.quotes), len(s.transactions)
}

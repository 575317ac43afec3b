package ledger

import (
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Signer holds the test account keypair for the duration of a run. It is
// never persisted.
type Signer struct {
	kp         *keypair.Full
	passphrase string
}

// NewSigner parses a Stellar secret seed (S...)
func NewSigner(secret, networkPassphrase string) (*Signer, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}
	return &Signer{kp: kp, passphrase: networkPassphrase}, nil
}

// RandomAddress returns the public key of a freshly generated keypair
func RandomAddress() (string, error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", fmt.Errorf("failed to generate keypair: %w", err)
	}
	return kp.Address(), nil
}

// Address returns the public key (G...)
func (s *Signer) Address() string {
	return s.kp.Address()
}

// NetworkPassphrase returns the passphrase signatures are bound to
func (s *Signer) NetworkPassphrase() string {
	return s.passphrase
}

// SignChallenge co-signs a base64 XDR challenge envelope issued by the
// anchor's web auth endpoint and returns the re-encoded envelope.
func (s *Signer) SignChallenge(envelopeXDR string) (string, error) {
	generic, err := txnbuild.TransactionFromXDR(envelopeXDR)
	if err != nil {
		return "", fmt.Errorf("failed to parse challenge envelope: %w", err)
	}
	tx, ok := generic.Transaction()
	if !ok {
		return "", fmt.Errorf("challenge envelope is a fee bump transaction")
	}

	tx, err = tx.Sign(s.passphrase, s.kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge: %w", err)
	}

	signed, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode signed challenge: %w", err)
	}
	return signed, nil
}

func (s *Signer) full() *keypair.Full {
	return s.kp
}

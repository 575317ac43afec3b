package anchor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BurntSushi/toml"
)

// WellKnownPath is where an anchor publishes its stellar.toml
const WellKnownPath = "/.well-known/stellar.toml"

// maxTomlSize mirrors the SEP-1 limit on stellar.toml documents
const maxTomlSize = 100 * 1024

// StellarToml holds the stellar.toml fields the harness cares about
type StellarToml struct {
	NetworkPassphrase   string `toml:"NETWORK_PASSPHRASE"`
	SigningKey          string `toml:"SIGNING_KEY"`
	WebAuthEndpoint     string `toml:"WEB_AUTH_ENDPOINT"`
	KYCServer           string `toml:"KYC_SERVER"`
	AnchorQuoteServer   string `toml:"ANCHOR_QUOTE_SERVER"`
	DirectPaymentServer string `toml:"DIRECT_PAYMENT_SERVER"`
}

// Endpoints are the four service URLs resolved once per run
type Endpoints struct {
	Auth         string
	Customer     string
	Quote        string
	Transactions string
}

// TomlURL builds the stellar.toml URL for domain. A domain that already
// carries a scheme keeps it; a bare host gets https only when asked for.
func TomlURL(domain string, useHTTPS bool) string {
	domain = strings.TrimRight(domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain + WellKnownPath
	}
	scheme := "http"
	if useHTTPS {
		scheme = "https"
	}
	return scheme + "://" + domain + WellKnownPath
}

// FetchStellarToml downloads and parses the anchor's stellar.toml
func FetchStellarToml(ctx context.Context, client *http.Client, domain string, useHTTPS bool) (*StellarToml, error) {
	url := TomlURL(domain, useHTTPS)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: http.MethodGet, URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTomlSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if len(body) > maxTomlSize {
		return nil, fmt.Errorf("stellar.toml at %s exceeds %d bytes", url, maxTomlSize)
	}

	var doc StellarToml
	if _, err := toml.Decode(string(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse stellar.toml: %w", err)
	}
	return &doc, nil
}

// Endpoints derives the service URLs. Missing fields are not validated;
// they surface as request errors at the call site.
func (t *StellarToml) Endpoints() Endpoints {
	return Endpoints{
		Auth:         t.WebAuthEndpoint,
		Customer:     t.KYCServer + "/customer",
		Quote:        t.AnchorQuoteServer + "/quote",
		Transactions: t.DirectPaymentServer + "/transactions",
	}
}

// ResolveEndpoints fetches stellar.toml and returns the endpoint bundle
func ResolveEndpoints(ctx context.Context, client *http.Client, domain string, useHTTPS bool) (Endpoints, error) {
	doc, err := FetchStellarToml(ctx, client, domain, useHTTPS)
	if err != nil {
		return Endpoints{}, err
	}
	return doc.Endpoints(), nil
}

package anchor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"anchor-e2e/internal/model"
)

// ChallengeSigner co-signs SEP-10 challenge envelopes
type ChallengeSigner interface {
	Address() string
	SignChallenge(envelopeXDR string) (string, error)
}

func (c *Client) challengeURL(account string) (string, error) {
	u, err := url.Parse(c.endpoints.Auth)
	if err != nil {
		return "", fmt.Errorf("invalid auth endpoint %q: %w", c.endpoints.Auth, err)
	}
	q := u.Query()
	q.Set("account", account)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ObtainToken runs the SEP-10 challenge/response exchange and returns the
// session token. Failures are not retried.
func (c *Client) ObtainToken(ctx context.Context, signer ChallengeSigner) (string, error) {
	c.logger.Info("Getting token from anchor platform", "account", signer.Address())

	challengeURL, err := c.challengeURL(signer.Address())
	if err != nil {
		return "", err
	}

	var challenge model.ChallengeResponse
	if _, err := c.do(ctx, http.MethodGet, challengeURL, "auth", "", nil, "", &challenge); err != nil {
		return "", fmt.Errorf("failed to request challenge: %w", err)
	}
	if challenge.Transaction == "" {
		return "", errors.New("challenge response has no transaction")
	}

	signed, err := signer.SignChallenge(challenge.Transaction)
	if err != nil {
		return "", err
	}

	var token model.TokenResponse
	form := url.Values{"transaction": {signed}}
	if err := c.doForm(ctx, c.endpoints.Auth, "auth", form, &token); err != nil {
		return "", fmt.Errorf("failed to submit signed challenge: %w", err)
	}
	if token.Token == "" {
		return "", errors.New("token response has no token")
	}
	return token.Token, nil
}

// ChallengeStatus requests a challenge for account and returns only the
// HTTP status code. Non-2xx statuses are not errors here.
func (c *Client) ChallengeStatus(ctx context.Context, account string) (int, error) {
	challengeURL, err := c.challengeURL(account)
	if err != nil {
		return 0, err
	}

	code, err := c.do(ctx, http.MethodGet, challengeURL, "auth", "", nil, "", nil)
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, nil
	}
	return code, err
}

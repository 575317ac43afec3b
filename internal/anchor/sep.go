package anchor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"anchor-e2e/internal/model"
)

// PutCustomer creates or updates a SEP-12 customer and returns its ID
func (c *Client) PutCustomer(ctx context.Context, auth AuthHeader, profile model.CustomerProfile) (string, error) {
	c.logger.Info("Creating customer in anchor platform")

	var resp model.CustomerResponse
	if err := c.doJSON(ctx, http.MethodPut, c.endpoints.Customer, "customer", auth, profile, &resp); err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("customer response has no id")
	}
	return resp.ID, nil
}

// CreateQuote requests a SEP-38 firm quote
func (c *Client) CreateQuote(ctx context.Context, auth AuthHeader, req model.QuoteRequest) (*model.Quote, error) {
	c.logger.Info("Creating SEP-38 quote",
		"sell_asset", req.SellAsset,
		"sell_amount", req.SellAmount.String(),
		"buy_asset", req.BuyAsset,
		"expire_after", req.ExpireAfter,
	)

	var quote model.Quote
	if err := c.doJSON(ctx, http.MethodPost, c.endpoints.Quote, "quote", auth, req, &quote); err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	if quote.ID == "" {
		return nil, errors.New("quote response has no id")
	}

	c.logger.Info("Quote created",
		"quote_id", quote.ID,
		"price", quote.Price.String(),
		"buy_amount", quote.BuyAmount.String(),
		"expires_at", quote.ExpiresAt,
	)
	return &quote, nil
}

// CreateTransaction posts a SEP-31 transaction
func (c *Client) CreateTransaction(ctx context.Context, auth AuthHeader, req model.TransactionRequest) (*model.TransactionCreated, error) {
	c.logger.Info("Creating transaction in anchor platform",
		"asset_code", req.AssetCode,
		"amount", req.Amount,
		"quote_id", req.QuoteID,
	)

	var created model.TransactionCreated
	if err := c.doJSON(ctx, http.MethodPost, c.endpoints.Transactions, "transactions", auth, req, &created); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if created.ID == "" {
		return nil, errors.New("transaction response has no id")
	}

	c.logger.WithTransaction(created.ID).Info("Transaction created",
		"stellar_account_id", created.StellarAccountID,
		"stellar_memo", created.StellarMemo,
	)
	return &created, nil
}

// GetTransaction fetches a SEP-31 transaction by ID
func (c *Client) GetTransaction(ctx context.Context, auth AuthHeader, id string) (*model.Transaction, error) {
	var resp model.TransactionResponse
	target := c.endpoints.Transactions + "/" + url.PathEscape(id)
	if _, err := c.do(ctx, http.MethodGet, target, "transactions", auth, nil, "", &resp); err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return &resp.Transaction, nil
}

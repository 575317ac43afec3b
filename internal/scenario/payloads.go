package scenario

import (
	"github.com/shopspring/decimal"

	"anchor-e2e/internal/model"
)

// TestAssetIssuer issues the USDC and JPYC test assets on testnet
const TestAssetIssuer = "GDQOE23CFSUMSVQK4Y5JHPPYK73VYCNHZHA7ENKCV37P6SUEO6XQBKPP"

// Every builder below returns a new value so scenarios never share
// mutable payloads.

// SendingCustomer is the SEP-12 profile of the sending client
func SendingCustomer() model.CustomerProfile {
	return model.CustomerProfile{
		"first_name":    "Allie",
		"last_name":     "Grater",
		"email_address": "allie@email.com",
	}
}

// ReceivingCustomer is the SEP-12 profile of the receiving client
func ReceivingCustomer() model.CustomerProfile {
	return model.CustomerProfile{
		"first_name":           "John",
		"last_name":            "Doe",
		"address":              "123 Washington Street",
		"city":                 "San Francisco",
		"state_or_province":    "CA",
		"address_country_code": "US",
		"clabe_number":         "1234",
		"bank_number":          "abcd",
		"bank_account_number":  "1234",
		"bank_account_type":    "checking",
	}
}

func swiftFields() model.TransactionFields {
	return model.TransactionFields{
		"transaction": {
			"receiver_routing_number": "r0123",
			"receiver_account_number": "a0456",
			"type":                    "SWIFT",
		},
	}
}

// TransactionFor builds a SEP-31 transaction request for a test asset
func TransactionFor(assetCode string) model.TransactionRequest {
	return model.TransactionRequest{
		Amount:      "10.0",
		AssetCode:   assetCode,
		AssetIssuer: TestAssetIssuer,
		Fields:      swiftFields(),
	}
}

// StellarAsset formats a SEP-38 asset identifier for a test asset
func StellarAsset(code string) string {
	return "stellar:" + code + ":" + TestAssetIssuer
}

// QuoteFor builds a SEP-38 quote request selling 10 units of sell for buy
func QuoteFor(sell, buy string) model.QuoteRequest {
	return model.QuoteRequest{
		SellAsset:  sell,
		SellAmount: decimal.NewFromInt(10),
		BuyAsset:   buy,
		Context:    "sep31",
	}
}

// USDCToJPYCQuote sells USDC for JPYC
func USDCToJPYCQuote() model.QuoteRequest {
	return QuoteFor(StellarAsset("USDC"), StellarAsset("JPYC"))
}

// JPYCToUSDQuote sells JPYC for fiat USD
func JPYCToUSDQuote() model.QuoteRequest {
	return QuoteFor(StellarAsset("JPYC"), "iso4217:USD")
}

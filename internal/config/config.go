package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Anchor     AnchorConfig
	Ledger     LedgerConfig
	Polling    PollingConfig
	Run        RunConfig
	Report     ReportConfig
	WhatsApp   WhatsAppConfig
	MockAnchor MockAnchorConfig
}

// AnchorConfig holds the anchor platform under test
type AnchorConfig struct {
	Domain      string
	UseHTTPS    bool
	Secret      string
	HTTPTimeout time.Duration
}

// LedgerConfig holds Stellar network settings used for settlement payments
type LedgerConfig struct {
	HorizonURL        string
	NetworkPassphrase string
	PaymentAmount     string
	BaseFee           int64
	TxTimeout         time.Duration
}

// PollingConfig holds readiness and transaction status polling settings
type PollingConfig struct {
	ReadyInterval  time.Duration
	ReadyTimeout   time.Duration
	StatusInterval time.Duration
	StatusTimeout  time.Duration
}

// RunConfig holds scenario selection
type RunConfig struct {
	Tests    []string
	Delay    time.Duration
	QuoteTTL time.Duration
	LogLevel string
}

// ReportConfig holds optional result sinks
type ReportConfig struct {
	DB           string
	KafkaBrokers []string
	KafkaTopic   string
	MetricsFile  string

	WebhookURL     string
	WebhookTimeout time.Duration
	WebhookRetries int
}

// WhatsAppConfig holds run notification settings
type WhatsAppConfig struct {
	DBPath    string
	NotifyJID string
	QRFile    string
}

// MockAnchorConfig holds settings for the local mock anchor platform
type MockAnchorConfig struct {
	Port          string
	HomeDomain    string
	SigningSecret string
	Allowlist     []string
	CompleteAfter int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Anchor: AnchorConfig{
			Domain:      getEnv("E2E_DOMAIN", "http://localhost:8000"),
			UseHTTPS:    parseBool(getEnv("E2E_USE_HTTPS", "false"), false),
			Secret:      getEnv("E2E_SECRET", ""),
			HTTPTimeout: parseDuration(getEnv("HTTP_TIMEOUT", "30s"), 30*time.Second),
		},
		Ledger: LedgerConfig{
			HorizonURL:        getEnv("HORIZON_URL", "https://horizon-testnet.stellar.org"),
			NetworkPassphrase: getEnv("NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
			PaymentAmount:     getEnv("PAYMENT_AMOUNT", "10"),
			BaseFee:           int64(parseInt(getEnv("BASE_FEE", "100"), 100)),
			TxTimeout:         parseDuration(getEnv("TX_TIMEOUT", "30s"), 30*time.Second),
		},
		Polling: PollingConfig{
			ReadyInterval:  parseDuration(getEnv("READY_POLL_INTERVAL", "3s"), 3*time.Second),
			ReadyTimeout:   parseDuration(getEnv("READY_TIMEOUT", "180s"), 180*time.Second),
			StatusInterval: parseDuration(getEnv("STATUS_POLL_INTERVAL", "2s"), 2*time.Second),
			StatusTimeout:  parseDuration(getEnv("STATUS_TIMEOUT", "120s"), 120*time.Second),
		},
		Run: RunConfig{
			Tests:    parseStringList(getEnv("E2E_TESTS", "")),
			Delay:    parseDuration(getEnv("E2E_DELAY", "0s"), 0),
			QuoteTTL: parseDuration(getEnv("QUOTE_TTL", "48h"), 48*time.Hour),
			LogLevel: getEnv("LOG_LEVEL", "INFO"),
		},
		Report: ReportConfig{
			DB:           getEnv("REPORT_DB", ""),
			KafkaBrokers: parseStringList(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "anchor_e2e_results"),
			MetricsFile:  getEnv("METRICS_FILE", ""),

			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeout: parseDuration(getEnv("NOTIFY_WEBHOOK_TIMEOUT", "10s"), 10*time.Second),
			WebhookRetries: parseInt(getEnv("NOTIFY_WEBHOOK_RETRIES", "3"), 3),
		},
		WhatsApp: WhatsAppConfig{
			DBPath:    getEnv("WA_DB_PATH", "./db/whatsmeow.db"),
			NotifyJID: getEnv("WA_NOTIFY_JID", ""),
			QRFile:    getEnv("WA_QR_FILE", "whatsapp-qrcode.png"),
		},
		MockAnchor: MockAnchorConfig{
			Port:          getEnv("MOCK_ANCHOR_PORT", "8000"),
			HomeDomain:    getEnv("MOCK_ANCHOR_HOME_DOMAIN", "localhost:8000"),
			SigningSecret: getEnv("MOCK_ANCHOR_SIGNING_SECRET", ""),
			Allowlist:     parseStringList(getEnv("MOCK_ANCHOR_ALLOWLIST", "")),
			CompleteAfter: parseInt(getEnv("MOCK_ANCHOR_COMPLETE_AFTER", "2"), 2),
		},
	}

	return config, nil
}

// Validate checks the fields the test harness cannot run without
func (c *Config) Validate() error {
	if c.Anchor.Secret == "" {
		return fmt.Errorf("E2E_SECRET (or --secret) is required")
	}
	if c.Anchor.Domain == "" {
		return fmt.Errorf("E2E_DOMAIN (or --domain) is required")
	}
	if c.Anchor.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Polling.ReadyInterval <= 0 || c.Polling.ReadyTimeout <= 0 {
		return fmt.Errorf("readiness poll interval and timeout must be positive")
	}
	if c.Polling.StatusInterval <= 0 || c.Polling.StatusTimeout <= 0 {
		return fmt.Errorf("status poll interval and timeout must be positive")
	}
	if c.Run.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func parseBool(value string, defaultValue bool) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// ParseDuration reads a Go duration ("90s", "2m"). A bare integer is read
// as seconds.
func ParseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// parseStringList parses comma-separated string to slice
func parseStringList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseStringList exposes the comma-list parsing used for env values so
// CLI flags accept the same syntax.
func ParseStringList(value string) []string {
	return parseStringList(value)
}

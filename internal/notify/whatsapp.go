package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"anchor-e2e/internal/config"
	"anchor-e2e/internal/model"
	"anchor-e2e/internal/poll"
	"anchor-e2e/pkg/logger"
)

// ErrNotPaired is returned when no linked device session exists yet
var ErrNotPaired = errors.New("whatsapp device not paired, run notify-pair first")

var errNotLoggedIn = errors.New("not logged in yet")

var _ Notifier = (*WhatsApp)(nil)

// ParseRecipient accepts a full JID (628123@s.whatsapp.net, 1203630@g.us)
// or a bare phone number.
func ParseRecipient(to string) (types.JID, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return types.JID{}, errors.New("empty recipient")
	}
	if strings.Contains(to, "@") {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid JID: %w", err)
		}
		return jid, nil
	}

	phone := strings.TrimLeft(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, to), "0")
	if len(phone) < 8 || len(phone) > 15 {
		return types.JID{}, fmt.Errorf("invalid phone number %q", to)
	}
	return types.NewJID(phone, types.DefaultUserServer), nil
}

// WhatsApp sends run summaries from a linked WhatsApp device
type WhatsApp struct {
	client *whatsmeow.Client
	to     types.JID
	qrFile string
	logger *logger.Logger
}

// NewWhatsApp opens the device session store. The recipient may be empty
// when the instance is only used for pairing.
func NewWhatsApp(ctx context.Context, cfg *config.WhatsAppConfig, log *logger.Logger) (*WhatsApp, error) {
	var to types.JID
	if cfg.NotifyJID != "" {
		jid, err := ParseRecipient(cfg.NotifyJID)
		if err != nil {
			return nil, err
		}
		to = jid
	}

	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", cfg.DBPath), waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &WhatsApp{
		client: whatsmeow.NewClient(deviceStore, waLog.Noop),
		to:     to,
		qrFile: cfg.QRFile,
		logger: log,
	}, nil
}

// Connect resumes an existing session
func (w *WhatsApp) Connect() error {
	if w.client.Store.ID == nil {
		return ErrNotPaired
	}

	w.client.AddEventHandler(func(evt any) {
		switch v := evt.(type) {
		case *events.Connected:
			w.logger.Info("WhatsApp client connected")
		case *events.Disconnected:
			w.logger.Warn("WhatsApp client disconnected")
		case *events.LoggedOut:
			w.logger.Error("Device logged out", "reason", v.Reason)
		}
	})

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// WaitLoggedIn blocks until the resumed session has authenticated
func (w *WhatsApp) WaitLoggedIn(ctx context.Context) error {
	return poll.Until(ctx, poll.Options{
		Interval: 500 * time.Millisecond,
		Timeout:  15 * time.Second,
	}, func(context.Context, int) error {
		if !w.client.IsLoggedIn() {
			return errNotLoggedIn
		}
		return nil
	})
}

// Pair links a new device by QR code. Each code is rendered to out and
// saved as a PNG so it can also be scanned from a file.
func (w *WhatsApp) Pair(ctx context.Context, out io.Writer) error {
	if w.client.Store.ID != nil {
		w.logger.Info("Existing session found, nothing to pair")
		return nil
	}

	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to open QR channel: %w", err)
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp: %w", err)
	}

	refreshes := 0
	for evt := range qrChan {
		switch evt.Event {
		case whatsmeow.QRChannelEventCode:
			refreshes++
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, w.qrFile); err != nil {
				w.logger.Error("Failed to generate QR code PNG", "error", err)
			}
			fmt.Fprintf(out, "\nScan with WhatsApp > Linked Devices (code #%d, saved to %s)\n", refreshes, w.qrFile)
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, out)
			w.logger.Info("QR code generated", "file", w.qrFile, "refresh_count", refreshes, "expires_in", evt.Timeout.String())

		case whatsmeow.QRChannelSuccess.Event:
			w.logger.Info("Pairing successful", "jid", w.client.Store.ID.String())
			return nil

		case whatsmeow.QRChannelEventError:
			return fmt.Errorf("QR pairing failed: %w", evt.Error)

		default:
			return fmt.Errorf("QR pairing ended: %s", evt.Event)
		}
	}
	return ctx.Err()
}

// Notify sends the formatted summary to the configured recipient
func (w *WhatsApp) Notify(ctx context.Context, summary model.RunSummary) error {
	if w.to.IsEmpty() {
		return errors.New("no WhatsApp recipient configured")
	}
	if !w.client.IsConnected() {
		return fmt.Errorf("WhatsApp client not connected")
	}

	text := FormatSummary(summary)
	resp, err := w.client.SendMessage(ctx, w.to, &waE2E.Message{Conversation: &text})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	w.logger.WithRun(summary.RunID).Info("Run summary sent", "to", w.to.String(), "message_id", resp.ID)
	return nil
}

// Disconnect closes the websocket
func (w *WhatsApp) Disconnect() {
	w.client.Disconnect()
}

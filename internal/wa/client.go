package wa

import (
	"context"
	"fmt"
	"log/slog"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"
)

// MessageHandler receives every inbound message event.
type MessageHandler func(ctx context.Context, evt *events.Message)

// Client wraps the whatsmeow client with the device store and event fan-out.
type Client struct {
	wm      *whatsmeow.Client
	store   *sqlstore.Container
	logger  *slog.Logger
	handler MessageHandler
}

// Options configures the WhatsApp connection.
type Options struct {
	StorePath string
	LogLevel  string
}

// New opens the device store and builds a client for the first stored device.
// A fresh store produces a device pending QR pairing; Connect handles that.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	dbLog := waLog.Stdout("WADB", opts.LogLevel, true)
	address := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", opts.StorePath)
	container, err := sqlstore.New(ctx, "sqlite", address, dbLog)
	if err != nil {
		return nil, fmt.Errorf("open whatsapp store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}

	clientLog := waLog.Stdout("WAClient", opts.LogLevel, true)
	wm := whatsmeow.NewClient(device, clientLog)

	c := &Client{wm: wm, store: container, logger: logger.With("component", "wa")}
	wm.AddEventHandler(c.dispatch)
	return c, nil
}

// SetMessageHandler registers the inbound message callback. Must be called
// before Connect.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.handler = h
}

// Connect brings the session up. An unpaired device prints QR codes to the
// log until the phone scans one.
func (c *Client) Connect(ctx context.Context) error {
	if c.wm.Store.ID == nil {
		qrChan, err := c.wm.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("qr channel: %w", err)
		}
		if err := c.wm.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
		go func() {
			for evt := range qrChan {
				switch evt.Event {
				case "code":
					c.logger.Info("scan QR code to pair", "code", evt.Code)
				default:
					c.logger.Info("qr channel event", "event", evt.Event)
				}
			}
		}()
		return nil
	}
	if err := c.wm.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}
	return nil
}

// Disconnect tears the session down and closes the device store.
func (c *Client) Disconnect() {
	c.wm.Disconnect()
	if err := c.store.Close(); err != nil {
		c.logger.Warn("failed closing whatsapp store", "error", err)
	}
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, to types.JID, text string) error {
	msg := &waProto.Message{Conversation: proto.String(text)}
	if _, err := c.wm.SendMessage(ctx, to, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) dispatch(evt any) {
	switch e := evt.(type) {
	case *events.Message:
		if c.handler != nil {
			c.handler(context.Background(), e)
		}
	case *events.Connected:
		c.logger.Info("whatsapp connected")
	case *events.LoggedOut:
		c.logger.Warn("whatsapp logged out, re-pair required", "reason", e.Reason)
	}
}

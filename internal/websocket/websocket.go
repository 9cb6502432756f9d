// Package websocket performs a short websocket exchange for one iteration:
// dial, send the configured messages, collect replies until the receive
// window closes, then close the connection.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/repeater/internal/repetition"
)

// Message is one frame. Type is websocket.TextMessage or
// websocket.BinaryMessage.
type Message struct {
	Type int
	Data []byte
}

// Metrics is a snapshot of one client's traffic.
type Metrics struct {
	ConnectionDuration time.Duration
	MessagesSent       int64
	MessagesReceived   int64
	BytesSent          int64
	BytesReceived      int64
	Errors             int64
}

// Handshake is the server's upgrade response.
type Handshake struct {
	StatusCode int
	Status     string
	Proto      string
	Headers    http.Header
}

// Config configures a Client. Zero durations and sizes take defaults.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
}

const (
	defaultHandshakeTimeout = 30 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultMaxMessageSize   = 1 << 20
	closeGracePeriod        = 5 * time.Second
)

type counters struct {
	sent, received           atomic.Int64
	bytesSent, bytesReceived atomic.Int64
	errors                   atomic.Int64
}

// Client owns at most one connection. Writes are serialized; a single
// goroutine may read concurrently with writes.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	stats  counters

	mu          sync.Mutex
	conn        *websocket.Conn
	connectedAt time.Time
}

// NewClient returns an unconnected client.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// Connect dials the server and returns its upgrade response.
func (c *Client) Connect(ctx context.Context) (Handshake, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return Handshake{}, errors.New("websocket: already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	if err != nil {
		c.stats.errors.Add(1)
		if resp != nil {
			return Handshake{}, fmt.Errorf("websocket: dial returned status %d: %w", resp.StatusCode, err)
		}
		return Handshake{}, fmt.Errorf("websocket: dial: %w", err)
	}
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn = conn
	c.connectedAt = time.Now()
	return handshakeFrom(resp), nil
}

func handshakeFrom(resp *http.Response) Handshake {
	hs := Handshake{StatusCode: http.StatusSwitchingProtocols}
	if resp != nil {
		hs.StatusCode = resp.StatusCode
		hs.Status = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
		hs.Proto = resp.Proto
		hs.Headers = resp.Header.Clone()
	}
	if hs.Status == "" {
		hs.Status = http.StatusText(hs.StatusCode)
	}
	return hs
}

func (c *Client) current() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, errors.New("websocket: not connected")
	}
	return c.conn, nil
}

// SendMessage writes msg. The write deadline is the earlier of ctx's
// deadline and the configured write timeout.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("websocket: not connected")
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("write message: %w", err)
	}
	c.stats.sent.Add(1)
	c.stats.bytesSent.Add(int64(len(msg.Data)))
	return nil
}

// ReceiveMessage reads one frame, giving up at deadline.
func (c *Client) ReceiveMessage(deadline time.Time) (Message, error) {
	conn, err := c.current()
	if err != nil {
		return Message{}, err
	}
	_ = conn.SetReadDeadline(deadline)
	typ, data, err := conn.ReadMessage()
	if err != nil {
		c.stats.errors.Add(1)
		return Message{}, fmt.Errorf("read message: %w", err)
	}
	c.stats.received.Add(1)
	c.stats.bytesReceived.Add(int64(len(data)))
	return Message{Type: typ, Data: data}, nil
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	if err := conn.Close(); err != nil {
		return err
	}
	return writeErr
}

// abort drops the connection without a close handshake so a blocked read
// returns.
func (c *Client) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

// Metrics returns the traffic counters so far.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	connectedAt := c.connectedAt
	c.mu.Unlock()

	m := Metrics{
		MessagesSent:     c.stats.sent.Load(),
		MessagesReceived: c.stats.received.Load(),
		BytesSent:        c.stats.bytesSent.Load(),
		BytesReceived:    c.stats.bytesReceived.Load(),
		Errors:           c.stats.errors.Load(),
	}
	if !connectedAt.IsZero() {
		m.ConnectionDuration = time.Since(connectedAt)
	}
	return m
}

// ExchangeOptions describe one exchange.
type ExchangeOptions struct {
	Messages        []string
	MessageInterval time.Duration
	// ReceiveTimeout is how long to collect replies after the last send.
	// Zero skips receiving.
	ReceiveTimeout time.Duration
}

// Exchange connects, sends every message as a text frame and collects text
// replies. The returned Response carries the handshake status and headers;
// its body is the received frames joined by newlines.
func (c *Client) Exchange(ctx context.Context, opts ExchangeOptions) (*repetition.Response, error) {
	start := time.Now()

	hs, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.abort()
		case <-stop:
		}
	}()

	for i, msg := range opts.Messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.SendMessage(ctx, Message{Type: websocket.TextMessage, Data: []byte(msg)}); err != nil {
			return nil, contextOr(ctx, fmt.Errorf("send message: %w", err))
		}
		if opts.MessageInterval > 0 && i < len(opts.Messages)-1 {
			select {
			case <-time.After(opts.MessageInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	var frames []string
	if opts.ReceiveTimeout > 0 {
		deadline := time.Now().Add(opts.ReceiveTimeout)
		for {
			msg, err := c.ReceiveMessage(deadline)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if isWindowClosed(err) {
					break
				}
				return nil, fmt.Errorf("receive message: %w", err)
			}
			frames = append(frames, string(msg.Data))
		}
	}

	return &repetition.Response{
		StatusCode: hs.StatusCode,
		Status:     hs.Status,
		Proto:      hs.Proto,
		Headers:    hs.Headers,
		Body:       []byte(strings.Join(frames, "\n")),
		Elapsed:    time.Since(start),
	}, nil
}

// isWindowClosed reports whether a read ended because the receive window
// elapsed or the server closed the connection normally.
func isWindowClosed(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func contextOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

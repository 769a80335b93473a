package push

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/campus-client/internal/model"
)

// notificationsPath is the backend's push endpoint, relative to the
// websocket form of the base URL.
const notificationsPath = "/ws/notifications/"

// DefaultToastDuration is how long a toast stays on screen.
const DefaultToastDuration = 4 * time.Second

// historyTimeout bounds the sqlite write for a delivered event.
const historyTimeout = 5 * time.Second

// CredentialSource supplies the credential used to open the
// connection. It is re-read on every reconnect attempt so a refreshed
// token is picked up without reopening the channel.
type CredentialSource interface {
	Current() (model.Credential, bool)
}

// HistorySink receives every delivered event for durable storage.
type HistorySink interface {
	CreateNotification(ctx context.Context, n model.Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
}

// ConnState describes the channel's connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateBackingOff
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackingOff:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// EventMsg is a tea.Msg carrying a delivered notification.
type EventMsg struct {
	Event model.Notification
}

// ToastMsg is a tea.Msg asking the UI to show a short-lived toast.
// The toast expires after Duration regardless of the queue.
type ToastMsg struct {
	Event    model.Notification
	Duration time.Duration
}

// ConnStateMsg is a tea.Msg reporting a connection state change.
type ConnStateMsg struct {
	State ConnState

	// NextAttempt is when the next reconnect fires; zero unless the
	// state is StateBackingOff.
	NextAttempt time.Time
}

// Config controls the channel's queue and reconnect behavior.
type Config struct {
	// Capacity bounds the in-memory queue; non-positive selects
	// DefaultCapacity.
	Capacity int

	// ToastDuration is the toast display time; non-positive selects
	// DefaultToastDuration.
	ToastDuration time.Duration

	// Backoff shapes the reconnect delay; a zero value selects
	// DefaultBackoff.
	Backoff BackoffConfig
}

// Channel maintains the push connection and exposes the bounded event
// queue. Events are delivered in wire order; a dropped connection is
// re-established with exponential backoff while the queue is kept.
type Channel struct {
	wsURL   string
	creds   CredentialSource
	cfg     Config
	queue   *Queue
	history HistorySink
	logger  *zap.Logger
	dialer  *websocket.Dialer
	rng     *rand.Rand

	mu          sync.Mutex
	conn        *websocket.Conn
	stopCh      chan struct{}
	running     bool
	state       ConnState
	nextAttempt time.Time

	eventCh chan EventMsg
	toastCh chan ToastMsg
	stateCh chan ConnStateMsg
}

// Option configures a Channel.
type Option func(*Channel)

// WithHistory mirrors every delivered event into a durable sink.
func WithHistory(sink HistorySink) Option {
	return func(c *Channel) { c.history = sink }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a notification channel for the backend at baseURL (the
// HTTP base; the websocket URL is derived from it).
func New(baseURL string, creds CredentialSource, cfg Config, opts ...Option) *Channel {
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = DefaultToastDuration
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}

	c := &Channel{
		wsURL:   websocketURL(baseURL),
		creds:   creds,
		cfg:     cfg,
		queue:   NewQueue(cfg.Capacity),
		logger:  zap.NewNop(),
		dialer:  websocket.DefaultDialer,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		eventCh: make(chan EventMsg, 16),
		toastCh: make(chan ToastMsg, 16),
		stateCh: make(chan ConnStateMsg, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// websocketURL rewrites an HTTP base URL to its websocket form.
func websocketURL(baseURL string) string {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return baseURL + notificationsPath
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = notificationsPath
	return u.String()
}

// Queue returns the channel's event queue.
func (c *Channel) Queue() *Queue {
	return c.queue
}

// State returns the connection state and, while backing off, the time
// of the next reconnect attempt.
func (c *Channel) State() (ConnState, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.nextAttempt
}

// Open establishes the push connection using the current credential.
// At most one connection exists per channel: opening while already
// open tears down the previous connection first. The queue is kept.
func (c *Channel) Open() error {
	if _, ok := c.creds.Current(); !ok {
		return fmt.Errorf("opening notification channel: no credential")
	}

	c.Close()

	c.mu.Lock()
	stop := make(chan struct{})
	c.stopCh = stop
	c.running = true
	c.mu.Unlock()

	go c.run(stop)
	return nil
}

// Close terminates the connection. The queue and its unread counter
// survive; only the transport is torn down. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setState(StateDisconnected, time.Time{})
}

// MarkRead flips an event to read, mirroring into history when a sink
// is attached. Unknown ids are a no-op.
func (c *Channel) MarkRead(ctx context.Context, id string) {
	if !c.queue.MarkRead(id) {
		return
	}
	if c.history != nil {
		if err := c.history.MarkNotificationRead(ctx, id); err != nil {
			c.logger.Warn("marking notification read in history", zap.Error(err))
		}
	}
}

// run dials and reads until stopped, reconnecting with backoff on any
// unexpected close. The credential is re-read per attempt; the loop
// ends if the session has been logged out.
func (c *Channel) run(stop chan struct{}) {
	attempt := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		cred, ok := c.creds.Current()
		if !ok {
			c.setState(StateDisconnected, time.Time{})
			return
		}

		c.setState(StateConnecting, time.Time{})

		conn, resp, err := c.dialer.Dial(c.wsURL+"?token="+url.QueryEscape(cred.Token), nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			c.mu.Lock()
			if !c.running {
				c.mu.Unlock()
				conn.Close()
				return
			}
			c.conn = conn
			c.mu.Unlock()

			attempt = 0
			c.setState(StateConnected, time.Time{})

			err = c.readLoop(conn, stop)

			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			conn.Close()

			select {
			case <-stop:
				return
			default:
			}
			c.logger.Warn("notification connection lost", zap.Error(err))
		} else {
			c.logger.Warn("notification dial failed", zap.Error(err))
		}

		attempt++
		delay := nextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
		c.setState(StateBackingOff, time.Now().Add(delay))

		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
	}
}

// readLoop consumes frames until the connection fails or the channel
// is stopped.
func (c *Channel) readLoop(conn *websocket.Conn, stop chan struct{}) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		select {
		case <-stop:
			return nil
		default:
		}

		c.deliver(data)
	}
}

// deliver parses a frame and appends it to the queue. A frame that
// fails to parse still surfaces as a generic event; inbound activity
// is never dropped silently.
func (c *Channel) deliver(data []byte) {
	var n model.Notification
	if err := json.Unmarshal(data, &n); err != nil || (n.Title == "" && n.Message == "") {
		n = model.Notification{
			ID:        uuid.New().String(),
			Category:  model.CategoryGeneral,
			Title:     "Notification",
			Message:   strings.TrimSpace(string(data)),
			CreatedAt: time.Now(),
		}
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	c.queue.Push(n)

	if c.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if err := c.history.CreateNotification(ctx, n); err != nil {
			c.logger.Warn("storing notification history", zap.Error(err))
		}
		cancel()
	}

	c.send(EventMsg{Event: n})
	c.sendToast(ToastMsg{Event: n, Duration: c.cfg.ToastDuration})
}

// setState records a connection state change and reports it.
func (c *Channel) setState(state ConnState, nextAttempt time.Time) {
	c.mu.Lock()
	c.state = state
	c.nextAttempt = nextAttempt
	c.mu.Unlock()

	select {
	case c.stateCh <- ConnStateMsg{State: state, NextAttempt: nextAttempt}:
	default:
	}
}

// send delivers an event message without blocking the read loop.
func (c *Channel) send(msg EventMsg) {
	select {
	case c.eventCh <- msg:
	default:
		// Drop if the UI is not draining; the queue still holds the event.
	}
}

func (c *Channel) sendToast(msg ToastMsg) {
	select {
	case c.toastCh <- msg:
	default:
	}
}

// WaitForEvent returns a tea.Cmd that waits for the next delivered
// notification. Call again after each EventMsg to keep listening.
func (c *Channel) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.eventCh
		if !ok {
			return nil
		}
		return msg
	}
}

// WaitForToast returns a tea.Cmd that waits for the next toast signal.
func (c *Channel) WaitForToast() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.toastCh
		if !ok {
			return nil
		}
		return msg
	}
}

// WaitForState returns a tea.Cmd that waits for the next connection
// state change.
func (c *Channel) WaitForState() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.stateCh
		if !ok {
			return nil
		}
		return msg
	}
}

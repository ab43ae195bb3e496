// Package collector maintains the durable STOMP subscription to the
// national rail feeds and dispatches inbound payloads to the feed
// decoders.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gmallard/stompngo"
	"go.uber.org/zap"

	"github.com/joshtingey/the-trains/internal/config"
	"github.com/joshtingey/the-trains/internal/feed"
	"github.com/joshtingey/the-trains/internal/metrics"
)

// State is the explicit connection state; operations check state rather
// than connection nullity.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateRecovering:
		return "recovering"
	}
	return "unknown"
}

// ErrMaxAttempts is returned by Run when the configured number of connect
// attempts is exhausted. The process exits cleanly on it so a supervisor
// can restart without crash-looping.
var ErrMaxAttempts = errors.New("maximum number of connection attempts made")

var errChannelClosed = errors.New("subscription channel closed")

var errHeartbeatTimeout = errors.New("heartbeat receive window missed")

// heartbeatPoll is how often pump checks the connection's heartbeat
// health. The broker heartbeats every 100 s, so a 10 s poll notices a
// stalled connection well within one missed window.
const heartbeatPoll = 10 * time.Second

// session is the broker connection surface the manager drives. It is
// satisfied by stompSession; tests substitute a fake.
type session interface {
	Subscribe(h stompngo.Headers) (<-chan stompngo.MessageData, error)
	Ack(h stompngo.Headers) error
	Unsubscribe(h stompngo.Headers) error
	Connected() bool
	// Dirty reports that the peer missed its heartbeat window and the
	// connection can no longer be trusted.
	Dirty() bool
	Frames() <-chan stompngo.MessageData
	Close() error
}

type dialFunc func(ctx context.Context) (session, error)

type event struct {
	feed *feed.Feed
	md   stompngo.MessageData
}

// Manager owns one broker connection and the durable subscriptions of the
// enabled feeds. Payloads are acknowledged before decoding: broker-side
// durability plus idempotent store writes mean a lost decode is tolerable,
// while re-delivery of a malformed message would loop forever.
type Manager struct {
	cfg    config.CollectorConfig
	feeds  []*feed.Feed
	dial   dialFunc
	hbPoll time.Duration
	logger *zap.Logger
	state  atomic.Int32
	sess   session
}

func New(cfg config.CollectorConfig, feeds []*feed.Feed, logger *zap.Logger) *Manager {
	m := &Manager{cfg: cfg, feeds: feeds, hbPoll: heartbeatPoll, logger: logger}
	m.dial = m.stompDial
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Ready reports whether all feeds are subscribed; used by readiness checks.
func (m *Manager) Ready() bool {
	return m.State() == StateSubscribed
}

// Run drives the connection state machine until the context is cancelled
// or the connect attempt budget is exhausted. On cancellation it
// unsubscribes and disconnects so the broker-side durable state survives
// for the next process.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := m.connect(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		events, done, err := m.subscribeAll()
		if err != nil {
			m.logger.Error("STOMP subscription error", zap.Error(err))
			m.teardown()
			metrics.ReconnectsTotal.Inc()
			continue
		}
		m.setState(StateSubscribed)

		err = m.pump(ctx, events)
		close(done)
		m.teardown()

		if ctx.Err() != nil {
			m.logger.Info("disconnected from NR STOMP server")
			return nil
		}

		m.logger.Error("STOMP connection lost, recovering", zap.Error(err))
		metrics.ReconnectsTotal.Inc()
	}
}

// connect attempts the broker handshake with exponential backoff
// (attempt² seconds) up to the configured maximum.
func (m *Manager) connect(ctx context.Context) error {
	for attempt := 0; attempt < m.cfg.Attempts; attempt++ {
		if wait := time.Duration(attempt*attempt) * time.Second; wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		m.setState(StateConnecting)
		m.logger.Info("STOMP connection attempt", zap.Int("attempt", attempt+1))

		sess, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("STOMP connection error, retry", zap.Error(err))
			m.setState(StateDisconnected)
			continue
		}

		m.sess = sess
		m.setState(StateConnected)
		m.logger.Info("STOMP connection successful")
		return nil
	}
	return ErrMaxAttempts
}

// subscribeAll opens every feed's durable subscription and merges the
// per-subscription channels (plus connection-level frames) into one event
// stream, preserving per-topic FIFO order.
func (m *Manager) subscribeAll() (chan event, chan struct{}, error) {
	events := make(chan event)
	done := make(chan struct{})

	for _, f := range m.feeds {
		for _, sub := range f.Subscriptions {
			h := stompngo.Headers{
				"destination", sub.Topic,
				"id", sub.Durable,
				"ack", "client-individual",
				"activemq.subscriptionName", sub.Durable,
			}
			ch, err := m.sess.Subscribe(h)
			if err != nil {
				return nil, nil, fmt.Errorf("subscribing to %s: %w", sub.Topic, err)
			}
			m.logger.Info("subscribed to feed",
				zap.String("feed", f.Name),
				zap.String("topic", sub.Topic),
				zap.String("durable", sub.Durable),
			)
			go forward(f, ch, events, done)
		}
	}

	go forward(nil, m.sess.Frames(), events, done)

	return events, done, nil
}

func forward(f *feed.Feed, ch <-chan stompngo.MessageData, events chan<- event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case md, ok := <-ch:
			if !ok {
				md = stompngo.MessageData{Error: errChannelClosed}
			}
			select {
			case events <- event{feed: f, md: md}:
			case <-done:
				return
			}
			if !ok {
				return
			}
		}
	}
}

// pump processes events serially until the context is cancelled or a
// transport fault occurs. Remote disconnects surface as errors on the
// merged stream; a missed heartbeat only marks the connection dirty, so
// the flag is polled here.
func (m *Manager) pump(ctx context.Context, events <-chan event) error {
	hb := time.NewTicker(m.hbPoll)
	defer hb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hb.C:
			if m.sess.Dirty() {
				return errHeartbeatTimeout
			}
		case ev := <-events:
			if ev.md.Error != nil {
				return ev.md.Error
			}
			if ev.md.Message.Command == stompngo.ERROR {
				return fmt.Errorf("broker error frame: %s", ev.md.Message.BodyString())
			}
			if err := m.handle(ctx, ev.md); err != nil {
				return err
			}
		}
	}
}

// handle acknowledges the message, then dispatches it to the feed whose
// topic set contains the destination header.
func (m *Manager) handle(ctx context.Context, md stompngo.MessageData) error {
	h := md.Message.Headers
	ack := stompngo.Headers{
		"message-id", h.Value("message-id"),
		"subscription", h.Value("subscription"),
	}
	if err := m.sess.Ack(ack); err != nil {
		return fmt.Errorf("ack failed: %w", err)
	}

	destination := h.Value("destination")
	for _, f := range m.feeds {
		if f.Matches(destination) {
			f.Decoder.Decode(ctx, md.Message.Body)
			return nil
		}
	}

	m.logger.Warn("message for unknown destination", zap.String("destination", destination))
	return nil
}

// teardown unwinds the current connection: unsubscribe where possible,
// disconnect where possible, then mark disconnected.
func (m *Manager) teardown() {
	if m.sess == nil {
		m.setState(StateDisconnected)
		return
	}
	m.setState(StateRecovering)

	if m.sess.Connected() {
		for _, f := range m.feeds {
			for _, sub := range f.Subscriptions {
				h := stompngo.Headers{
					"destination", sub.Topic,
					"id", sub.Durable,
				}
				if err := m.sess.Unsubscribe(h); err != nil {
					m.logger.Warn("STOMP unsubscribe error",
						zap.String("durable", sub.Durable), zap.Error(err))
					continue
				}
				m.logger.Info("unsubscribed from feed", zap.String("durable", sub.Durable))
			}
		}
	}

	if err := m.sess.Close(); err != nil {
		m.logger.Warn("STOMP disconnect error", zap.Error(err))
	}
	m.sess = nil
	m.setState(StateDisconnected)
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.ConnectionState.Set(float64(s))
}

// stompDial opens the TCP connection and performs the STOMP handshake
// with the vhost, heartbeat and client-id parameters the national rail
// broker requires for durable subscriptions.
func (m *Manager) stompDial(ctx context.Context) (session, error) {
	addr := net.JoinHostPort(m.cfg.NRHost, strconv.Itoa(m.cfg.NRPort))

	var d net.Dialer
	netc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	h := stompngo.Headers{
		"accept-version", "1.1",
		"host", m.cfg.NRHost,
		"login", m.cfg.NRUser,
		"passcode", m.cfg.NRPass,
		"client-id", m.cfg.NRUser,
		"heart-beat", "100000,100000",
	}
	conn, err := stompngo.Connect(netc, h)
	if err != nil {
		netc.Close()
		return nil, fmt.Errorf("STOMP connect: %w", err)
	}

	return &stompSession{conn: conn, netc: netc}, nil
}

type stompSession struct {
	conn *stompngo.Connection
	netc net.Conn
}

func (s *stompSession) Subscribe(h stompngo.Headers) (<-chan stompngo.MessageData, error) {
	return s.conn.Subscribe(h)
}

func (s *stompSession) Ack(h stompngo.Headers) error { return s.conn.Ack(h) }

func (s *stompSession) Unsubscribe(h stompngo.Headers) error { return s.conn.Unsubscribe(h) }

func (s *stompSession) Connected() bool { return s.conn.Connected() }

func (s *stompSession) Dirty() bool { return s.conn.Hbrf }

func (s *stompSession) Frames() <-chan stompngo.MessageData { return s.conn.MessageData }

func (s *stompSession) Close() error {
	var derr error
	if s.conn.Connected() {
		derr = s.conn.Disconnect(stompngo.Headers{})
	}
	if cerr := s.netc.Close(); derr == nil {
		derr = cerr
	}
	return derr
}

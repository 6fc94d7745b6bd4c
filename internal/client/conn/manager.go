// Package conn owns one logical WebSocket connection per push channel.
// Channels authenticate and reconnect independently: the orders stream
// going down never touches notifications or analytics.
package conn

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chowline/internal/channels"
	"chowline/internal/domain"
	"chowline/internal/logger"
)

type State string

const (
	StateConnected    State = "connected"
	StateConnecting   State = "connecting"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// Handler receives the raw payload of one event. Handlers must not block:
// they run on the channel's delivery goroutine and a slow handler stalls
// every event behind it on that channel.
type Handler func(payload json.RawMessage)

// DefaultBackoff is the reconnect schedule. Once it is exhausted the
// channel stays down until Start is called again; there is no infinite
// retry loop.
var DefaultBackoff = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second, 20 * time.Second}

type Options struct {
	// BaseURL is the gateway root, e.g. "ws://localhost:3001".
	BaseURL string
	// Backoff overrides DefaultBackoff. Tests shrink it.
	Backoff []time.Duration
	Dialer  *websocket.Dialer
}

type Manager struct {
	opts Options
	lg   *logger.Logger

	mu       sync.Mutex
	conns    map[channels.Channel]*channelConn
	handlers map[channels.Channel]map[channels.Event][]Handler
	states   map[channels.Channel]State
}

type channelConn struct {
	conn *websocket.Conn
	stop chan struct{}
	once sync.Once
}

func (cc *channelConn) close() {
	cc.once.Do(func() {
		close(cc.stop)
		if cc.conn != nil {
			_ = cc.conn.Close()
		}
	})
}

func NewManager(opts Options, lg *logger.Logger) *Manager {
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	m := &Manager{
		opts:     opts,
		lg:       lg,
		conns:    make(map[channels.Channel]*channelConn),
		handlers: make(map[channels.Channel]map[channels.Event][]Handler),
		states:   make(map[channels.Channel]State),
	}
	for _, ch := range channels.All() {
		m.states[ch] = StateDisconnected
	}
	return m
}

// Subscribe registers handler for (ch, ev). Unknown pairs are rejected via
// the channel registry. Multiple handlers for one pair all fire, in
// registration order.
func (m *Manager) Subscribe(ch channels.Channel, ev channels.Event, handler Handler) error {
	if err := channels.Validate(ch, ev); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers[ch] == nil {
		m.handlers[ch] = make(map[channels.Event][]Handler)
	}
	m.handlers[ch][ev] = append(m.handlers[ch][ev], handler)
	return nil
}

// Start establishes a connection for every known channel that is not
// already connected. Channels are best-effort isolated: each runs its own
// connect loop and one failing never prevents the others.
func (m *Manager) Start(credential string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range channels.All() {
		if _, up := m.conns[ch]; up {
			continue
		}
		cc := &channelConn{stop: make(chan struct{})}
		m.conns[ch] = cc
		m.states[ch] = StateConnecting
		go m.run(ch, cc, credential)
	}
}

// Stop closes every open connection, each independently, clears the
// connection set unconditionally, and drops all handler subscriptions.
func (m *Manager) Stop() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[channels.Channel]*channelConn)
	m.handlers = make(map[channels.Channel]map[channels.Event][]Handler)
	for _, ch := range channels.All() {
		m.states[ch] = StateDisconnected
	}
	m.mu.Unlock()

	for _, cc := range conns {
		cc.close()
	}
}

func (m *Manager) State(ch channels.Channel) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[ch]
}

func (m *Manager) setState(ch channels.Channel, s State) {
	m.mu.Lock()
	m.states[ch] = s
	m.mu.Unlock()
}

// run is the per-channel lifecycle: dial through the backoff schedule,
// deliver until the connection drops, reconnect on a fresh schedule. A
// stop signal or an exhausted schedule ends the loop.
func (m *Manager) run(ch channels.Channel, cc *channelConn, credential string) {
	reconnecting := false
	for {
		conn, err := m.dial(ch, cc, credential, reconnecting)
		if err != nil {
			select {
			case <-cc.stop:
				return
			default:
			}
			m.setState(ch, StateDisconnected)
			m.forget(ch, cc)
			m.lg.Error("channel_terminally_down", &domain.ConnectionError{Channel: string(ch), Err: err}, map[string]any{
				"channel": string(ch), "attempts": len(m.opts.Backoff),
			})
			return
		}

		cc.conn = conn
		m.setState(ch, StateConnected)
		m.lg.Info("channel_connected", map[string]any{"channel": string(ch), "reconnect": reconnecting})

		err = m.deliver(ch, conn)
		select {
		case <-cc.stop:
			return
		default:
		}
		m.lg.Error("channel_connection_lost", err, map[string]any{"channel": string(ch)})
		m.setState(ch, StateReconnecting)
		reconnecting = true
	}
}

// dial walks the backoff schedule. Each entry is the delay before one
// attempt; the schedule exhausting returns the last error.
func (m *Manager) dial(ch channels.Channel, cc *channelConn, credential string, reconnecting bool) (*websocket.Conn, error) {
	var lastErr error
	for attempt, delay := range m.opts.Backoff {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-cc.stop:
				return nil, &domain.ConnectionError{Channel: string(ch), Err: errStopped}
			}
		}
		if reconnecting || attempt > 0 {
			m.lg.Info("reconnect_attempt", map[string]any{"channel": string(ch), "attempt": attempt + 1})
		}
		header := http.Header{"Authorization": []string{"Bearer " + credential}}
		conn, _, err := m.opts.Dialer.Dial(m.opts.BaseURL+"/ws/"+string(ch), header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

var errStopped = &stoppedError{}

type stoppedError struct{}

func (*stoppedError) Error() string { return "connection manager stopped" }

// deliver reads frames until the connection breaks, invoking the matching
// handlers synchronously so events on one channel keep their arrival order.
func (m *Manager) deliver(ch channels.Channel, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.lg.Error("frame_decode_failed", err, map[string]any{"channel": string(ch)})
			continue
		}
		m.mu.Lock()
		hs := append([]Handler(nil), m.handlers[ch][channels.Event(frame.Event)]...)
		m.mu.Unlock()
		for _, h := range hs {
			h(frame.Payload)
		}
	}
}

// forget removes the conn entry so a later Start can try again, but only
// if it still owns the slot.
func (m *Manager) forget(ch channels.Channel, cc *channelConn) {
	m.mu.Lock()
	if m.conns[ch] == cc {
		delete(m.conns, ch)
	}
	m.mu.Unlock()
}

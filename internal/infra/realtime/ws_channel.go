// Package realtime implements the push-notification channel over websocket.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"terminal/config"
	"terminal/internal/domain/entity"
	domainerrors "terminal/internal/domain/errors"
	"terminal/internal/domain/service"

	"github.com/gorilla/websocket"
)

// wsConn bundles one live socket with its shutdown signal.
// close is idempotent so the reader, the ping loop and Disconnect can all
// race to tear it down safely.
type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// envelope is the wire frame of the push service.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// controlMessage is the outbound frame for channel control.
type controlMessage struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels,omitempty"`
}

// wsChannel implements service.RealtimeChannel on gorilla/websocket.
//
// A single reader goroutine dispatches events to handlers in receipt order.
// Handler registrations are owned by their subscribers: Disconnect tears down
// the transport but leaves the registration list alone.
type wsChannel struct {
	url               string
	pingInterval      time.Duration
	handshakeTimeout  time.Duration
	reconnectWait     time.Duration
	reconnectAttempts int
	logger            *slog.Logger

	mu            sync.Mutex
	cur           *wsConn
	handlers      map[string][]*subscription
	reconnectSubs []*reconnectSubscription
	subChannels   map[string]struct{} // channels to restore after a redial
	lastToken     string
	userClosed    bool // set by Disconnect; suppresses recovery

	writeMu sync.Mutex // serializes outbound frames
}

// NewChannel is the constructor for the websocket realtime channel.
func NewChannel(cfg *config.Config, logger *slog.Logger) service.RealtimeChannel {
	return &wsChannel{
		url:               cfg.Realtime.URL,
		pingInterval:      cfg.Realtime.PingInterval,
		handshakeTimeout:  cfg.Realtime.HandshakeTimeout,
		reconnectWait:     cfg.Realtime.ReconnectWait,
		reconnectAttempts: cfg.Realtime.ReconnectAttempts,
		logger:            logger,
		handlers:          make(map[string][]*subscription),
		subChannels:       make(map[string]struct{}),
	}
}

// Connect dials the push service. Calling it while connected is a no-op.
func (ch *wsChannel) Connect(ctx context.Context, accessToken string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.cur != nil {
		return nil
	}

	dialer := &websocket.Dialer{HandshakeTimeout: ch.handshakeTimeout}
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}

	conn, resp, err := dialer.DialContext(ctx, ch.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return domainerrors.ErrUnauthorized.WrapMessage("websocket dial")
		}

		return domainerrors.ErrTransient.WrapMessage("websocket dial: " + err.Error())
	}

	cur := &wsConn{conn: conn, done: make(chan struct{})}
	ch.cur = cur
	ch.lastToken = accessToken
	ch.userClosed = false

	go ch.readLoop(cur)
	if ch.pingInterval > 0 {
		go ch.pingLoop(cur)
	}

	ch.logger.Info("Realtime channel connected", slog.String("url", ch.url))

	return nil
}

// Disconnect closes the transport. Handler registrations survive.
func (ch *wsChannel) Disconnect() {
	ch.mu.Lock()
	cur := ch.cur
	ch.cur = nil
	ch.userClosed = true
	ch.mu.Unlock()

	if cur == nil {
		return
	}

	ch.writeMu.Lock()
	_ = cur.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	ch.writeMu.Unlock()

	cur.close()
	ch.logger.Info("Realtime channel disconnected")
}

// Subscribe sends the subscribe control message for the given channels.
// Subscribed channels are remembered and restored after a reconnect.
func (ch *wsChannel) Subscribe(channels ...string) error {
	ch.mu.Lock()
	cur := ch.cur
	for _, name := range channels {
		ch.subChannels[name] = struct{}{}
	}
	ch.mu.Unlock()

	if cur == nil {
		return domainerrors.ErrTransient.WrapMessage("subscribe: channel not connected")
	}

	return ch.writeJSON(cur, controlMessage{Op: "subscribe", Channels: channels})
}

// On registers a handler for a named event. The returned subscription must be
// closed by its owner; a closed subscription silently drops late events.
func (ch *wsChannel) On(event string, handler func(entity.NotificationEvent)) service.Subscription {
	sub := &subscription{channel: ch, event: event, handler: handler}

	ch.mu.Lock()
	ch.handlers[event] = append(ch.handlers[event], sub)
	ch.mu.Unlock()

	return sub
}

// OnReconnect registers a handler for connection-recovery outcomes.
func (ch *wsChannel) OnReconnect(handler func(err error)) service.Subscription {
	sub := &reconnectSubscription{channel: ch, handler: handler}

	ch.mu.Lock()
	ch.reconnectSubs = append(ch.reconnectSubs, sub)
	ch.mu.Unlock()

	return sub
}

func (ch *wsChannel) writeJSON(cur *wsConn, v any) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()

	if err := cur.conn.WriteJSON(v); err != nil {
		return domainerrors.ErrTransient.WrapMessage("websocket write: " + err.Error())
	}

	return nil
}

// readLoop is the single reader: events reach handlers in receipt order.
// An unexpected transport loss hands the goroutine over to recover.
func (ch *wsChannel) readLoop(cur *wsConn) {
	for {
		_, payload, err := cur.conn.ReadMessage()
		if err != nil {
			ch.mu.Lock()
			deliberate := ch.userClosed
			ch.mu.Unlock()

			ch.dropConn(cur)

			if !deliberate {
				ch.logger.Warn("Realtime channel read failed", slog.Any("error", err))
				ch.recover()
			}

			return
		}

		var frame envelope
		if err := json.Unmarshal(payload, &frame); err != nil {
			ch.logger.Warn("Dropping malformed frame", slog.Any("error", err))

			continue
		}

		ch.dispatch(frame)
	}
}

func (ch *wsChannel) dispatch(frame envelope) {
	var event entity.NotificationEvent
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			ch.logger.Warn("Dropping malformed event payload",
				slog.String("event", frame.Event), slog.Any("error", err))

			return
		}
	}

	ch.mu.Lock()
	subs := make([]*subscription, len(ch.handlers[frame.Event]))
	copy(subs, ch.handlers[frame.Event])
	ch.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(event)
	}
}

func (ch *wsChannel) pingLoop(cur *wsConn) {
	ticker := time.NewTicker(ch.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cur.done:
			return
		case <-ticker.C:
			if err := ch.writeJSON(cur, controlMessage{Op: "ping"}); err != nil {
				ch.logger.Warn("Realtime ping failed", slog.Any("error", err))
				cur.close()

				return
			}
		}
	}
}

// dropConn forgets a dead connection unless a newer one already replaced it.
func (ch *wsChannel) dropConn(cur *wsConn) {
	cur.close()

	ch.mu.Lock()
	if ch.cur == cur {
		ch.cur = nil
	}
	ch.mu.Unlock()
}

// recover redials after an unexpected transport loss: bounded attempts with a
// doubling backoff, restoring the channel subscriptions on success. A
// Disconnect or a fresh Connect arriving meanwhile aborts it silently.
func (ch *wsChannel) recover() {
	ch.mu.Lock()
	token := ch.lastToken
	ch.mu.Unlock()

	wait := ch.reconnectWait
	var lastErr error
	for attempt := 1; attempt <= ch.reconnectAttempts; attempt++ {
		time.Sleep(wait)
		wait *= 2

		ch.mu.Lock()
		superseded := ch.userClosed || ch.cur != nil
		ch.mu.Unlock()
		if superseded {
			return
		}

		if err := ch.Connect(context.Background(), token); err != nil {
			lastErr = err
			ch.logger.Warn("Realtime reconnect failed",
				slog.Int("attempt", attempt), slog.Any("error", err))

			continue
		}

		if err := ch.resubscribe(); err != nil {
			ch.logger.Warn("Resubscribe after reconnect failed", slog.Any("error", err))
		}

		ch.logger.Info("Realtime channel reconnected", slog.Int("attempt", attempt))
		ch.notifyReconnect(nil)

		return
	}

	ch.logger.Error("Realtime channel lost, giving up", slog.Any("error", lastErr))
	ch.notifyReconnect(lastErr)
}

func (ch *wsChannel) resubscribe() error {
	ch.mu.Lock()
	channels := make([]string, 0, len(ch.subChannels))
	for name := range ch.subChannels {
		channels = append(channels, name)
	}
	ch.mu.Unlock()

	if len(channels) == 0 {
		return nil
	}

	return ch.Subscribe(channels...)
}

func (ch *wsChannel) notifyReconnect(err error) {
	ch.mu.Lock()
	subs := make([]*reconnectSubscription, len(ch.reconnectSubs))
	copy(subs, ch.reconnectSubs)
	ch.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(err)
	}
}

// subscription is the scoped registration handed out by On.
type subscription struct {
	channel *wsChannel
	event   string
	handler func(entity.NotificationEvent)

	mu     sync.Mutex
	closed bool
}

// deliver invokes the handler unless the subscription was closed. The handler
// runs under the subscription mutex, so Close blocks until an in-flight
// delivery finishes and no handler runs once Close has returned.
func (s *subscription) deliver(event entity.NotificationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.handler(event)
}

// Close unregisters the handler. Idempotent.
func (s *subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}
	s.closed = true
	s.mu.Unlock()

	ch := s.channel
	ch.mu.Lock()
	subs := ch.handlers[s.event]
	for i, sub := range subs {
		if sub == s {
			ch.handlers[s.event] = append(subs[:i], subs[i+1:]...)

			break
		}
	}
	ch.mu.Unlock()
}

// reconnectSubscription is the registration handed out by OnReconnect.
//
// Unlike event subscriptions the handler runs outside the lock: recovery
// handlers take the orchestrator mutex, which the caller of Close may already
// hold. Handlers must re-check session state themselves; a delivery racing a
// Close may still run once.
type reconnectSubscription struct {
	channel *wsChannel
	handler func(error)

	mu     sync.Mutex
	closed bool
}

func (s *reconnectSubscription) deliver(err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}

	s.handler(err)
}

// Close unregisters the handler. Idempotent.
func (s *reconnectSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}
	s.closed = true
	s.mu.Unlock()

	ch := s.channel
	ch.mu.Lock()
	for i, sub := range ch.reconnectSubs {
		if sub == s {
			ch.reconnectSubs = append(ch.reconnectSubs[:i], ch.reconnectSubs[i+1:]...)

			break
		}
	}
	ch.mu.Unlock()
}

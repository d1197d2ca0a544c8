package impl

// Hand-written fakes for the service and repository contracts. Function
// fields override behavior per test; counters are mutex-guarded because the
// refresh scheduler calls in from its timer goroutine.

import (
	"context"
	"sync"

	"terminal/internal/domain/entity"
	"terminal/internal/domain/repository"
	"terminal/internal/domain/service"
)

type fakeGateway struct {
	mu sync.Mutex

	LoginFn   func(ctx context.Context, identifier, secret string) (*service.LoginResult, error)
	FetchFn   func(ctx context.Context, accessToken string) (*entity.User, error)
	RefreshFn func(ctx context.Context, accessToken, refreshToken string) (*entity.Credentials, error)

	refreshCalls int
}

func (g *fakeGateway) Login(ctx context.Context, identifier, secret string) (*service.LoginResult, error) {
	return g.LoginFn(ctx, identifier, secret)
}

func (g *fakeGateway) FetchCurrentUser(ctx context.Context, accessToken string) (*entity.User, error) {
	return g.FetchFn(ctx, accessToken)
}

func (g *fakeGateway) Refresh(ctx context.Context, accessToken, refreshToken string) (*entity.Credentials, error) {
	g.mu.Lock()
	g.refreshCalls++
	g.mu.Unlock()

	return g.RefreshFn(ctx, accessToken, refreshToken)
}

func (g *fakeGateway) RefreshCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.refreshCalls
}

type fakeFeed struct {
	RecentFn func(ctx context.Context, accessToken string, limit int) ([]entity.NotificationRecord, error)
}

func (f *fakeFeed) Recent(ctx context.Context, accessToken string, limit int) ([]entity.NotificationRecord, error) {
	if f.RecentFn == nil {
		return nil, nil
	}

	return f.RecentFn(ctx, accessToken, limit)
}

type fakeSubscription struct {
	mu      sync.Mutex
	closed  bool
	event   string
	handler func(entity.NotificationEvent)
}

func (s *fakeSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

func (s *fakeSubscription) deliver(event entity.NotificationEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		s.handler(event)
	}
}

type fakeReconnectSub struct {
	mu      sync.Mutex
	closed  bool
	handler func(error)
}

func (s *fakeReconnectSub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

func (s *fakeReconnectSub) deliver(err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		s.handler(err)
	}
}

type fakeChannel struct {
	mu sync.Mutex

	ConnectErr error

	connects      int
	disconnects   int
	subscribed    [][]string
	subs          []*fakeSubscription
	reconnectSubs []*fakeReconnectSub
}

func (c *fakeChannel) Connect(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connects++

	return nil
}

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnects++
}

func (c *fakeChannel) Subscribe(channels ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribed = append(c.subscribed, channels)

	return nil
}

func (c *fakeChannel) On(event string, handler func(entity.NotificationEvent)) service.Subscription {
	sub := &fakeSubscription{event: event, handler: handler}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	return sub
}

func (c *fakeChannel) OnReconnect(handler func(err error)) service.Subscription {
	sub := &fakeReconnectSub{handler: handler}

	c.mu.Lock()
	c.reconnectSubs = append(c.reconnectSubs, sub)
	c.mu.Unlock()

	return sub
}

// EmitReconnect simulates a recovery outcome after a dropped connection.
func (c *fakeChannel) EmitReconnect(err error) {
	c.mu.Lock()
	subs := make([]*fakeReconnectSub, len(c.reconnectSubs))
	copy(subs, c.reconnectSubs)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(err)
	}
}

// Emit simulates the push service delivering an event.
func (c *fakeChannel) Emit(event string, payload entity.NotificationEvent) {
	c.mu.Lock()
	subs := make([]*fakeSubscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.event == event {
			sub.deliver(payload)
		}
	}
}

func (c *fakeChannel) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connects
}

func (c *fakeChannel) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.disconnects
}

func (c *fakeChannel) Subscribed() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subscribed
}

type memCredRepo struct {
	mu      sync.Mutex
	creds   *entity.Credentials
	loads   int
	loadErr error
}

// SetLoadErr makes subsequent Loads fail, simulating a storage fault.
func (r *memCredRepo) SetLoadErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loadErr = err
}

func (r *memCredRepo) Save(_ context.Context, creds *entity.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *creds
	r.creds = &clone

	return nil
}

func (r *memCredRepo) Load(_ context.Context) (*entity.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loads++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.creds == nil {
		return nil, repository.ErrNoCredentials
	}

	clone := *r.creds

	return &clone, nil
}

func (r *memCredRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creds = nil

	return nil
}

func (r *memCredRepo) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loads
}

func (r *memCredRepo) Current() *entity.Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.creds == nil {
		return nil
	}

	clone := *r.creds

	return &clone
}

type memPrefRepo struct {
	mu     sync.Mutex
	screen *string
	pair   *entity.TradingPair
	// pairErr overrides LastPair to simulate corrupt persisted state.
	pairErr error
}

func (r *memPrefRepo) SaveLastScreen(_ context.Context, screen string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.screen = &screen

	return nil
}

func (r *memPrefRepo) LastScreen(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.screen == nil {
		return "", repository.ErrNoPreference
	}

	return *r.screen, nil
}

func (r *memPrefRepo) SaveLastPair(_ context.Context, pair *entity.TradingPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *pair
	r.pair = &clone

	return nil
}

func (r *memPrefRepo) LastPair(_ context.Context) (*entity.TradingPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pairErr != nil {
		return nil, r.pairErr
	}
	if r.pair == nil {
		return nil, repository.ErrNoPreference
	}

	clone := *r.pair

	return &clone, nil
}

// advisoryRecorder collects advisory messages thread-safely.
type advisoryRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (a *advisoryRecorder) record(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.messages = append(a.messages, message)
}

func (a *advisoryRecorder) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.messages)
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tvstream/internal/connection"
	"github.com/rickgao/tvstream/internal/market"
	"github.com/rickgao/tvstream/internal/metrics"
	"github.com/rickgao/tvstream/internal/processor"
	"github.com/rickgao/tvstream/internal/protocol"
	"github.com/rickgao/tvstream/internal/router"
	"github.com/rickgao/tvstream/internal/version"
)

// Session is one quote session over one websocket connection.
type Session struct {
	cfg    Config
	logger *slog.Logger

	id       string
	queue    *Queue
	store    *market.Store
	registry *processor.Registry
	router   router.Router

	connectMu   sync.Mutex
	subscribeMu sync.Mutex

	mu         sync.RWMutex
	state      State
	cancel     context.CancelFunc
	dialCancel context.CancelFunc
	closing    bool
	err        error

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session and queues its startup frames: quote_create_session
// followed by quote_set_fields for the configured field set. The heartbeat
// processor is registered first.
func New(cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.FieldSet == "" {
		cfg.FieldSet = protocol.FieldSetPrice
	}
	fields, err := cfg.FieldSet.Fields()
	if err != nil {
		return nil, err
	}

	id := protocol.GenerateSessionID(protocol.PrefixQuote)
	registry := processor.NewRegistry(processor.Heartbeat{})

	s := &Session{
		cfg:      cfg,
		logger:   logger.With("session_id", id),
		id:       id,
		queue:    NewQueue(cfg.QueueSize),
		store:    market.NewStore(),
		registry: registry,
		state:    StateCreated,
		done:     make(chan struct{}),
	}
	s.router = router.NewRouter(cfg.Dispatch, registry, s.logger)

	startup := []protocol.Packet{
		protocol.NewPacket(protocol.MethodQuoteCreateSession, id),
		protocol.NewPacket(protocol.MethodQuoteSetFields, append([]string{id}, fields...)...),
	}
	for _, p := range startup {
		frame, err := protocol.Encode(p)
		if err == nil {
			err = s.queue.TrySend(frame)
		}
		if err != nil {
			return nil, &ProtocolInitError{Method: p.Method, Err: err}
		}
	}

	metrics.SessionState.Set(float64(StateCreated))
	s.logger.Debug("session created", "field_set", string(cfg.FieldSet), "fields", len(fields))

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Store returns the symbol store fed by this session.
func (s *Session) Store() *market.Store {
	return s.store
}

// Connect dials the endpoint, starts the writer, reader and dispatch tasks
// and queues the auth token frame. ctx bounds the handshake only. A dial
// failure is returned as *connection.ConnectionError and closes the
// session. If Close is called while dialing, the dial is abandoned and
// Connect returns ErrSessionClosed.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	switch s.State() {
	case StateCreated:
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrAlreadyConnected
	}

	dialCtx, dialCancel := context.WithCancel(ctx)
	defer dialCancel()

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.dialCancel = dialCancel
	s.mu.Unlock()

	client := connection.NewClient(connection.ClientConfig{
		URL:              s.cfg.URL,
		Origin:           s.cfg.Origin,
		UserAgent:        version.UserAgent(),
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		StaleTimeout:     s.cfg.StaleTimeout,
		BufferSize:       connection.DefaultClientConfig().BufferSize,
	}, s.logger)

	err := client.Connect(dialCtx)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.dialCancel = nil
	closing := s.closing
	if err == nil && !closing {
		s.cancel = cancel
	}
	s.mu.Unlock()

	if err != nil || closing {
		cancel()
		if err == nil {
			client.Close()
		}
		s.queue.Close()
		s.router.Close()
		if closing {
			s.logger.Debug("connect abandoned by close")
			s.finish(nil)
			return ErrSessionClosed
		}
		s.logger.Error("connect failed", "url", s.cfg.URL, "error", err)
		s.finish(err)
		return err
	}
	s.setState(StateConnected)

	g, gctx := errgroup.WithContext(runCtx)
	// Any task returning, with or without an error, ends the session.
	spawn := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			defer cancel()
			err := fn(gctx)
			s.logger.Debug("task stopped", "task", name, "error", err)
			return err
		})
	}
	spawn("writer", func(ctx context.Context) error { return s.writeLoop(client) })
	spawn("reader", func(ctx context.Context) error { return s.readLoop(ctx, client.Messages(), client.Errors()) })
	spawn("router", func(ctx context.Context) error { return s.router.Run(ctx, s.queue) })

	go s.supervise(runCtx, g, client)

	s.logger.Info("session connected", "url", s.cfg.URL)

	return s.Send(ctx, protocol.MethodSetAuthToken, s.cfg.AuthToken)
}

// supervise tears the session down once any task stops or Close is called.
func (s *Session) supervise(runCtx context.Context, g *errgroup.Group, client connection.Client) {
	<-runCtx.Done()

	// The writer drains what is already queued; the reader and router stop
	// on cancellation.
	s.queue.Close()
	s.router.Close()

	err := g.Wait()
	client.Close()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.finish(err)
}

func (s *Session) finish(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.state = StateClosed
		s.mu.Unlock()

		metrics.SessionState.Set(float64(StateClosed))
		if err != nil {
			s.logger.Warn("session closed", "error", err)
		} else {
			s.logger.Info("session closed")
		}
		close(s.done)
	})
}

// AddSymbol subscribes to symbol. Repeated calls for the same symbol are
// no-ops. The symbol reads as (0, 0) until the first quote arrives. If the
// subscription cannot be queued the symbol is released so a later call can
// retry.
func (s *Session) AddSymbol(ctx context.Context, symbol string) error {
	s.subscribeMu.Lock()
	defer s.subscribeMu.Unlock()

	if !s.store.Reserve(symbol) {
		return nil
	}
	if err := s.Send(ctx, protocol.MethodQuoteAddSymbols, s.id, symbol); err != nil {
		s.store.Release(symbol)
		return err
	}
	return nil
}

// Data returns the last known price and indicator for symbol, or (0, 0)
// if nothing is known.
func (s *Session) Data(symbol string) (price, indicator float64) {
	return s.store.Get(symbol)
}

// RegisterProcessor appends p to the processor list. It applies to units
// that arrive after the call.
func (s *Session) RegisterProcessor(p processor.Processor) {
	s.registry.Register(p)
}

// Send queues a message whose params are all strings. It is also the
// primitive for chart_create_session and chart_delete_session.
func (s *Session) Send(ctx context.Context, method string, params ...string) error {
	return s.SendPacket(ctx, protocol.NewPacket(method, params...))
}

// SendPacket queues an arbitrary message.
func (s *Session) SendPacket(ctx context.Context, p protocol.Packet) error {
	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}
	return s.queue.Send(ctx, frame)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState moves forward only; StateClosed is set by finish.
func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= next || s.state == StateClosed {
		return
	}
	s.state = next
	metrics.SessionState.Set(float64(next))
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the session, or nil for a clean close.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close shuts the session down and waits for it to reach StateClosed or
// for ctx to expire. A Connect still dialing is abandoned.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	cancel := s.cancel
	dialCancel := s.dialCancel
	s.mu.Unlock()

	switch {
	case cancel != nil:
		cancel()
	case dialCancel != nil:
		// Connect sees closing once the dial returns and finishes the
		// session.
		dialCancel()
	default:
		s.queue.Close()
		s.router.Close()
		s.finish(nil)
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of session statistics.
func (s *Session) Stats() Stats {
	return Stats{
		ID:          s.id,
		State:       s.State(),
		Symbols:     s.store.Len(),
		QueueLength: s.queue.Len(),
		Router:      s.router.Stats(),
	}
}

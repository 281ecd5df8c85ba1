package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tvstream/internal/connection"
	"github.com/rickgao/tvstream/internal/processor"
	"github.com/rickgao/tvstream/internal/protocol"
)

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// drainStartup removes the two startup frames and returns their packets.
func drainStartup(t *testing.T, s *Session) []protocol.Packet {
	t.Helper()
	var out []protocol.Packet
	for i := 0; i < 2; i++ {
		out = append(out, receivePacket(t, s.queue))
	}
	return out
}

func receiveFrame(t *testing.T, q *Queue) string {
	t.Helper()
	got := make(chan string, 1)
	go func() {
		f, _ := q.Receive()
		got <- f
	}()
	select {
	case f := <-got:
		return f
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for outbound frame")
		return ""
	}
}

func receivePacket(t *testing.T, q *Queue) protocol.Packet {
	t.Helper()
	frame := receiveFrame(t, q)
	payloads := protocol.Split(frame)
	if len(payloads) != 1 {
		t.Fatalf("frame %q split into %d payloads", frame, len(payloads))
	}
	p, err := protocol.ParsePacket(payloads[0])
	if err != nil {
		t.Fatalf("ParsePacket(%q) failed: %v", payloads[0], err)
	}
	return p
}

func textParams(p protocol.Packet) []string {
	out := make([]string, len(p.Params))
	for i, param := range p.Params {
		out[i] = param.Text
	}
	return out
}

// runRouter starts the dispatch worker against the session queue.
func runRouter(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.router.Run(ctx, s.queue)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNew_StartupFrames(t *testing.T) {
	s := newTestSession(t, DefaultConfig())

	if !strings.HasPrefix(s.ID(), "qs_") || len(s.ID()) != 15 {
		t.Errorf("unexpected session id %q", s.ID())
	}
	if s.State() != StateCreated {
		t.Errorf("State() = %v, want created", s.State())
	}

	packets := drainStartup(t, s)

	if packets[0].Method != protocol.MethodQuoteCreateSession {
		t.Errorf("first frame method = %q, want %q", packets[0].Method, protocol.MethodQuoteCreateSession)
	}
	if got := textParams(packets[0]); len(got) != 1 || got[0] != s.ID() {
		t.Errorf("create params = %v, want [%s]", got, s.ID())
	}

	if packets[1].Method != protocol.MethodQuoteSetFields {
		t.Errorf("second frame method = %q, want %q", packets[1].Method, protocol.MethodQuoteSetFields)
	}
	want := []string{s.ID(), "lp", "high_price", "low_price", "price_52_week_high", "price_52_week_low"}
	got := textParams(packets[1])
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("set_fields params = %v, want %v", got, want)
	}
}

func TestNew_FieldSetAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FieldSet = protocol.FieldSetAll
	s := newTestSession(t, cfg)

	packets := drainStartup(t, s)
	if n := len(packets[1].Params); n != 49 {
		t.Errorf("set_fields has %d params, want 49", n)
	}
}

func TestNew_UnknownFieldSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FieldSet = "bogus"
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown field set")
	}
}

func TestNew_ProtocolInitError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 1

	_, err := New(cfg, nil)

	var perr *ProtocolInitError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolInitError, got %T: %v", err, err)
	}
	if perr.Method != protocol.MethodQuoteSetFields {
		t.Errorf("Method = %q, want %q", perr.Method, protocol.MethodQuoteSetFields)
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull in chain, got %v", err)
	}
}

func TestAddSymbol_Idempotent(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	drainStartup(t, s)
	ctx := context.Background()

	if err := s.AddSymbol(ctx, "BINANCE:BTCUSDT"); err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}
	if err := s.AddSymbol(ctx, "BINANCE:BTCUSDT"); err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}

	if s.queue.Len() != 1 {
		t.Fatalf("queued %d frames, want 1", s.queue.Len())
	}
	p := receivePacket(t, s.queue)
	if p.Method != protocol.MethodQuoteAddSymbols {
		t.Errorf("method = %q, want %q", p.Method, protocol.MethodQuoteAddSymbols)
	}
	if got := textParams(p); len(got) != 2 || got[0] != s.ID() || got[1] != "BINANCE:BTCUSDT" {
		t.Errorf("params = %v", got)
	}

	// Symbols are case sensitive.
	if err := s.AddSymbol(ctx, "binance:btcusdt"); err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}
	if s.queue.Len() != 1 {
		t.Errorf("lowercase symbol should be a distinct subscription")
	}

	if price, ind := s.Data("BINANCE:BTCUSDT"); price != 0 || ind != 0 {
		t.Errorf("reserved symbol = (%v, %v), want (0, 0)", price, ind)
	}
}

func TestAddSymbol_RetryAfterFailedSend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	s := newTestSession(t, cfg) // queue is full with the startup frames

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.AddSymbol(ctx, "NASDAQ:AAPL"); !errors.Is(err, context.Canceled) {
		t.Fatalf("AddSymbol with full queue = %v, want context.Canceled", err)
	}
	if _, ok := s.Store().Lookup("NASDAQ:AAPL"); ok {
		t.Error("failed subscribe should not leave the symbol reserved")
	}

	drainStartup(t, s)
	if err := s.AddSymbol(context.Background(), "NASDAQ:AAPL"); err != nil {
		t.Fatalf("retry AddSymbol failed: %v", err)
	}
	if s.queue.Len() != 1 {
		t.Fatalf("queued %d frames after retry, want 1", s.queue.Len())
	}
	p := receivePacket(t, s.queue)
	if got := textParams(p); p.Method != protocol.MethodQuoteAddSymbols || len(got) != 2 || got[1] != "NASDAQ:AAPL" {
		t.Errorf("retry queued %s %v", p.Method, got)
	}

	s.queue.Close()
	if err := s.AddSymbol(context.Background(), "NASDAQ:MSFT"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("AddSymbol after queue close = %v, want ErrQueueClosed", err)
	}
	if _, ok := s.Store().Lookup("NASDAQ:MSFT"); ok {
		t.Error("symbol should be released when the queue is closed")
	}
}

func TestSend_ChartControl(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	drainStartup(t, s)

	chartID := protocol.GenerateSessionID(protocol.PrefixChart)
	ctx := context.Background()
	if err := s.Send(ctx, protocol.MethodChartCreateSession, chartID, ""); err != nil {
		t.Fatalf("Send create failed: %v", err)
	}
	if err := s.Send(ctx, protocol.MethodChartDeleteSession, chartID); err != nil {
		t.Fatalf("Send delete failed: %v", err)
	}

	create := receivePacket(t, s.queue)
	if create.Method != protocol.MethodChartCreateSession {
		t.Errorf("method = %s, want %s", create.Method, protocol.MethodChartCreateSession)
	}
	if got := textParams(create); len(got) != 2 || got[0] != chartID {
		t.Errorf("create params = %v", got)
	}

	del := receivePacket(t, s.queue)
	if del.Method != protocol.MethodChartDeleteSession {
		t.Errorf("method = %s, want %s", del.Method, protocol.MethodChartDeleteSession)
	}

	s.queue.Close()
	if err := s.Send(ctx, protocol.MethodChartDeleteSession, chartID); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Send after close = %v, want ErrQueueClosed", err)
	}
}

func TestData_UnknownSymbol(t *testing.T) {
	s := newTestSession(t, DefaultConfig())

	price, indicator := s.Data("UNKNOWN:X")
	if price != 0 || indicator != 0 {
		t.Errorf("Data(UNKNOWN:X) = (%v, %v), want (0, 0)", price, indicator)
	}
}

func TestHandleMessage_HeartbeatEcho(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	drainStartup(t, s)
	runRouter(t, s)

	s.handleMessage(connection.TimestampedMessage{Data: []byte("~m~4~m~~h~7")})

	if got := receiveFrame(t, s.queue); got != "~m~4~m~~h~7" {
		t.Errorf("echo = %q, want %q", got, "~m~4~m~~h~7")
	}
	time.Sleep(20 * time.Millisecond)
	if s.queue.Len() != 0 {
		t.Errorf("expected exactly one reply, %d more queued", s.queue.Len())
	}
}

func TestHandleMessage_MalformedFrameDoesNotAbort(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	drainStartup(t, s)
	runRouter(t, s)

	msgs := []string{
		"~m~3~m~{bad",
		"~m~5~m~~h~xy",
		"~m~4~m~~h~2",
	}
	for _, m := range msgs {
		if !s.handleMessage(connection.TimestampedMessage{Data: []byte(m)}) {
			t.Fatalf("handleMessage(%q) stopped the stream", m)
		}
	}

	if got := receiveFrame(t, s.queue); got != "~m~4~m~~h~2" {
		t.Errorf("echo = %q, want %q", got, "~m~4~m~~h~2")
	}
	if n := s.Stats().Router.DecodeErrors; n != 1 {
		t.Errorf("DecodeErrors = %d, want 1", n)
	}
}

func TestHandleMessage_BinaryAndInvalidUTF8(t *testing.T) {
	s := newTestSession(t, DefaultConfig())

	s.handleMessage(connection.TimestampedMessage{Data: []byte{0x01}, Binary: true})
	s.handleMessage(connection.TimestampedMessage{Data: []byte{'~', 0xff, 0xfe}})

	if n := s.Stats().Router.DecodeErrors; n != 2 {
		t.Errorf("DecodeErrors = %d, want 2", n)
	}
	if n := s.Stats().Router.UnitsReceived; n != 0 {
		t.Errorf("UnitsReceived = %d, want 0", n)
	}
}

func TestHandleMessage_QuoteProcessor(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	s.RegisterProcessor(processor.NewQuote(
		processor.QuoteConfig{PriceField: "lp", IndicatorField: "chp"},
		s.Store(), nil,
	))
	runRouter(t, s)

	payload := `{"m":"qsd","p":["` + s.ID() + `",{"n":"NASDAQ:AAPL","s":"ok","v":{"lp":189.5,"chp":1.25}}]}`
	s.handleMessage(connection.TimestampedMessage{Data: []byte(protocol.Frame(payload))})

	waitFor(t, func() bool {
		price, ind := s.Data("NASDAQ:AAPL")
		return price == 189.5 && ind == 1.25
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type fakeWriter struct {
	mu     sync.Mutex
	frames []string
	failAt int // 1-based; 0 never fails
}

func (f *fakeWriter) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.frames)+1 == f.failAt {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, string(data))
	return nil
}

func TestWriteLoop_DrainsInOrder(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	ctx := context.Background()
	s.AddSymbol(ctx, "A:1")
	s.AddSymbol(ctx, "B:2")
	s.queue.Close()

	w := &fakeWriter{}
	if err := s.writeLoop(w); err != nil {
		t.Fatalf("writeLoop failed: %v", err)
	}

	if len(w.frames) != 4 {
		t.Fatalf("wrote %d frames, want 4", len(w.frames))
	}
	wantMethods := []string{
		protocol.MethodQuoteCreateSession,
		protocol.MethodQuoteSetFields,
		protocol.MethodQuoteAddSymbols,
		protocol.MethodQuoteAddSymbols,
	}
	for i, frame := range w.frames {
		p, err := protocol.ParsePacket(protocol.Split(frame)[0])
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if p.Method != wantMethods[i] {
			t.Errorf("frame %d method = %q, want %q", i, p.Method, wantMethods[i])
		}
	}
}

func TestWriteLoop_StopsOnError(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	s.queue.Close()

	w := &fakeWriter{failAt: 2}
	if err := s.writeLoop(w); err == nil {
		t.Fatal("expected write error")
	}
	if len(w.frames) != 1 {
		t.Errorf("wrote %d frames before failing, want 1", len(w.frames))
	}
}

func TestReadLoop_StreamEnd(t *testing.T) {
	s := newTestSession(t, DefaultConfig())

	msgs := make(chan connection.TimestampedMessage)
	errs := make(chan error, 1)
	close(msgs)

	err := s.readLoop(context.Background(), msgs, errs)
	if !errors.Is(err, ErrStreamEnded) {
		t.Errorf("readLoop = %v, want ErrStreamEnded", err)
	}

	want := errors.New("reset by peer")
	errs <- want
	if err := s.readLoop(context.Background(), msgs, errs); !errors.Is(err, want) {
		t.Errorf("readLoop = %v, want %v", err, want)
	}
}

func TestClose_BeforeConnect(t *testing.T) {
	s := newTestSession(t, DefaultConfig())

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	if err := s.AddSymbol(context.Background(), "A:1"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("AddSymbol after Close = %v, want ErrQueueClosed", err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Connect after Close = %v, want ErrSessionClosed", err)
	}
}

// tvServer is a mock streaming endpoint. It records every frame the client
// writes and lets the test push raw messages.
type tvServer struct {
	*httptest.Server
	origin  chan string
	frames  chan string
	outbox  chan string
	dropped chan struct{}
}

func newTVServer(t *testing.T) *tvServer {
	srv := &tvServer{
		origin:  make(chan string, 1),
		frames:  make(chan string, 100),
		outbox:  make(chan string, 10),
		dropped: make(chan struct{}),
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.origin <- r.Header.Get("Origin")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		go func() {
			for {
				select {
				case msg := <-srv.outbox:
					if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
						return
					}
				case <-srv.dropped:
					conn.Close()
					return
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			for _, payload := range protocol.Split(string(data)) {
				srv.frames <- protocol.Frame(payload)
			}
		}
	}))
	return srv
}

func (srv *tvServer) url() string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (srv *tvServer) nextPacket(t *testing.T) protocol.Packet {
	t.Helper()
	select {
	case frame := <-srv.frames:
		p, err := protocol.ParsePacket(protocol.Split(frame)[0])
		if err != nil {
			t.Fatalf("server got non-message frame %q", frame)
		}
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client frame")
		return protocol.Packet{}
	}
}

func (srv *tvServer) nextFrame(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-srv.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client frame")
		return ""
	}
}

func TestSession_EndToEnd(t *testing.T) {
	srv := newTVServer(t)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.url()
	s := newTestSession(t, cfg)
	s.RegisterProcessor(processor.NewQuote(processor.DefaultQuoteConfig(), s.Store(), nil))

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Close(ctx)

	if got := <-srv.origin; got != DefaultOrigin {
		t.Errorf("Origin = %q, want %q", got, DefaultOrigin)
	}

	wantMethods := []string{
		protocol.MethodQuoteCreateSession,
		protocol.MethodQuoteSetFields,
		protocol.MethodSetAuthToken,
	}
	for _, want := range wantMethods {
		p := srv.nextPacket(t)
		if p.Method != want {
			t.Fatalf("got %q, want %q", p.Method, want)
		}
		if want == protocol.MethodSetAuthToken {
			if got := textParams(p); len(got) != 1 || got[0] != DefaultAuthToken {
				t.Errorf("auth params = %v", got)
			}
		}
	}

	if err := s.AddSymbol(ctx, "BINANCE:BTCUSDT"); err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}
	if p := srv.nextPacket(t); p.Method != protocol.MethodQuoteAddSymbols {
		t.Fatalf("got %q, want %q", p.Method, protocol.MethodQuoteAddSymbols)
	}

	waitFor(t, func() bool { return s.State() == StateStreaming })

	srv.outbox <- "~m~4~m~~h~9"
	if got := srv.nextFrame(t); got != "~m~4~m~~h~9" {
		t.Errorf("heartbeat echo = %q, want %q", got, "~m~4~m~~h~9")
	}

	qsd := `{"m":"qsd","p":["` + s.ID() + `",{"n":"BINANCE:BTCUSDT","s":"ok","v":{"lp":64000.5}}]}`
	srv.outbox <- protocol.Frame(qsd)
	waitFor(t, func() bool {
		price, _ := s.Data("BINANCE:BTCUSDT")
		return price == 64000.5
	})

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Close(closeCtx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil after clean close", s.Err())
	}
}

func TestSession_ServerDisconnectClosesSession(t *testing.T) {
	srv := newTVServer(t)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.url()
	s := newTestSession(t, cfg)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	srv.nextPacket(t)

	close(srv.dropped)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after the server dropped")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	if s.Err() == nil {
		t.Error("expected a terminal error after server disconnect")
	}
}

func TestConnect_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	s := newTestSession(t, cfg)

	err := s.Connect(context.Background())
	var cerr *connection.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *connection.ConnectionError, got %T: %v", err, err)
	}

	select {
	case <-s.Done():
	default:
		t.Error("session should be closed after a failed connect")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	if !errors.As(s.Err(), &cerr) {
		t.Errorf("Err() = %v, want the connection error", s.Err())
	}
}

func TestClose_DuringHandshake(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	cfg.HandshakeTimeout = 30 * time.Second
	s := newTestSession(t, cfg)

	result := make(chan error, 1)
	go func() { result <- s.Connect(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("handshake request never reached the server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close during handshake = %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("Connect = %v, want ErrSessionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect did not return after Close")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil for a closed session", s.Err())
	}
}

func TestConnect_Twice(t *testing.T) {
	srv := newTVServer(t)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.url()
	s := newTestSession(t, cfg)
	defer s.Close(context.Background())

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateConnected, "connected"},
		{StateStreaming, "streaming"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

func TestBackoff(t *testing.T) {
	base := 2 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 3 * time.Second},
		{3, 4500 * time.Millisecond},
		{4, 6750 * time.Millisecond},
		{0, 2 * time.Second}, // clamped to the first attempt
	}
	for _, tt := range tests {
		if got := Backoff(base, tt.attempt); got != tt.want {
			t.Errorf("Backoff(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
		}
	}
}

// liveServer is a scriptable protocol endpoint for client tests.
type liveServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	dials      atomic.Int32
	refuse     atomic.Bool // reject upgrades so redials fail
	dropFirst  bool        // kill the first connection without a close frame
	closeFirst bool        // close the first connection with code 1000

	// script is pushed after the connected message on every session
	script []model.LiveMessage

	pings      chan struct{}
	reconnects chan string

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	s := &liveServer{
		pings:      make(chan struct{}, 16),
		reconnects: make(chan string, 16),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.srv.Close()
		s.mu.Lock()
		for _, c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
	return s
}

func (s *liveServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *liveServer) handle(w http.ResponseWriter, r *http.Request) {
	if s.refuse.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	n := s.dials.Add(1)

	if err := conn.WriteJSON(model.LiveMessage{Type: model.LiveConnected, Token: "tok-1"}); err != nil {
		return
	}
	for _, msg := range s.script {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}

	if n == 1 && s.dropFirst {
		conn.UnderlyingConn().Close()
		return
	}
	if n == 1 && s.closeFirst {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline)
		time.Sleep(50 * time.Millisecond)
		conn.Close()
		return
	}

	for {
		var msg model.LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case model.LivePing:
			s.pings <- struct{}{}
			if err := conn.WriteJSON(model.LiveMessage{Type: model.LivePong}); err != nil {
				return
			}
		case model.LiveReconnect:
			s.reconnects <- msg.Token
			if err := conn.WriteJSON(model.LiveMessage{Type: model.LiveReconnected, Token: msg.Token}); err != nil {
				return
			}
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectStoresToken(t *testing.T) {
	s := newLiveServer(t)
	c := NewClient(s.url(), Options{})
	defer c.Close()

	var connected atomic.Int32
	c.OnMessage(model.LiveConnected, func(model.LiveMessage) { connected.Add(1) })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, func() bool { return c.Token() == "tok-1" }, "token never stored")
	waitFor(t, func() bool { return connected.Load() == 1 }, "connected message not dispatched")
	if c.State() != StateConnected {
		t.Fatalf("state = %v, want %v", c.State(), StateConnected)
	}
}

func TestHeartbeatPingsAndSuppressesPong(t *testing.T) {
	s := newLiveServer(t)
	c := NewClient(s.url(), Options{Heartbeat: 30 * time.Millisecond})
	defer c.Close()

	var pongs atomic.Int32
	c.OnMessage(model.LivePong, func(model.LiveMessage) { pongs.Add(1) })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-s.pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat ping reached the server")
	}

	time.Sleep(100 * time.Millisecond)
	if n := pongs.Load(); n != 0 {
		t.Fatalf("pong dispatched to handlers %d times, heartbeat replies must stay internal", n)
	}
}

func TestDispatchesDeliveryProgressMessages(t *testing.T) {
	s := newLiveServer(t)
	s.script = []model.LiveMessage{
		{Type: model.LiveProcessing, RequestID: "req-7", Progress: 40},
		{Type: model.LiveUpload, RequestID: "req-7", Progress: 80},
		{Type: model.LiveComplete, RequestID: "req-7", Kind: model.CompletionUpload, Progress: 100},
	}

	c := NewClient(s.url(), Options{})
	defer c.Close()

	var (
		mu  sync.Mutex
		got []model.LiveMessage
	)
	record := func(msg model.LiveMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	}
	c.OnMessage(model.LiveProcessing, record)
	c.OnMessage(model.LiveUpload, record)
	c.OnMessage(model.LiveComplete, record)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, "delivery progress messages not dispatched")

	mu.Lock()
	defer mu.Unlock()
	if got[0].Type != model.LiveProcessing || got[1].Type != model.LiveUpload {
		t.Fatalf("dispatch order %v, %v; want processing then upload", got[0].Type, got[1].Type)
	}
	for _, msg := range got {
		if msg.RequestID != "req-7" {
			t.Fatalf("message %+v lost its request id", msg)
		}
	}
	final := got[2]
	if final.Type != model.LiveComplete || final.Kind != model.CompletionUpload {
		t.Fatalf("final message %+v, want a completion of the upload pipeline", final)
	}
}

func TestUncleanDropReconnectsAndResumes(t *testing.T) {
	s := newLiveServer(t)
	s.dropFirst = true

	c := NewClient(s.url(), Options{BaseDelay: 20 * time.Millisecond})
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case token := <-s.reconnects:
		if token != "tok-1" {
			t.Fatalf("resumed with token %q, want the one issued before the drop", token)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reconnect token presented after the drop")
	}

	waitFor(t, func() bool { return c.State() == StateConnected }, "never reconnected")
	if n := s.dials.Load(); n < 2 {
		t.Fatalf("server saw %d connections, want at least 2", n)
	}
}

func TestCleanServerCloseDoesNotReconnect(t *testing.T) {
	s := newLiveServer(t)
	s.closeFirst = true

	c := NewClient(s.url(), Options{BaseDelay: 20 * time.Millisecond})
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, func() bool { return c.State() == StateDisconnected }, "state never settled")
	time.Sleep(150 * time.Millisecond)
	if n := s.dials.Load(); n != 1 {
		t.Fatalf("server saw %d connections after a clean close, want 1", n)
	}
}

func TestCloseSuppressesReconnect(t *testing.T) {
	s := newLiveServer(t)
	c := NewClient(s.url(), Options{BaseDelay: 20 * time.Millisecond})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, func() bool { return c.Token() != "" }, "never connected")

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if c.State() != StateDisconnected {
		t.Fatalf("state = %v after Close, want %v", c.State(), StateDisconnected)
	}
	if n := s.dials.Load(); n != 1 {
		t.Fatalf("server saw %d connections after Close, want 1", n)
	}
}

func TestGivesUpAfterAttemptBudget(t *testing.T) {
	s := newLiveServer(t)
	s.dropFirst = true

	// the base delay leaves room to flip refuse before the first redial
	c := NewClient(s.url(), Options{BaseDelay: 100 * time.Millisecond})
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// every further dial fails, exhausting the budget
	s.refuse.Store(true)

	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.gaveUp
	}, "client never gave up")

	if c.State() != StateDisconnected {
		t.Fatalf("state = %v after giving up, want %v", c.State(), StateDisconnected)
	}
}

func TestManualReconnectAfterGiveUp(t *testing.T) {
	s := newLiveServer(t)
	s.dropFirst = true

	c := NewClient(s.url(), Options{BaseDelay: 100 * time.Millisecond})
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	s.refuse.Store(true)
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.gaveUp
	}, "client never gave up")

	s.refuse.Store(false)
	if err := c.Reconnect(context.Background()); err != nil {
		t.Fatalf("manual reconnect: %v", err)
	}

	waitFor(t, func() bool { return c.State() == StateConnected }, "manual reconnect never established")
}

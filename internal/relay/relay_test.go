package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmorsell/volctl/pkg/model"
	"go.uber.org/zap/zaptest"
)

const readTimeout = 2 * time.Second

func newTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	s := NewServer(zaptest.NewLogger(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

// next reads messages until one of type T arrives.
func next[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var zero T
			t.Fatalf("read message: %v", err)
			return zero
		}
		msg, err := model.Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if m, ok := msg.(T); ok {
			return m
		}
	}
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for s.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, s.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_BroadcastsClientCount(t *testing.T) {
	s, url := newTestServer(t, Config{})

	a := dial(t, url)
	if got := next[model.ClientsMessage](t, a); got.Clients != 1 {
		t.Errorf("expected 1 client, got %d", got.Clients)
	}

	b := dial(t, url)
	if got := next[model.ClientsMessage](t, a); got.Clients != 2 {
		t.Errorf("expected 2 clients, got %d", got.Clients)
	}
	if got := next[model.ClientsMessage](t, b); got.Clients != 2 {
		t.Errorf("expected 2 clients, got %d", got.Clients)
	}

	b.Close()
	if got := next[model.ClientsMessage](t, a); got.Clients != 1 {
		t.Errorf("expected 1 client after disconnect, got %d", got.Clients)
	}
	waitForClients(t, s, 1)
}

func TestServer_RelaysVolumeToOthers(t *testing.T) {
	s, url := newTestServer(t, Config{})

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, s, 2)

	send(t, a, `{"type":"volume","volume":40}`)

	if got := next[model.VolumeMessage](t, b); got.Volume != 40 {
		t.Errorf("expected volume 40, got %d", got.Volume)
	}

	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	for {
		_, data, err := a.ReadMessage()
		if err != nil {
			break
		}
		if msg, _ := model.Decode(data); msg != nil {
			if _, ok := msg.(model.VolumeMessage); ok {
				t.Fatal("sender must not receive its own update")
			}
		}
	}
}

func TestServer_SendsLastVolumeToNewClients(t *testing.T) {
	s, url := newTestServer(t, Config{})

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, s, 2)

	send(t, a, `{"type":"volume","volume":65}`)
	next[model.VolumeMessage](t, b)

	c := dial(t, url)
	if got := next[model.VolumeMessage](t, c); got.Volume != 65 {
		t.Errorf("expected last volume 65, got %d", got.Volume)
	}
}

func TestServer_RejectsInvalidMessages(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"too high", `{"type":"volume","volume":101}`, "volume must be between 0 and 100"},
		{"negative", `{"type":"volume","volume":-1}`, "volume must be between 0 and 100"},
		{"not json", `louder please`, ErrInvalidPayload},
		{"unsupported type", `{"type":"clients","clients":9}`, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, url := newTestServer(t, Config{})
			a := dial(t, url)
			waitForClients(t, s, 1)

			send(t, a, tt.payload)
			got := next[model.ErrorMessage](t, a)
			if !strings.HasPrefix(got.Message, tt.want) {
				t.Errorf("expected error starting with %q, got %q", tt.want, got.Message)
			}
		})
	}
}

func TestServer_RateLimitsVolumeChanges(t *testing.T) {
	s, url := newTestServer(t, Config{VolumeChangeRate: 1})

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, s, 2)

	send(t, a, `{"type":"volume","volume":10}`)
	send(t, a, `{"type":"volume","volume":20}`)

	if got := next[model.ErrorMessage](t, a); got.Message != ErrRateLimited {
		t.Errorf("expected %q, got %q", ErrRateLimited, got.Message)
	}
	if got := next[model.VolumeMessage](t, b); got.Volume != 10 {
		t.Errorf("expected first update 10 to be relayed, got %d", got.Volume)
	}
}

func TestServer_DisconnectsOversizedMessages(t *testing.T) {
	s, url := newTestServer(t, Config{MaxMessageSize: 64})

	a := dial(t, url)
	waitForClients(t, s, 1)

	send(t, a, `{"type":"volume","volume":1,"padding":"`+strings.Repeat("x", 128)+`"}`)
	waitForClients(t, s, 0)
}

func TestServer_StopsOnContextCancel(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(readTimeout):
		t.Fatal("Run did not return after cancel")
	}

	srv := httptest.NewServer(s)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to a stopped hub to be closed")
	}
}

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carenotes/veil/internal/config"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func feedConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Enabled:         true,
		Path:            "/ws",
		MaxConnections:  2,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		AllowedOrigins:  []string{"*"},
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	// No Run loop and no clients: publishing must drop, not block.
	h := NewHub(feedConfig(), zap.NewNop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.BroadcastMasking(MaskingEvent{SessionID: "s", Operation: "anonymize"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked")
	}
}

func TestDashboardReceivesMaskingEvents(t *testing.T) {
	h := NewHub(feedConfig(), zap.NewNop())
	go h.Run()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration goes through the Run loop; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.BroadcastMasking(MaskingEvent{
		SessionID:      "s1",
		Operation:      "anonymize",
		FieldsMasked:   7,
		MentionsMasked: 2,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventTypeMasking {
		t.Errorf("event type = %q", ev.Type)
	}
}

func TestConnectionCap(t *testing.T) {
	cfg := feedConfig()
	cfg.MaxConnections = 1
	h := NewHub(cfg, zap.NewNop())
	go h.Run()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second connection accepted past the cap")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %+v", resp)
	}
}

func TestOriginCheck(t *testing.T) {
	cfg := feedConfig()
	cfg.AllowedOrigins = []string{"https://dashboard.example.fr"}
	h := NewHub(cfg, zap.NewNop())
	go h.Run()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, _, err := gorilla.DefaultDialer.Dial(url, header); err == nil {
		t.Error("disallowed origin accepted")
	}

	header = http.Header{"Origin": []string{"https://dashboard.example.fr"}}
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

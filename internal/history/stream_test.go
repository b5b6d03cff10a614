package history

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamHandler(t *testing.T) {
	l := NewLog(0)
	server := httptest.NewServer(NewStreamHandler(l))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Wait for the handler to subscribe
	deadline := time.Now().Add(time.Second)
	for l.Stats()["activeSubscribers"] != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Handler did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := req("POST", "/orders")
	rec.Body = []byte(`{"id":1}`)
	l.Append(rec)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got["path"] != "/orders" {
		t.Errorf("Expected path /orders, got %v", got["path"])
	}
	if got["body"] != `{"id":1}` {
		t.Errorf("Expected body text, got %v", got["body"])
	}
	if got["seq"] != float64(1) {
		t.Errorf("Expected seq 1, got %v", got["seq"])
	}
}

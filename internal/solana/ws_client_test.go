package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Keep connection open
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func serveSubscription(t *testing.T, c *websocket.Conn) {
	t.Helper()

	_, msg, err := c.ReadMessage()
	if err != nil {
		return
	}

	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Errorf("unmarshal request: %v", err)
		return
	}

	if req.Method != "logsSubscribe" {
		t.Errorf("expected logsSubscribe, got %s", req.Method)
	}

	resp := wsSubscribeResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  12345, // subscription ID
	}
	if err := c.WriteJSON(resp); err != nil {
		t.Errorf("write response: %v", err)
		return
	}

	time.Sleep(50 * time.Millisecond)
	notif := wsNotification{
		JSONRPC: "2.0",
		Method:  "logsNotification",
		Params: &wsNotificationParams{
			Subscription: 12345,
			Result: wsNotificationResult{
				Context: &wsContext{Slot: 100},
				Value: wsLogsValue{
					Signature: "testsig",
					Logs:      []string{"Program log: ray_log: swap"},
					Err:       nil,
				},
			},
		},
	}
	if err := c.WriteJSON(notif); err != nil {
		t.Errorf("write notification: %v", err)
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer c.Close()

		serveSubscription(t, c)

		// Keep connection open
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{
		Mentions: []string{"testprogram"},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_ReconnectResubscribes(t *testing.T) {
	var connCount atomic.Int32
	var reconnects atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		n := connCount.Add(1)
		if n == 1 {
			// First connection: confirm the subscription then drop it.
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			json.Unmarshal(msg, &req)
			c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: 1})
			return
		}

		// Second connection: the client resubscribes on its own.
		serveSubscription(t, c)
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	config := &WSClientConfig{
		ReconnectDelay:    20 * time.Millisecond,
		MaxReconnectDelay: 100 * time.Millisecond,
		PingInterval:      time.Minute,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		OnReconnect: func() {
			reconnects.Add(1)
		},
	}

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, config, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"testprogram"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for notification after reconnect")
	}

	if connCount.Load() < 2 {
		t.Errorf("expected at least 2 connections, got %d", connCount.Load())
	}

	if reconnects.Load() < 1 {
		t.Errorf("expected OnReconnect to fire, got %d", reconnects.Load())
	}
}

func TestWSClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	err = client.Close()
	if err != nil {
		t.Errorf("Close: %v", err)
	}

	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe
	err = client.Close()
	if err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	client.Close()

	_, err = client.SubscribeLogs(ctx, LogsFilter{})
	if err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_CustomConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	config := &WSClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, config, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
}

// A config carrying only the OnReconnect callback must still get
// working timing defaults; a zero PingInterval would panic the ping
// ticker and a zero ReadTimeout would expire every read immediately.
func TestWSClient_PartialConfigGetsDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	config := &WSClientConfig{
		OnReconnect: func() {},
	}

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, config, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	def := DefaultWSConfig()
	if client.config.PingInterval != def.PingInterval {
		t.Errorf("expected default PingInterval %v, got %v", def.PingInterval, client.config.PingInterval)
	}
	if client.config.ReadTimeout != def.ReadTimeout {
		t.Errorf("expected default ReadTimeout %v, got %v", def.ReadTimeout, client.config.ReadTimeout)
	}
	if client.config.ReconnectDelay != def.ReconnectDelay {
		t.Errorf("expected default ReconnectDelay %v, got %v", def.ReconnectDelay, client.config.ReconnectDelay)
	}
	if client.config.OnReconnect == nil {
		t.Error("expected OnReconnect callback to survive default filling")
	}

	// The ping loop is running with the defaulted interval; give it a
	// beat to prove the client did not die at startup.
	time.Sleep(50 * time.Millisecond)
	subCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := client.SubscribeLogs(subCtx, LogsFilter{Mentions: []string{"prog"}}); err == nil {
		// The stub server never answers the subscribe request, so a
		// nil error here would mean the request path short-circuited.
		t.Error("expected subscribe against non-answering server to fail")
	}
}

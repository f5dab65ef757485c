package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/stream"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamDeliversEventsAndHeartbeats(t *testing.T) {
	manager := stream.NewManager(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = manager.Run(ctx) }()
	waitFor(t, "dispatcher", manager.Bound)

	server := httptest.NewServer(newTestHandler(testDeps{streams: manager}).Routes())
	defer server.Close()

	token, err := auth.GenerateToken(testSecret, 4, time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	reqCtx, stop := context.WithCancel(context.Background())
	defer stop()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, server.URL+"/stream?token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	waitFor(t, "subscription", func() bool { return manager.Subscribers(4) == 1 })
	manager.Publish(4, stream.NewEvent("transfer", map[string]string{"amount": "5.00"}))

	reader := bufio.NewReader(resp.Body)
	var sawPing bool
	var event stream.Event
	for event.ID == "" || !sawPing {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case line == ": ping":
			sawPing = true
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				t.Fatalf("invalid event %q: %v", line, err)
			}
		}
	}
	if event.Name != "transfer" {
		t.Fatalf("unexpected event %#v", event)
	}

	stop()
	waitFor(t, "unsubscribe", func() bool { return manager.Subscribers(4) == 0 })
}

func TestStreamRequiresToken(t *testing.T) {
	handler := newTestHandler(testDeps{})
	for _, target := range []string{"/stream", "/sse/stream?token=garbage", "/ws"} {
		if rr := serve(t, handler, http.MethodGet, target, "", 0); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rr.Code)
		}
	}
}

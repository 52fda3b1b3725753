package notify

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients=%d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub, srv := startHub(t)
	all := dial(t, srv, "")
	guild := dial(t, srv, "?guild=7")
	waitForClients(t, hub, 2)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	hub.Notify(context.Background(), NewEvent(TypeLevelUp, 0, 3, map[string]int{"level": 2}, now))
	hub.Notify(context.Background(), NewEvent(TypeMissionStarted, 7, 3, nil, now))

	first := readEvent(t, all)
	if first.Type != TypeLevelUp || first.CharacterID != 3 || first.ID == "" {
		t.Fatalf("first=%+v", first)
	}
	if second := readEvent(t, all); second.Type != TypeMissionStarted {
		t.Fatalf("second=%+v", second)
	}
	// The guild subscriber only sees guild 7 events.
	if got := readEvent(t, guild); got.Type != TypeMissionStarted || got.GuildID != 7 {
		t.Fatalf("guild got=%+v", got)
	}
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(log.New(io.Discard, "", 0)) // not running, nothing drains
	for i := 0; i < sendBuffer+3; i++ {
		hub.Notify(context.Background(), Event{Type: TypeChatMessage})
	}
	if hub.Dropped() != 3 {
		t.Fatalf("dropped=%d, want 3", hub.Dropped())
	}
	Discard{}.Notify(context.Background(), Event{})
}

package events_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/events"
)

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	hub := events.NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the hub a moment to register the client.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(events.Message{
		Type:       events.TypeStudyRegistered,
		ContentKey: "abc123",
		LabID:      "LAB_CENTRAL_001",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg events.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != events.TypeStudyRegistered || msg.ContentKey != "abc123" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestHub_DeadClientDoesNotDisruptBroadcast(t *testing.T) {
	hub := events.NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	dead, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial dead: %v", err)
	}
	live, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial live: %v", err)
	}
	defer live.Close()

	time.Sleep(50 * time.Millisecond)

	// Kill the first connection, then keep broadcasting: the hub must shed
	// the dead subscriber without disturbing the live one.
	dead.Close()
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 20; i++ {
		hub.Broadcast(events.Message{Type: events.TypeReportGenerated, ReportID: "REPORT_x"})
	}

	live.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := live.ReadMessage()
	if err != nil {
		t.Fatalf("live client stopped receiving: %v", err)
	}

	var msg events.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != events.TypeReportGenerated {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestHub_BroadcastWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := events.NewHub()
	// No Run loop: the buffered channel absorbs messages, then drops the rest.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Broadcast(events.Message{Type: events.TypeReportGenerated})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked with no subscribers")
	}
}

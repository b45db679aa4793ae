package brackets

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func registerTestClient(t *testing.T, h *Hub, room string) *Client {
	t.Helper()
	c := &Client{ID: "test-" + room, Hub: h, Send: make(chan []byte, 4), Room: room}
	h.Register <- c
	deadline := time.Now().Add(time.Second)
	for h.RoomSize(room) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was not registered in room %s", room)
		}
		time.Sleep(time.Millisecond)
	}
	return c
}

func TestBroadcastToRoomOnlyReachesRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	r1 := registerTestClient(t, h, RoundRoom(1))
	r2 := registerTestClient(t, h, RoundRoom(2))

	h.BroadcastToRoom(RoundRoom(1), WebSocketMessage{Type: EventMatchResult, RoomID: RoundRoom(1)})

	select {
	case raw := <-r1.Send:
		var msg WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != EventMatchResult || msg.RoomID != "round_1" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("round 1 client got nothing")
	}

	select {
	case raw := <-r2.Send:
		t.Fatalf("round 2 client should not receive round 1 events, got %s", raw)
	default:
	}
}

func TestUnregisterRemovesEmptyRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	c := registerTestClient(t, h, RoundRoom(3))
	h.Unregister <- c

	deadline := time.Now().Add(time.Second)
	for h.RoomSize(RoundRoom(3)) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room was not emptied")
		}
		time.Sleep(time.Millisecond)
	}
	if _, ok := <-c.Send; ok {
		t.Fatal("send channel should be closed after unregister")
	}
}

func TestBroadcastSkipsFullClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	c := registerTestClient(t, h, RoundRoom(4))
	for i := 0; i < cap(c.Send)+3; i++ {
		h.BroadcastToRoom(RoundRoom(4), WebSocketMessage{Type: EventMatchCreated})
	}
	if len(c.Send) != cap(c.Send) {
		t.Fatalf("expected buffer to be full (%d), got %d", cap(c.Send), len(c.Send))
	}
}

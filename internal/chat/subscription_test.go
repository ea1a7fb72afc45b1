package chat_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"minichat/config"
	"minichat/internal/chat"
	"minichat/internal/domain"
	"minichat/internal/transport/httpdto"
	"minichat/internal/transport/ws"
	minichat_errors "minichat/pkg/errors"
	"minichat/pkg/logger"
)

// fakeTransport records published payloads and lets tests drive the
// connectivity state the controller observes.
type fakeTransport struct {
	mu          sync.Mutex
	state       domain.ConnectionState
	published   [][]byte
	failPublish bool
}

func (f *fakeTransport) State() domain.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Publish(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPublish {
		return minichat_errors.ErrNotConnected
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeTransport) setState(s domain.ConnectionState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeTransport) controlFrames(t *testing.T) []ws.ControlFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := make([]ws.ControlFrame, 0, len(f.published))
	for _, p := range f.published {
		var frame ws.ControlFrame
		if err := json.Unmarshal(p, &frame); err != nil {
			t.Fatalf("published payload is not a control frame: %q", p)
		}
		frames = append(frames, frame)
	}
	return frames
}

func newPerRoomController(t *testing.T) (*chat.Controller, *chat.Store, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{state: domain.Connected}
	store := chat.NewStore()
	ctrl := chat.NewController(transport, store, config.SubscriptionPerRoom, logger.NewNop())
	return ctrl, store, transport
}

func pushFrame(t *testing.T, ctrl *chat.Controller, msg httpdto.MessageResponse) {
	t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	ctrl.HandleFrame(payload)
}

func TestController_SubscribesActiveRoom(t *testing.T) {
	ctrl, _, transport := newPerRoomController(t)

	ctrl.SetActiveRoom("1")

	frames := transport.controlFrames(t)
	if len(frames) != 1 || frames[0].Type != ws.FrameSubscribe || frames[0].ChatID != "1" {
		t.Fatalf("expected a single subscribe frame for room 1, got %+v", frames)
	}
	if !ctrl.Subscribed() {
		t.Error("expected a live subscription handle")
	}
}

func TestController_SetActiveRoomIdempotent(t *testing.T) {
	ctrl, _, transport := newPerRoomController(t)

	ctrl.SetActiveRoom("1")
	ctrl.SetActiveRoom("1")

	if frames := transport.controlFrames(t); len(frames) != 1 {
		t.Fatalf("repeated selection should be a no-op, got frames %+v", frames)
	}
}

func TestController_RoomSwitchTearsDownBeforeSetup(t *testing.T) {
	ctrl, _, transport := newPerRoomController(t)

	ctrl.SetActiveRoom("A")
	ctrl.SetActiveRoom("B")

	frames := transport.controlFrames(t)
	want := []ws.ControlFrame{
		{Type: ws.FrameSubscribe, ChatID: "A"},
		{Type: ws.FrameUnsubscribe, ChatID: "A"},
		{Type: ws.FrameSubscribe, ChatID: "B"},
	}
	if len(frames) != len(want) {
		t.Fatalf("expected frames %+v, got %+v", want, frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d: expected %+v, got %+v", i, want[i], frames[i])
		}
	}
}

func TestController_RemembersRoomWhileDisconnected(t *testing.T) {
	ctrl, _, transport := newPerRoomController(t)
	transport.setState(domain.Disconnected)

	ctrl.SetActiveRoom("1")
	if ctrl.Subscribed() {
		t.Fatal("no subscription should exist while disconnected")
	}
	if len(transport.controlFrames(t)) != 0 {
		t.Fatal("nothing should be published while disconnected")
	}

	transport.setState(domain.Connected)
	ctrl.HandleConnectionState(domain.Connected)

	frames := transport.controlFrames(t)
	if len(frames) != 1 || frames[0].Type != ws.FrameSubscribe || frames[0].ChatID != "1" {
		t.Fatalf("expected the remembered room to be subscribed on connect, got %+v", frames)
	}
}

func TestController_ResubscribesOnReconnect(t *testing.T) {
	ctrl, _, transport := newPerRoomController(t)

	ctrl.SetActiveRoom("1")

	transport.setState(domain.Disconnected)
	ctrl.HandleConnectionState(domain.Disconnected)
	if ctrl.Subscribed() {
		t.Fatal("subscription should be dropped on disconnect")
	}

	transport.setState(domain.Connected)
	ctrl.HandleConnectionState(domain.Connected)

	frames := transport.controlFrames(t)
	subs := 0
	for _, f := range frames {
		if f.Type == ws.FrameSubscribe {
			subs++
		}
	}
	if subs != 2 {
		t.Fatalf("expected exactly one re-subscription after reconnect, got %d subscribes", subs)
	}
	if !ctrl.Subscribed() {
		t.Error("expected exactly one live subscription after reconnect")
	}
}

func TestController_DiscardsEventsForInactiveRoom(t *testing.T) {
	ctrl, store, _ := newPerRoomController(t)
	store.ReplaceAll("B", nil)
	ctrl.SetActiveRoom("A")
	ctrl.SetActiveRoom("B")

	// A frame for room A arrives after A's teardown.
	pushFrame(t, ctrl, httpdto.MessageResponse{ID: "9", ChatID: "A", SenderID: "2", Content: "late", CreatedAt: time.Now()})
	if got := len(store.Messages()); got != 0 {
		t.Fatalf("late event for room A leaked into room B's sequence: %d entries", got)
	}

	pushFrame(t, ctrl, httpdto.MessageResponse{ID: "10", ChatID: "B", SenderID: "2", Content: "fresh", CreatedAt: time.Now()})
	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].ID != "10" {
		t.Fatalf("active-room event not ingested: %+v", msgs)
	}
}

func TestController_BroadcastModeFiltersClientSide(t *testing.T) {
	transport := &fakeTransport{state: domain.Connected}
	store := chat.NewStore()
	ctrl := chat.NewController(transport, store, config.SubscriptionBroadcast, logger.NewNop())

	store.ReplaceAll("1", nil)
	ctrl.SetActiveRoom("1")

	if frames := len(transport.controlFrames(t)); frames != 0 {
		t.Fatalf("broadcast mode should publish no control frames, got %d", frames)
	}

	pushFrame(t, ctrl, httpdto.MessageResponse{ID: "5", ChatID: "1", SenderID: "2", Content: "mine", CreatedAt: time.Now()})
	pushFrame(t, ctrl, httpdto.MessageResponse{ID: "6", ChatID: "2", SenderID: "2", Content: "other room", CreatedAt: time.Now()})

	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].ID != "5" {
		t.Fatalf("expected only the active room's event, got %+v", msgs)
	}
}

func TestController_MalformedFrameDropped(t *testing.T) {
	ctrl, store, _ := newPerRoomController(t)
	store.ReplaceAll("1", nil)
	ctrl.SetActiveRoom("1")

	ctrl.HandleFrame([]byte("{not json"))
	ctrl.HandleFrame([]byte(`{"chatId":"1"}`)) // no id: undecodable as a settled message

	if got := len(store.Messages()); got != 0 {
		t.Fatalf("malformed frames mutated the store: %d entries", got)
	}
	if !ctrl.Subscribed() {
		t.Error("malformed frame must not affect the subscription state machine")
	}
}

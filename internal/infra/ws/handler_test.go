//go:build !integration

package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/infra/web"
	"counseling-platform/internal/usecase"
)

// ---- Fakes ----

type fakeChatUC struct {
	mu     sync.Mutex
	chat   *model.Chat
	nextID int64
	seen   map[string]bool
}

func newFakeChatUC(chat *model.Chat) *fakeChatUC {
	return &fakeChatUC{chat: chat, nextID: 1, seen: make(map[string]bool)}
}

func (f *fakeChatUC) GetChat(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	if chatID != f.chat.ID {
		return nil, domain.ErrNotFound
	}
	if !f.chat.IsParticipant(callerID) {
		return nil, domain.ErrAccessDenied
	}
	return f.chat, nil
}

func (f *fakeChatUC) SendMessage(ctx context.Context, chatID, senderID int64, text, clientMessageID string) (*usecase.SendOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if !f.chat.IsParticipant(senderID) {
		return nil, domain.ErrAccessDenied
	}
	if clientMessageID != "" && f.seen[clientMessageID] {
		return &usecase.SendOutcome{Duplicate: true, Chat: f.chat}, nil
	}
	f.seen[clientMessageID] = true
	statusChanged := f.chat.Status == model.ChatQueued
	if statusChanged {
		f.chat.Status = model.ChatActive
	}
	msg := &model.Message{
		ID:              f.nextID,
		ChatID:          chatID,
		SenderID:        senderID,
		Text:            text,
		ClientMessageID: clientMessageID,
		CreatedAt:       time.Now(),
	}
	f.nextID++
	return &usecase.SendOutcome{
		Message:       msg,
		Chat:          f.chat,
		IsOwner:       f.chat.IsOwner(senderID),
		StatusChanged: statusChanged,
	}, nil
}

func (f *fakeChatUC) CreateChat(ctx context.Context, userID int64) (*model.Chat, error) {
	panic("unused")
}
func (f *fakeChatUC) ListMessages(ctx context.Context, chatID, callerID int64) ([]*model.Message, *model.Chat, error) {
	panic("unused")
}
func (f *fakeChatUC) Accept(ctx context.Context, chatID, counsellorID int64) (*model.Chat, error) {
	panic("unused")
}
func (f *fakeChatUC) Complete(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	panic("unused")
}
func (f *fakeChatUC) Cancel(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	panic("unused")
}
func (f *fakeChatUC) ListForUser(ctx context.Context, callerID int64) ([]*model.Chat, error) {
	panic("unused")
}
func (f *fakeChatUC) ListQueued(ctx context.Context, callerID int64) ([]*model.Chat, error) {
	panic("unused")
}

var _ usecase.ChatUseCase = (*fakeChatUC)(nil)

// ---- Helpers ----

func startGateway(t *testing.T, uc usecase.ChatUseCase) (*httptest.Server, *web.AuthManager, *Hub) {
	t.Helper()
	nop := zerolog.Nop()
	auth := web.NewAuthManager("test-secret", time.Hour)
	hub := NewHub()
	handler := NewHandler(hub, auth, uc, nil, 0, &nop)
	r := chi.NewRouter()
	r.Handle("/ws/chats/{id}", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, auth, hub
}

func dial(t *testing.T, srv *httptest.Server, auth *web.AuthManager, user *model.User, chatID string) *websocket.Conn {
	t.Helper()
	token, err := auth.Mint(user)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/" + chatID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForSubscribers blocks until the chat topic has n live subscribers, so a
// test write cannot race the server-side subscription of a just-dialed client.
func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(ChatTopic(1)) < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d subscribers on %s, want %d", hub.Subscribers(ChatTopic(1)), ChatTopic(1), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %s: %v", data, err)
	}
	return frame
}

// ---- Tests ----

func testChat(ownerID int64) *model.Chat {
	c, _ := model.NewChat(ownerID)
	c.ID = 1
	return c
}

func TestGatewayRejectsOutsiders(t *testing.T) {
	owner := &model.User{ID: 1, Username: "alice", Role: model.RoleUser}
	stranger := &model.User{ID: 9, Username: "mallory", Role: model.RoleUser}
	srv, auth, _ := startGateway(t, newFakeChatUC(testChat(owner.ID)))

	t.Run("no token", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/1"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatal("dial without token must fail")
		}
		if resp == nil || resp.StatusCode != 401 {
			t.Fatalf("status = %v, want 401", resp)
		}
	})

	t.Run("non-participant", func(t *testing.T) {
		token, _ := auth.Mint(stranger)
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/1?token=" + token
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatal("dial by a non-participant must fail")
		}
		if resp == nil || resp.StatusCode != 403 {
			t.Fatalf("status = %v, want 403", resp)
		}
	})

	t.Run("unknown chat", func(t *testing.T) {
		token, _ := auth.Mint(owner)
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/999?token=" + token
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatal("dial to an unknown chat must fail")
		}
		if resp == nil || resp.StatusCode != 404 {
			t.Fatalf("status = %v, want 404", resp)
		}
	})
}

func TestGatewaySendAndBroadcast(t *testing.T) {
	owner := &model.User{ID: 1, Username: "alice", Role: model.RoleUser}
	srv, auth, hub := startGateway(t, newFakeChatUC(testChat(owner.ID)))

	sender := dial(t, srv, auth, owner, "1")
	watcher := dial(t, srv, auth, owner, "1") // second tab of the same user
	waitForSubscribers(t, hub, 2)

	if err := sender.WriteJSON(map[string]string{"message": "hello", "client_message_id": "abc"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Sender gets the ack first, then the broadcast copy.
	ack := readFrame(t, sender)
	if ack["type"] != "ack" || ack["status"] != "sent" || ack["client_message_id"] != "abc" {
		t.Fatalf("ack = %v", ack)
	}
	if ack["message_id"] == nil {
		t.Fatal("sent ack must carry the new message id")
	}
	echo := readFrame(t, sender)
	if echo["type"] != "message" || echo["message"] != "hello" {
		t.Fatalf("echo = %v", echo)
	}
	if echo["is_user"] != true {
		t.Fatal("owner-authored broadcast must set is_user")
	}

	// Every other subscriber of the chat topic receives the broadcast.
	got := readFrame(t, watcher)
	if got["type"] != "message" || got["message"] != "hello" || got["sender_username"] != "alice" {
		t.Fatalf("watcher frame = %v", got)
	}
}

func TestGatewayDuplicateAck(t *testing.T) {
	owner := &model.User{ID: 1, Username: "alice", Role: model.RoleUser}
	srv, auth, _ := startGateway(t, newFakeChatUC(testChat(owner.ID)))
	conn := dial(t, srv, auth, owner, "1")

	for i := 0; i < 2; i++ {
		if err := conn.WriteJSON(map[string]string{"message": "hi", "client_message_id": "abc"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	first := readFrame(t, conn)
	if first["status"] != "sent" {
		t.Fatalf("first ack = %v", first)
	}
	_ = readFrame(t, conn) // broadcast copy of the first send
	second := readFrame(t, conn)
	if second["type"] != "ack" || second["status"] != "duplicate" || second["client_message_id"] != "abc" {
		t.Fatalf("second ack = %v", second)
	}
}

func TestGatewayStatusChangeReachesCounsellorQueue(t *testing.T) {
	owner := &model.User{ID: 1, Username: "alice", Role: model.RoleUser}
	counsellor := &model.User{ID: 2, Username: "carol", Role: model.RoleCounsellor}
	chat := testChat(owner.ID)
	chat.CounsellorID = &counsellor.ID
	srv, auth, hub := startGateway(t, newFakeChatUC(chat))

	queueWatcher := dial(t, srv, auth, counsellor, "1")
	sender := dial(t, srv, auth, owner, "1")
	waitForSubscribers(t, hub, 2)

	if err := sender.WriteJSON(map[string]string{"message": "first contact"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The counsellor sees the chat message and the queue status update.
	sawMessage, sawStatus := false, false
	for i := 0; i < 2; i++ {
		frame := readFrame(t, queueWatcher)
		switch frame["type"] {
		case "message":
			sawMessage = true
		case "chat_status_update":
			sawStatus = true
			if frame["new_status"] != "active" || frame["chat_id"] != float64(1) {
				t.Fatalf("status frame = %v", frame)
			}
		}
	}
	if !sawMessage || !sawStatus {
		t.Fatalf("counsellor saw message=%v status=%v, want both", sawMessage, sawStatus)
	}
}

func TestGatewayValidationError(t *testing.T) {
	owner := &model.User{ID: 1, Username: "alice", Role: model.RoleUser}
	srv, auth, _ := startGateway(t, newFakeChatUC(testChat(owner.ID)))
	conn := dial(t, srv, auth, owner, "1")

	if err := conn.WriteJSON(map[string]string{"message": "   "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["error"] == nil {
		t.Fatalf("frame = %v, want a local error reply", frame)
	}
	if frame["type"] != nil {
		t.Fatal("error replies carry no type discriminator")
	}

	// The connection stays usable afterwards.
	if err := conn.WriteJSON(map[string]string{"message": "real one"}); err != nil {
		t.Fatalf("write after error: %v", err)
	}
	ack := readFrame(t, conn)
	if ack["status"] != "sent" {
		t.Fatalf("ack after error = %v", ack)
	}
}

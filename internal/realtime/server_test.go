package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/casewire/casewire/internal/authz"
	"github.com/casewire/casewire/internal/config"
)

func newTestServer(t *testing.T, maxConns int) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.AuthSecret = string(testSecret)
	cfg.MaxConnections = maxConns

	s := NewServer(cfg, authz.NewStaticStore(true))
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return &msg
}

func writeWire(t *testing.T, conn *websocket.Conn, msg *Message) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func authenticateWire(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": userID,
		"role": "member",
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	writeWire(t, conn, NewMessage(MessageTypeAuthenticate, map[string]interface{}{
		"credential": token,
	}))
	if msg := readWire(t, conn); msg.Type != MessageTypeAuthOK {
		t.Fatalf("expected %s, got %s (%+v)", MessageTypeAuthOK, msg.Type, msg.Error)
	}
}

func joinWire(t *testing.T, conn *websocket.Conn, caseID string) {
	t.Helper()

	writeWire(t, conn, NewMessage(MessageTypeJoinCase, map[string]interface{}{
		"case_id": caseID,
	}))
	if msg := readWire(t, conn); msg.Type != MessageTypeCaseJoined {
		t.Fatalf("expected %s, got %s (%+v)", MessageTypeCaseJoined, msg.Type, msg.Error)
	}
}

func TestServerEndToEnd(t *testing.T) {
	_, ts := newTestServer(t, 16)

	alice := dialWS(t, ts)
	bob := dialWS(t, ts)

	authenticateWire(t, alice, "alice")
	authenticateWire(t, bob, "bob")
	joinWire(t, alice, "case-1")
	joinWire(t, bob, "case-1")

	// A chat message reaches every member, sender included.
	writeWire(t, alice, NewMessage(MessageTypeSendMessage, map[string]interface{}{
		"case_id": "case-1",
		"payload": "see attached filing",
	}))
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readWire(t, conn)
		if msg.Type != MessageTypeMessage {
			t.Fatalf("expected %s, got %s", MessageTypeMessage, msg.Type)
		}
		if msg.Data["payload"] != "see attached filing" {
			t.Errorf("payload not forwarded: %v", msg.Data)
		}
		sender, ok := msg.Data["sender"].(map[string]interface{})
		if !ok || sender["id"] != "alice" {
			t.Errorf("sender identity missing: %v", msg.Data["sender"])
		}
	}

	// A typing signal reaches everyone but the sender. Deliveries to one
	// connection are ordered, so after alice's next ping is answered any
	// misdirected typing frame would already have arrived.
	writeWire(t, alice, NewMessage(MessageTypeTypingStart, map[string]interface{}{
		"case_id": "case-1",
	}))
	if msg := readWire(t, bob); msg.Type != MessageTypeTyping {
		t.Fatalf("expected %s, got %s", MessageTypeTyping, msg.Type)
	}

	writeWire(t, alice, NewResponse(MessageTypePing, "req-ping", nil))
	msg := readWire(t, alice)
	if msg.Type != MessageTypePong {
		t.Fatalf("expected %s, got %s", MessageTypePong, msg.Type)
	}
	if msg.RequestID != "req-ping" {
		t.Errorf("pong did not echo request_id: %s", msg.RequestID)
	}
}

func TestServerRejectsUnauthenticatedJoin(t *testing.T) {
	_, ts := newTestServer(t, 16)

	conn := dialWS(t, ts)
	writeWire(t, conn, NewMessage(MessageTypeJoinCase, map[string]interface{}{
		"case_id": "case-1",
	}))

	msg := readWire(t, conn)
	if msg.Type != MessageTypeError || msg.Error == nil || msg.Error.Code != ErrorCodeAuthRequired {
		t.Errorf("expected %s error, got %+v", ErrorCodeAuthRequired, msg)
	}
}

func TestServerClosesOnBadCredential(t *testing.T) {
	_, ts := newTestServer(t, 16)

	conn := dialWS(t, ts)
	writeWire(t, conn, NewMessage(MessageTypeAuthenticate, map[string]interface{}{
		"credential": "not-a-token",
	}))

	msg := readWire(t, conn)
	if msg.Type != MessageTypeAuthError {
		t.Fatalf("expected %s, got %s", MessageTypeAuthError, msg.Type)
	}

	// The server drops the connection after the failure notice.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestServerConnectionLimit(t *testing.T) {
	_, ts := newTestServer(t, 1)

	first := dialWS(t, ts)
	authenticateWire(t, first, "alice")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial beyond the connection limit to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %+v", resp)
	}
}

func TestServerHealthAndStats(t *testing.T) {
	_, ts := newTestServer(t, 16)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	conn := dialWS(t, ts)
	authenticateWire(t, conn, "alice")
	joinWire(t, conn, "case-1")

	statsResp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer statsResp.Body.Close()

	var stats map[string]int
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("stats decode failed: %v", err)
	}
	if stats["connections"] != 1 || stats["rooms"] != 1 || stats["members"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type constants
const (
	// Handshake
	MessageTypeAuthenticate = "authenticate"
	MessageTypeAuthOK       = "auth_ok"
	MessageTypeAuthError    = "auth_error"

	// Room membership
	MessageTypeJoinCase   = "join_case"
	MessageTypeCaseJoined = "case_joined"
	MessageTypeLeaveCase  = "leave_case"
	MessageTypeCaseLeft   = "case_left"

	// Room traffic
	MessageTypeSendMessage = "send_message"
	MessageTypeMessage     = "message"
	MessageTypeTypingStart = "typing_start"
	MessageTypeTypingStop  = "typing_stop"
	MessageTypeTyping      = "typing"

	// Connection lifecycle
	MessageTypePing = "ping"
	MessageTypePong = "pong"

	// Error
	MessageTypeError = "error"
)

// Error codes
const (
	ErrorCodeAuthFailed      = "AUTH_FAILED"
	ErrorCodeAuthRequired    = "AUTH_REQUIRED"
	ErrorCodeNotAuthorized   = "NOT_AUTHORIZED"
	ErrorCodeRoomUnavailable = "ROOM_UNAVAILABLE"
	ErrorCodeInvalidRequest  = "INVALID_REQUEST"
)

// Message is the envelope for every frame on the wire
type Message struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
	Error     *ErrorInfo             `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewMessage creates a new message with the given type and data
func NewMessage(msgType string, data map[string]interface{}) *Message {
	return &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// NewResponse creates a response message for a given request
func NewResponse(msgType string, requestID string, data map[string]interface{}) *Message {
	return &Message{
		Type:      msgType,
		RequestID: requestID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// NewError creates an error response
func NewError(msgType string, requestID string, code string, message string, details string) *Message {
	return &Message{
		Type:      msgType,
		RequestID: requestID,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// AuthenticateRequest carries the bearer credential
type AuthenticateRequest struct {
	Credential string `json:"credential"`
}

// CaseRequest addresses a single case room (join_case, leave_case,
// typing_start, typing_stop)
type CaseRequest struct {
	CaseID string `json:"case_id"`
}

// SendMessageRequest carries a chat payload for a case room. The payload
// is sender-defined and forwarded verbatim.
type SendMessageRequest struct {
	CaseID  string      `json:"case_id"`
	Payload interface{} `json:"payload"`
}

// parseData converts the loosely typed data map of an incoming message
// into a concrete request struct
func parseData(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse message data: %w", err)
	}
	return nil
}

package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types used by the relay protocol.
const (
	TypeJoin       = "join"
	TypeMessage    = "message"
	TypeDisconnect = "disconnect"
	TypeSystem     = "system"
)

// Kind is the closed set of inbound event kinds the router dispatches on.
type Kind int

const (
	KindUnknown Kind = iota
	KindJoin
	KindMessage
	KindDisconnect
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return TypeJoin
	case KindMessage:
		return TypeMessage
	case KindDisconnect:
		return TypeDisconnect
	case KindSystem:
		return TypeSystem
	default:
		return "unknown"
	}
}

// KindOf maps a declared event type onto its Kind.
func KindOf(eventType string) Kind {
	switch eventType {
	case TypeJoin:
		return KindJoin
	case TypeMessage:
		return KindMessage
	case TypeDisconnect:
		return KindDisconnect
	case TypeSystem:
		return KindSystem
	default:
		return KindUnknown
	}
}

// Event is the JSON envelope exchanged over the relay, in both directions.
type Event struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	Content   string `json:"content,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Kind returns the dispatch kind for the event's declared type.
func (e Event) Kind() Kind {
	return KindOf(e.Type)
}

// Timestamp formats t as an ISO-8601 UTC timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Now returns the current server time as an ISO-8601 UTC timestamp.
func Now() string {
	return Timestamp(time.Now())
}

// System builds a server-stamped system notice.
func System(content string) Event {
	return Event{Type: TypeSystem, Content: content, Timestamp: Now()}
}

// Chat builds a server-stamped chat event.
func Chat(userID, username, content string) Event {
	return Event{
		Type:      TypeMessage,
		UserID:    userID,
		Username:  username,
		Content:   content,
		Timestamp: Now(),
	}
}

// Shutdown builds the disconnect notice sent to every client while the
// server drains.
func Shutdown(reason string) Event {
	return Event{Type: TypeDisconnect, Reason: reason, Timestamp: Now()}
}

// Encode marshals an event for the wire.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses one inbound frame. Any JSON object is accepted; scalar
// fields that arrive as numbers or booleans are kept in their textual form.
// Frames that are not a JSON object yield an error.
func Decode(raw []byte) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if fields == nil {
		return Event{}, fmt.Errorf("decode frame: not a JSON object")
	}
	return Event{
		Type:      field(fields, "type"),
		UserID:    field(fields, "userId"),
		Username:  field(fields, "username"),
		Content:   field(fields, "content"),
		Reason:    field(fields, "reason"),
		Timestamp: field(fields, "timestamp"),
	}, nil
}

func field(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// Present reports whether every value is non-blank.
func Present(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

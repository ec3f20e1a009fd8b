package chat

import "time"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable transcript entry.
type Message struct {
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a message with the current instant.
func NewMessage(role Role, content string) Message {
	return Message{Content: content, Role: role, Timestamp: time.Now().UTC()}
}

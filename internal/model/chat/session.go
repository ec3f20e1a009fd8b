package chat

import "time"

const (
	// DefaultTitle is used until the first user message names the session.
	DefaultTitle = "New Chat"

	titleLimit = 30
)

// Session captures an append-only conversation transcript, optionally owned by a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
}

// OwnedByOther reports whether the session belongs to someone other than userID.
func (s Session) OwnedByOther(userID string) bool {
	return s.UserID != nil && *s.UserID != userID
}

// Clone returns a copy whose message slice is not shared.
func (s Session) Clone() Session {
	out := s
	out.Messages = append(make([]Message, 0, len(s.Messages)), s.Messages...)
	if s.UserID != nil {
		owner := *s.UserID
		out.UserID = &owner
	}
	return out
}

// DeriveTitle shortens content to 30 characters, marking truncation with "...".
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + "..."
}

package session

import (
	"encoding/json"
	"unicode/utf8"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is the title of a session before its first message.
const DefaultTitle = "New Chat"

// titleLimit is the rune count a derived title is truncated to.
const titleLimit = 30

// Row is one unit of tabular backend output. The backend may return rows as
// JSON arrays (positional) or JSON objects (named); the raw bytes are kept
// and only the table normalizer inspects the shape.
type Row = json.RawMessage

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	SQL     string `json:"sql,omitempty"`
	Results []Row  `json:"results,omitempty"`
	Kind    string `json:"kind,omitempty"`
	IsError bool   `json:"isError,omitempty"`
}

// Session represents one titled conversation thread.
type Session struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// DeriveTitle derives a session title from its first message: the text
// truncated to 30 runes, with "..." appended when truncation happened.
func DeriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= titleLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:titleLimit]) + "..."
}

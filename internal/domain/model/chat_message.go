package model

import "time"

// ChatMessage is a single persisted utterance in a user's tutoring chat.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagePair is the user message plus the generated assistant reply.
// The two records are persisted together or not at all.
type MessagePair struct {
	User      ChatMessage `json:"user"`
	Assistant ChatMessage `json:"assistant"`
}

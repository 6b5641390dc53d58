package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation. Messages are never edited after they are appended.
type Message struct {
	Role    Role   `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
}

// ChatRecord is the persisted copy of a conversation saved under a name.
type ChatRecord struct {
	ID        string    `json:"id" firestore:"-"`
	UID       string    `json:"uid" firestore:"uid"`
	User      string    `json:"user" firestore:"user"`
	UserEmail string    `json:"user_email" firestore:"user_email"`
	ChatName  string    `json:"chat_name" firestore:"chat_name"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	Messages  []Message `json:"messages" firestore:"messages"`
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

type PostMessageResponse struct {
	Reply    Message   `json:"reply"`
	Messages []Message `json:"messages"`
}

type SaveChatRequest struct {
	Name string `json:"name"`
}

type SaveChatResponse struct {
	ChatName     string `json:"chat_name"`
	MessageCount int    `json:"message_count"`
	Persisted    bool   `json:"persisted"`
	RetryQueued  bool   `json:"retry_queued"`
	Warning      string `json:"warning,omitempty"`
}

type ArchivedChat struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

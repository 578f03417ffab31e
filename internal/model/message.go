package model

import "time"

// MessageContent is one entry of a thread. ID is unique across all
// threads so stream consumers can de-duplicate redelivered entries.
type MessageContent struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	Date   time.Time `json:"date"`
}

// Message is a support thread stored in the `messages` table.
// Contents is append-only and ordered by Date; Date on the thread
// is touched on every append.
type Message struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"threadId"`
	UserID    string           `json:"userId,omitempty"`
	UserEmail string           `json:"userEmail"`
	Subject   string           `json:"subject,omitempty"`
	Type      string           `json:"type"`
	Approved  int              `json:"approved"`
	Contents  []MessageContent `json:"contents"`
	Date      time.Time        `json:"date"`
	CreatedAt time.Time        `json:"createdAt"`
}

// StreamEntry is a flattened thread entry pushed over the live stream.
type StreamEntry struct {
	ThreadID string         `json:"threadId"`
	Type     string         `json:"type"`
	Content  MessageContent `json:"content"`
}

package chat

import "time"

// TaskInfo is the slice of a task the chat list needs.
type TaskInfo struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Price      int64     `json:"price"`
	CreatorID  string    `json:"creator_id"`
	AssigneeID *string   `json:"assignee_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Participant is the counterpart profile snapshot shown in the list.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Verified  bool   `json:"verified"`
}

// MessagePreview is the most recent message of a conversation.
type MessagePreview struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is the derived conversation view: one per task where the viewer
// participates and the task is no longer open. Never stored.
type Chat struct {
	Task        TaskInfo        `json:"task"`
	Counterpart Participant     `json:"counterpart"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
}

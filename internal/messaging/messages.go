package messaging

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/alerts"
	"github.com/unitasklabs/unitask/internal/chat"
	"github.com/unitasklabs/unitask/internal/db"
)

// taskParticipants loads the two sides of a task thread. Only the
// creator and the assignee may read or write messages.
func taskParticipants(ctx context.Context, taskID string) (creatorID string, assigneeID *string, err error) {
	err = db.Conn.QueryRow(ctx,
		`SELECT creator_id, assignee_id FROM tasks WHERE id = $1`, taskID,
	).Scan(&creatorID, &assigneeID)
	return
}

func otherParticipant(userID, creatorID string, assigneeID *string) (string, bool) {
	if userID == creatorID {
		if assigneeID == nil {
			return "", false
		}
		return *assigneeID, true
	}
	if assigneeID != nil && *assigneeID == userID {
		return creatorID, true
	}
	return "", false
}

// SendMessage - creator or assignee sends a message in a task thread
// POST /tasks/:id/messages
func SendMessage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	var body struct {
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	}
	if err := c.Bind(&body); err != nil || (body.Content == "" && body.ImageURL == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message needs content or an image"})
	}

	ctx := context.Background()
	creatorID, assigneeID, err := taskParticipants(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	recipientID, isParticipant := otherParticipant(userID, creatorID, assigneeID)
	if !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this task"})
	}

	msgID := uuid.New().String()
	var imageURL *string
	if body.ImageURL != "" {
		imageURL = &body.ImageURL
	}
	var createdAt time.Time
	err = db.Conn.QueryRow(ctx,
		`INSERT INTO messages (id, task_id, sender_id, content, image_url)
         VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		msgID, taskID, userID, body.Content, imageURL,
	).Scan(&createdAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	// Realtime fan-out: thread subscribers first, then the chat lists
	BroadcastNewMessage(taskID, echo.Map{
		"id":         msgID,
		"task_id":    taskID,
		"sender_id":  userID,
		"content":    body.Content,
		"image_url":  body.ImageURL,
		"created_at": createdAt.UTC().Format(time.RFC3339),
	})
	chat.NotifyMessagesChanged(taskID)

	// In-app notification for the other participant
	ref := msgID
	meta := "{}"
	_ = alerts.CreateNotification(recipientID, "message:new", "New message on your task", body.Content, &ref, &meta)

	// Email notification (best-effort)
	var recipientEmail string
	_ = db.Conn.QueryRow(ctx, `SELECT email FROM profiles WHERE id = $1`, recipientID).Scan(&recipientEmail)
	if recipientEmail != "" {
		_ = alerts.EnqueueMessageNew(taskID, userID, recipientEmail, recipientID, body.Content)
	}

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID})
}

// ListMessages - the conversation for a task, oldest first
// GET /tasks/:id/messages
func ListMessages(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	ctx := context.Background()
	creatorID, assigneeID, err := taskParticipants(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if _, isParticipant := otherParticipant(userID, creatorID, assigneeID); !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this task"})
	}

	// Optional since filter for incremental fetches
	var rows pgx.Rows
	if sinceStr := c.QueryParam("since"); sinceStr != "" {
		sinceTime, perr := time.Parse(time.RFC3339, sinceStr)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp, use RFC3339"})
		}
		rows, err = db.Conn.Query(ctx,
			`SELECT id, sender_id, content, image_url, created_at, read_at
             FROM messages WHERE task_id = $1 AND created_at > $2 ORDER BY created_at ASC`, taskID, sinceTime)
	} else {
		rows, err = db.Conn.Query(ctx,
			`SELECT id, sender_id, content, image_url, created_at, read_at
             FROM messages WHERE task_id = $1 ORDER BY created_at ASC`, taskID)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list messages"})
	}
	defer rows.Close()

	type message struct {
		ID        string  `json:"id"`
		SenderID  string  `json:"sender_id"`
		Content   string  `json:"content"`
		ImageURL  string  `json:"image_url,omitempty"`
		CreatedAt string  `json:"created_at"`
		ReadAt    *string `json:"read_at"`
	}

	msgs := []message{}
	for rows.Next() {
		var (
			m         message
			imageURL  *string
			createdAt time.Time
			readAt    *time.Time
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Content, &imageURL, &createdAt, &readAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		if imageURL != nil {
			m.ImageURL = *imageURL
		}
		m.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		if readAt != nil {
			ts := readAt.UTC().Format(time.RFC3339)
			m.ReadAt = &ts
		}
		msgs = append(msgs, m)
	}

	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// UnreadCount - messages from the counterpart the caller hasn't read
// GET /tasks/:id/messages/unread
func UnreadCount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	ctx := context.Background()
	creatorID, assigneeID, err := taskParticipants(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if _, isParticipant := otherParticipant(userID, creatorID, assigneeID); !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this task"})
	}

	var count int64
	err = db.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE task_id = $1 AND sender_id <> $2 AND read_at IS NULL`,
		taskID, userID,
	).Scan(&count)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkMessageRead - the counterpart marks a message as read
// POST /tasks/:id/messages/:message_id/read
func MarkMessageRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	msgID := c.Param("message_id")
	if taskID == "" || msgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task or message id"})
	}

	ctx := context.Background()
	var senderID string
	err := db.Conn.QueryRow(ctx,
		`SELECT sender_id FROM messages WHERE id = $1 AND task_id = $2`, msgID, taskID,
	).Scan(&senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch message"})
	}
	if senderID == userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot mark your own message"})
	}

	creatorID, assigneeID, err := taskParticipants(ctx, taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if _, isParticipant := otherParticipant(userID, creatorID, assigneeID); !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this task"})
	}

	var readTS time.Time
	err = db.Conn.QueryRow(ctx,
		`UPDATE messages SET read_at = NOW() WHERE id = $1 RETURNING read_at`, msgID,
	).Scan(&readTS)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark read"})
	}

	BroadcastMessageRead(taskID, echo.Map{
		"message_id": msgID,
		"task_id":    taskID,
		"user_id":    userID,
		"read_at":    readTS.UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID, "read_at": readTS.UTC().Format(time.RFC3339)})
}

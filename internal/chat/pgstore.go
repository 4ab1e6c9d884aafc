package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/unitasklabs/unitask/internal/db"
)

// PGStore reads chat inputs from Postgres.
type PGStore struct{}

func NewPGStore() *PGStore { return &PGStore{} }

func (s *PGStore) TasksForUser(ctx context.Context, userID string) ([]TaskInfo, error) {
	rows, err := db.Conn.Query(ctx, `
        SELECT id, title, status, price, creator_id, assignee_id, created_at
        FROM tasks WHERE creator_id = $1 OR assignee_id = $1
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []TaskInfo{}
	for rows.Next() {
		var t TaskInfo
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Price, &t.CreatorID, &t.AssigneeID, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PGStore) TaskByID(ctx context.Context, taskID string) (*TaskInfo, error) {
	var t TaskInfo
	err := db.Conn.QueryRow(ctx, `
        SELECT id, title, status, price, creator_id, assignee_id, created_at
        FROM tasks WHERE id = $1
    `, taskID).Scan(&t.ID, &t.Title, &t.Status, &t.Price, &t.CreatorID, &t.AssigneeID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PGStore) ProfileByID(ctx context.Context, userID string) (*Participant, error) {
	var (
		p         Participant
		avatarURL *string
	)
	err := db.Conn.QueryRow(ctx, `
        SELECT id, name, avatar_url, verified FROM profiles WHERE id = $1
    `, userID).Scan(&p.ID, &p.Name, &avatarURL, &p.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	return &p, nil
}

func (s *PGStore) LastMessage(ctx context.Context, taskID string) (*MessagePreview, error) {
	var (
		m        MessagePreview
		imageURL *string
	)
	err := db.Conn.QueryRow(ctx, `
        SELECT id, sender_id, content, image_url, created_at
        FROM messages WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1
    `, taskID).Scan(&m.ID, &m.SenderID, &m.Content, &imageURL, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if imageURL != nil {
		m.ImageURL = *imageURL
	}
	return &m, nil
}

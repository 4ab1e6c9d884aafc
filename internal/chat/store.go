package chat

import "context"

// Store is the read surface the derivation pipeline runs against.
// Lookups that find nothing return (nil, nil); the pipeline skips those
// conversations instead of failing the whole list.
type Store interface {
	// TasksForUser returns every task where the user is creator or
	// assignee, regardless of status.
	TasksForUser(ctx context.Context, userID string) ([]TaskInfo, error)
	TaskByID(ctx context.Context, taskID string) (*TaskInfo, error)
	ProfileByID(ctx context.Context, userID string) (*Participant, error)
	LastMessage(ctx context.Context, taskID string) (*MessagePreview, error)
}

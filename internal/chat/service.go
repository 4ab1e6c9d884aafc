package chat

import (
	"context"
	"sort"
	"strings"
)

// Service derives the conversation list from tasks, profiles and
// messages. It never writes anything.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListForUser runs the full pipeline: every task where the user
// participates and the status is past open becomes one chat, paired
// with the counterpart's profile and the latest message. Tasks whose
// counterpart is missing are skipped entirely.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Chat, error) {
	tasks, err := s.store.TasksForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	chats := []Chat{}
	for _, t := range tasks {
		ch, err := s.derive(ctx, userID, t)
		if err != nil {
			return nil, err
		}
		if ch != nil {
			chats = append(chats, *ch)
		}
	}

	SortChats(chats)
	return chats, nil
}

// DeriveOne recomputes the single conversation for taskID from the
// viewer's perspective. Returns nil when the task no longer qualifies.
func (s *Service) DeriveOne(ctx context.Context, userID, taskID string) (*Chat, error) {
	t, err := s.store.TaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return s.derive(ctx, userID, *t)
}

func (s *Service) derive(ctx context.Context, userID string, t TaskInfo) (*Chat, error) {
	if t.Status == "open" {
		return nil, nil
	}

	counterpartID := counterpartOf(userID, t)
	if counterpartID == "" {
		return nil, nil
	}

	counterpart, err := s.store.ProfileByID(ctx, counterpartID)
	if err != nil {
		return nil, err
	}
	if counterpart == nil {
		return nil, nil
	}

	last, err := s.store.LastMessage(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	return &Chat{Task: t, Counterpart: *counterpart, LastMessage: last}, nil
}

// counterpartOf resolves the other participant: the assignee from the
// creator's side, the creator from the assignee's side. Empty when the
// viewer does not participate or no assignee exists yet.
func counterpartOf(userID string, t TaskInfo) string {
	switch {
	case t.CreatorID == userID:
		if t.AssigneeID != nil {
			return *t.AssigneeID
		}
	case t.AssigneeID != nil && *t.AssigneeID == userID:
		return t.CreatorID
	}
	return ""
}

// SortChats orders by last-message time descending; conversations
// without any message go after all that have one, keeping their
// relative order.
func SortChats(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i].LastMessage, chats[j].LastMessage
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Filter narrows an already-derived list by task title or counterpart
// name, case-insensitive substring. Never re-derives.
func Filter(chats []Chat, q string) []Chat {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return chats
	}
	out := []Chat{}
	for _, ch := range chats {
		if strings.Contains(strings.ToLower(ch.Task.Title), q) ||
			strings.Contains(strings.ToLower(ch.Counterpart.Name), q) {
			out = append(out, ch)
		}
	}
	return out
}

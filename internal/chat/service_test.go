package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitasklabs/unitask/internal/chat"
)

// fakeStore serves the derivation pipeline from in-memory maps. The
// call counters let tests assert how much of the pipeline ran; the
// mutex keeps the fake usable from concurrent engine tests.
type fakeStore struct {
	mu       sync.Mutex
	tasks    map[string]chat.TaskInfo
	profiles map[string]chat.Participant
	messages map[string]chat.MessagePreview // last message by task id

	listCalls     int
	taskByIDCalls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:         make(map[string]chat.TaskInfo),
		profiles:      make(map[string]chat.Participant),
		messages:      make(map[string]chat.MessagePreview),
		taskByIDCalls: make(map[string]int),
	}
}

func (f *fakeStore) TasksForUser(_ context.Context, userID string) ([]chat.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []chat.TaskInfo
	for _, t := range f.tasks {
		if t.CreatorID == userID || (t.AssigneeID != nil && *t.AssigneeID == userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) TaskByID(_ context.Context, taskID string) (*chat.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskByIDCalls[taskID]++
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) ProfileByID(_ context.Context, userID string) (*chat.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) LastMessage(_ context.Context, taskID string) (*chat.MessagePreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[taskID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func strptr(s string) *string { return &s }

func seedTask(f *fakeStore, id, title, status, creator string, assignee *string) {
	f.tasks[id] = chat.TaskInfo{
		ID: id, Title: title, Status: status,
		CreatorID: creator, AssigneeID: assignee,
		CreatedAt: time.Now(),
	}
}

func TestListForUserSkipsOpenTasks(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Proofread essay", "accepted", "alice", strptr("bob"))
	seedTask(f, "t2", "Move boxes", "open", "alice", nil)

	svc := chat.NewService(f)
	chats, err := svc.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "t1", chats[0].Task.ID)
	assert.Equal(t, "bob", chats[0].Counterpart.ID)
}

func TestListForUserResolvesCounterpartPerSide(t *testing.T) {
	f := newFakeStore()
	f.profiles["alice"] = chat.Participant{ID: "alice", Name: "Alice"}
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "accepted", "alice", strptr("bob"))

	svc := chat.NewService(f)

	fromCreator, err := svc.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, fromCreator, 1)
	assert.Equal(t, "bob", fromCreator[0].Counterpart.ID)

	fromAssignee, err := svc.ListForUser(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, fromAssignee, 1)
	assert.Equal(t, "alice", fromAssignee[0].Counterpart.ID)
}

func TestListForUserSkipsMissingCounterpartProfile(t *testing.T) {
	f := newFakeStore()
	// bob's profile was deleted
	seedTask(f, "t1", "Ghost chat", "accepted", "alice", strptr("bob"))

	svc := chat.NewService(f)
	chats, err := svc.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestListForUserExcludesNonParticipants(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Not mine", "accepted", "alice", strptr("bob"))

	svc := chat.NewService(f)
	chats, err := svc.ListForUser(context.Background(), "carol")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestSortChatsNewestFirstMessagelessLast(t *testing.T) {
	now := time.Now()
	withMsg := func(id string, at time.Time) chat.Chat {
		return chat.Chat{
			Task:        chat.TaskInfo{ID: id},
			LastMessage: &chat.MessagePreview{ID: "m-" + id, CreatedAt: at},
		}
	}
	noMsg := func(id string) chat.Chat {
		return chat.Chat{Task: chat.TaskInfo{ID: id}}
	}

	chats := []chat.Chat{
		noMsg("quiet1"),
		withMsg("old", now.Add(-time.Hour)),
		noMsg("quiet2"),
		withMsg("new", now),
	}
	chat.SortChats(chats)

	require.Len(t, chats, 4)
	assert.Equal(t, "new", chats[0].Task.ID)
	assert.Equal(t, "old", chats[1].Task.ID)
	// messageless chats keep their relative order at the tail
	assert.Equal(t, "quiet1", chats[2].Task.ID)
	assert.Equal(t, "quiet2", chats[3].Task.ID)
}

func TestFilterMatchesTitleAndCounterpartName(t *testing.T) {
	chats := []chat.Chat{
		{Task: chat.TaskInfo{ID: "t1", Title: "Proofread Essay"}, Counterpart: chat.Participant{Name: "Bob"}},
		{Task: chat.TaskInfo{ID: "t2", Title: "Move boxes"}, Counterpart: chat.Participant{Name: "Carol"}},
		{Task: chat.TaskInfo{ID: "t3", Title: "Math tutoring"}, Counterpart: chat.Participant{Name: "Bobby"}},
	}

	byTitle := chat.Filter(chats, "ESSAY")
	require.Len(t, byTitle, 1)
	assert.Equal(t, "t1", byTitle[0].Task.ID)

	byName := chat.Filter(chats, "bob")
	require.Len(t, byName, 2)

	assert.Len(t, chat.Filter(chats, ""), 3)
	assert.Empty(t, chat.Filter(chats, "nothing"))
}

func TestDeriveOneMissingTask(t *testing.T) {
	f := newFakeStore()
	svc := chat.NewService(f)

	ch, err := svc.DeriveOne(context.Background(), "alice", "gone")
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestListForUserAttachesLastMessage(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "completed", "alice", strptr("bob"))
	f.messages["t1"] = chat.MessagePreview{ID: "m1", SenderID: "bob", Content: "done!", CreatedAt: time.Now()}

	svc := chat.NewService(f)
	chats, err := svc.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "done!", chats[0].LastMessage.Content)
}

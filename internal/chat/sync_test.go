package chat_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitasklabs/unitask/internal/chat"
)

type listEvent struct {
	Type string      `json:"type"`
	Data []chat.Chat `json:"data"`
}

// newEngineServer stands up a ws endpoint that subscribes the server
// side of each socket for the user named in the ?u= query.
func newEngineServer(t *testing.T, engine *chat.Engine) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("u")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := engine.Subscribe(r.Context(), userID, conn); err != nil {
			conn.Close()
			return
		}
		defer engine.Unsubscribe(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialServer(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?u=" + userID
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func dialEngine(t *testing.T, engine *chat.Engine, userID string) *websocket.Conn {
	t.Helper()
	return dialServer(t, newEngineServer(t, engine), userID)
}

func readEvent(t *testing.T, conn *websocket.Conn) listEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev listEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEngineSendsInitialListOnSubscribe(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "accepted", "alice", strptr("bob"))

	engine := chat.NewEngine(chat.NewService(f))
	client := dialEngine(t, engine, "alice")

	ev := readEvent(t, client)
	assert.Equal(t, "chat_list", ev.Type)
	require.Len(t, ev.Data, 1)
	assert.Equal(t, "t1", ev.Data[0].Task.ID)
}

func TestEngineNotifyPushesUpdatedList(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "accepted", "alice", strptr("bob"))
	seedTask(f, "t2", "Essay review", "accepted", "alice", strptr("bob"))
	f.messages["t1"] = chat.MessagePreview{ID: "m1", SenderID: "bob", Content: "hi", CreatedAt: time.Now().Add(-time.Hour)}

	engine := chat.NewEngine(chat.NewService(f))
	client := dialEngine(t, engine, "alice")
	first := readEvent(t, client)
	require.Len(t, first.Data, 2)
	assert.Equal(t, "t1", first.Data[0].Task.ID) // only t1 has a message

	// A newer message on t2 moves it to the front.
	f.messages["t2"] = chat.MessagePreview{ID: "m2", SenderID: "bob", Content: "new", CreatedAt: time.Now()}
	engine.Notify("t2")

	ev := readEvent(t, client)
	require.Len(t, ev.Data, 2)
	assert.Equal(t, "t2", ev.Data[0].Task.ID)
	require.NotNil(t, ev.Data[0].LastMessage)
	assert.Equal(t, "new", ev.Data[0].LastMessage.Content)

	// Only the affected conversation was re-derived; the full pipeline
	// ran once, at subscribe time.
	assert.Equal(t, 1, f.listCalls)
	assert.Zero(t, f.taskByIDCalls["t1"])
	assert.Equal(t, 1, f.taskByIDCalls["t2"])
}

func TestEngineNotifyAddsNewlyQualifiedConversation(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Open for now", "open", "alice", nil)

	engine := chat.NewEngine(chat.NewService(f))
	client := dialEngine(t, engine, "alice")
	first := readEvent(t, client)
	assert.Empty(t, first.Data)

	// Acceptance turns the task into a conversation.
	seedTask(f, "t1", "Open for now", "accepted", "alice", strptr("bob"))
	engine.Notify("t1")

	ev := readEvent(t, client)
	require.Len(t, ev.Data, 1)
	assert.Equal(t, "bob", ev.Data[0].Counterpart.ID)
}

func TestEngineNotifyRemovesVanishedConversation(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "accepted", "alice", strptr("bob"))

	engine := chat.NewEngine(chat.NewService(f))
	client := dialEngine(t, engine, "alice")
	first := readEvent(t, client)
	require.Len(t, first.Data, 1)

	delete(f.tasks, "t1")
	engine.Notify("t1")

	ev := readEvent(t, client)
	assert.Empty(t, ev.Data)
}

func TestEngineSnapshotFollowsSubscription(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "accepted", "alice", strptr("bob"))

	engine := chat.NewEngine(chat.NewService(f))

	_, ok := engine.Snapshot("alice")
	assert.False(t, ok)

	client := dialEngine(t, engine, "alice")
	readEvent(t, client)

	chats, ok := engine.Snapshot("alice")
	require.True(t, ok)
	assert.Len(t, chats, 1)

	client.Close()
	require.Eventually(t, func() bool {
		_, ok := engine.Snapshot("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineStaysResponsiveAfterSocketDrops(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	seedTask(f, "t1", "Tutoring", "accepted", "alice", strptr("bob"))
	seedTask(f, "t2", "Essay review", "accepted", "carol", strptr("bob"))

	engine := chat.NewEngine(chat.NewService(f))
	srv := newEngineServer(t, engine)

	dropped := dialServer(t, srv, "alice")
	readEvent(t, dropped)
	carol := dialServer(t, srv, "carol")
	readEvent(t, carol)

	// Alice's socket vanishes without a clean unsubscribe; pushes for
	// everyone else must keep flowing.
	dropped.Close()

	f.messages["t2"] = chat.MessagePreview{ID: "m1", SenderID: "bob", Content: "still here", CreatedAt: time.Now()}
	engine.Notify("t1")
	engine.Notify("t2")

	ev := readEvent(t, carol)
	require.Len(t, ev.Data, 1)
	require.NotNil(t, ev.Data[0].LastMessage)
	assert.Equal(t, "still here", ev.Data[0].LastMessage.Content)

	_, ok := engine.Snapshot("carol")
	assert.True(t, ok)
}

func TestEngineNoDeadlockUnderChurn(t *testing.T) {
	f := newFakeStore()
	f.profiles["bob"] = chat.Participant{ID: "bob", Name: "Bob"}
	for i := 0; i < 4; i++ {
		user := fmt.Sprintf("u%d", i)
		f.profiles[user] = chat.Participant{ID: user, Name: user}
		seedTask(f, fmt.Sprintf("t%d", i), "Task "+user, "accepted", user, strptr("bob"))
	}

	engine := chat.NewEngine(chat.NewService(f))
	srv := newEngineServer(t, engine)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			user := fmt.Sprintf("u%d", i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 20; n++ {
					conn, _, err := websocket.DefaultDialer.Dial(url+"?u="+user, nil)
					if err != nil {
						continue
					}
					_ = conn.SetReadDeadline(time.Now().Add(time.Second))
					_, _, _ = conn.ReadMessage()
					conn.Close()
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				engine.Notify(fmt.Sprintf("t%d", n%4))
			}
		}()
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("engine deadlocked under subscribe/unsubscribe churn")
	}
}

package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unitasklabs/unitask/internal/logging"
)

// writeWait bounds a single socket write so a stalled client cannot
// hold a push forever.
const writeWait = 10 * time.Second

type syncEvent struct {
	Type string `json:"type"`
	Data []Chat `json:"data"`
}

// Engine keeps a per-subscriber chat index and pushes the refreshed
// list whenever a conversation changes. A change event touches only the
// affected conversation; the rest of the index is reused as-is.
//
// Lock order is always e.mu before sub.mu, and no socket write ever
// happens under either lock: pushes snapshot the payload and the conn
// set first, then write after unlocking.
type Engine struct {
	service *Service
	mu      sync.RWMutex
	subs    map[string]*subscriber
}

type subscriber struct {
	userID string
	mu     sync.Mutex
	index  map[string]Chat // by task id
	conns  map[*websocket.Conn]bool
}

func NewEngine(service *Service) *Engine {
	return &Engine{service: service, subs: make(map[string]*subscriber)}
}

func writeConn(conn *websocket.Conn, payload []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

// Subscribe registers a socket for a user and sends the current list.
// The list is derived up front, outside any lock; the first socket of a
// user seeds the index with it. Registration happens entirely under
// e.mu so a concurrent Unsubscribe can never orphan the subscriber.
func (e *Engine) Subscribe(ctx context.Context, userID string, conn *websocket.Conn) error {
	chats, err := e.service.ListForUser(ctx, userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	sub, ok := e.subs[userID]
	if !ok {
		sub = &subscriber{
			userID: userID,
			index:  make(map[string]Chat),
			conns:  make(map[*websocket.Conn]bool),
		}
		e.subs[userID] = sub
	}
	sub.mu.Lock()
	if len(sub.conns) == 0 {
		sub.index = make(map[string]Chat, len(chats))
		for _, ch := range chats {
			sub.index[ch.Task.ID] = ch
		}
	}
	sub.conns[conn] = true
	payload, _ := json.Marshal(syncEvent{Type: "chat_list", Data: sub.sorted()})
	sub.mu.Unlock()
	e.mu.Unlock()

	writeConn(conn, payload)
	return nil
}

// Unsubscribe releases a socket; the last socket drops the user's
// index so a torn-down view never receives another recomputation.
func (e *Engine) Unsubscribe(userID string, conn *websocket.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.subs[userID]
	if !ok {
		return
	}
	sub.mu.Lock()
	delete(sub.conns, conn)
	empty := len(sub.conns) == 0
	sub.mu.Unlock()
	if empty {
		delete(e.subs, userID)
	}
}

// Notify re-derives the conversation for taskID for every subscriber
// and pushes updated lists. Called on message inserts and on task
// status transitions.
func (e *Engine) Notify(taskID string) {
	e.mu.RLock()
	subs := make([]*subscriber, 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.RUnlock()

	ctx := context.Background()
	for _, sub := range subs {
		ch, err := e.service.DeriveOne(ctx, sub.userID, taskID)
		if err != nil {
			logging.Logger.Errorf("chat sync: derive task %s for %s: %v", taskID, sub.userID, err)
			continue
		}
		sub.apply(taskID, ch)
	}
}

// apply swaps a single conversation in or out and pushes the list. The
// index update and the conn snapshot happen under the lock, the writes
// after it.
func (s *subscriber) apply(taskID string, ch *Chat) {
	s.mu.Lock()
	_, had := s.index[taskID]
	if ch == nil {
		if !had {
			s.mu.Unlock()
			return // nothing to do, list unchanged
		}
		delete(s.index, taskID)
	} else {
		s.index[taskID] = *ch
	}

	payload, _ := json.Marshal(syncEvent{Type: "chat_list", Data: s.sorted()})
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		writeConn(conn, payload)
	}
}

// sorted materializes the index as a sorted list. Caller holds s.mu.
func (s *subscriber) sorted() []Chat {
	chats := make([]Chat, 0, len(s.index))
	for _, ch := range s.index {
		chats = append(chats, ch)
	}
	SortChats(chats)
	return chats
}

// Snapshot returns the current list for a subscribed user; used by
// tests and by the HTTP list endpoint when the engine is warm.
func (e *Engine) Snapshot(userID string) ([]Chat, bool) {
	e.mu.RLock()
	sub, ok := e.subs[userID]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.sorted(), true
}

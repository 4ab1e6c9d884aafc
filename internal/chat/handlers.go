package chat

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var (
	// DefaultService and DefaultEngine are wired in main.
	DefaultService *Service
	DefaultEngine  *Engine
)

// Init wires the package-level service and sync engine.
func Init(store Store) {
	DefaultService = NewService(store)
	DefaultEngine = NewEngine(DefaultService)
}

// NotifyMessagesChanged is called by messaging after a message insert.
func NotifyMessagesChanged(taskID string) {
	if DefaultEngine != nil {
		DefaultEngine.Notify(taskID)
	}
}

// NotifyTaskChanged is called on task status transitions, which can
// create or retire a conversation.
func NotifyTaskChanged(taskID string) {
	if DefaultEngine != nil {
		DefaultEngine.Notify(taskID)
	}
}

// ListChats - the derived conversation list, optionally filtered by
// ?q= against task title or counterpart name.
// GET /chats
func ListChats(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chats, err := DefaultService.ListForUser(context.Background(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load chats"})
	}

	return c.JSON(http.StatusOK, echo.Map{"chats": Filter(chats, c.QueryParam("q"))})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ChatListWS - live chat list: pushes the full sorted list on connect
// and after every conversation change. The subscription is released
// when the socket closes.
// GET /chats/ws
func ChatListWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	if err := DefaultEngine.Subscribe(c.Request().Context(), userID, ws); err != nil {
		_ = ws.Close()
		return nil
	}

	// Read loop; clients only listen, so any read result means the
	// socket is done.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			DefaultEngine.Unsubscribe(userID, ws)
			_ = ws.Close()
			break
		}
	}
	return nil
}

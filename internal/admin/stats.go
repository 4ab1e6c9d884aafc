package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

// GET /admin/stats
func Stats(c echo.Context) error {
	ctx := context.Background()

	var users, tasks, openTasks, completedTasks, messages, reports int

	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&users)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&tasks)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'open'`).Scan(&openTasks)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'completed'`).Scan(&completedTasks)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&messages)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE status = 'open'`).Scan(&reports)

	return c.JSON(http.StatusOK, echo.Map{
		"users":           users,
		"tasks":           tasks,
		"open_tasks":      openTasks,
		"completed_tasks": completedTasks,
		"messages":        messages,
		"open_reports":    reports,
	})
}

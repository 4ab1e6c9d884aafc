package task

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

// AcceptTask - a student takes an open task; this creates the
// conversation between creator and assignee.
// POST /tasks/:id/accept
func AcceptTask(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	ctx := context.Background()
	t, err := fetchTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if t.CreatorID == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot accept your own task"})
	}
	if t.Status != StatusOpen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "task is not open"})
	}

	ct, err := db.Conn.Exec(ctx, `
        UPDATE tasks SET status = 'accepted', assignee_id = $1, updated_at = NOW()
        WHERE id = $2 AND status = 'open'
    `, userID, taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to accept task"})
	}
	if ct.RowsAffected() == 0 {
		// Someone else accepted between the read and the write
		return c.JSON(http.StatusConflict, echo.Map{"error": "task already accepted"})
	}

	ref := taskID
	meta := "{}"
	_ = alerts.CreateNotification(t.CreatorID, "task:accepted", "Your task was accepted", t.Title, &ref, &meta)
	chat.NotifyTaskChanged(taskID)

	return c.JSON(http.StatusOK, echo.Map{"task_id": taskID, "status": StatusAccepted})
}

// CompleteTask - creator confirms the work is done; the assignee is
// credited and their aggregates updated.
// POST /tasks/:id/complete
func CompleteTask(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	ctx := context.Background()
	t, err := fetchTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if t.CreatorID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the creator can complete a task"})
	}
	if t.Status != StatusAccepted || t.AssigneeID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "task is not in progress"})
	}
	assigneeID := *t.AssigneeID

	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
        UPDATE tasks SET status = 'completed', updated_at = NOW()
        WHERE id = $1 AND status = 'accepted'
    `, taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update task"})
	}
	if ct.RowsAffected() == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "task is no longer in progress"})
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO earnings_transactions (id, user_id, task_id, amount, type)
        VALUES ($1, $2, $3, $4, 'task_payment')
    `, uuid.New().String(), assigneeID, taskID, t.Price)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record earnings"})
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO user_stats (user_id, tasks_completed, total_earnings, rating_sum, rating_count)
        VALUES ($1, 1, $2, 0, 0)
        ON CONFLICT (user_id) DO UPDATE SET
            tasks_completed = user_stats.tasks_completed + 1,
            total_earnings = user_stats.total_earnings + EXCLUDED.total_earnings
    `, assigneeID, t.Price)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update stats"})
	}

	if err := tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction failed"})
	}

	ref := taskID
	meta := "{}"
	_ = alerts.CreateNotification(assigneeID, "task:completed", "Task completed and paid", t.Title, &ref, &meta)

	var assigneeEmail string
	_ = db.Conn.QueryRow(ctx, `SELECT email FROM profiles WHERE id = $1`, assigneeID).Scan(&assigneeEmail)
	if assigneeEmail != "" {
		_ = alerts.EnqueueTaskCompleted(taskID, t.Title, assigneeID, assigneeEmail, t.Price)
	}
	chat.NotifyTaskChanged(taskID)

	return c.JSON(http.StatusOK, echo.Map{"task_id": taskID, "status": StatusCompleted})
}

// CancelTask - creator withdraws a task that is not completed yet
// POST /tasks/:id/cancel
func CancelTask(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	ctx := context.Background()
	t, err := fetchTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if t.CreatorID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the creator can cancel a task"})
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "task already closed"})
	}

	_, err = db.Conn.Exec(ctx, `
        UPDATE tasks SET status = 'cancelled', updated_at = NOW() WHERE id = $1
    `, taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel task"})
	}

	if t.AssigneeID != nil {
		ref := taskID
		meta := "{}"
		_ = alerts.CreateNotification(*t.AssigneeID, "task:cancelled", "A task you accepted was cancelled", t.Title, &ref, &meta)
	}
	chat.NotifyTaskChanged(taskID)

	return c.JSON(http.StatusOK, echo.Map{"task_id": taskID, "status": StatusCancelled})
}

// completedAt helper kept for response shaping in reviews
func rfc3339(t time.Time) string { return t.UTC().Format(time.RFC3339) }

package task

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

// CreateTask - post a new open task
// POST /tasks
func CreateTask(c echo.Context) error {
	creatorID, ok := c.Get("user_id").(string)
	if !ok || creatorID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location"`
		Price       int64  `json:"price"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Title == "" || req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and description are required"})
	}
	if req.Price < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price cannot be negative"})
	}

	taskID := uuid.New().String()
	var createdAt time.Time
	err := db.Conn.QueryRow(context.Background(),
		`INSERT INTO tasks (id, title, description, location, price, status, creator_id)
         VALUES ($1, $2, $3, $4, $5, 'open', $6) RETURNING created_at`,
		taskID, req.Title, req.Description, req.Location, req.Price, creatorID,
	).Scan(&createdAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create task"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"task_id":    taskID,
		"created_at": createdAt.UTC().Format(time.RFC3339),
	})
}

// GetOpenTasks - public browse of open tasks, newest first
// GET /tasks
func GetOpenTasks(c echo.Context) error {
	rows, err := db.Conn.Query(context.Background(), `
        SELECT id, title, description, location, price, status, creator_id, assignee_id, created_at, updated_at
        FROM tasks WHERE status = 'open' ORDER BY created_at DESC
    `)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list tasks"})
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse tasks"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tasks": tasks})
}

// GetMyTasks - tasks the caller created, newest first
// GET /me/tasks
func GetMyTasks(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
        SELECT id, title, description, location, price, status, creator_id, assignee_id, created_at, updated_at
        FROM tasks WHERE creator_id = $1 ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list tasks"})
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse tasks"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tasks": tasks})
}

// GetTask - single task by id
// GET /tasks/:id
func GetTask(c echo.Context) error {
	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	t, err := fetchTask(context.Background(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	return c.JSON(http.StatusOK, t)
}

func fetchTask(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	err := db.Conn.QueryRow(ctx, `
        SELECT id, title, description, location, price, status, creator_id, assignee_id, created_at, updated_at
        FROM tasks WHERE id = $1
    `, taskID).Scan(&t.ID, &t.Title, &t.Description, &t.Location, &t.Price, &t.Status,
		&t.CreatorID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Location, &t.Price, &t.Status,
			&t.CreatorID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

package task

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// CreateReview - the creator rates the assignee after completion. One
// review per task; it feeds the assignee's rating aggregate.
// POST /tasks/:id/review
func CreateReview(c echo.Context) error {
	reviewerID, ok := c.Get("user_id").(string)
	if !ok || reviewerID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id format"})
	}

	var req CreateReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}
	if len(req.Comment) > 1000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment too long (max 1000 characters)"})
	}

	ctx := context.Background()
	t, err := fetchTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if t.CreatorID != reviewerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the creator can review"})
	}
	if t.Status != StatusCompleted || t.AssigneeID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "can only review completed tasks"})
	}
	revieweeID := *t.AssigneeID

	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	reviewID := uuid.New().String()
	_, err = tx.Exec(ctx, `
        INSERT INTO reviews (id, task_id, reviewer_id, reviewee_id, rating, comment)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, reviewID, taskID, reviewerID, revieweeID, req.Rating, req.Comment)
	if err != nil {
		// task_id is unique, so a second review hits the constraint;
		// anything else is a real failure
		if isUniqueViolation(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "review already exists for this task"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save review"})
	}

	_, err = tx.Exec(ctx, `
        UPDATE user_stats SET rating_sum = rating_sum + $1, rating_count = rating_count + 1
        WHERE user_id = $2
    `, req.Rating, revieweeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update rating"})
	}

	if err := tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"review_id": reviewID})
}

// GetTaskReview - the review attached to a task, if any
// GET /tasks/:id/review
func GetTaskReview(c echo.Context) error {
	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	var (
		id, reviewerID, revieweeID, comment string
		rating                              int
		createdAt                           time.Time
	)
	err := db.Conn.QueryRow(context.Background(), `
        SELECT id, reviewer_id, reviewee_id, rating, comment, created_at
        FROM reviews WHERE task_id = $1
    `, taskID).Scan(&id, &reviewerID, &revieweeID, &rating, &comment, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no review for this task"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch review"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":          id,
		"task_id":     taskID,
		"reviewer_id": reviewerID,
		"reviewee_id": revieweeID,
		"rating":      rating,
		"comment":     comment,
		"created_at":  rfc3339(createdAt),
	})
}

// GetUserReviews - reviews received by a user, newest first
// GET /users/:id/reviews
func GetUserReviews(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	rows, err := db.Conn.Query(context.Background(), `
        SELECT r.id, r.task_id, r.reviewer_id, r.rating, r.comment, r.created_at, p.name
        FROM reviews r JOIN profiles p ON p.id = r.reviewer_id
        WHERE r.reviewee_id = $1 ORDER BY r.created_at DESC
    `, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reviews"})
	}
	defer rows.Close()

	items := []echo.Map{}
	for rows.Next() {
		var (
			id, taskID, reviewerID, comment, reviewerName string
			rating                                        int
			createdAt                                     time.Time
		)
		if err := rows.Scan(&id, &taskID, &reviewerID, &rating, &comment, &createdAt, &reviewerName); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse review"})
		}
		items = append(items, echo.Map{
			"id":            id,
			"task_id":       taskID,
			"reviewer_id":   reviewerID,
			"reviewer_name": reviewerName,
			"rating":        rating,
			"comment":       comment,
			"created_at":    rfc3339(createdAt),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"reviews": items})
}

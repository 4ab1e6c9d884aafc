package report

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/alerts"
	"github.com/unitasklabs/unitask/internal/db"
)

// CreateReport - a participant reports an issue with a task, bound to
// the task and the other participant
// POST /tasks/:id/report
func CreateReport(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	var req struct {
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := c.Bind(&req); err != nil || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload: reason required"})
	}

	ctx := context.Background()
	var creatorID string
	var assigneeID *string
	if err := db.Conn.QueryRow(ctx,
		`SELECT creator_id, assignee_id FROM tasks WHERE id = $1`, taskID,
	).Scan(&creatorID, &assigneeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}

	// Resolve the counterpart; the report is always against the other
	// participant.
	var reportedID string
	switch {
	case uid == creatorID && assigneeID != nil:
		reportedID = *assigneeID
	case assigneeID != nil && uid == *assigneeID:
		reportedID = creatorID
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this task"})
	}

	reportID := uuid.New().String()
	var createdAt time.Time
	if err := db.Conn.QueryRow(ctx,
		`INSERT INTO reports (id, task_id, reporter_id, reported_id, reason, details)
         VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		reportID, taskID, uid, reportedID, req.Reason, req.Details,
	).Scan(&createdAt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not file report"})
	}

	_ = alerts.EnqueueAdminAlert(uid, "info", "New report filed on task "+taskID)

	return c.JSON(http.StatusCreated, echo.Map{
		"report_id":  reportID,
		"created_at": createdAt.UTC().Format(time.RFC3339),
	})
}

// ListReports - admin view of filed reports, optionally by status
// GET /admin/reports
func ListReports(c echo.Context) error {
	status := c.QueryParam("status")

	query := `
        SELECT id, task_id, reporter_id, reported_id, reason, details, status, resolution, created_at, resolved_at
        FROM reports`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list reports"})
	}
	defer rows.Close()

	items := []echo.Map{}
	for rows.Next() {
		var (
			id, taskID, reporterID, reportedID, reason, details, st string
			resolution                                              *string
			createdAt                                               time.Time
			resolvedAt                                              *time.Time
		)
		if err := rows.Scan(&id, &taskID, &reporterID, &reportedID, &reason, &details, &st, &resolution, &createdAt, &resolvedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse report"})
		}
		item := echo.Map{
			"id":          id,
			"task_id":     taskID,
			"reporter_id": reporterID,
			"reported_id": reportedID,
			"reason":      reason,
			"details":     details,
			"status":      st,
			"created_at":  createdAt.UTC().Format(time.RFC3339),
		}
		if resolution != nil {
			item["resolution"] = *resolution
		}
		if resolvedAt != nil {
			item["resolved_at"] = resolvedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	return c.JSON(http.StatusOK, echo.Map{"reports": items})
}

// ResolveReport - admin closes a report with a resolution note
// POST /admin/reports/:id/resolve
func ResolveReport(c echo.Context) error {
	adminID, ok := c.Get("user_id").(string)
	if !ok || adminID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	reportID := c.Param("id")
	if reportID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing report id"})
	}

	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := c.Bind(&req); err != nil || req.Resolution == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload: resolution required"})
	}

	ct, err := db.Conn.Exec(context.Background(), `
        UPDATE reports SET status = 'resolved', resolution = $1, resolved_by = $2, resolved_at = NOW()
        WHERE id = $3 AND status = 'open'
    `, req.Resolution, adminID, reportID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve report"})
	}
	if ct.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "report not found or already resolved"})
	}

	return c.JSON(http.StatusOK, echo.Map{"report_id": reportID, "status": "resolved"})
}

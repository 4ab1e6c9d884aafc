package earnings

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

// Balance - total earned from completed tasks
// GET /me/earnings
func Balance(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var total int64
	err := db.Conn.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(amount), 0) FROM earnings_transactions WHERE user_id = $1`,
		userID,
	).Scan(&total)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute balance"})
	}

	return c.JSON(http.StatusOK, echo.Map{"balance": total})
}

// Transactions - earnings history, newest first
// GET /me/earnings/transactions
func Transactions(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
        SELECT e.id, e.task_id, e.amount, e.type, e.created_at, t.title
        FROM earnings_transactions e JOIN tasks t ON t.id = e.task_id
        WHERE e.user_id = $1 ORDER BY e.created_at DESC
    `, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list transactions"})
	}
	defer rows.Close()

	items := []echo.Map{}
	for rows.Next() {
		var (
			id, taskID, txType, title string
			amount                    int64
			createdAt                 time.Time
		)
		if err := rows.Scan(&id, &taskID, &amount, &txType, &createdAt, &title); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse transaction"})
		}
		items = append(items, echo.Map{
			"id":         id,
			"task_id":    taskID,
			"task_title": title,
			"amount":     amount,
			"type":       txType,
			"created_at": createdAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"transactions": items})
}

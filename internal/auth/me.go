package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

// Me returns the currently authenticated user's account summary
func Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var (
		id, name, email, role string
		verified              bool
		createdAt             time.Time
	)
	err := db.Conn.QueryRow(context.Background(),
		`SELECT id, name, email, role, verified, created_at FROM profiles WHERE id = $1`, userID).
		Scan(&id, &name, &email, &role, &verified, &createdAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":         id,
		"name":       name,
		"email":      email,
		"role":       role,
		"verified":   verified,
		"created_at": createdAt.UTC().Format(time.RFC3339),
	})
}

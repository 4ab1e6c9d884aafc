package profile

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

// GetMyProfile returns the viewer's profile, stats and own tasks in one
// response so the profile page renders from a single load.
// GET /me/profile
func GetMyProfile(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := context.Background()

	p, err := fetchProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	stats, err := fetchStats(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stats"})
	}

	tasks, err := fetchOwnTasks(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tasks"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"profile": p,
		"stats":   stats,
		"tasks":   tasks,
	})
}

// GetMyStats returns only the aggregate row.
// GET /me/stats
func GetMyStats(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	stats, err := fetchStats(context.Background(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

// GetPublicProfile returns another user's profile snapshot. Gamification
// fields have no data source yet, so they are reported as unavailable
// rather than filled with placeholder values.
// GET /users/:id/profile
func GetPublicProfile(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	ctx := context.Background()
	p, err := fetchProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch user"})
	}

	stats, err := fetchStats(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stats"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":             p.ID,
		"name":           p.Name,
		"field_of_study": p.FieldOfStudy,
		"avatar_url":     p.AvatarURL,
		"verified":       p.Verified,
		"created_at":     p.CreatedAt.UTC().Format(time.RFC3339),
		"stats":          stats,
		"gamification":   echo.Map{"available": false},
	})
}

func fetchProfile(ctx context.Context, userID string) (*Profile, error) {
	var (
		p            Profile
		fieldOfStudy *string
		avatarURL    *string
	)
	err := db.Conn.QueryRow(ctx, `
        SELECT id, name, email, role, field_of_study, avatar_url, verified, created_at, updated_at
        FROM profiles WHERE id = $1
    `, userID).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &fieldOfStudy, &avatarURL, &p.Verified, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if fieldOfStudy != nil {
		p.FieldOfStudy = *fieldOfStudy
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	return &p, nil
}

func fetchStats(ctx context.Context, userID string) (*Stats, error) {
	var (
		s           Stats
		ratingSum   int
		ratingCount int
	)
	err := db.Conn.QueryRow(ctx, `
        SELECT tasks_completed, total_earnings, rating_sum, rating_count
        FROM user_stats WHERE user_id = $1
    `, userID).Scan(&s.TasksCompleted, &s.TotalEarnings, &ratingSum, &ratingCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Accounts created before the aggregate table existed
			return &Stats{}, nil
		}
		return nil, err
	}
	if ratingCount > 0 {
		s.AvgRating = float64(ratingSum) / float64(ratingCount)
	}
	return &s, nil
}

type ownTask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

func fetchOwnTasks(ctx context.Context, userID string) ([]ownTask, error) {
	rows, err := db.Conn.Query(ctx, `
        SELECT id, title, status, price, created_at
        FROM tasks WHERE creator_id = $1 ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []ownTask{}
	for rows.Next() {
		var t ownTask
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Price, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

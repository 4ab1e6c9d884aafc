package profile

import "time"

// Profile is a user's public-facing account document.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	FieldOfStudy string    `json:"field_of_study,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats is the read-only per-user aggregate.
type Stats struct {
	TasksCompleted int     `json:"tasks_completed"`
	TotalEarnings  int64   `json:"total_earnings"`
	AvgRating      float64 `json:"avg_rating"`
}

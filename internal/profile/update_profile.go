package profile

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
)

type UpdateProfileRequest struct {
	Name         string `json:"name"`
	FieldOfStudy string `json:"field_of_study"`
}

// applyEdits merges the owner-editable fields into a profile. An empty
// request field keeps the stored value; nothing else (email, role,
// verified, avatar) is ever touched.
func applyEdits(p Profile, req UpdateProfileRequest) Profile {
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.FieldOfStudy != "" {
		p.FieldOfStudy = req.FieldOfStudy
	}
	return p
}

// UpdateProfile edits the two owner-editable fields. Last writer wins.
// PATCH /me/profile
func UpdateProfile(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" && req.FieldOfStudy == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	ctx := context.Background()
	current, err := fetchProfile(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
	}

	merged := applyEdits(*current, req)
	_, err = db.Conn.Exec(ctx, `
		UPDATE profiles
		SET name = $1, field_of_study = $2, updated_at = NOW()
		WHERE id = $3
	`, merged.Name, merged.FieldOfStudy, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	p, err := fetchProfile(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reload profile"})
	}
	return c.JSON(http.StatusOK, echo.Map{"profile": p})
}

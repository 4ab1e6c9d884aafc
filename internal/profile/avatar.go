package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/db"
	"github.com/unitasklabs/unitask/internal/storage"
)

// Objects is the object store avatars are written to; wired in main.
var Objects storage.Store

// UploadAvatar replaces the caller's avatar. The file is validated
// before storage is touched; the stored key is avatars/<user_id>, so a
// new upload overwrites the previous one.
// POST /me/avatar
func UploadAvatar(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing avatar file"})
	}

	ctx := context.Background()
	url, err := storage.SaveImage(ctx, Objects, "avatars/"+userID, fh)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrImageTooLarge):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar exceeds the 2MB limit"})
		case errors.Is(err, storage.ErrNotAnImage):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar must be an image"})
		case errors.Is(err, storage.ErrNotConfigured):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store avatar"})
	}

	_, err = db.Conn.Exec(ctx,
		`UPDATE profiles SET avatar_url = $1, updated_at = NOW() WHERE id = $2`, url, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save avatar"})
	}

	return c.JSON(http.StatusOK, echo.Map{"avatar_url": url})
}

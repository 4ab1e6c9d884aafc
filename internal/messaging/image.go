package messaging

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/unitasklabs/unitask/internal/storage"
)

// Objects is the object store message images are written to.
var Objects storage.Store

// UploadMessageImage stores an image for a task thread and returns its
// URL; the client then sends a message referencing it. Same validation
// as avatars: 2MB cap, image MIME only, checked before upload.
// POST /tasks/:id/messages/image
func UploadMessageImage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	taskID := c.Param("id")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing task id"})
	}

	ctx := context.Background()
	creatorID, assigneeID, err := taskParticipants(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch task"})
	}
	if _, isParticipant := otherParticipant(userID, creatorID, assigneeID); !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this task"})
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing image file"})
	}

	key := "messages/" + taskID + "/" + uuid.New().String()
	url, err := storage.SaveImage(ctx, Objects, key, fh)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrImageTooLarge):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "image exceeds the 2MB limit"})
		case errors.Is(err, storage.ErrNotAnImage):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "file must be an image"})
		case errors.Is(err, storage.ErrNotConfigured):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store image"})
	}

	return c.JSON(http.StatusOK, echo.Map{"image_url": url})
}

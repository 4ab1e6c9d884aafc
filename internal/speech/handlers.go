package speech

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DefaultClient is wired in main.
var DefaultClient *Client

func Init(client *Client) {
	DefaultClient = client
}

// Speak - synthesize text and stream the audio back
// POST /speech/speak
func Speak(c echo.Context) error {
	var req struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	audio, err := DefaultClient.Speak(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		var spErr *Error
		if errors.As(err, &spErr) {
			status := http.StatusServiceUnavailable
			if spErr.Category == CategoryRateLimited {
				status = http.StatusTooManyRequests
			}
			return c.JSON(status, echo.Map{"error": spErr.Message, "category": spErr.Category})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "speech is currently unavailable"})
	}
	if audio == nil {
		// Disabled client: silent no-op
		return c.NoContent(http.StatusNoContent)
	}

	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// ListVoices - the available voices; empty on any failure
// GET /speech/voices
func ListVoices(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"voices": DefaultClient.Voices(c.Request().Context())})
}

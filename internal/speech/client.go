package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/unitasklabs/unitask/internal/logging"
)

// Config describes the text-to-speech vendor account. Enabled is an
// explicit capability flag: a disabled client is a silent no-op, not
// an error source.
type Config struct {
	Enabled        bool
	APIKey         string
	BaseURL        string
	DefaultVoiceID string
	ModelID        string
}

// NewConfigFromEnv reads SPEECH_* variables. The client is enabled
// exactly when SPEECH_API_KEY is set.
func NewConfigFromEnv() Config {
	cfg := Config{
		APIKey:         os.Getenv("SPEECH_API_KEY"),
		BaseURL:        strings.TrimRight(os.Getenv("SPEECH_API_URL"), "/"),
		DefaultVoiceID: os.Getenv("SPEECH_VOICE_ID"),
		ModelID:        os.Getenv("SPEECH_MODEL_ID"),
	}
	cfg.Enabled = cfg.APIKey != ""
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if cfg.DefaultVoiceID == "" {
		cfg.DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_monolingual_v1"
	}
	return cfg
}

// Voice is one entry from the vendor's voice catalogue.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Client calls the text-to-speech API behind a circuit breaker.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "speech-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("circuit breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: breaker,
	}
}

type speakBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Speak synthesizes text and returns the audio/mpeg bytes. When the
// client is disabled it logs a warning and returns (nil, nil) without
// touching the network. Failures come back as *Error with a Category.
func (c *Client) Speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	if !c.cfg.Enabled {
		logging.Logger.Warn("speech client disabled, skipping synthesis")
		return nil, nil
	}
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoiceID
	}

	payload, _ := json.Marshal(speakBody{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})

	audio, err := c.breaker.Execute(func() (interface{}, error) {
		return c.synthesize(ctx, voiceID, payload)
	})
	if err != nil {
		// Already-classified errors propagate unchanged; everything
		// else (transport faults, open breaker) is generic.
		var spErr *Error
		if errors.As(err, &spErr) {
			return nil, spErr
		}
		return nil, &Error{Category: CategoryUnavailable, Message: msgUnavailable, Err: err}
	}
	return audio.([]byte), nil
}

func (c *Client) synthesize(ctx context.Context, voiceID string, payload []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/text-to-speech/%s", c.cfg.BaseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, classify(resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Voices returns the vendor's voice catalogue. This read path never
// fails: a disabled client, a transport fault or a bad response all
// yield an empty list so a listing call can't block a page render.
func (c *Client) Voices(ctx context.Context) []Voice {
	if !c.cfg.Enabled {
		return []Voice{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return []Voice{}
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Logger.Warnf("voice listing failed: %v", err)
		return []Voice{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Logger.Warnf("voice listing returned status %d", resp.StatusCode)
		return []Voice{}
	}

	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logging.Logger.Warnf("voice listing decode failed: %v", err)
		return []Voice{}
	}
	if out.Voices == nil {
		return []Voice{}
	}
	return out.Voices
}

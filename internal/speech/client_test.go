package speech_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitasklabs/unitask/internal/speech"
)

func enabledConfig(baseURL string) speech.Config {
	return speech.Config{
		Enabled:        true,
		APIKey:         "test-key",
		BaseURL:        baseURL,
		DefaultVoiceID: "default-voice",
		ModelID:        "test-model",
	}
}

func TestSpeakReturnsAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-123", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		var body struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Text)
		assert.Equal(t, "test-model", body.ModelID)
		assert.Equal(t, 0.5, body.VoiceSettings.Stability)
		assert.Equal(t, 0.75, body.VoiceSettings.SimilarityBoost)

		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client := speech.NewClient(enabledConfig(srv.URL))
	audio, err := client.Speak(context.Background(), "hello", "voice-123")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestSpeakFallsBackToDefaultVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/default-voice", r.URL.Path)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := speech.NewClient(enabledConfig(srv.URL))
	_, err := client.Speak(context.Background(), "hello", "")
	require.NoError(t, err)
}

func TestSpeakDisabledSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := enabledConfig(srv.URL)
	cfg.Enabled = false
	client := speech.NewClient(cfg)

	audio, err := client.Speak(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Nil(t, audio)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSpeakClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		category speech.Category
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, speech.CategoryUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{}`, speech.CategoryRateLimited},
		{"server error", http.StatusInternalServerError, `{}`, speech.CategoryUnavailable},
		{
			// The body verdict outranks the status code.
			"unusual activity on a 401",
			http.StatusUnauthorized,
			`{"detail":{"status":"detected_unusual_activity","message":"free tier abuse"}}`,
			speech.CategoryUnusualActivity,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := speech.NewClient(enabledConfig(srv.URL))
			_, err := client.Speak(context.Background(), "hello", "")
			require.Error(t, err)

			var spErr *speech.Error
			require.True(t, errors.As(err, &spErr))
			assert.Equal(t, tc.category, spErr.Category)
			assert.NotEmpty(t, spErr.Message)
		})
	}
}

func TestSpeakWrapsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := speech.NewClient(enabledConfig(srv.URL))
	_, err := client.Speak(context.Background(), "hello", "")
	require.Error(t, err)

	var spErr *speech.Error
	require.True(t, errors.As(err, &spErr))
	assert.Equal(t, speech.CategoryUnavailable, spErr.Category)
	assert.Error(t, spErr.Unwrap())
}

func TestVoicesListsCatalogue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"voices": []map[string]string{
				{"voice_id": "v1", "name": "Rachel"},
				{"voice_id": "v2", "name": "Adam", "category": "premade"},
			},
		})
	}))
	defer srv.Close()

	client := speech.NewClient(enabledConfig(srv.URL))
	voices := client.Voices(context.Background())
	require.Len(t, voices, 2)
	assert.Equal(t, "Rachel", voices[0].Name)
	assert.Equal(t, "premade", voices[1].Category)
}

func TestVoicesNeverFails(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := enabledConfig("http://127.0.0.1:0")
		cfg.Enabled = false
		client := speech.NewClient(cfg)
		assert.Empty(t, client.Voices(context.Background()))
	})

	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		client := speech.NewClient(enabledConfig(srv.URL))
		assert.Empty(t, client.Voices(context.Background()))
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()
		client := speech.NewClient(enabledConfig(srv.URL))
		assert.Empty(t, client.Voices(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		client := speech.NewClient(enabledConfig(srv.URL))
		assert.Empty(t, client.Voices(context.Background()))
	})
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Run("disabled without key", func(t *testing.T) {
		t.Setenv("SPEECH_API_KEY", "")
		cfg := speech.NewConfigFromEnv()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "https://api.elevenlabs.io/v1", cfg.BaseURL)
		assert.NotEmpty(t, cfg.DefaultVoiceID)
		assert.NotEmpty(t, cfg.ModelID)
	})

	t.Run("enabled with key and overrides", func(t *testing.T) {
		t.Setenv("SPEECH_API_KEY", "k")
		t.Setenv("SPEECH_API_URL", "https://speech.example.com/v1/")
		t.Setenv("SPEECH_VOICE_ID", "v9")
		cfg := speech.NewConfigFromEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "https://speech.example.com/v1", cfg.BaseURL)
		assert.Equal(t, "v9", cfg.DefaultVoiceID)
	})
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := speech.NewClient(enabledConfig(srv.URL))
	for i := 0; i < 6; i++ {
		_, err := client.Speak(context.Background(), "hello", "")
		require.Error(t, err)
	}

	// The breaker trips after four consecutive failures; later calls
	// fail fast without reaching the vendor.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

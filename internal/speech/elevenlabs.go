package speech

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/moriai/storybook-server/internal/errors"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabs is the Synthesizer implementation backed by the ElevenLabs REST
// API. One instance is shared process-wide; concurrency is bounded by the
// Engine's admission gate, not here.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewElevenLabs creates the API client.
func NewElevenLabs(apiKey string, logger *slog.Logger) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, errors.Validation("ELEVENLABS_API_KEY is required for local speech mode")
	}
	return &ElevenLabs{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}, nil
}

type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// Synthesize converts one text into MP3 bytes.
func (c *ElevenLabs) Synthesize(ctx context.Context, text string, params VoiceParams) ([]byte, error) {
	if params.VoiceID == "" {
		return nil, errors.Validation("voice id is required")
	}

	body, err := json.Marshal(synthesisRequest{
		Text:         text,
		ModelID:      params.ModelID,
		LanguageCode: params.Language,
		VoiceSettings: &voiceSettings{
			Stability:       params.Stability,
			SimilarityBoost: params.SimilarityBoost,
			Style:           params.Style,
		},
	})
	if err != nil {
		return nil, errors.Internal(err, "failed to encode synthesis request")
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, params.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal(err, "failed to build synthesis request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Upstream(err, "synthesis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Upstream(nil, "synthesis returned %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Upstream(err, "failed to read synthesis response")
	}
	return audio, nil
}

type voicesResponse struct {
	Voices []struct {
		VoiceID     string `json:"voice_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		PreviewURL  string `json:"preview_url"`
	} `json:"voices"`
}

// Voices lists the account's cloned voices.
func (c *ElevenLabs) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices?show_legacy=false", nil)
	if err != nil {
		return nil, errors.Internal(err, "failed to build voices request")
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Upstream(err, "voices request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Upstream(nil, "voices request returned %d", resp.StatusCode)
	}

	var parsed voicesResponse
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Upstream(err, "failed to read voices response")
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Upstream(err, "failed to decode voices response")
	}

	voices := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		if v.Category != "cloned" {
			continue
		}
		voices = append(voices, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Description: v.Description,
			Category:    v.Category,
			PreviewURL:  v.PreviewURL,
		})
	}

	c.logger.Info("Voices listed", "count", len(voices))
	return voices, nil
}

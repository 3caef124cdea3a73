package speech

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is the Batcher implementation that forwards batches to a separate
// TTS service over HTTP. Any transport, timeout, or HTTP error degrades to an
// all-empty result of the input's shape rather than failing the caller - a
// book still assembles, just without audio.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates the remote batch client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
		logger:  logger,
	}
}

type remoteBatchRequest struct {
	Texts [][]string `json:"texts"`
}

type remoteBatchResponse struct {
	BatchID string      `json:"batch_id"`
	Paths   [][]*string `json:"paths"`
}

// SynthesizeBatch posts the nested texts and maps the nested paths back onto
// index tags. Shape mismatches in the response are clamped to the input shape.
func (c *Client) SynthesizeBatch(ctx context.Context, texts [][]string, _ VoiceParams) (*BatchResult, error) {
	result := emptyResult(texts)
	if result.TotalCount() == 0 && len(texts) == 0 {
		return result, nil
	}

	body, err := json.Marshal(remoteBatchRequest{Texts: texts})
	if err != nil {
		c.logger.Error("Failed to encode batch request", "error", err)
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/generate", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("Failed to build batch request", "error", err)
		return result, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("TTS service unreachable, degrading to empty audio",
			"url", c.baseURL, "error", err)
		return result, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("TTS service error, degrading to empty audio",
			"status", resp.StatusCode)
		return result, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Failed to read TTS response, degrading to empty audio", "error", err)
		return result, nil
	}

	var parsed remoteBatchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		c.logger.Error("Failed to decode TTS response, degrading to empty audio", "error", err)
		return result, nil
	}

	if parsed.BatchID != "" {
		result.BatchID = parsed.BatchID
	}

	for i := range result.Lines {
		ln := &result.Lines[i]
		if ln.Page >= len(parsed.Paths) {
			continue
		}
		group := parsed.Paths[ln.Page]
		if ln.Line >= len(group) || group[ln.Line] == nil {
			continue
		}
		// The TTS container reports its internal /app-prefixed path.
		ln.Path = strings.TrimPrefix(*group[ln.Line], "/app")
	}

	c.logger.Info("Remote batch synthesis finished",
		"batch_id", result.BatchID, "success", result.SuccessCount(), "total", result.TotalCount())

	return result, nil
}

// emptyResult builds the all-empty, shape-matching result used both as the
// degraded outcome and as the scaffold the response paths are mapped onto.
func emptyResult(texts [][]string) *BatchResult {
	result := &BatchResult{BatchID: uuid.NewString(), Shape: make([]int, len(texts))}
	for p, group := range texts {
		result.Shape[p] = len(group)
		for l := range group {
			result.Lines = append(result.Lines, LineResult{Page: p, Line: l})
		}
	}
	return result
}

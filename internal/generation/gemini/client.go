// Package gemini adapts Google's generative models to the generation
// interfaces: script text, page illustrations, and short page videos.
package gemini

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/errors"
	"github.com/moriai/storybook-server/internal/generation"
)

// Client is the shared generative-model handle, constructed once at process
// start and injected everywhere a generation capability is needed.
// Implements generation.ScriptGenerator, ImageGenerator, and VideoGenerator.
type Client struct {
	client  *genai.Client
	cfg     config.GenerationConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates the Gemini API client.
func NewClient(ctx context.Context, cfg config.GenerationConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.Validation("GOOGLE_API_KEY is required for generation")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Upstream(err, "failed to create gemini client")
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60, 1)
	}

	logger.Info("Gemini client initialized",
		"script_model", cfg.ScriptModel,
		"image_model", cfg.ImageModel,
		"video_model", cfg.VideoModel)

	return &Client{client: client, cfg: cfg, limiter: limiter, logger: logger}, nil
}

// Close releases the underlying client handle.
func (c *Client) Close() error {
	c.client = nil
	c.logger.Info("Gemini client released")
	return nil
}

func (c *Client) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// scriptResponse matches the JSON shape requested via the response schema.
type scriptResponse struct {
	Stories [][]string `json:"stories"`
}

// GenerateScript asks the script model for per-page dialogue lines, bounded
// by a JSON response schema so the model cannot overrun the page and line caps.
func (c *Client) GenerateScript(ctx context.Context, entries []string, maxPages, maxLinesPerPage int) ([][]string, error) {
	if len(entries) == 0 {
		return nil, errors.Validation("at least one entry is required")
	}
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	prompt, err := renderStoryPrompt(entries)
	if err != nil {
		return nil, errors.Internal(err, "story prompt failed")
	}

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"stories": {
				Type:     genai.TypeArray,
				MaxItems: genai.Ptr(int64(maxPages)),
				Items: &genai.Schema{
					Type:     genai.TypeArray,
					MaxItems: genai.Ptr(int64(maxLinesPerPage)),
					Items:    &genai.Schema{Type: genai.TypeString},
				},
			},
		},
		Required: []string{"stories"},
	}

	c.logger.Info("Generating script",
		"entries", len(entries), "max_pages", maxPages, "max_lines_per_page", maxLinesPerPage)

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.ScriptModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, errors.Upstream(err, "script generation failed")
	}

	var parsed scriptResponse
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return nil, errors.Upstream(err, "script response was not valid JSON")
	}

	c.logger.Info("Script generated", "pages", len(parsed.Stories))
	return parsed.Stories, nil
}

// GenerateImage renders one page illustration from the uploaded source photo
// and the page's dialogue lines. Returns the first image payload the model
// emits.
func (c *Client) GenerateImage(ctx context.Context, source generation.SourceImage, lines []string) ([]byte, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	prompt, err := renderImagePrompt(lines, StyleCartoon)
	if err != nil {
		return nil, errors.Internal(err, "image prompt failed")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(source.Data, source.MimeType),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.ImageModel, contents, &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: "4:3"},
	})
	if err != nil {
		return nil, errors.Upstream(err, "image generation failed")
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, errors.Upstream(nil, "image generation produced no image parts")
}

// GenerateVideo animates the generated page illustration into a short clip.
// Blocks while polling the long-running operation; the still image is used as
// both the seed and the last frame so the clip loops back to the page art.
func (c *Client) GenerateVideo(ctx context.Context, still []byte, lines []string) ([]byte, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	prompt, err := renderVideoPrompt(lines)
	if err != nil {
		return nil, errors.Internal(err, "video prompt failed")
	}

	frame := &genai.Image{ImageBytes: still, MIMEType: "image/png"}

	op, err := c.client.Models.GenerateVideos(ctx, c.cfg.VideoModel, prompt, frame, &genai.GenerateVideosConfig{
		LastFrame: frame,
	})
	if err != nil {
		return nil, errors.Upstream(err, "video generation failed to start")
	}

	interval := c.cfg.VideoPollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	for !op.Done {
		c.logger.Info("Waiting for video generation", "operation", op.Name)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		op, err = c.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, errors.Upstream(err, "video operation poll failed")
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, errors.Upstream(nil, "video operation finished with no videos")
	}

	video := op.Response.GeneratedVideos[0].Video
	if video == nil {
		return nil, errors.Upstream(nil, "video operation finished with no payload")
	}
	if len(video.VideoBytes) > 0 {
		return video.VideoBytes, nil
	}

	data, err := c.client.Files.Download(ctx, video, nil)
	if err != nil {
		return nil, errors.Upstream(err, "video download failed")
	}
	return data, nil
}

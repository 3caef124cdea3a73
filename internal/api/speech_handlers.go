package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/moriai/storybook-server/internal/api/dto"
	"github.com/moriai/storybook-server/internal/speech"
)

type speechBatchInput struct {
	Body dto.SpeechBatchBody
}

type speechBatchOutput struct {
	Body dto.SpeechBatchResponse
}

type wordInput struct {
	Body dto.WordBody
}

type wordOutput struct {
	Body speech.WordResult
}

type voicesOutput struct {
	Body dto.VoicesResponse
}

// registerSpeechRoutes wires the typed JSON speech endpoints. The batch
// endpoint works in both modes; the word and voice endpoints need the
// in-process engine and are only registered in local mode.
func (s *Server) registerSpeechRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generateSpeechBatch",
		Method:      http.MethodPost,
		Path:        "/tts/generate",
		Summary:     "Batch speech synthesis",
		Description: "Synthesizes every text in the nested list, preserving its shape",
		Tags:        []string{"Speech"},
	}, s.handleSpeechBatch)

	if s.engine == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "synthesizeWord",
		Method:      http.MethodPost,
		Path:        "/tts/word",
		Summary:     "Cached single-word synthesis",
		Tags:        []string{"Speech"},
	}, s.handleWord)

	huma.Register(s.api, huma.Operation{
		OperationID: "listVoices",
		Method:      http.MethodGet,
		Path:        "/tts/voices",
		Summary:     "List available voices",
		Tags:        []string{"Speech"},
	}, s.handleVoices)
}

func (s *Server) handleSpeechBatch(ctx context.Context, input *speechBatchInput) (*speechBatchOutput, error) {
	start := time.Now()

	result, err := s.batcher.SynthesizeBatch(ctx, input.Body.Texts, speech.VoiceParams{
		VoiceID:   input.Body.VoiceID,
		ModelID:   input.Body.ModelID,
		Language:  input.Body.Language,
		Stability: input.Body.Stability,
		Style:     input.Body.Style,
	})
	if err != nil {
		return nil, humaError(err)
	}

	return &speechBatchOutput{
		Body: dto.NewSpeechBatchResponse(result, time.Since(start)),
	}, nil
}

func (s *Server) handleWord(ctx context.Context, input *wordInput) (*wordOutput, error) {
	result, err := s.engine.SynthesizeWord(ctx, input.Body.Word)
	if err != nil {
		return nil, humaError(err)
	}
	return &wordOutput{Body: *result}, nil
}

func (s *Server) handleVoices(ctx context.Context, _ *struct{}) (*voicesOutput, error) {
	voices, err := s.engine.Voices(ctx)
	if err != nil {
		return nil, humaError(err)
	}
	return &voicesOutput{Body: dto.VoicesResponse{Voices: voices}}, nil
}

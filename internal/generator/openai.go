package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openaiGenerator renders through the OpenAI images API.
type openaiGenerator struct {
	log    *zap.Logger
	client *openai.Client
	model  string
}

func NewOpenAI(log *zap.Logger, apiKey, model string) Generator {
	return &openaiGenerator{
		log:    log.Named("generator.openai"),
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (g *openaiGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if len(req.InputImages) > 0 {
		prompt = fmt.Sprintf("%s\n\nReference photos: %s", prompt, strings.Join(req.InputImages, ", "))
	}

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrGenerationFailed, err)
	}

	g.log.Debug("image rendered", zap.Int("size_bytes", len(data)))
	return &Result{Data: data, ContentType: "image/png"}, nil
}

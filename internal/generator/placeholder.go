package generator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"
	"strings"

	"go.uber.org/zap"
)

const placeholderSize = 512

// placeholderGenerator renders a flat-color frame derived from the prompt.
// It keeps local installs working without any external image backend.
type placeholderGenerator struct {
	log *zap.Logger
}

func NewPlaceholder(log *zap.Logger) Generator {
	return &placeholderGenerator{log: log.Named("generator.placeholder")}
}

func (g *placeholderGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(req.Prompt))
	fill := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			img.SetRGBA(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	g.log.Debug("placeholder image rendered", zap.Int("size_bytes", buf.Len()))
	return &Result{Data: buf.Bytes(), ContentType: "image/png"}, nil
}

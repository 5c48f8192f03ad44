// Package generator produces output images from a prompt and input photos.
package generator

import (
	"context"
	"errors"
)

var (
	ErrGenerationFailed = errors.New("generation failed")
	ErrEmptyPrompt      = errors.New("prompt is required")
)

// Request carries the snapshotted prompt and the source photo URLs.
type Request struct {
	Prompt      string
	InputImages []string
}

// Result is the rendered image.
type Result struct {
	Data        []byte
	ContentType string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

package generator

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPlaceholderRendersDeterministicPNG(t *testing.T) {
	gen := NewPlaceholder(zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := gen.Generate(ctx, Request{Prompt: "A warm embrace across time."})
	require.NoError(t, err)
	require.Equal(t, "image/png", first.ContentType)

	img, err := png.Decode(bytes.NewReader(first.Data))
	require.NoError(t, err)
	require.Equal(t, placeholderSize, img.Bounds().Dx())
	require.Equal(t, placeholderSize, img.Bounds().Dy())

	second, err := gen.Generate(ctx, Request{Prompt: "A warm embrace across time."})
	require.NoError(t, err)
	require.Equal(t, first.Data, second.Data)

	other, err := gen.Generate(ctx, Request{Prompt: "Something else entirely."})
	require.NoError(t, err)
	require.NotEqual(t, first.Data, other.Data)
}

func TestPlaceholderRejectsEmptyPrompt(t *testing.T) {
	gen := NewPlaceholder(zaptest.NewLogger(t))

	_, err := gen.Generate(context.Background(), Request{Prompt: "   "})
	require.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestPlaceholderHonorsCancelledContext(t *testing.T) {
	gen := NewPlaceholder(zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, Request{Prompt: "anything"})
	require.ErrorIs(t, err, context.Canceled)
}

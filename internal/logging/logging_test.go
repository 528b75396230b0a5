package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), false, &buf)

	FromCtx(ctx).Info().Str("strategy", "semantic").Msg("resolved")
	FromCtx(ctx).Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "resolved")
	assert.Contains(t, out, "strategy=semantic")
	assert.NotContains(t, out, "hidden")
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(true, &buf)
	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestFromCtx_WithoutLogger(t *testing.T) {
	// A bare context yields a usable logger
	assert.NotPanics(t, func() {
		FromCtx(context.Background()).Info().Msg("dropped")
	})
}

package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracer_ExportsOnShutdown(t *testing.T) {
	var out bytes.Buffer

	shutdown, err := InitTracer("polychat-test", "0.0.0", zap.NewNop(), &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "gateway.chat")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "gateway.chat")
	assert.Contains(t, out.String(), "polychat-test")
}

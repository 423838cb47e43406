package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitOpenTelemetryWithoutEndpoint(t *testing.T) {
	shutdown, err := InitOpenTelemetry(context.Background(), Config{ServiceName: "lunacare-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "collector:4317", NormalizeEndpoint("http://collector:4317"))
	assert.Equal(t, "collector:4317", NormalizeEndpoint("https://collector:4317"))
	assert.Equal(t, "collector:4317", NormalizeEndpoint("collector:4317"))
}

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabledReturnsNoopProviders(t *testing.T) {
	p, err := Setup(context.Background(), Options{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotNil(t, p.Tracer)
	assert.NotNil(t, p.Meter)
	assert.NotNil(t, p.Logger)

	p.Shutdown() // must not panic with no real exporters behind it
}

func TestSetupStdoutBuildsRealProviders(t *testing.T) {
	p, err := Setup(context.Background(), Options{Enabled: true, Stdout: true, Version: "test"})
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, span := p.Tracer.Start(context.Background(), "test-span")
	span.End()
	_ = ctx

	p.Shutdown()
}

func TestSetupRejectsUnsupportedProtocol(t *testing.T) {
	_, err := Setup(context.Background(), Options{Enabled: true, Protocol: "carrier-pigeon"})
	require.Error(t, err)
}

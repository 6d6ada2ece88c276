package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupDefaultLevel(t *testing.T) {
	l, shutdown, err := Setup(Options{})
	require.NoError(t, err)
	defer shutdown()
	assert.NotNil(t, l.Logger)
	assert.NotNil(t, l.Sugar)
}

func TestSetupInvalidLevel(t *testing.T) {
	_, _, err := Setup(Options{Level: "not-a-level"})
	require.Error(t, err)
}

func TestWithReturnsChildLogger(t *testing.T) {
	l, shutdown, err := Setup(Options{})
	require.NoError(t, err)
	defer shutdown()

	child := l.With(zap.String("registry", "registry/http"))
	assert.NotNil(t, child.Logger)
	assert.NotSame(t, l.Logger, child.Logger)
}

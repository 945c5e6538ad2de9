package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ecscore/internal/config"
)

func TestInitializeRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"

	rt := InitializeRuntime(cfg)
	require.NotNil(t, rt.World)
	require.NotNil(t, rt.Saver)
	assert.Equal(t, 0, rt.World.Len())
	assert.Same(t, rt.Logger, ProvideLogger(cfg))
}

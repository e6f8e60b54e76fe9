package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/smoke/internal/config"
)

func TestInitializeApp(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, app.Engine)
	assert.NotNil(t, app.Hub)
	assert.Nil(t, app.Inspector)
	assert.NotEmpty(t, app.Engine.ID())

	cfg.Inspect.Enabled = true
	cfg.Inspect.Addr = "127.0.0.1:0"
	app2, cleanup2, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup2()
	assert.NotNil(t, app2.Inspector)
}

func TestInitializeAppRejectsBadLogging(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "loud"
	_, _, err := InitializeApp(cfg)
	assert.Error(t, err)
}

package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCLILogger(t *testing.T) {
	original := CLILogger
	t.Cleanup(func() { CLILogger = original })

	require.NoError(t, InitCLILogger("tilerelay-test", true))
	require.NotNil(t, CLILogger)
	CLILogger.Debug("locating manifest", zap.String("url", "https://iiif.example.org"))
}

func TestServerLogger(t *testing.T) {
	original := ServerLogger
	t.Cleanup(func() { ServerLogger = original })

	require.NoError(t, InitServerLogger("tilerelay-test", "debug"))
	require.NotNil(t, ServerLogger)
	ServerLogger.Info("relay ready", zap.Int("max_hops", 3))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		"info":    "INFO",
		"warning": "WARN",
		" error ": "ERROR",
		"loud":    "INFO",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9091")
	require.NoError(t, err)
	assert.Equal(t, 9091, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}

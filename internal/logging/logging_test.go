package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("debug", "PROD", &buf)

	logger.Debug().Str("op", "login").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "debug", line["level"])
	require.Equal(t, "login", line["op"])
	require.Equal(t, "hello", line["message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("warn", "PROD", &buf)

	logger.Info().Msg("dropped")
	require.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("chatty", "PROD", &buf)

	logger.Debug().Msg("dropped")
	require.Zero(t, buf.Len())
	logger.Info().Msg("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("info", "dev", &buf)

	logger.Info().Msg("console line")
	require.Contains(t, buf.String(), "console line")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

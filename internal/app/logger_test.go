package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug", "json"))
	require.NoError(t, ConfigureLogging("", ""))
	require.NoError(t, ConfigureLogging("warn", "console"))
}

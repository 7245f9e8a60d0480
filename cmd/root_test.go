package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealmcp/internal/dispatcher"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeError, getExitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(dispatcher.ErrAuthenticationRequired))
	assert.Equal(t, ExitCodeAuthRequired,
		getExitCode(fmt.Errorf("dispatch: %w", dispatcher.ErrAuthenticationRequired)))
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("")

	cmd := newVersionCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.Run(cmd, nil)

	assert.Equal(t, "mealmcp version 1.2.3\n", out.String())
}

func TestServeFlagOverrides(t *testing.T) {
	require.NoError(t, serveCmd.Flags().Set("transport", "rest"))
	require.NoError(t, serveCmd.Flags().Set("port", "9000"))

	cfg, err := loadConfigWithFlags(serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.Transport)
	assert.Equal(t, 9000, cfg.Port)
	// Unset flags keep environment defaults.
	assert.Equal(t, "local", cfg.Mode)
}

package logging

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCachesPerComponent(t *testing.T) {
	a := Get("walker")
	b := Get("walker")
	c := Get("store")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestInitSetsLevelOnExistingLoggers(t *testing.T) {
	l := Get("init-test")
	require.NoError(t, Init("debug"))
	assert.Equal(t, log.DebugLevel, l.GetLevel())

	require.NoError(t, Init("warn"))
	assert.Equal(t, log.WarnLevel, l.GetLevel())
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init("loud"))
}

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "resuming", StateResuming.String())
	require.Equal(t, "restarting", StateRestarting.String())
}

func TestBackoffGrowsExponentiallyAndCaps(t *testing.T) {
	require.Equal(t, 300*time.Millisecond, backoff(300*time.Millisecond, 10*time.Second, 0))
	require.Equal(t, 600*time.Millisecond, backoff(300*time.Millisecond, 10*time.Second, 1))
	require.Equal(t, 1200*time.Millisecond, backoff(300*time.Millisecond, 10*time.Second, 2))
	require.Equal(t, 10*time.Second, backoff(300*time.Millisecond, 10*time.Second, 20))
}

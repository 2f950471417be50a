package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Phase
		on      trigger
		to      Phase
		effects []effect
	}{
		{"begin", PhaseNone, trigBegin, PhaseConnecting, []effect{effLaunch}},
		{"launched", PhaseConnecting, trigLaunched, PhaseConnecting, []effect{effConnect}},
		{"launch failed", PhaseConnecting, trigLaunchFailed, PhaseNone, []effect{effReport}},
		{"launch aborted", PhaseConnecting, trigAborted, PhaseNone, nil},
		{"connected", PhaseConnecting, trigConnected, PhaseStreaming, []effect{effAwaitInterrupt}},
		{"connected after interrupt", PhaseConnecting, trigConnectedInterrupted, PhaseDisconnecting, []effect{effStopConnection, effQuitApp}},
		{"connect failed", PhaseConnecting, trigConnectFailed, PhaseDisconnecting, []effect{effReport, effQuitApp}},
		{"interrupted while connecting", PhaseConnecting, trigInterrupted, PhaseDisconnecting, []effect{effQuitApp}},
		{"interrupted while streaming", PhaseStreaming, trigInterrupted, PhaseDisconnecting, []effect{effStopConnection, effQuitApp}},
		{"stopped", PhaseDisconnecting, trigStopped, PhaseNone, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, effects, err := transition(tt.from, tt.on)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
			assert.Equal(t, tt.effects, effects)
		})
	}
}

func TestTransitionIllegal(t *testing.T) {
	tests := []struct {
		from Phase
		on   trigger
	}{
		{PhaseNone, trigInterrupted},
		{PhaseNone, trigStopped},
		{PhaseConnecting, trigBegin},
		{PhaseStreaming, trigBegin},
		{PhaseStreaming, trigConnected},
		{PhaseStreaming, trigConnectedInterrupted},
		{PhaseDisconnecting, trigInterrupted},
		{PhaseDisconnecting, trigBegin},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.on.String(), func(t *testing.T) {
			to, effects, err := transition(tt.from, tt.on)
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, tt.from, to)
			assert.Empty(t, effects)
		})
	}
}

// Every path the table allows from none returns to none without
// revisiting a phase.
func TestTransitionPathsAreMonotonic(t *testing.T) {
	order := map[Phase]int{PhaseConnecting: 1, PhaseStreaming: 2, PhaseDisconnecting: 3, PhaseNone: 4}

	for e, out := range transitions {
		if e.from == PhaseNone {
			continue
		}
		assert.GreaterOrEqual(t, order[out.to], order[e.from], "%s on %s goes backwards", e.from, e.on)
	}
}

func TestPhaseText(t *testing.T) {
	for _, p := range []Phase{PhaseNone, PhaseConnecting, PhaseStreaming, PhaseDisconnecting} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var back Phase
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}

	var p Phase
	assert.Error(t, p.UnmarshalText([]byte("paused")))
	assert.Equal(t, "unknown", Phase(42).String())
}

package streaming

import "fmt"

// trigger is something the worker observed
type trigger int

const (
	trigNone trigger = iota
	trigBegin
	trigLaunched
	trigLaunchFailed
	trigAborted
	trigConnected
	trigConnectedInterrupted
	trigConnectFailed
	trigInterrupted
	trigStopped
)

var triggerNames = map[trigger]string{
	trigNone:                 "none",
	trigBegin:                "begin",
	trigLaunched:             "launched",
	trigLaunchFailed:         "launch_failed",
	trigAborted:              "aborted",
	trigConnected:            "connected",
	trigConnectedInterrupted: "connected_interrupted",
	trigConnectFailed:        "connect_failed",
	trigInterrupted:          "interrupted",
	trigStopped:              "stopped",
}

func (t trigger) String() string {
	if s, ok := triggerNames[t]; ok {
		return s
	}
	return "unknown"
}

// effect is work the worker performs after a transition
type effect int

const (
	effLaunch effect = iota
	effConnect
	effAwaitInterrupt
	effStopConnection
	effQuitApp
	effReport
)

type edge struct {
	from Phase
	on   trigger
}

type outcome struct {
	to      Phase
	effects []effect
}

// transitions is the complete session state machine. Anything not listed
// is illegal.
var transitions = map[edge]outcome{
	{PhaseNone, trigBegin}: {PhaseConnecting, []effect{effLaunch}},

	{PhaseConnecting, trigLaunched}:             {PhaseConnecting, []effect{effConnect}},
	{PhaseConnecting, trigLaunchFailed}:         {PhaseNone, []effect{effReport}},
	{PhaseConnecting, trigAborted}:              {PhaseNone, nil},
	{PhaseConnecting, trigConnected}:            {PhaseStreaming, []effect{effAwaitInterrupt}},
	{PhaseConnecting, trigConnectedInterrupted}: {PhaseDisconnecting, []effect{effStopConnection, effQuitApp}},
	{PhaseConnecting, trigConnectFailed}:        {PhaseDisconnecting, []effect{effReport, effQuitApp}},
	{PhaseConnecting, trigInterrupted}:          {PhaseDisconnecting, []effect{effQuitApp}},

	{PhaseStreaming, trigInterrupted}: {PhaseDisconnecting, []effect{effStopConnection, effQuitApp}},

	{PhaseDisconnecting, trigStopped}: {PhaseNone, nil},
}

// transition is the pure step function of the session state machine
func transition(from Phase, on trigger) (Phase, []effect, error) {
	out, ok := transitions[edge{from, on}]
	if !ok {
		return from, nil, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, from, on)
	}
	return out.to, out.effects, nil
}

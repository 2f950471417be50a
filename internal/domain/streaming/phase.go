package streaming

import "fmt"

// Phase is the stage a streaming session is in. Exactly one phase is
// active at a time and a session walks them in order:
//
//	None -> Connecting -> Streaming -> Disconnecting -> None
//
// A session may skip Streaming (launch failed, connect failed, or
// interrupted while connecting) but never revisits an earlier phase.
type Phase int32

const (
	PhaseNone Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseDisconnecting
)

var phaseNames = map[Phase]string{
	PhaseNone:          "none",
	PhaseConnecting:    "connecting",
	PhaseStreaming:     "streaming",
	PhaseDisconnecting: "disconnecting",
}

// String returns the lowercase status name
func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

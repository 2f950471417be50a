package streaming

import (
	"context"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
)

// Host is a remote streaming-capable machine. Implementations own the
// control-plane protocol; the manager only sequences the calls.
type Host interface {
	// Address identifies the host in logs and events
	Address() string

	// StartApp launches (or resumes) appID and returns what the transport
	// needs to connect. Failures should be reported as *HostError.
	StartApp(ctx context.Context, stream settings.StreamConfig, appID int, opts settings.HostOptions, gamepadMask int) (*ConnectionInfo, error)

	// QuitApp stops whatever app the host is running for this client
	QuitApp(ctx context.Context) error
}

// HostResolver turns an address into a Host
type HostResolver interface {
	Resolve(ctx context.Context, address string) (Host, error)
}

// App is an application a host can launch
type App struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	HDRSupported bool   `json:"hdr_supported"`
}

// AppCatalog is implemented by hosts that can list their applications.
// When available, Begin rejects app IDs the host does not know.
type AppCatalog interface {
	Apps(ctx context.Context) ([]App, error)
}

// ConnectionInfo is produced by a successful StartApp and consumed by the
// transport.
type ConnectionInfo struct {
	Address                string `json:"address"`
	AppVersion             string `json:"app_version"`
	GfeVersion             string `json:"gfe_version,omitempty"`
	ServerCodecModeSupport int    `json:"server_codec_mode_support"`
	RTSPSessionURL         string `json:"rtsp_session_url,omitempty"`
	RIKey                  []byte `json:"-"`
	RIKeyID                int    `json:"-"`
	Resumed                bool   `json:"resumed"`
}

// Listener receives transport progress. Calls may arrive on any goroutine.
type Listener interface {
	StageStarting(stage string)
	StageFailed(stage string, code int)
	ConnectionStarted()
	ConnectionTerminated(code int)
	LogMessage(msg string)
}

// VideoSink consumes decoded video; rendering happens outside this package
type VideoSink interface {
	Setup(width, height, fps int) error
	Cleanup()
}

// AudioSink consumes decoded audio
type AudioSink interface {
	Init(cfg settings.AudioConfiguration, device string) error
	Cleanup()
}

// Platform provides the local renderers handed to the transport
type Platform interface {
	Renderers(s *settings.Settings) (VideoSink, AudioSink)
}

// Connection is the live audio/video/input transport.
//
// Start returns once the transport is up. ctx bounds the start handshake
// only; the connection itself lives until Stop. cfg is the session's
// private settings snapshot and must not be retained past Stop.
type Connection interface {
	Start(ctx context.Context, info *ConnectionInfo, cfg *settings.Settings, listener Listener,
		video VideoSink, audio AudioSink, drFlags int, audioDevice string, extraFlags int) error
	Stop() error
}

// InputDevices reports the locally attached controllers
type InputDevices interface {
	GamepadCount() int
}

// Notifier is a fire-and-forget event sink. Post must not block for
// longer than a bounded enqueue.
type Notifier interface {
	Post(kind string, payload any)
}

// SettingsSource provides the current global settings
type SettingsSource interface {
	Get() *settings.Settings
}

// Event kinds posted by the manager
const (
	EventPhaseChanged         = "session.phase"
	EventSessionFailed        = "session.failed"
	EventStopFailed           = "session.stop_failed"
	EventStageStarting        = "connection.stage_starting"
	EventStageFailed          = "connection.stage_failed"
	EventConnectionStarted    = "connection.started"
	EventConnectionTerminated = "connection.terminated"
)

// PhaseChange is the payload of EventPhaseChanged
type PhaseChange struct {
	SessionID string `json:"session_id"`
	From      Phase  `json:"from"`
	To        Phase  `json:"to"`
}

// Failure is the payload of EventSessionFailed and EventStopFailed
type Failure struct {
	SessionID string `json:"session_id"`
	Kind      Kind   `json:"kind"`
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message"`
}

// StageEvent is the payload of the connection.* events
type StageEvent struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage,omitempty"`
	Code      int    `json:"code,omitempty"`
}

type nopNotifier struct{}

func (nopNotifier) Post(string, any) {}

type noInput struct{}

func (noInput) GamepadCount() int { return 0 }

type noPlatform struct{}

func (noPlatform) Renderers(*settings.Settings) (VideoSink, AudioSink) { return nil, nil }

package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Terminate when no connection is up
var ErrNotConnected = errors.New("transport is not connected")

// Null is an in-process connection that stays up until stopped
type Null struct {
	logger *zap.Logger

	mu       sync.Mutex
	listener streaming.Listener
	video    streaming.VideoSink
	audio    streaming.AudioSink
	starts   int
}

// NewNull creates a null driver
func NewNull(logger *zap.Logger) *Null {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Null{logger: logger.Named("transport.null")}
}

// Start implements streaming.Connection
func (n *Null) Start(ctx context.Context, info *streaming.ConnectionInfo, cfg *settings.Settings, listener streaming.Listener,
	video streaming.VideoSink, audio streaming.AudioSink, drFlags int, audioDevice string, extraFlags int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener != nil {
		return errors.New("transport already started")
	}

	for _, stage := range Stages {
		if err := ctx.Err(); err != nil {
			listener.StageFailed(stage, -1)
			n.cleanup(video, audio)
			return err
		}
		listener.StageStarting(stage)

		switch stage {
		case StageVideo:
			if video != nil {
				if err := video.Setup(cfg.Stream.Width, cfg.Stream.Height, cfg.Stream.FPS); err != nil {
					listener.StageFailed(stage, -1)
					n.cleanup(video, audio)
					return err
				}
			}
		case StageAudio:
			if audio != nil {
				if err := audio.Init(cfg.Stream.AudioConfiguration, audioDevice); err != nil {
					listener.StageFailed(stage, -1)
					n.cleanup(video, nil)
					return err
				}
			}
		}
	}

	n.listener = listener
	n.video = video
	n.audio = audio
	n.starts++
	n.logger.Info("Null connection started", zap.String("host", info.Address))
	listener.ConnectionStarted()
	return nil
}

// Stop implements streaming.Connection
func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	n.cleanup(n.video, n.audio)
	n.listener, n.video, n.audio = nil, nil, nil
	n.logger.Info("Null connection stopped")
	return nil
}

// Terminate simulates the remote end dropping the connection
func (n *Null) Terminate(code int) error {
	n.mu.Lock()
	listener := n.listener
	n.mu.Unlock()
	if listener == nil {
		return ErrNotConnected
	}
	listener.ConnectionTerminated(code)
	return nil
}

// Connected reports whether Start succeeded and Stop has not been called
func (n *Null) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listener != nil
}

// Starts returns how many connections have been started
func (n *Null) Starts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts
}

func (n *Null) cleanup(video streaming.VideoSink, audio streaming.AudioSink) {
	if video != nil {
		video.Cleanup()
	}
	if audio != nil {
		audio.Cleanup()
	}
}

// Platform hands out renderers that log and discard
type Platform struct {
	logger *zap.Logger
}

// NewPlatform creates a discarding platform
func NewPlatform(logger *zap.Logger) *Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Platform{logger: logger.Named("platform")}
}

// Renderers implements streaming.Platform
func (p *Platform) Renderers(s *settings.Settings) (streaming.VideoSink, streaming.AudioSink) {
	return &discardVideo{logger: p.logger, decoder: s.Video.Decoder},
		&discardAudio{logger: p.logger, backend: s.Audio.Backend}
}

type discardVideo struct {
	logger  *zap.Logger
	decoder string
}

func (v *discardVideo) Setup(width, height, fps int) error {
	v.logger.Debug("Video renderer ready",
		zap.String("decoder", v.decoder),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("fps", fps))
	return nil
}

func (v *discardVideo) Cleanup() {}

type discardAudio struct {
	logger  *zap.Logger
	backend string
}

func (a *discardAudio) Init(cfg settings.AudioConfiguration, device string) error {
	a.logger.Debug("Audio renderer ready",
		zap.String("backend", a.backend),
		zap.Stringer("layout", cfg),
		zap.String("device", device))
	return nil
}

func (a *discardAudio) Cleanup() {}

package streaming

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// run drives one session through the state machine until it returns to
// PhaseNone. It is the only writer of the phase while the session lives.
func (m *Manager) run(s *session) {
	log := m.logger.With(zap.String("session_id", s.id.String()))
	defer m.exit(s, log)

	phase := PhaseNone
	on := trigBegin
	for on != trigNone {
		next, effects, err := transition(phase, on)
		if err != nil {
			log.Error("Session state machine stalled", zap.Error(err))
			return
		}
		// Entering PhaseNone is published after its effects so a poller
		// that sees none also sees the session's outcome.
		if next != phase && next != PhaseNone {
			m.setPhase(s, log, phase, next)
		}

		on = trigNone
		for _, eff := range effects {
			if t := m.perform(s, log, eff); t != trigNone {
				on = t
			}
		}

		if next != phase && next == PhaseNone {
			m.setPhase(s, log, phase, next)
		}
		phase = next
	}
}

func (m *Manager) perform(s *session, log *zap.Logger, eff effect) trigger {
	switch eff {
	case effLaunch:
		return m.launch(s, log)
	case effConnect:
		return m.connect(s, log)
	case effAwaitInterrupt:
		return m.awaitInterrupt()
	case effStopConnection:
		m.stopConnection(s, log)
	case effQuitApp:
		m.quitApp(s, log)
		return trigStopped
	case effReport:
		m.report(s, log)
	}
	return trigNone
}

func (m *Manager) launch(s *session, log *zap.Logger) trigger {
	mask := GamepadMask(m.input.GamepadCount())
	stream := s.cfg.Stream

	ctx, cancel := m.callContext(s.ctx)
	defer cancel()

	var info *ConnectionInfo
	err := m.tracer.Trace(ctx, "session.start_app", map[string]string{
		"host":   s.host.Address(),
		"app_id": strconv.Itoa(s.appID),
	}, func(ctx context.Context) error {
		var err error
		info, err = s.host.StartApp(ctx, stream, s.appID, s.cfg.Host, mask)
		return err
	})
	if err != nil {
		if m.wasInterrupted(s) {
			log.Info("App launch abandoned after interrupt", zap.Error(err))
			return trigAborted
		}
		s.failure = classifyLaunch(err, stream)
		return trigLaunchFailed
	}

	if info == nil {
		info = &ConnectionInfo{Address: s.host.Address()}
	}
	s.info = info
	log.Info("App launched",
		zap.Int("app_id", s.appID),
		zap.Int("gamepad_mask", mask),
		zap.Bool("resumed", info.Resumed))
	return trigLaunched
}

func (m *Manager) connect(s *session, log *zap.Logger) trigger {
	if m.wasInterrupted(s) {
		return trigInterrupted
	}

	stream := s.cfg.Stream
	if s.cfg.DebugLevel > 0 {
		log.Info("Stream configuration",
			zap.String("mode", fmt.Sprintf("%dx%d", stream.Width, stream.Height)),
			zap.Int("fps", stream.FPS),
			zap.Int("bitrate_kbps", stream.Bitrate),
			zap.Int("packet_size", stream.PacketSize),
			zap.Stringer("audio", stream.AudioConfiguration),
			zap.Bool("hevc", stream.SupportsHEVC))
	}

	video, audio := m.platform.Renderers(s.cfg)

	ctx, cancel := m.callContext(s.ctx)
	defer cancel()

	err := m.tracer.Trace(ctx, "session.start_connection", map[string]string{
		"host": s.info.Address,
	}, func(ctx context.Context) error {
		return m.connection.Start(ctx, s.info, s.cfg, &sessionListener{m: m, s: s, log: log},
			video, audio, 0, s.cfg.Audio.Device, 0)
	})
	if err != nil {
		if m.wasInterrupted(s) {
			log.Info("Connection start abandoned after interrupt", zap.Error(err))
			return trigInterrupted
		}
		s.failure = &Error{Kind: KindConnectionFailure, Message: err.Error(), Err: err}
		return trigConnectFailed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s.interrupted {
		log.Info("Connection started after interrupt, tearing down")
		return trigConnectedInterrupted
	}
	m.running = true
	return trigConnected
}

// awaitInterrupt is the session's only unbounded wait
func (m *Manager) awaitInterrupt() trigger {
	m.mu.Lock()
	for m.running {
		m.cond.Wait()
	}
	m.mu.Unlock()
	return trigInterrupted
}

func (m *Manager) stopConnection(s *session, log *zap.Logger) {
	err := m.tracer.Trace(context.WithoutCancel(s.ctx), "session.stop_connection", nil,
		func(context.Context) error {
			return m.connection.Stop()
		})
	if err != nil {
		m.teardownFailed(s, log, "stop connection", err)
	}
}

func (m *Manager) quitApp(s *session, log *zap.Logger) {
	ctx, cancel := m.callContext(context.WithoutCancel(s.ctx))
	defer cancel()

	err := m.tracer.Trace(ctx, "session.quit_app", map[string]string{
		"host": s.host.Address(),
	}, func(ctx context.Context) error {
		return s.host.QuitApp(ctx)
	})
	if err != nil {
		m.teardownFailed(s, log, "quit app", err)
		return
	}
	log.Info("App quit", zap.String("host", s.host.Address()))
}

// teardownFailed records a StopFailure. Teardown always continues.
func (m *Manager) teardownFailed(s *session, log *zap.Logger, op string, err error) {
	failure := &Error{Kind: KindStopFailure, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
	log.Warn("Session teardown step failed",
		zap.String("step", op),
		zap.Stringer("kind", KindStopFailure),
		zap.Error(err))
	if m.metrics != nil {
		m.metrics.RecordSessionFailure(KindStopFailure.String())
	}
	m.notifier.Post(EventStopFailed, Failure{
		SessionID: s.id.String(),
		Kind:      KindStopFailure,
		Message:   failure.Error(),
	})
}

func (m *Manager) report(s *session, log *zap.Logger) {
	failure := s.failure
	if failure == nil {
		return
	}

	m.mu.Lock()
	m.lastErr = failure
	m.mu.Unlock()

	log.Error("Session failed",
		zap.Stringer("kind", failure.Kind),
		zap.Int("code", failure.Code),
		zap.String("message", failure.Message))
	if m.metrics != nil {
		m.metrics.RecordSessionFailure(failure.Kind.String())
	}
	m.notifier.Post(EventSessionFailed, Failure{
		SessionID: s.id.String(),
		Kind:      failure.Kind,
		Code:      failure.Code,
		Message:   failure.Message,
	})
}

// setPhase announces a transition, then publishes it to Status
func (m *Manager) setPhase(s *session, log *zap.Logger, from, to Phase) {
	log.Info("Session phase changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if m.metrics != nil {
		m.metrics.SetSessionPhase(int(to))
	}
	m.notifier.Post(EventPhaseChanged, PhaseChange{SessionID: s.id.String(), From: from, To: to})
	m.phase.Store(int32(to))
}

func (m *Manager) exit(s *session, log *zap.Logger) {
	if r := recover(); r != nil {
		log.Error("Session worker panicked", zap.Any("panic", r))
	}

	if from := m.Status(); from != PhaseNone {
		m.setPhase(s, log, from, PhaseNone)
	}
	if m.metrics != nil {
		m.metrics.ObserveSessionDuration(time.Since(s.startedAt))
	}
	s.cancel()

	m.mu.Lock()
	m.running = false
	if m.current == s {
		m.current = nil
	}
	close(s.done)
	m.mu.Unlock()

	log.Info("Session ended", zap.Duration("duration", time.Since(s.startedAt)))
}

func (m *Manager) wasInterrupted(s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.interrupted
}

func (m *Manager) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if m.hostCallTimeout > 0 {
		return context.WithTimeout(parent, m.hostCallTimeout)
	}
	return context.WithCancel(parent)
}

// sessionListener forwards transport callbacks for one session
type sessionListener struct {
	m   *Manager
	s   *session
	log *zap.Logger
}

func (l *sessionListener) StageStarting(stage string) {
	l.log.Debug("Connection stage starting", zap.String("stage", stage))
	l.m.notifier.Post(EventStageStarting, StageEvent{SessionID: l.s.id.String(), Stage: stage})
}

func (l *sessionListener) StageFailed(stage string, code int) {
	l.log.Warn("Connection stage failed", zap.String("stage", stage), zap.Int("code", code))
	l.m.notifier.Post(EventStageFailed, StageEvent{SessionID: l.s.id.String(), Stage: stage, Code: code})
}

func (l *sessionListener) ConnectionStarted() {
	l.log.Info("Connection started")
	l.m.notifier.Post(EventConnectionStarted, StageEvent{SessionID: l.s.id.String()})
}

func (l *sessionListener) ConnectionTerminated(code int) {
	l.log.Warn("Connection terminated", zap.Int("code", code))
	l.m.notifier.Post(EventConnectionTerminated, StageEvent{SessionID: l.s.id.String(), Code: code})
	l.m.interruptSession(l.s)
}

func (l *sessionListener) LogMessage(msg string) {
	l.log.Debug(msg)
}

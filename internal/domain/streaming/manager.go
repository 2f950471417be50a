package streaming

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Moonlit/backend/internal/shared/id"
	"go.uber.org/zap"
)

// Info is a point-in-time view of the manager
type Info struct {
	Phase     Phase        `json:"phase"`
	Running   bool         `json:"running"`
	SessionID id.SessionID `json:"session_id,omitempty"`
	Host      string       `json:"host,omitempty"`
	AppID     int          `json:"app_id,omitempty"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

// session is one worker's private state. Fields below mu-guarded are only
// touched with Manager.mu held; the rest belong to the worker.
type session struct {
	id        id.SessionID
	host      Host
	appID     int
	cfg       *settings.Settings
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// mu-guarded
	interrupted bool

	info    *ConnectionInfo
	failure *Error
}

// Manager owns at most one streaming session at a time and drives it
// through connect, stream and teardown on a dedicated goroutine.
type Manager struct {
	resolver   HostResolver
	connection Connection
	source     SettingsSource
	logger     *zap.Logger

	platform        Platform
	input           InputDevices
	notifier        Notifier
	metrics         *monitoring.Metrics
	tracer          *tracing.Tracer
	hostCallTimeout time.Duration

	phase atomic.Int32

	mu      sync.Mutex
	cond    *sync.Cond
	running bool
	current *session
	closed  bool
	lastErr error
}

// NewManager creates a session manager
func NewManager(resolver HostResolver, connection Connection, source SettingsSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		resolver:   resolver,
		connection: connection,
		source:     source,
		logger:     logger,
		platform:   noPlatform{},
		input:      noInput{},
		notifier:   nopNotifier{},
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// WithPlatform sets the renderer provider
func (m *Manager) WithPlatform(p Platform) *Manager {
	if p != nil {
		m.platform = p
	}
	return m
}

// WithInput sets the controller source used for the gamepad mask
func (m *Manager) WithInput(in InputDevices) *Manager {
	if in != nil {
		m.input = in
	}
	return m
}

// WithNotifier sets the event sink
func (m *Manager) WithNotifier(n Notifier) *Manager {
	if n != nil {
		m.notifier = n
	}
	return m
}

// WithMetrics adds metrics collection
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithTracer adds span recording around host and transport calls
func (m *Manager) WithTracer(t *tracing.Tracer) *Manager {
	m.tracer = t
	return m
}

// WithHostCallTimeout bounds each host and transport call. Zero leaves
// them unbounded; Interrupt still cancels them.
func (m *Manager) WithHostCallTimeout(d time.Duration) *Manager {
	m.hostCallTimeout = d
	return m
}

// BeginAddress resolves address and begins a session on it
func (m *Manager) BeginAddress(ctx context.Context, address string, appID int) (id.SessionID, error) {
	if m.resolver == nil {
		return "", m.reject(&Error{Kind: KindHostUnreachable, Message: "no host resolver configured"})
	}
	host, err := m.resolver.Resolve(ctx, address)
	if err != nil {
		return "", m.reject(&Error{
			Kind:    KindHostUnreachable,
			Message: fmt.Sprintf("resolve %s: %v", address, err),
			Err:     err,
		})
	}
	return m.Begin(ctx, host, appID)
}

// Begin snapshots the current settings and starts a session for appID on
// host. It returns as soon as the worker is spawned; progress is reported
// through Status and the notifier.
func (m *Manager) Begin(ctx context.Context, host Host, appID int) (id.SessionID, error) {
	if host == nil {
		return "", m.reject(&Error{Kind: KindHostUnreachable, Message: "host is not resolved"})
	}

	if catalog, ok := host.(AppCatalog); ok {
		if err := m.checkApp(ctx, catalog, host.Address(), appID); err != nil {
			return "", m.reject(err)
		}
	}

	cfg := m.snapshot()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", m.reject(ErrManagerClosed)
	}
	if m.current != nil {
		m.mu.Unlock()
		return "", m.reject(ErrSessionAlreadyActive)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        id.NewSessionID(),
		host:      host,
		appID:     appID,
		cfg:       cfg,
		startedAt: time.Now(),
		ctx:       sctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.current = s
	m.lastErr = nil
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionBegin("accepted")
	}
	m.logger.Info("Session requested",
		zap.String("session_id", s.id.String()),
		zap.String("host", host.Address()),
		zap.Int("app_id", appID))

	go m.run(s)
	return s.id, nil
}

// Interrupt asks the active session to stop. It never blocks and is a
// no-op when no session is active.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interruptLocked(m.current)
}

func (m *Manager) interruptSession(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != s {
		return
	}
	m.interruptLocked(s)
}

func (m *Manager) interruptLocked(s *session) {
	m.running = false
	if s != nil && !s.interrupted {
		s.interrupted = true
		s.cancel()
		m.logger.Info("Session interrupt requested", zap.String("session_id", s.id.String()))
	}
	m.cond.Broadcast()
}

// WaitForStop blocks until the active session's worker has exited. It
// returns immediately when no session is active. Never call it from a
// Listener callback.
func (m *Manager) WaitForStop() {
	if done := m.doneChan(); done != nil {
		<-done
	}
}

// WaitForStopTimeout is WaitForStop bounded by d. It reports whether the
// worker exited in time.
func (m *Manager) WaitForStopTimeout(d time.Duration) bool {
	done := m.doneChan()
	if done == nil {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (m *Manager) doneChan() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.done
}

// Status returns the current phase. Safe to poll from any goroutine.
func (m *Manager) Status() Phase {
	return Phase(m.phase.Load())
}

// IsRunning reports whether a session is connected and streaming
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the failure of the most recent session, if any
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Info returns a snapshot of the manager's state
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		Phase:   m.Status(),
		Running: m.running,
	}
	if s := m.current; s != nil {
		started := s.startedAt
		info.SessionID = s.id
		info.Host = s.host.Address()
		info.AppID = s.appID
		info.StartedAt = &started
	}
	if m.lastErr != nil {
		info.LastError = m.lastErr.Error()
	}
	return info
}

// Close interrupts any active session, waits for it and rejects every
// later Begin with ErrManagerClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.interruptLocked(m.current)
	m.mu.Unlock()

	m.WaitForStop()
}

func (m *Manager) snapshot() *settings.Settings {
	if m.source == nil {
		return settings.Default()
	}
	cfg := m.source.Get()
	if cfg == nil {
		return settings.Default()
	}
	return cfg.Clone()
}

func (m *Manager) checkApp(ctx context.Context, catalog AppCatalog, address string, appID int) error {
	apps, err := catalog.Apps(ctx)
	if err != nil {
		return &Error{
			Kind:    KindHostUnreachable,
			Message: fmt.Sprintf("list applications on %s: %v", address, err),
			Err:     err,
		}
	}
	for _, app := range apps {
		if app.ID == appID {
			return nil
		}
	}
	return fmt.Errorf("%w: app %d on %s", ErrUnknownApp, appID, address)
}

func (m *Manager) reject(err error) error {
	if m.metrics != nil {
		m.metrics.RecordSessionBegin("rejected")
	}
	m.logger.Warn("Session request rejected", zap.Error(err))
	return err
}

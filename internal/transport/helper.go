package transport

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

// Helper drives an external streaming client process. The process is
// expected to connect to the RTSP session the host handed out at launch
// and to print its progress in the usual moonlight form:
//
//	Starting RTSP handshake...done
//	Starting video stream initialization failed: -1
//	Connection started
//	Connection terminated with error: -102
type Helper struct {
	path        string
	logger      *zap.Logger
	stopTimeout time.Duration

	mu   sync.Mutex
	proc *process
}

// NewHelper creates a helper driver that runs the binary at path
func NewHelper(path string, logger *zap.Logger) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = "moonlight"
	}
	return &Helper{
		path:        path,
		logger:      logger.Named("transport.helper"),
		stopTimeout: 5 * time.Second,
	}
}

// WithStopTimeout bounds how long Stop waits before killing the process
func (h *Helper) WithStopTimeout(d time.Duration) *Helper {
	h.stopTimeout = d
	return h
}

type process struct {
	cmd      *exec.Cmd
	ptmx     *os.File
	listener streaming.Listener
	log      *zap.Logger

	startedOnce sync.Once
	startedCh   chan struct{}
	readerDone  chan struct{}
	exited      chan struct{}

	mu         sync.Mutex
	started    bool
	stopping   bool
	termCode   *int
	exitErr    error
	stageFails []string
}

// Start implements streaming.Connection. It returns once the helper
// reports the connection as started.
func (h *Helper) Start(ctx context.Context, info *streaming.ConnectionInfo, cfg *settings.Settings, listener streaming.Listener,
	video streaming.VideoSink, audio streaming.AudioSink, drFlags int, audioDevice string, extraFlags int) error {
	h.mu.Lock()
	if h.proc != nil {
		h.mu.Unlock()
		return errors.New("helper already running")
	}

	cmd := exec.Command(h.path, helperArgs(info, cfg, audioDevice)...)
	cmd.Env = append(os.Environ(),
		"MOONLIT_RIKEY="+hex.EncodeToString(info.RIKey),
		"MOONLIT_RIKEYID="+strconv.Itoa(info.RIKeyID),
	)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 160})
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("failed to start helper: %w", err)
	}

	p := &process{
		cmd:        cmd,
		ptmx:       ptmx,
		listener:   listener,
		log:        h.logger.With(zap.Int("pid", cmd.Process.Pid)),
		startedCh:  make(chan struct{}),
		readerDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	h.proc = p
	h.mu.Unlock()

	p.log.Info("Helper started", zap.String("path", h.path), zap.String("host", info.Address))

	go p.readOutput()
	go h.monitor(p)

	select {
	case <-p.startedCh:
		return nil
	case <-p.exited:
		if p.isStarted() {
			return nil
		}
		h.release(p)
		return p.startError()
	case <-ctx.Done():
		p.markStopping()
		_ = cmd.Process.Kill()
		<-p.exited
		h.release(p)
		return ctx.Err()
	}
}

// Stop implements streaming.Connection
func (h *Helper) Stop() error {
	h.mu.Lock()
	p := h.proc
	h.proc = nil
	h.mu.Unlock()
	if p == nil {
		return nil
	}

	p.markStopping()
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.log.Warn("Failed to interrupt helper", zap.Error(err))
	}

	timer := time.NewTimer(h.stopTimeout)
	defer timer.Stop()
	select {
	case <-p.exited:
	case <-timer.C:
		p.log.Warn("Helper did not exit, killing it")
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill helper: %w", err)
		}
		<-p.exited
	}
	p.log.Info("Helper stopped")
	return nil
}

// Running reports whether a helper process is attached
func (h *Helper) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc != nil
}

func (h *Helper) release(p *process) {
	h.mu.Lock()
	if h.proc == p {
		h.proc = nil
	}
	h.mu.Unlock()
}

// monitor reaps the process. An exit nobody asked for after the
// connection came up is reported as a terminated connection.
func (h *Helper) monitor(p *process) {
	err := p.cmd.Wait()

	select {
	case <-p.readerDone:
	case <-time.After(time.Second):
	}
	_ = p.ptmx.Close()

	p.mu.Lock()
	p.exitErr = err
	report := p.started && !p.stopping
	code := exitCode(err)
	if p.termCode != nil {
		code = *p.termCode
	}
	p.mu.Unlock()

	p.log.Info("Helper exited", zap.Int("code", exitCode(err)))
	close(p.exited)

	if report {
		h.release(p)
		p.listener.ConnectionTerminated(code)
	}
}

func (p *process) readOutput() {
	defer close(p.readerDone)
	scanner := bufio.NewScanner(p.ptmx)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		p.handleLine(line)
	}
}

func (p *process) handleLine(line string) {
	ev := parseLine(line)
	switch ev.kind {
	case lineStageStarting:
		p.listener.StageStarting(ev.stage)
	case lineStageFailed:
		p.mu.Lock()
		p.stageFails = append(p.stageFails, fmt.Sprintf("%s failed: %d", ev.stage, ev.code))
		p.mu.Unlock()
		p.listener.StageFailed(ev.stage, ev.code)
	case lineStarted:
		p.mu.Lock()
		p.started = true
		p.mu.Unlock()
		p.startedOnce.Do(func() { close(p.startedCh) })
		p.listener.ConnectionStarted()
	case lineTerminated:
		code := ev.code
		p.mu.Lock()
		p.termCode = &code
		p.mu.Unlock()
	}
	p.listener.LogMessage(line)
	p.log.Debug(line)
}

func (p *process) isStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *process) markStopping() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()
}

func (p *process) startError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stageFails) > 0 {
		return fmt.Errorf("helper exited before connecting: %s", strings.Join(p.stageFails, "; "))
	}
	return fmt.Errorf("helper exited before connecting (code %d)", exitCode(p.exitErr))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

type lineKind int

const (
	lineLog lineKind = iota
	lineStageStarting
	lineStageFailed
	lineStarted
	lineTerminated
)

type lineEvent struct {
	kind  lineKind
	stage string
	code  int
}

var (
	reStageFailed = regexp.MustCompile(`^Starting (.+?)(?:\.\.\.)? failed(?::| with error:?)? (-?\d+)`)
	reStage       = regexp.MustCompile(`^Starting (.+?)\.\.\.`)
	reTerminated  = regexp.MustCompile(`^Connection terminated(?: with error)?:? ?(-?\d+)?`)
)

func parseLine(line string) lineEvent {
	line = strings.TrimSpace(line)
	if m := reStageFailed.FindStringSubmatch(line); m != nil {
		code, _ := strconv.Atoi(m[2])
		return lineEvent{kind: lineStageFailed, stage: m[1], code: code}
	}
	if m := reStage.FindStringSubmatch(line); m != nil {
		return lineEvent{kind: lineStageStarting, stage: m[1]}
	}
	if strings.HasPrefix(line, "Connection started") {
		return lineEvent{kind: lineStarted}
	}
	if m := reTerminated.FindStringSubmatch(line); m != nil {
		code := 0
		if m[1] != "" {
			code, _ = strconv.Atoi(m[1])
		}
		return lineEvent{kind: lineTerminated, code: code}
	}
	return lineEvent{kind: lineLog}
}

// helperArgs builds the command line for one connection. The input key
// travels in the environment so it never shows up in process listings.
func helperArgs(info *streaming.ConnectionInfo, cfg *settings.Settings, audioDevice string) []string {
	s := cfg.Stream
	args := []string{
		"stream",
		"-width", strconv.Itoa(s.Width),
		"-height", strconv.Itoa(s.Height),
		"-fps", strconv.Itoa(s.FPS),
		"-bitrate", strconv.Itoa(s.Bitrate),
		"-packetsize", strconv.Itoa(s.PacketSize),
		"-surround", s.AudioConfiguration.String(),
		"-appversion", info.AppVersion,
		"-codecsupport", strconv.Itoa(info.ServerCodecModeSupport),
	}
	if info.GfeVersion != "" {
		args = append(args, "-gfeversion", info.GfeVersion)
	}
	if info.RTSPSessionURL != "" {
		args = append(args, "-rtsp", info.RTSPSessionURL)
	}
	if s.SupportsHEVC {
		args = append(args, "-codec", "hevc")
	} else {
		args = append(args, "-codec", "h264")
	}
	if s.EnableHDR {
		args = append(args, "-hdr")
	}
	if s.StreamingRemotely {
		args = append(args, "-remote")
	}
	if s.Rotate != 0 {
		args = append(args, "-rotate", strconv.Itoa(s.Rotate))
	}
	if cfg.Host.ViewOnly {
		args = append(args, "-viewonly")
	}
	if cfg.Input.AbsMouse {
		args = append(args, "-absmouse")
	}
	if cfg.Input.SwapABXY {
		args = append(args, "-swapabxy")
	}
	if cfg.Video.Decoder != "" && cfg.Video.Decoder != "auto" {
		args = append(args, "-platform", cfg.Video.Decoder)
	}
	if cfg.Audio.Backend != "" && cfg.Audio.Backend != "auto" {
		args = append(args, "-audiobackend", cfg.Audio.Backend)
	}
	if audioDevice != "" {
		args = append(args, "-audio", audioDevice)
	}
	if cfg.DebugLevel > 0 {
		args = append(args, "-debug")
	}
	return append(args, info.Address)
}

package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu         sync.Mutex
	starting   []string
	failed     []string
	started    int
	terminated []int
	logs       []string
}

func (l *recordingListener) StageStarting(stage string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starting = append(l.starting, stage)
}

func (l *recordingListener) StageFailed(stage string, code int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, stage)
}

func (l *recordingListener) ConnectionStarted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
}

func (l *recordingListener) ConnectionTerminated(code int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.terminated = append(l.terminated, code)
}

func (l *recordingListener) LogMessage(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *recordingListener) terminations() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.terminated...)
}

type failingVideo struct{ cleaned bool }

func (v *failingVideo) Setup(int, int, int) error { return errors.New("no decoder") }
func (v *failingVideo) Cleanup()                  { v.cleaned = true }

func connInfo() *streaming.ConnectionInfo {
	return &streaming.ConnectionInfo{
		Address:                "192.168.1.20",
		AppVersion:             "7.1.431.0",
		ServerCodecModeSupport: 0x101,
		RTSPSessionURL:         "rtsp://192.168.1.20:48010",
		RIKey:                  make([]byte, 16),
		RIKeyID:                7,
	}
}

func TestNew(t *testing.T) {
	conn, err := New("", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Null{}, conn)

	conn, err = New("Helper", "/usr/bin/moonlight", nil)
	require.NoError(t, err)
	assert.IsType(t, &Helper{}, conn)

	_, err = New("gstreamer", "", nil)
	assert.Error(t, err)
}

func TestNullLifecycle(t *testing.T) {
	n := NewNull(nil)
	l := &recordingListener{}
	cfg := settings.Default()
	video, audio := NewPlatform(nil).Renderers(cfg)

	require.NoError(t, n.Start(context.Background(), connInfo(), cfg, l, video, audio, 0, "", 0))
	assert.True(t, n.Connected())
	assert.Equal(t, Stages, l.starting)
	assert.Equal(t, 1, l.started)

	assert.Error(t, n.Start(context.Background(), connInfo(), cfg, l, nil, nil, 0, "", 0))

	require.NoError(t, n.Terminate(-102))
	assert.Equal(t, []int{-102}, l.terminations())

	require.NoError(t, n.Stop())
	assert.False(t, n.Connected())
	assert.ErrorIs(t, n.Terminate(0), ErrNotConnected)
	assert.NoError(t, n.Stop())
	assert.Equal(t, 1, n.Starts())
}

func TestNullStartFailures(t *testing.T) {
	n := NewNull(nil)
	l := &recordingListener{}
	cfg := settings.Default()

	video := &failingVideo{}
	err := n.Start(context.Background(), connInfo(), cfg, l, video, nil, 0, "", 0)
	require.Error(t, err)
	assert.True(t, video.cleaned)
	assert.Equal(t, []string{StageVideo}, l.failed)
	assert.False(t, n.Connected())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = n.Start(ctx, connInfo(), cfg, &recordingListener{}, nil, nil, 0, "", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want lineEvent
	}{
		{"Starting RTSP handshake...done", lineEvent{kind: lineStageStarting, stage: "RTSP handshake"}},
		{"Starting video stream initialization...", lineEvent{kind: lineStageStarting, stage: "video stream initialization"}},
		{"Starting RTSP handshake failed: -1", lineEvent{kind: lineStageFailed, stage: "RTSP handshake", code: -1}},
		{"Starting audio stream initialization... failed: 5", lineEvent{kind: lineStageFailed, stage: "audio stream initialization", code: 5}},
		{"Connection started", lineEvent{kind: lineStarted}},
		{"Connection terminated with error: -102", lineEvent{kind: lineTerminated, code: -102}},
		{"Connection terminated", lineEvent{kind: lineTerminated}},
		{"Received first video packet", lineEvent{kind: lineLog}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLine(tt.line))
		})
	}
}

func TestHelperArgs(t *testing.T) {
	cfg := settings.Default()
	cfg.Stream.Width, cfg.Stream.Height = 1920, 1080
	cfg.Stream.SupportsHEVC = false
	cfg.Host.ViewOnly = true
	cfg.Video.Decoder = "vaapi"
	cfg.DebugLevel = 1

	args := helperArgs(connInfo(), cfg, "hw:1")

	assert.Equal(t, "stream", args[0])
	assert.Equal(t, "192.168.1.20", args[len(args)-1])
	assert.Subset(t, args, []string{"-width", "1920", "-height", "1080", "-codec", "h264",
		"-viewonly", "-absmouse", "-platform", "vaapi", "-audio", "hw:1", "-debug",
		"-rtsp", "rtsp://192.168.1.20:48010"})
	assert.NotContains(t, args, "-hdr")
	for _, a := range args {
		assert.NotContains(t, a, "00000000000000000000000000000000")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestHelperStartStop(t *testing.T) {
	path := writeScript(t, `echo "Starting RTSP handshake...done"
echo "Connection started"
trap 'exit 0' INT TERM
while true; do sleep 0.05; done
`)
	h := NewHelper(path, nil).WithStopTimeout(2 * time.Second)
	l := &recordingListener{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Start(ctx, connInfo(), settings.Default(), l, nil, nil, 0, "", 0))
	assert.True(t, h.Running())

	require.NoError(t, h.Stop())
	assert.False(t, h.Running())

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Equal(t, []string{StageRTSP}, l.starting)
	assert.Equal(t, 1, l.started)
	assert.Empty(t, l.terminated)
}

func TestHelperExitBeforeConnect(t *testing.T) {
	path := writeScript(t, `echo "Starting RTSP handshake failed: -1"
exit 3
`)
	h := NewHelper(path, nil)
	l := &recordingListener{}

	err := h.Start(context.Background(), connInfo(), settings.Default(), l, nil, nil, 0, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RTSP handshake failed: -1")
	assert.False(t, h.Running())
	assert.Empty(t, l.terminations())
}

func TestHelperReportsTermination(t *testing.T) {
	path := writeScript(t, `echo "Connection started"
sleep 0.2
echo "Connection terminated with error: -102"
exit 1
`)
	h := NewHelper(path, nil)
	l := &recordingListener{}

	require.NoError(t, h.Start(context.Background(), connInfo(), settings.Default(), l, nil, nil, 0, "", 0))
	assert.Eventually(t, func() bool {
		return len(l.terminations()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{-102}, l.terminations())
	assert.False(t, h.Running())
	assert.NoError(t, h.Stop())
}

func TestHelperStartCancelled(t *testing.T) {
	path := writeScript(t, `while true; do sleep 0.05; done
`)
	h := NewHelper(path, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := h.Start(ctx, connInfo(), settings.Default(), &recordingListener{}, nil, nil, 0, "", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.Running())
}

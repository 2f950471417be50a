package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatic(t *testing.T) {
	assert.Equal(t, 2, Static(2).GamepadCount())
	assert.Equal(t, 0, Static(-1).GamepadCount())
}

func TestJoydev(t *testing.T) {
	dir := t.TempDir()
	j := NewJoydev(filepath.Join(dir, "js*"), nil)
	assert.Equal(t, 0, j.GamepadCount())

	for _, name := range []string{"js1", "js0", "event3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	assert.Equal(t, 2, j.GamepadCount())
	devices, err := j.Devices()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "js0"), filepath.Join(dir, "js1")}, devices)
}

func TestJoydevBadPattern(t *testing.T) {
	j := NewJoydev("/dev/input/js[", nil)
	assert.Equal(t, 0, j.GamepadCount())
}

func TestJoydevLogsOnlyChanges(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dir := t.TempDir()
	j := NewJoydev(filepath.Join(dir, "js*"), zap.New(core))

	assert.Equal(t, 0, j.GamepadCount())
	assert.Zero(t, logs.Len())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "js0"), nil, 0o644))
	assert.Equal(t, 1, j.GamepadCount())
	assert.Equal(t, 1, j.GamepadCount())
	assert.Equal(t, 1, logs.FilterMessage("Controllers detected").Len())

	require.NoError(t, os.Remove(filepath.Join(dir, "js0")))
	assert.Equal(t, 0, j.GamepadCount())
	assert.Equal(t, 2, logs.FilterMessage("Controllers detected").Len())
}

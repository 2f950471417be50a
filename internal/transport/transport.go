package transport

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"go.uber.org/zap"
)

// Driver names accepted by New
const (
	DriverNull   = "null"
	DriverHelper = "helper"
)

// Connection stages reported through streaming.Listener
const (
	StagePlatform = "platform initialization"
	StageRTSP     = "RTSP handshake"
	StageControl  = "control stream initialization"
	StageVideo    = "video stream initialization"
	StageAudio    = "audio stream initialization"
	StageInput    = "input stream initialization"
)

// Stages lists the connection stages in the order they start
var Stages = []string{StagePlatform, StageRTSP, StageControl, StageVideo, StageAudio, StageInput}

// New returns the driver called name. helperPath is only used by the
// helper driver.
func New(name, helperPath string, logger *zap.Logger) (streaming.Connection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DriverNull:
		return NewNull(logger), nil
	case DriverHelper:
		return NewHelper(helperPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport driver %q", name)
	}
}

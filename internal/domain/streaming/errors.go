package streaming

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
)

var (
	ErrSessionAlreadyActive = errors.New("a streaming session is already active")
	ErrManagerClosed        = errors.New("streaming manager is closed")
	ErrUnknownApp           = errors.New("application is not known to the host")
	ErrIllegalTransition    = errors.New("illegal phase transition")
)

// Kind classifies session failures so callers can react without parsing
// messages. A Kind is itself an error, which lets callers write
// errors.Is(err, streaming.KindConnectionFailure).
type Kind int

const (
	KindHostUnreachable Kind = iota + 1
	KindUnsupportedResolutionOrFrameRate
	KindUnsupportedFrameSyncAtResolution
	KindHostGenericError
	KindHostUnknownErrorCode
	KindConnectionFailure
	KindStopFailure
)

var kindNames = map[Kind]string{
	KindHostUnreachable:                  "host_unreachable",
	KindUnsupportedResolutionOrFrameRate: "unsupported_resolution_or_frame_rate",
	KindUnsupportedFrameSyncAtResolution: "unsupported_frame_sync_at_resolution",
	KindHostGenericError:                 "host_generic_error",
	KindHostUnknownErrorCode:             "host_unknown_error_code",
	KindConnectionFailure:                "connection_failure",
	KindStopFailure:                      "stop_failure",
}

// String returns the snake_case name used in metrics and events
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error implements error
func (k Kind) Error() string {
	return k.String()
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a classified session failure
type Error struct {
	Kind    Kind
	Code    int    // raw host code, when the host reported one
	Message string // human-readable detail
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a Kind target
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of err, or 0 when err is not a classified failure
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Host result codes, as reported by GameStream host implementations
const (
	CodeOK                         = 0
	CodeFailed                     = -1
	CodeOutOfMemory                = -2
	CodeInvalid                    = -3
	CodeWrongState                 = -4
	CodeIOError                    = -5
	CodeNotSupported4K             = -6
	CodeUnsupportedVersion         = -7
	CodeNotSupportedMode           = -8
	CodeError                      = -9
	CodeNotSupportedSOPSResolution = -10
)

// HostError is returned by Host implementations when the host refuses or
// fails a control request.
type HostError struct {
	Code    int
	Message string
}

func (e *HostError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("host error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("host error %d", e.Code)
}

// classifyLaunch maps a StartApp failure onto the failure taxonomy
func classifyLaunch(err error, stream settings.StreamConfig) *Error {
	var herr *HostError
	if !errors.As(err, &herr) {
		return &Error{Kind: KindHostUnknownErrorCode, Code: CodeFailed, Message: err.Error(), Err: err}
	}

	switch herr.Code {
	case CodeNotSupported4K:
		return &Error{
			Kind:    KindUnsupportedResolutionOrFrameRate,
			Code:    herr.Code,
			Message: "host does not support 4K streaming",
			Err:     err,
		}
	case CodeNotSupportedMode:
		return &Error{
			Kind: KindUnsupportedResolutionOrFrameRate,
			Code: herr.Code,
			Message: fmt.Sprintf("host does not support %dx%d (%d fps)",
				stream.Width, stream.Height, stream.FPS),
			Err: err,
		}
	case CodeNotSupportedSOPSResolution:
		return &Error{
			Kind: KindUnsupportedFrameSyncAtResolution,
			Code: herr.Code,
			Message: fmt.Sprintf("frame-sync optimization is not supported at %dx%d",
				stream.Width, stream.Height),
			Err: err,
		}
	case CodeError:
		return &Error{Kind: KindHostGenericError, Code: herr.Code, Message: herr.Message, Err: err}
	default:
		msg := herr.Message
		if msg == "" {
			msg = fmt.Sprintf("error code %d starting app", herr.Code)
		}
		return &Error{Kind: KindHostUnknownErrorCode, Code: herr.Code, Message: msg, Err: err}
	}
}

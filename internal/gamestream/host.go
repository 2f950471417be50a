package gamestream

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/settings"
	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"go.uber.org/zap"
)

// Codec support bits in ServerCodecModeSupport
const (
	codecH264     = 0x0001
	codecHEVC     = 0x0100
	codecHEVCMain = 0x0200
)

// DisplayMode is a resolution and refresh rate the host can render
type DisplayMode struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	RefreshRate int `json:"refresh_rate"`
}

// ServerInfo describes a host as reported by /serverinfo
type ServerInfo struct {
	Hostname               string        `json:"hostname"`
	UniqueID               string        `json:"unique_id"`
	AppVersion             string        `json:"app_version"`
	GfeVersion             string        `json:"gfe_version,omitempty"`
	State                  string        `json:"state"`
	CurrentGame            int           `json:"current_game"`
	ServerCodecModeSupport int           `json:"server_codec_mode_support"`
	Paired                 bool          `json:"paired"`
	MAC                    string        `json:"mac,omitempty"`
	LocalIP                string        `json:"local_ip,omitempty"`
	DisplayModes           []DisplayMode `json:"display_modes,omitempty"`
}

// Busy reports whether the host is streaming to some client
func (s *ServerInfo) Busy() bool {
	return strings.HasSuffix(s.State, "_SERVER_BUSY")
}

// Supports4K reports whether the host can encode a 4K stream
func (s *ServerInfo) Supports4K() bool {
	return s.ServerCodecModeSupport&(codecHEVC|codecHEVCMain) != 0
}

// Host is a GameStream host reachable through a Client
type Host struct {
	client  *Client
	address string
	logger  *zap.Logger

	mu   sync.RWMutex
	info *ServerInfo
}

// NewHost binds address to client
func NewHost(client *Client, address string) *Host {
	return &Host{
		client:  client,
		address: address,
		logger:  client.logger.With(zap.String("host", address)),
	}
}

// Address implements streaming.Host
func (h *Host) Address() string {
	return h.address
}

// Info returns the last server info seen, or nil
func (h *Host) Info() *ServerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info
}

// Refresh re-reads /serverinfo
func (h *Host) Refresh(ctx context.Context) (*ServerInfo, error) {
	info, err := h.client.ServerInfo(ctx, h.address)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.info = info
	h.mu.Unlock()
	return info, nil
}

// Apps implements streaming.AppCatalog
func (h *Host) Apps(ctx context.Context) ([]streaming.App, error) {
	return h.client.AppList(ctx, h.address)
}

// StartApp implements streaming.Host. It launches appID, or resumes it when
// the host is already running it for us.
func (h *Host) StartApp(ctx context.Context, stream settings.StreamConfig, appID int, opts settings.HostOptions, gamepadMask int) (*streaming.ConnectionInfo, error) {
	info, err := h.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	if err := checkMode(info, stream, opts.SOPS, opts.Unsupported); err != nil {
		return nil, err
	}

	if info.CurrentGame != 0 && info.CurrentGame != appID {
		return nil, &streaming.HostError{
			Code:    streaming.CodeWrongState,
			Message: fmt.Sprintf("host is running app %d", info.CurrentGame),
		}
	}

	key, keyID, err := newRemoteInputKey()
	if err != nil {
		return nil, err
	}

	resume := info.CurrentGame == appID
	params := map[string]string{
		"rikey":             hex.EncodeToString(key),
		"rikeyid":           strconv.Itoa(keyID),
		"surroundAudioInfo": strconv.Itoa(stream.AudioConfiguration.SurroundInfo()),
	}
	method, reply := "resume", "resume"
	if !resume {
		method, reply = "launch", "gamesession"
		params["appid"] = strconv.Itoa(appID)
		params["mode"] = fmt.Sprintf("%dx%dx%d", stream.Width, stream.Height, stream.FPS)
		params["additionalStates"] = "1"
		params["sops"] = boolParam(opts.SOPS)
		params["localAudioPlayMode"] = boolParam(opts.LocalAudio)
		params["remoteControllersBitmap"] = strconv.Itoa(gamepadMask)
		params["gcmap"] = strconv.Itoa(gamepadMask)
	}

	root, err := h.client.call(ctx, h.address, method, params)
	if err != nil {
		return nil, err
	}
	if v, ok := search(root, reply); !ok || v == "0" {
		return nil, &streaming.HostError{Code: streaming.CodeFailed, Message: fmt.Sprintf("host did not %s app %d", method, appID)}
	}

	h.logger.Info("Host started app",
		zap.Int("app_id", appID),
		zap.Bool("resumed", resume),
		zap.String("mode", fmt.Sprintf("%dx%d@%d", stream.Width, stream.Height, stream.FPS)))

	return &streaming.ConnectionInfo{
		Address:                h.address,
		AppVersion:             info.AppVersion,
		GfeVersion:             info.GfeVersion,
		ServerCodecModeSupport: info.ServerCodecModeSupport,
		RTSPSessionURL:         searchString(root, "sessionUrl0"),
		RIKey:                  key,
		RIKeyID:                keyID,
		Resumed:                resume,
	}, nil
}

// QuitApp implements streaming.Host
func (h *Host) QuitApp(ctx context.Context) error {
	root, err := h.client.call(ctx, h.address, "cancel", nil)
	if err != nil {
		return err
	}
	if v, ok := search(root, "cancel"); !ok || v == "0" {
		return &streaming.HostError{Code: streaming.CodeFailed, Message: "host did not quit the app"}
	}
	return nil
}

// checkMode rejects streams the host cannot serve before asking it to
func checkMode(info *ServerInfo, stream settings.StreamConfig, sops, unsupported bool) error {
	if stream.Height >= 2160 && (!stream.SupportsHEVC || !info.Supports4K()) {
		return &streaming.HostError{Code: streaming.CodeNotSupported4K}
	}

	if len(info.DisplayModes) > 0 && !unsupported {
		exact := false
		for _, m := range info.DisplayModes {
			if m.Width == stream.Width && m.Height == stream.Height && m.RefreshRate == stream.FPS {
				exact = true
				break
			}
		}
		if !exact {
			return &streaming.HostError{Code: streaming.CodeNotSupportedMode}
		}
	}

	if sops && !sopsResolution(stream.Width, stream.Height) {
		return &streaming.HostError{Code: streaming.CodeNotSupportedSOPSResolution}
	}
	return nil
}

// sopsResolution reports whether the host can optimise game settings for
// the resolution
func sopsResolution(w, h int) bool {
	switch {
	case w == 1280 && h == 720, w == 1920 && h == 1080, w == 3840 && h == 2160:
		return true
	}
	return false
}

// newRemoteInputKey returns the AES key and key id for encrypted input
func newRemoteInputKey() ([]byte, int, error) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return nil, 0, fmt.Errorf("generate input key: %w", err)
	}
	var id [4]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, 0, fmt.Errorf("generate input key id: %w", err)
	}
	return key, int(binary.BigEndian.Uint32(id[:]) & 0x7fffffff), nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

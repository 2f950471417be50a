package settings

import (
	"errors"
	"fmt"
)

// AudioConfiguration describes the speaker layout requested from the host
type AudioConfiguration int

const (
	AudioStereo AudioConfiguration = iota
	AudioSurround51
	AudioSurround71
)

type audioLayout struct {
	name     string
	channels int
	mask     int
}

var audioLayouts = map[AudioConfiguration]audioLayout{
	AudioStereo:     {name: "stereo", channels: 2, mask: 0x3},
	AudioSurround51: {name: "5.1ch", channels: 6, mask: 0x3F},
	AudioSurround71: {name: "7.1ch", channels: 8, mask: 0x63F},
}

// String returns the settings-file name of the layout
func (a AudioConfiguration) String() string {
	if l, ok := audioLayouts[a]; ok {
		return l.name
	}
	return "unknown"
}

// Valid reports whether a is a known layout
func (a AudioConfiguration) Valid() bool {
	_, ok := audioLayouts[a]
	return ok
}

// ChannelCount returns the number of audio channels
func (a AudioConfiguration) ChannelCount() int {
	return audioLayouts[a].channels
}

// ChannelMask returns the speaker mask of the layout
func (a AudioConfiguration) ChannelMask() int {
	return audioLayouts[a].mask
}

// SurroundInfo packs the layout the way GameStream hosts expect it in a
// launch request: mask in the high 16 bits, channel count in the low ones.
func (a AudioConfiguration) SurroundInfo() int {
	return a.ChannelMask()<<16 | a.ChannelCount()
}

// ParseAudioConfiguration maps a settings-file name to a layout.
// Unknown names fall back to stereo.
func ParseAudioConfiguration(name string) AudioConfiguration {
	for cfg, l := range audioLayouts {
		if l.name == name {
			return cfg
		}
	}
	return AudioStereo
}

// MarshalText implements encoding.TextMarshaler
func (a AudioConfiguration) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid audio configuration %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *AudioConfiguration) UnmarshalText(text []byte) error {
	*a = ParseAudioConfiguration(string(text))
	return nil
}

// StreamConfig holds the negotiated stream parameters
type StreamConfig struct {
	Width              int                `toml:"width" yaml:"width" json:"width"`
	Height             int                `toml:"height" yaml:"height" json:"height"`
	FPS                int                `toml:"net_fps" yaml:"net_fps" json:"fps"`
	Bitrate            int                `toml:"bitrate" yaml:"bitrate" json:"bitrate"` // kbps
	PacketSize         int                `toml:"packetsize" yaml:"packetsize" json:"packet_size"`
	StreamingRemotely  bool               `toml:"remote" yaml:"remote" json:"streaming_remotely"`
	AudioConfiguration AudioConfiguration `toml:"surround" yaml:"surround" json:"audio_configuration"`
	SupportsHEVC       bool               `toml:"hevc" yaml:"hevc" json:"supports_hevc"`
	EnableHDR          bool               `toml:"hdr" yaml:"hdr" json:"enable_hdr"`
	Rotate             int                `toml:"rotate" yaml:"rotate" json:"rotate"`
}

// HostOptions control what is asked of the host at launch time
type HostOptions struct {
	SOPS        bool `toml:"sops" yaml:"sops" json:"sops"`
	LocalAudio  bool `toml:"localaudio" yaml:"localaudio" json:"local_audio"`
	ViewOnly    bool `toml:"viewonly" yaml:"viewonly" json:"view_only"`
	Unsupported bool `toml:"unsupported" yaml:"unsupported" json:"unsupported"`
}

// InputOptions control local input handling
type InputOptions struct {
	AbsMouse bool `toml:"absmouse" yaml:"absmouse" json:"abs_mouse"`
	SwapABXY bool `toml:"swap_abxy" yaml:"swap_abxy" json:"swap_abxy"`
}

// VideoOptions select the local decoder
type VideoOptions struct {
	Decoder string `toml:"decoder" yaml:"decoder" json:"decoder"`
}

// AudioOptions select the local audio backend and device
type AudioOptions struct {
	Backend string `toml:"backend" yaml:"backend" json:"backend"`
	Device  string `toml:"device" yaml:"device" json:"device,omitempty"`
}

// Settings is the complete streaming configuration object
type Settings struct {
	DebugLevel int          `toml:"debug_level" yaml:"debug_level" json:"debug_level"`
	Stream     StreamConfig `toml:"streaming" yaml:"streaming" json:"streaming"`
	Host       HostOptions  `toml:"host" yaml:"host" json:"host"`
	Input      InputOptions `toml:"input" yaml:"input" json:"input"`
	Video      VideoOptions `toml:"video" yaml:"video" json:"video"`
	Audio      AudioOptions `toml:"audio" yaml:"audio" json:"audio"`
}

// Default returns the settings used when no file is present
func Default() *Settings {
	return &Settings{
		DebugLevel: 0,
		Stream: StreamConfig{
			Width:              1280,
			Height:             720,
			FPS:                60,
			Bitrate:            OptimalBitrate(1280, 720, 60, 0),
			PacketSize:         1024,
			AudioConfiguration: AudioStereo,
			SupportsHEVC:       true,
		},
		Host: HostOptions{
			SOPS:        true,
			Unsupported: true,
		},
		Input: InputOptions{
			AbsMouse: true,
		},
		Video: VideoOptions{Decoder: "auto"},
		Audio: AudioOptions{Backend: "auto"},
	}
}

// Clone returns an independent copy of s
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// Validate checks the stream parameters a host needs to accept a launch
func (s *Settings) Validate() error {
	var errs []error
	if s.Stream.Width <= 0 || s.Stream.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid resolution %dx%d", s.Stream.Width, s.Stream.Height))
	}
	if s.Stream.FPS <= 0 {
		errs = append(errs, fmt.Errorf("invalid frame rate %d", s.Stream.FPS))
	}
	if s.Stream.Bitrate <= 0 {
		errs = append(errs, fmt.Errorf("invalid bitrate %d", s.Stream.Bitrate))
	}
	if s.Stream.PacketSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid packet size %d", s.Stream.PacketSize))
	}
	if !s.Stream.AudioConfiguration.Valid() {
		errs = append(errs, fmt.Errorf("invalid audio configuration %d", int(s.Stream.AudioConfiguration)))
	}
	return errors.Join(errs...)
}

// Common resolutions
const (
	Res720p  = 1280 * 720
	Res1080p = 1920 * 1080
	Res1440p = 2560 * 1440
	Res4K    = 3840 * 2160
)

// OptimalBitrate suggests a bitrate in kbps for the given mode. Known
// resolutions use a fixed 30 fps baseline; anything else gets one kbps per
// 150 pixels. The baseline scales with fps and is capped by suggestedMax
// when the decoder reports one (0 means no cap).
func OptimalBitrate(w, h, fps, suggestedMax int) int {
	if fps <= 0 {
		fps = 60
	}
	kbps := w * h / 150
	switch w * h {
	case Res720p:
		kbps = 5000
	case Res1080p:
		kbps = 10000
	case Res1440p:
		kbps = 20000
	case Res4K:
		kbps = 25000
	}
	calculated := kbps * fps / 30
	if suggestedMax <= 0 || calculated < suggestedMax {
		return calculated
	}
	return suggestedMax
}

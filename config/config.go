// Package config holds user settings persisted in ~/.config/go-mtcgen.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Transport sources
const (
	SourceInternal = "internal"
	SourceOSC      = "osc"
)

// SerialConfig is an optional DIN MIDI output through a serial adapter
type SerialConfig struct {
	Port string `json:"port,omitempty"`
	Baud int    `json:"baud,omitempty"`
}

// InputConfig controls which MIDI inputs act as triggers
type InputConfig struct {
	AutoConnect       bool     `json:"autoConnect"`
	Exclude           []string `json:"exclude,omitempty"`
	LaunchpadBaseNote int      `json:"launchpadBaseNote"`
}

// TransportConfig selects where the playhead comes from
type TransportConfig struct {
	Source  string `json:"source"`
	OSCAddr string `json:"oscAddr,omitempty"`
}

// AudioConfig sets the simulated host cycle: SampleRate/BlockSize cycles per second
type AudioConfig struct {
	SampleRate int `json:"sampleRate"`
	BlockSize  int `json:"blockSize"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	RefreshHz int    `json:"refreshHz"`
	Palette   string `json:"palette,omitempty"` // path to a GIMP .gpl file
}

// Config is the main configuration structure
type Config struct {
	Outputs     []string        `json:"outputs,omitempty"`
	Serial      SerialConfig    `json:"serial,omitempty"`
	Inputs      InputConfig     `json:"inputs"`
	FrameRate   float64         `json:"frameRate"`
	MTCFormat   int             `json:"mtcFormat"`
	Transport   TransportConfig `json:"transport"`
	Audio       AudioConfig     `json:"audio"`
	UI          UIConfig        `json:"ui"`
	LastProject string          `json:"lastProject,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Inputs: InputConfig{
			AutoConnect:       true,
			Exclude:           []string{"Midi Through", "LPX DAW"},
			LaunchpadBaseNote: 36,
		},
		FrameRate: 30,
		Transport: TransportConfig{
			Source:  SourceInternal,
			OSCAddr: "127.0.0.1:9001",
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			BlockSize:  512,
		},
		UI: UIConfig{
			RefreshHz: 10,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}
	return filepath.Join(home, ".config", "go-mtcgen"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file on top of the defaults. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0644), "write %s", path)
}

// Normalize replaces out of range values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.FrameRate <= 0 {
		c.FrameRate = def.FrameRate
	}
	if c.MTCFormat != 0 && c.MTCFormat != 1 {
		c.MTCFormat = 0
	}
	if c.Transport.Source != SourceOSC {
		c.Transport.Source = SourceInternal
	}
	if c.Transport.OSCAddr == "" {
		c.Transport.OSCAddr = def.Transport.OSCAddr
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.BlockSize <= 0 {
		c.Audio.BlockSize = def.Audio.BlockSize
	}
	if c.UI.RefreshHz <= 0 {
		c.UI.RefreshHz = def.UI.RefreshHz
	}
	if c.Inputs.LaunchpadBaseNote < 0 || c.Inputs.LaunchpadBaseNote > 127-63 {
		c.Inputs.LaunchpadBaseNote = def.Inputs.LaunchpadBaseNote
	}
}

// Environment overrides, read after an optional .env in the working directory.
const (
	EnvOutputs   = "MTCGEN_OUTPUTS" // comma separated port names
	EnvSerial    = "MTCGEN_SERIAL"
	EnvFrameRate = "MTCGEN_FPS"
	EnvFormat    = "MTCGEN_FORMAT" // "full" or "quarter"
	EnvOSC       = "MTCGEN_OSC"    // listen address, switches the source to OSC
	EnvProject   = "MTCGEN_PROJECT"
)

// ApplyEnv overlays MTCGEN_* variables. Unparsable values are reported and
// the rest are still applied.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return errors.Wrap(err, "load .env")
	}

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if v, ok := os.LookupEnv(EnvOutputs); ok {
		c.Outputs = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvSerial); ok {
		c.Serial.Port = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvFrameRate); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f <= 0 {
			fail(errors.Errorf("%s: bad frame rate %q", EnvFrameRate, v))
		} else {
			c.FrameRate = f
		}
	}
	if v, ok := os.LookupEnv(EnvFormat); ok {
		id, err := ParseFormat(v)
		if err != nil {
			fail(errors.Wrap(err, EnvFormat))
		} else {
			c.MTCFormat = id
		}
	}
	if v, ok := os.LookupEnv(EnvOSC); ok && strings.TrimSpace(v) != "" {
		c.Transport.Source = SourceOSC
		c.Transport.OSCAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvProject); ok {
		c.LastProject = strings.TrimSpace(v)
	}
	return firstErr
}

// ParseFormat accepts "full", "quarter" or the numeric id.
func ParseFormat(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "fullframe", "0":
		return 0, nil
	case "quarter", "quarterframe", "qf", "1":
		return 1, nil
	}
	return 0, errors.Errorf("unknown MTC format %q", s)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

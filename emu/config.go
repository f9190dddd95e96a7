package emu

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"chimp/emu/log"
	"chimp/hw"
	"chimp/hw/audio"
	"chimp/hw/input"
)

// Instruction rate bounds, in instructions per second.
const (
	MinSpeed     = 10
	MaxSpeed     = 1000
	DefaultSpeed = 600

	// SpeedStep is the rate change applied by SpeedUp and SpeedDown.
	SpeedStep = 50
)

type Config struct {
	Emulation EmulationConfig `toml:"emulation"`
	Audio     AudioConfig     `toml:"audio"`
	Video     VideoConfig     `toml:"video"`
	Input     input.Config    `toml:"input"`

	TraceOut io.Writer `toml:"-"`
	WAVPath  string    `toml:"-"`
}

type EmulationConfig struct {
	InstructionsPerSecond int       `toml:"instructions_per_second"`
	Quirks                hw.Quirks `toml:"quirks"`
	StrictStack           bool      `toml:"strict_stack"`
}

type AudioConfig struct {
	DisableAudio bool `toml:"disable_audio"`
	BandLimited  bool `toml:"band_limited"`
	Stereo       bool `toml:"stereo"`
}

// Spec returns the audio stream to generate.
func (acfg AudioConfig) Spec() audio.Spec {
	spec := audio.DefaultSpec
	spec.BandLimited = acfg.BandLimited
	if acfg.Stereo {
		spec.Channels = 2
	}
	return spec
}

type VideoConfig struct {
	Scale        int   `toml:"scale"`
	Monitor      int32 `toml:"monitor"`
	DisableVSync bool  `toml:"disable_vsync"`
}

func DefaultConfig() Config {
	return Config{
		Emulation: EmulationConfig{
			InstructionsPerSecond: DefaultSpeed,
		},
		Video: VideoConfig{
			Scale: 10,
		},
		Input: input.DefaultConfig(),
	}
}

// Check fixes out of range values.
func (cfg *Config) Check() {
	ips := cfg.Emulation.InstructionsPerSecond
	if ips < MinSpeed || ips > MaxSpeed {
		clamped := min(max(ips, MinSpeed), MaxSpeed)
		log.ModEmu.WithField("ips", ips).Warnf("Invalid instruction rate, using %d", clamped)
		cfg.Emulation.InstructionsPerSecond = clamped
	}
	if cfg.Video.Scale < 1 {
		log.ModVideo.WithFields(log.Fields{"scale": cfg.Video.Scale}).Warnf("Invalid scale factor, using 1")
		cfg.Video.Scale = 1
	}
}

const DefaultFileMode = os.FileMode(0755)

var ConfigDir = sync.OnceValue(func() string {
	cfgdir, err := os.UserConfigDir()
	if err != nil {
		log.ModEmu.Fatalf("failed to get user config directory: %v", err)
	}

	dir := filepath.Join(cfgdir, "chimp")
	if err := os.MkdirAll(dir, DefaultFileMode); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// LoadConfig reads the configuration file at path. Settings missing from the
// file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Check()
	return cfg, nil
}

// LoadConfigOrDefault loads the configuration from the chimp config
// directory, or provides a default one.
func LoadConfigOrDefault() Config {
	path := filepath.Join(ConfigDir(), cfgFilename)
	cfg, err := LoadConfig(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.ModEmu.WarnZ("Using default config").Error("err", err).End()
		}
		return DefaultConfig()
	}
	return cfg
}

// SaveConfig writes cfg at path.
func SaveConfig(cfg Config, path string) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// SaveDefaultConfig writes cfg into the chimp config directory.
func SaveDefaultConfig(cfg Config) error {
	return SaveConfig(cfg, filepath.Join(ConfigDir(), cfgFilename))
}

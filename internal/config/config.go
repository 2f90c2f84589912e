package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nboxsim/internal/output"
)

const (
	DefaultEvents           = 1000
	DefaultSeed             = 12345
	DefaultOutputDir        = "output"
	DefaultGunEnergy        = 1.0 // MeV
	DefaultProgressInterval = 1000
	DefaultLogLevel         = "info"
)

var ErrInvalid = errors.New("config: invalid")

// Config holds run settings. Detector types, geometry and source spectra are
// loaded into the detector store from their own files.
type Config struct {
	Events           int     `yaml:"events"`
	Threads          int     `yaml:"threads"`
	Seed             int64   `yaml:"seed"`
	OutputDir        string  `yaml:"output_dir"`
	Format           string  `yaml:"format"`
	Flux             bool    `yaml:"flux"`
	MonoEnergy       float64 `yaml:"mono_energy_mev,omitempty"`
	GunEnergy        float64 `yaml:"gun_energy_mev"`
	LogLevel         string  `yaml:"log_level"`
	ProgressInterval int     `yaml:"progress_interval"`
	Files            Files   `yaml:"files"`
}

type Files struct {
	Detectors string `yaml:"detectors,omitempty"`
	Geometry  string `yaml:"geometry,omitempty"`
	Source    string `yaml:"source,omitempty"`
}

// Merge returns f with the nonempty paths of o applied.
func (f Files) Merge(o Files) Files {
	if o.Detectors != "" {
		f.Detectors = o.Detectors
	}
	if o.Geometry != "" {
		f.Geometry = o.Geometry
	}
	if o.Source != "" {
		f.Source = o.Source
	}
	return f
}

func (f Files) relativeTo(dir string) Files {
	for _, p := range []*string{&f.Detectors, &f.Geometry, &f.Source} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return f
}

func DefaultConfig() *Config {
	return &Config{
		Events:           DefaultEvents,
		Threads:          runtime.NumCPU(),
		Seed:             DefaultSeed,
		OutputDir:        DefaultOutputDir,
		Format:           string(output.FormatROOT),
		GunEnergy:        DefaultGunEnergy,
		LogLevel:         DefaultLogLevel,
		ProgressInterval: DefaultProgressInterval,
	}
}

func Load(path string) (*Config, error) {
	return LoadWith(path, DefaultConfig())
}

// LoadWith reads path over a copy of base; keys absent from the file keep
// base's values. Relative paths under files: are taken relative to the
// directory holding path.
func LoadWith(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	cfg.Files = Files{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Files = base.Files.Merge(cfg.Files.relativeTo(filepath.Dir(path)))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Events < 0 {
		return fmt.Errorf("%w: events must be >= 0, got %d", ErrInvalid, c.Events)
	}
	if c.Threads < 0 {
		return fmt.Errorf("%w: threads must be >= 0, got %d", ErrInvalid, c.Threads)
	}
	if c.MonoEnergy < 0 {
		return fmt.Errorf("%w: mono_energy_mev must be > 0", ErrInvalid)
	}
	if c.GunEnergy <= 0 {
		return fmt.Errorf("%w: gun_energy_mev must be > 0", ErrInvalid)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is empty", ErrInvalid)
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Merge returns a copy of c with the nonzero fields of o applied.
func (c *Config) Merge(o *Config) *Config {
	out := *c
	if o == nil {
		return &out
	}
	if o.Events > 0 {
		out.Events = o.Events
	}
	if o.Threads > 0 {
		out.Threads = o.Threads
	}
	if o.Seed != 0 {
		out.Seed = o.Seed
	}
	if o.OutputDir != "" {
		out.OutputDir = o.OutputDir
	}
	if o.Format != "" {
		out.Format = o.Format
	}
	if o.Flux {
		out.Flux = true
	}
	if o.MonoEnergy > 0 {
		out.MonoEnergy = o.MonoEnergy
	}
	if o.GunEnergy > 0 {
		out.GunEnergy = o.GunEnergy
	}
	if o.LogLevel != "" {
		out.LogLevel = o.LogLevel
	}
	if o.ProgressInterval > 0 {
		out.ProgressInterval = o.ProgressInterval
	}
	out.Files = out.Files.Merge(o.Files)
	return &out
}

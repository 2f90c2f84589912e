package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Events != DefaultEvents {
		t.Errorf("expected %d events, got %d", DefaultEvents, cfg.Events)
	}
	if cfg.Format != "root" {
		t.Errorf("expected format root, got %s", cfg.Format)
	}
	if cfg.Threads <= 0 {
		t.Error("threads should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("flux")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if !cfg.Flux {
		t.Error("expected flux enabled")
	}
	if cfg.GunEnergy != DefaultGunEnergy {
		t.Errorf("expected default gun energy, got %v", cfg.GunEnergy)
	}
	if cfg.OutputDir != DefaultOutputDir {
		t.Errorf("expected default output dir, got %s", cfg.OutputDir)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
	for _, name := range presets {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	cfg := DefaultConfig()
	cfg.Events = 500
	cfg.Format = "arrow"
	cfg.Files.Geometry = "geo.json"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Events != 500 || loaded.Format != "arrow" || loaded.Files.Geometry != filepath.Join(dir, "geo.json") {
		t.Errorf("unexpected config %+v", loaded)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("events: 42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Events != 42 {
		t.Errorf("expected 42 events, got %d", cfg.Events)
	}
	if cfg.Seed != DefaultSeed {
		t.Errorf("expected default seed, got %d", cfg.Seed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative events", func(c *Config) { c.Events = -1 }},
		{"negative threads", func(c *Config) { c.Threads = -2 }},
		{"bad format", func(c *Config) { c.Format = "hdf5" }},
		{"zero gun energy", func(c *Config) { c.GunEnergy = 0 }},
		{"negative mono energy", func(c *Config) { c.MonoEnergy = -1 }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	out := base.Merge(&Config{Events: 7, Flux: true})
	if out.Events != 7 || !out.Flux {
		t.Errorf("unexpected merge result %+v", out)
	}
	if base.Events != DefaultEvents {
		t.Error("merge modified the receiver")
	}
}

func TestLoadWith_PresetBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("seed: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWith(path, GetPreset("flux"))
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if !cfg.Flux || cfg.Seed != 9 {
		t.Errorf("expected flux preset with seed 9, got %+v", cfg)
	}
}

func TestLoad_FilesRelativeToSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "configs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	abs := filepath.Join(t.TempDir(), "watt.yaml")
	path := filepath.Join(dir, "run.yaml")
	data := "files:\n  detectors: detectors.json\n  geometry: ../shared/geometry.json\n  source: " + abs + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	base := DefaultConfig()
	base.Files.Source = "ignored.yaml"
	cfg, err := LoadWith(path, base)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	tests := []struct {
		name, got, want string
	}{
		{"detectors", cfg.Files.Detectors, filepath.Join(dir, "detectors.json")},
		{"geometry", cfg.Files.Geometry, filepath.Join(filepath.Dir(dir), "shared", "geometry.json")},
		{"source", cfg.Files.Source, abs},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, tt.got)
		}
	}
}

func TestLoad_FilesKeepBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("events: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	base := DefaultConfig()
	base.Files.Geometry = "geo.json"
	cfg, err := LoadWith(path, base)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if cfg.Files.Geometry != "geo.json" {
		t.Errorf("expected base geometry path kept, got %q", cfg.Files.Geometry)
	}
}

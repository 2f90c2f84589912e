package config

import "sort"

var Presets = map[string]*Config{
	"quick": {
		Events: 1000, Threads: 1, Seed: 1, Format: "csv",
		ProgressInterval: 100,
	},
	"production": {
		Events: 1000000, Seed: 12345, Format: "root",
		ProgressInterval: 100000,
	},
	"flux": {
		Events: 10000, Seed: 12345, Format: "root", Flux: true,
		ProgressInterval: 1000,
	},
	"thermal": {
		Events: 10000, Seed: 12345, Format: "arrow",
		MonoEnergy: 2.53e-8, ProgressInterval: 1000,
	},
}

// GetPreset returns the preset applied over the defaults, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return DefaultConfig().Merge(p)
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

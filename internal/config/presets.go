package config

import "sort"

var Presets = map[string]func() *Config{
	"novosibirsk": DefaultConfig,
	"isolation": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "isolation"
		cfg.Params.Contact = 0.5
		return cfg
	},
	"reinfection": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "reinfection"
		cfg.Params.Reinfection = 0.01
		return cfg
	},
	"lethal": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "lethal"
		cfg.Params.Mortality = 0.05
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

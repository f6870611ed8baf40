package engine

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

type yamlConfig struct {
	Debug            bool   `yaml:"debug"`
	Cors             bool   `yaml:"cors"`
	PageNotFoundPath string `yaml:"pageNotFoundPath"`
}

func optionFromConfigBytes(b []byte) (Option, error) {
	var cfg yamlConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return OptionFunc(func(o *Options) {
		o.DebugMode = cfg.Debug
		o.CorsMode = cfg.Cors
		if cfg.PageNotFoundPath != "" {
			o.PageNotFoundPath = cfg.PageNotFoundPath
		}
	}), nil
}

// WithConfig parses YAML bytes following the engine section structure and applies it to Options.
// It panics if the YAML is invalid.
func WithConfig(yamlBytes []byte) Option {
	opt, err := optionFromConfigBytes(yamlBytes)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("engine.WithConfig: %w", err))
		})
	}
	return opt
}

// WithConfigFile loads a YAML file and applies it to Options.
// It panics if the file cannot be read or YAML is invalid.
func WithConfigFile(path string) Option {
	b, err := os.ReadFile(path)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("engine.WithConfigFile(%s): %w", path, err))
		})
	}
	return WithConfig(b)
}

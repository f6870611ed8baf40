package proxy

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

type yamlProxyConfig struct {
	Debug         bool   `yaml:"debug"`
	StripBasePath string `yaml:"stripBasePath"`
}

func optionFromConfigBytes(b []byte) (Option, error) {
	var cfg yamlProxyConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return OptionFunc(func(o *Options) {
		o.DebugMode = cfg.Debug
		if cfg.StripBasePath != "" {
			o.StripBasePath = cfg.StripBasePath
		}
	}), nil
}

// WithConfig parses YAML bytes following the proxy section of bridge.yaml.
// It panics if the YAML is invalid.
func WithConfig(yamlBytes []byte) Option {
	opt, err := optionFromConfigBytes(yamlBytes)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("proxy.WithConfig: %w", err))
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
			panic(fmt.Errorf("proxy.WithConfigFile(%s): %w", path, err))
		})
	}
	return WithConfig(b)
}

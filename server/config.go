package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aura-studio/lambda-bridge/dispatch"
	"github.com/aura-studio/lambda-bridge/engine"
	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/aura-studio/lambda-bridge/proxy"
	"github.com/aura-studio/lambda-bridge/sqs"
	yaml "gopkg.in/yaml.v2"
)

type yamlServerConfig struct {
	Mode           string `yaml:"mode"`
	Address        string `yaml:"address"`
	Timeout        string `yaml:"timeout"`
	DeadlineMargin string `yaml:"deadlineMargin"`
	Debug          bool   `yaml:"debug"`
	Engine         any    `yaml:"engine"`
	Dispatch       any    `yaml:"dispatch"`
	Proxy          any    `yaml:"proxy"`
	Invoke         any    `yaml:"invoke"`
	SQS            any    `yaml:"sqs"`
}

// section re-encodes a nested YAML node so the owning package can parse it.
func section(v any) ([]byte, bool, error) {
	if v == nil {
		return nil, false, nil
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func optionFromConfigBytes(b []byte) (Option, error) {
	var cfg yamlServerConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	var timeout, margin time.Duration
	var err error
	if cfg.Timeout != "" {
		if timeout, err = time.ParseDuration(cfg.Timeout); err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
	}
	if cfg.DeadlineMargin != "" {
		if margin, err = time.ParseDuration(cfg.DeadlineMargin); err != nil {
			return nil, fmt.Errorf("deadlineMargin: %w", err)
		}
	}

	var engineOpt engine.Option
	if s, ok, err := section(cfg.Engine); err != nil {
		return nil, err
	} else if ok {
		engineOpt = engine.WithConfig(s)
	}
	var dispatchOpt dispatch.Option
	if s, ok, err := section(cfg.Dispatch); err != nil {
		return nil, err
	} else if ok {
		dispatchOpt = dispatch.WithConfig(s)
	}
	var proxyOpt proxy.Option
	if s, ok, err := section(cfg.Proxy); err != nil {
		return nil, err
	} else if ok {
		proxyOpt = proxy.WithConfig(s)
	}
	var invokeOpt invoke.Option
	if s, ok, err := section(cfg.Invoke); err != nil {
		return nil, err
	} else if ok {
		invokeOpt = invoke.WithConfig(s)
	}
	var sqsOpt sqs.Option
	if s, ok, err := section(cfg.SQS); err != nil {
		return nil, err
	} else if ok {
		sqsOpt = sqs.WithConfig(s)
	}

	return OptionFunc(func(o *Options) {
		if cfg.Mode != "" {
			o.Mode = cfg.Mode
		}
		if cfg.Address != "" {
			o.Address = cfg.Address
		}
		if timeout > 0 {
			o.Timeout = timeout
		}
		if cfg.DeadlineMargin != "" {
			o.DeadlineMargin = margin
		}
		o.DebugMode = cfg.Debug
		if engineOpt != nil {
			o.Engine = append(o.Engine, engineOpt)
		}
		if dispatchOpt != nil {
			o.Dispatch = append(o.Dispatch, dispatchOpt)
		}
		if proxyOpt != nil {
			o.Proxy = append(o.Proxy, proxyOpt)
		}
		if invokeOpt != nil {
			o.Invoke = append(o.Invoke, invokeOpt)
		}
		if sqsOpt != nil {
			o.SQS = append(o.SQS, sqsOpt)
		}
	}), nil
}

// WithConfig parses YAML bytes following bridge.yaml structure and applies it to Options.
// It panics if the YAML is invalid.
func WithConfig(yamlBytes []byte) Option {
	opt, err := optionFromConfigBytes(yamlBytes)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("server.WithConfig: %w", err))
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
			panic(fmt.Errorf("server.WithConfigFile(%s): %w", path, err))
		})
	}
	return WithConfig(b)
}

// DefaultConfigCandidates returns relative paths that will be checked (in order)
// when searching for a default config.
func DefaultConfigCandidates() []string {
	return []string{
		"bridge.yaml",
		"bridge.yml",
		"lambda.yaml",
		"lambda.yml",
		"config.yaml",
		"config.yml",
	}
}

// FindDefaultConfigFile searches for a config file in the working directory,
// then next to the executable.
func FindDefaultConfigFile() (string, error) {
	candidates := DefaultConfigCandidates()

	dirs := []string{"."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	for _, dir := range dirs {
		for _, rel := range candidates {
			p := rel
			if dir != "." {
				p = filepath.Join(dir, rel)
			}
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("server config not found (expected %v)", candidates)
}

// WithDefaultConfigFile finds and loads the default config file.
// It panics if none is found.
func WithDefaultConfigFile() Option {
	p, err := FindDefaultConfigFile()
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("server.WithDefaultConfigFile: %w", err))
		})
	}
	return WithConfigFile(p)
}

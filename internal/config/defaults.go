package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultHome       = "/plugin"
	DefaultModule     = "plugin"
	DefaultEntryPoint = "run_it"
	DefaultExtension  = ".js"
)

// DefaultSearchPath is the module search path when none is configured.
func DefaultSearchPath() []string {
	return []string{DefaultHome, "/usr/lib/scriptbridge"}
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Interpreter defaults
	v.SetDefault("interpreter.home", DefaultHome)
	v.SetDefault("interpreter.search_path", DefaultSearchPath())
	v.SetDefault("interpreter.module", DefaultModule)
	v.SetDefault("interpreter.entry_point", DefaultEntryPoint)
	v.SetDefault("interpreter.extension", DefaultExtension)
	v.SetDefault("interpreter.memory_limit", 0)
	v.SetDefault("interpreter.max_stack_size", 0)
	v.SetDefault("interpreter.vars", map[string]string{})

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")

	// Host defaults
	v.SetDefault("host.mount", ".")
	v.SetDefault("host.max_memory", 0)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Interpreter: InterpreterConfig{
			Home:       DefaultHome,
			SearchPath: DefaultSearchPath(),
			Module:     DefaultModule,
			EntryPoint: DefaultEntryPoint,
			Extension:  DefaultExtension,
			Vars:       map[string]string{},
		},
		Log:  LogConfig{Level: "info", Format: "human"},
		Host: HostConfig{Mount: "."},
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return out, nil
}

// WriteDefault creates path with the default configuration unless it
// already exists. It reports whether a file was written.
func WriteDefault(fs afero.Fs, path string) (bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if exists {
		return false, nil
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	body, err := Marshal(Default())
	if err != nil {
		return false, err
	}
	header := []byte("# scriptbridge configuration\n")
	if err := afero.WriteFile(fs, path, append(header, body...), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}

	return true, nil
}

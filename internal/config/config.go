// Package config loads scriptbridge settings from a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// File and environment naming.
const (
	FileName  = "scriptbridge"
	FileType  = "yaml"
	EnvPrefix = "SCRIPTBRIDGE"
)

// validate is shared; building a validator caches struct metadata.
var validate = validator.New()

// Config holds all configuration settings.
type Config struct {
	Interpreter InterpreterConfig `mapstructure:"interpreter" yaml:"interpreter" json:"interpreter"`
	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
	Host        HostConfig        `mapstructure:"host" yaml:"host" json:"host"`
}

// InterpreterConfig controls interpreter startup and module resolution.
type InterpreterConfig struct {
	Home         string            `mapstructure:"home" yaml:"home" json:"home" validate:"required" jsonschema:"description=Interpreter home; relative search path entries resolve against it"`
	SearchPath   []string          `mapstructure:"search_path" yaml:"search_path" json:"search_path" validate:"min=1,dive,required" jsonschema:"description=Directories searched for the plugin module in order"`
	Module       string            `mapstructure:"module" yaml:"module" json:"module" validate:"required,excludesall=/\\" jsonschema:"description=Module name without extension"`
	EntryPoint   string            `mapstructure:"entry_point" yaml:"entry_point" json:"entry_point" validate:"required" jsonschema:"description=Exported function called on every invoke"`
	Extension    string            `mapstructure:"extension" yaml:"extension" json:"extension" validate:"required,startswith=." jsonschema:"description=Module source file extension"`
	MemoryLimit  uint32            `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit" jsonschema:"description=Interpreter heap limit in bytes; 0 leaves it unlimited"`
	MaxStackSize uint32            `mapstructure:"max_stack_size" yaml:"max_stack_size" json:"max_stack_size" jsonschema:"description=Interpreter stack limit in bytes; 0 keeps the engine default"`
	Vars         map[string]string `mapstructure:"vars" yaml:"vars" json:"vars" jsonschema:"description=Values scripts read through host.config"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=human json" jsonschema:"enum=human,enum=json"`
}

// HostConfig controls the native runner that hosts guest modules.
type HostConfig struct {
	Mount     string `mapstructure:"mount" yaml:"mount" json:"mount" jsonschema:"description=Host directory mounted at the interpreter home"`
	MaxMemory uint64 `mapstructure:"max_memory" yaml:"max_memory" json:"max_memory" jsonschema:"description=Host-side allocation limit in bytes; 0 is unlimited"`
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	fs    afero.Fs
	file  string
	paths []string
	flags map[string]*pflag.Flag
}

// WithFs reads configuration files from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(l *loader) {
		l.fs = fs
	}
}

// WithFile reads exactly path instead of searching for scriptbridge.yaml.
func WithFile(path string) Option {
	return func(l *loader) {
		l.file = path
	}
}

// WithSearchPaths replaces the directories searched for scriptbridge.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(l *loader) {
		l.paths = paths
	}
}

// WithFlag binds a command-line flag to key. A flag set by the user takes
// precedence over the environment and the file.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(l *loader) {
		if flag == nil {
			return
		}
		if l.flags == nil {
			l.flags = make(map[string]*pflag.Flag)
		}
		l.flags[key] = flag
	}
}

// Load builds the configuration from defaults, the config file, the
// environment and bound flags, in increasing precedence, and validates it.
func Load(opts ...Option) (*Config, error) {
	l := &loader{
		paths: []string{".", DefaultHome, "$HOME/.scriptbridge", "/etc/scriptbridge"},
	}
	for _, opt := range opts {
		opt(l)
	}

	v := viper.New()
	if l.fs != nil {
		v.SetFs(l.fs)
	}

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(FileName) // name of config file (without extension)
		v.SetConfigType(FileType) // config file type
		for _, p := range l.paths {
			v.AddConfigPath(p)
		}
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix) // prefix for env vars
	v.AutomaticEnv()          // read in environment variables that match
	v.SetEnvKeyReplacer(      // replace dots with underscores in env vars
		strings.NewReplacer(".", "_"),
	)

	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("error binding flag %s: %w", flag.Name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if cfg.Interpreter.Vars == nil {
		cfg.Interpreter.Vars = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

package config

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies an empty filesystem yields the defaults.
func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoadFromSearchPath verifies scriptbridge.yaml is found in the interpreter home.
func TestLoadFromSearchPath(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	body := `
interpreter:
  module: counter
  search_path: ["lib", "/opt/scripts"]
  memory_limit: 1048576
  vars:
    greeting: hello
log:
  level: debug
  format: json
`
	require.NoError(t, afero.WriteFile(fs, "/plugin/scriptbridge.yaml", []byte(body), 0o644))

	cfg, err := Load(WithFs(fs))
	require.NoError(t, err)
	assert.Equal(t, "counter", cfg.Interpreter.Module)
	assert.Equal(t, []string{"lib", "/opt/scripts"}, cfg.Interpreter.SearchPath)
	assert.Equal(t, uint32(1048576), cfg.Interpreter.MemoryLimit)
	assert.Equal(t, map[string]string{"greeting": "hello"}, cfg.Interpreter.Vars)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DefaultEntryPoint, cfg.Interpreter.EntryPoint)
}

// TestLoadExplicitFile verifies WithFile reads the named file and fails when it is missing.
func TestLoadExplicitFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/custom.yaml", []byte("interpreter:\n  entry_point: main\n"), 0o644))

	cfg, err := Load(WithFs(fs), WithFile("/cfg/custom.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Interpreter.EntryPoint)

	_, err = Load(WithFs(fs), WithFile("/cfg/missing.yaml"))
	require.Error(t, err)
}

// TestLoadEnvOverride verifies SCRIPTBRIDGE_ variables override the file.
// It sets environment variables and so does not run in parallel.
func TestLoadEnvOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugin/scriptbridge.yaml", []byte("interpreter:\n  module: fromfile\n"), 0o644))

	t.Setenv("SCRIPTBRIDGE_INTERPRETER_MODULE", "fromenv")
	t.Setenv("SCRIPTBRIDGE_INTERPRETER_SEARCH_PATH", "/a,/b")

	cfg, err := Load(WithFs(fs))
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Interpreter.Module)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Interpreter.SearchPath)
}

// TestLoadFlagOverride verifies a changed flag wins over the file.
func TestLoadFlagOverride(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugin/scriptbridge.yaml", []byte("log:\n  level: warn\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))

	cfg, err := Load(WithFs(fs), WithFlag("log.level", flags.Lookup("log-level")))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

// TestLoadValidation verifies invalid values are rejected.
func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"extension without dot", "interpreter:\n  extension: js\n"},
		{"module with path", "interpreter:\n  module: lib/plugin\n"},
		{"empty search path entry", "interpreter:\n  search_path: [\"\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/plugin/scriptbridge.yaml", []byte(tt.body), 0o644))

			_, err := Load(WithFs(fs))
			require.ErrorContains(t, err, "config validation failed")
		})
	}
}

// TestWriteDefault verifies the default file round-trips through Load and is not overwritten.
func TestWriteDefault(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	written, err := WriteDefault(fs, "/etc/scriptbridge/scriptbridge.yaml")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteDefault(fs, "/etc/scriptbridge/scriptbridge.yaml")
	require.NoError(t, err)
	assert.False(t, written)

	cfg, err := Load(WithFs(fs), WithSearchPaths("/etc/scriptbridge"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestSchema verifies the schema describes the configuration sections.
func TestSchema(t *testing.T) {
	t.Parallel()

	out, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "scriptbridge configuration", doc["title"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "interpreter")
	assert.Contains(t, props, "log")
	assert.Contains(t, props, "host")
}

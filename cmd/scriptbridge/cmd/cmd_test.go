package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/internal/plugins"
)

const vowels = `
exports.run_it = function (input) {
  var n = 0;
  for (const ch of input) {
    if ("aeiouAEIOU".indexOf(ch) >= 0) n++;
  }
  return '{"count": ' + n + '}';
};
`

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()

	return buf.String(), err
}

// TestSandboxScopesSearchPath verifies the mount is seen at "/" and paths outside the home are dropped.
func TestSandboxScopesSearchPath(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/srv/plugins/plugin.js", []byte(vowels), 0o644))

	c := config.Default()
	c.Host.Mount = "/srv/plugins"
	c.Interpreter.SearchPath = []string{"/plugin", "/plugin/lib", "vendor", "/usr/lib/scriptbridge"}

	fs, scoped, err := sandbox(base, c)
	require.NoError(t, err)

	assert.Equal(t, "/", scoped.Interpreter.Home)
	assert.Equal(t, []string{"/", "/lib", "vendor"}, scoped.Interpreter.SearchPath)
	assert.Equal(t, config.DefaultHome, c.Interpreter.Home, "input config must not change")

	body, err := afero.ReadFile(fs, "/plugin.js")
	require.NoError(t, err)
	assert.Equal(t, vowels, string(body))

	assert.Error(t, afero.WriteFile(fs, "/new.js", []byte("x"), 0o644))
}

// TestSandboxFallsBackToRoot verifies a search path entirely outside the home still searches the mount.
func TestSandboxFallsBackToRoot(t *testing.T) {
	t.Parallel()

	c := config.Default()
	c.Host.Mount = "/srv"
	c.Interpreter.SearchPath = []string{"/opt/scripts"}

	_, scoped, err := sandbox(afero.NewMemMapFs(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, scoped.Interpreter.SearchPath)
}

// TestGuestEnv verifies the guest environment decodes back to the same configuration.
func TestGuestEnv(t *testing.T) {
	c := config.Default()
	c.Interpreter.MemoryLimit = 1 << 20
	c.Interpreter.MaxStackSize = 256 << 10
	c.Interpreter.SearchPath = []string{"/plugin", "lib", "/usr/share/scripts"}
	c.Interpreter.EntryPoint = "handle"
	c.Log.Level = "debug"
	c.Log.Format = "json"

	for key, value := range guestEnv(c) {
		t.Setenv(key, value)
	}

	loaded, err := config.Load(config.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	assert.Equal(t, c.Interpreter, loaded.Interpreter)
	assert.Equal(t, c.Log, loaded.Log)
}

// TestNativeRunner verifies an in-process plugin answers calls through the kernel.
func TestNativeRunner(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/srv/plugin.js", []byte(vowels), 0o644))

	c := config.Default()
	c.Host.Mount = "/srv"

	r, err := newNativeRunner(context.Background(), base, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	res, err := r.Call([]byte("Hello, World!"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.Status)
	assert.JSONEq(t, `{"count": 3}`, string(res.Output))
	assert.NotEmpty(t, res.CallID)

	again, err := r.Call([]byte("aaa"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 3}`, string(again.Output))
	assert.NotEqual(t, res.CallID, again.CallID)
}

// TestNativeRunnerHostFuncs verifies scripts reach the CLI host functions and report errors.
func TestNativeRunnerHostFuncs(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/srv/plugin.js", []byte(`
exports.run_it = function (input) {
  if (input === "fail") { host.setError("rejected: " + input); return ""; }
  return host.call("echo", input) + " " + host.call("uuid").length;
};
`), 0o644))

	c := config.Default()
	c.Host.Mount = "/srv"

	r, err := newNativeRunner(context.Background(), base, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	res, err := r.Call([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.Status)
	assert.Equal(t, "hi 36", string(res.Output))
	assert.Empty(t, res.Error)

	res, err = r.Call([]byte("fail"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), res.Status)
	assert.Equal(t, "rejected: fail", res.Error)
	assert.Empty(t, r.kernel.Faults())
}

// TestNativeRunnerMissingModule verifies a missing module fails initialization.
func TestNativeRunnerMissingModule(t *testing.T) {
	t.Parallel()

	c := config.Default()
	c.Host.Mount = "/empty"

	_, err := newNativeRunner(context.Background(), afero.NewMemMapFs(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize plugin")
}

type scriptedLines struct {
	lines []string
	errs  []error
}

func (s *scriptedLines) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line, err := s.lines[0], s.errs[0]
	s.lines, s.errs = s.lines[1:], s.errs[1:]

	return line, err
}

type echoInvoker struct {
	calls []string
}

func (e *echoInvoker) Call(input []byte) (plugins.Result, error) {
	e.calls = append(e.calls, string(input))
	if string(input) == "boom" {
		return plugins.Result{}, errors.New("guest trapped")
	}
	if string(input) == "fail" {
		return plugins.Result{Status: 1}, nil
	}

	return plugins.Result{CallID: "id", Output: bytes.ToUpper(input)}, nil
}

func (e *echoInvoker) Close() error { return nil }

// TestREPL verifies every line is one call and errors do not end the session.
func TestREPL(t *testing.T) {
	t.Parallel()

	rl := &scriptedLines{
		lines: []string{"abc", "", "boom", "fail", "xyz"},
		errs:  []error{nil, readline.ErrInterrupt, nil, nil, nil},
	}
	inv := &echoInvoker{}
	var out, status bytes.Buffer

	require.NoError(t, repl(rl, inv, &out, &status))

	assert.Equal(t, []string{"abc", "boom", "fail", "xyz"}, inv.calls)
	assert.Equal(t, "ABC\nXYZ\n", out.String())
	assert.Contains(t, status.String(), "guest trapped")
	assert.Contains(t, status.String(), "status 1")
	assert.Contains(t, status.String(), "bye")
}

// TestREPLExit verifies .exit stops reading.
func TestREPLExit(t *testing.T) {
	t.Parallel()

	rl := &scriptedLines{
		lines: []string{"one", " .exit ", "two"},
		errs:  []error{nil, nil, nil},
	}
	inv := &echoInvoker{}

	require.NoError(t, repl(rl, inv, io.Discard, io.Discard))
	assert.Equal(t, []string{"one"}, inv.calls)
}

// TestStatusLine verifies the summary names the outcome and the call id.
func TestStatusLine(t *testing.T) {
	t.Parallel()

	ok := statusLine(plugins.Result{CallID: "abc-123", Output: []byte("xy")})
	assert.Contains(t, ok, "ok")
	assert.Contains(t, ok, "2 bytes")
	assert.Contains(t, ok, "abc-123")

	failed := statusLine(plugins.Result{CallID: "abc-123", Status: 1, Error: "bad input"})
	assert.Contains(t, failed, "status 1")
	assert.Contains(t, failed, "bad input")
}

// TestCommands drives the command tree end to end. The subtests share
// rootCmd and run sequentially.
func TestCommands(t *testing.T) {
	mount := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mount, "plugin.js"), []byte(vowels), 0o644))

	t.Run("exec", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "exec", "--mount", mount, "--log-level", "error", "--input", "Hello, World!")
		require.NoError(t, err)
		assert.Contains(t, output, `{"count": 3}`)
	})

	t.Run("exec missing entry point", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "exec", "--mount", mount, "--log-level", "error", "--entry-point", "nope", "--input", "x")
		require.ErrorIs(t, err, errFailedStatus)
		assert.Contains(t, output, "status 1")
	})

	t.Run("config show", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "config", "show", "--module", "counter", "--entry-point", "run_it")
		require.NoError(t, err)
		assert.Contains(t, output, "module: counter")
		assert.Contains(t, output, "entry_point: run_it")
	})

	t.Run("config schema", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "config", "schema", "--module", "plugin")
		require.NoError(t, err)
		assert.Contains(t, output, "scriptbridge configuration")
	})

	t.Run("config init", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "scriptbridge.yaml")

		output, err := executeCommand(rootCmd, "config", "init", path)
		require.NoError(t, err)
		assert.Contains(t, output, "created")
		assert.FileExists(t, path)

		output, err = executeCommand(rootCmd, "config", "init", path)
		require.NoError(t, err)
		assert.Contains(t, output, "already exists")
	})

	t.Run("run missing file", func(t *testing.T) {
		_, err := executeCommand(rootCmd, "run", filepath.Join(mount, "missing.wasm"), "--input", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read guest")
	})
}

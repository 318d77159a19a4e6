package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/internal/logging"
	"github.com/andrei-cloud/go_scriptbridge/internal/plugins"
	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
	"github.com/andrei-cloud/go_scriptbridge/pkg/plugin"
)

// invoker runs one request through a plugin.
type invoker interface {
	Call(input []byte) (plugins.Result, error)
	Close() error
}

// nativeRunner hosts the plugin in process with an in-memory kernel.
type nativeRunner struct {
	name     string
	kernel   *hostabi.Kernel
	instance *plugin.Instance
}

// newNativeRunner builds an in-process plugin whose filesystem is the mount
// directory seen at the interpreter home.
func newNativeRunner(ctx context.Context, fs afero.Fs, c *config.Config) (*nativeRunner, error) {
	sandboxed, scoped, err := sandbox(fs, c)
	if err != nil {
		return nil, err
	}

	r := &nativeRunner{name: c.Interpreter.Module}
	r.kernel = hostabi.NewKernel(kernelOptions(
		hostabi.WithMemoryLimit(c.Host.MaxMemory),
		hostabi.WithLogSink(plugins.ForwardLogs(r.name)),
	)...)
	r.instance = plugin.New(r.kernel, scoped,
		plugin.WithContext(ctx),
		plugin.WithFs(sandboxed),
	)

	if err = r.instance.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", r.name, err)
	}

	return r, nil
}

// Call invokes the entry point with input.
func (r *nativeRunner) Call(input []byte) (plugins.Result, error) {
	res := plugins.Result{CallID: uuid.NewString()}
	r.kernel.Reset()
	r.kernel.SetInput(input)

	start := time.Now()
	res.Status = r.instance.Invoke()
	res.Elapsed = time.Since(start)
	res.Logs = r.kernel.Logs()
	res.Error, _ = r.kernel.Error()

	if res.Status == 0 {
		out, err := r.kernel.Output()
		if err != nil {
			return res, fmt.Errorf("read output: %w", err)
		}
		res.Output = out
	}

	logging.LogInvocation(res.CallID, r.name, res.Status, input, res.Output, res.Elapsed)

	return res, nil
}

// Close releases the interpreter.
func (r *nativeRunner) Close() error {
	return r.instance.Close()
}

// sandbox returns a read-only view of the mount directory rooted at "/" and
// a copy of c whose home and search path point into it.
func sandbox(fs afero.Fs, c *config.Config) (afero.Fs, *config.Config, error) {
	mount, err := filepath.Abs(c.Host.Mount)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve mount %q: %w", c.Host.Mount, err)
	}

	scoped := *c
	ic := c.Interpreter
	home := filepath.Clean(ic.Home)

	paths := make([]string, 0, len(ic.SearchPath))
	for _, p := range ic.SearchPath {
		if !filepath.IsAbs(p) {
			paths = append(paths, p)
			continue
		}
		rel, relErr := filepath.Rel(home, p)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		paths = append(paths, filepath.Join("/", rel))
	}
	if len(paths) == 0 {
		paths = []string{"/"}
	}

	ic.Home = "/"
	ic.SearchPath = paths
	scoped.Interpreter = ic

	return afero.NewReadOnlyFs(afero.NewBasePathFs(fs, mount)), &scoped, nil
}

// guestEnv passes the effective configuration to a wasm guest, which reads
// it back through config.Load. Lists are comma separated to match the
// decoder's string to slice hook.
func guestEnv(c *config.Config) map[string]string {
	ic := c.Interpreter
	return map[string]string{
		"SCRIPTBRIDGE_INTERPRETER_HOME":           ic.Home,
		"SCRIPTBRIDGE_INTERPRETER_SEARCH_PATH":    strings.Join(ic.SearchPath, ","),
		"SCRIPTBRIDGE_INTERPRETER_MODULE":         ic.Module,
		"SCRIPTBRIDGE_INTERPRETER_ENTRY_POINT":    ic.EntryPoint,
		"SCRIPTBRIDGE_INTERPRETER_EXTENSION":      ic.Extension,
		"SCRIPTBRIDGE_INTERPRETER_MEMORY_LIMIT":   strconv.FormatUint(uint64(ic.MemoryLimit), 10),
		"SCRIPTBRIDGE_INTERPRETER_MAX_STACK_SIZE": strconv.FormatUint(uint64(ic.MaxStackSize), 10),
		"SCRIPTBRIDGE_LOG_LEVEL":                  c.Log.Level,
		"SCRIPTBRIDGE_LOG_FORMAT":                 c.Log.Format,
	}
}

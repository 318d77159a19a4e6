package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_scriptbridge/internal/config"
	"github.com/andrei-cloud/go_scriptbridge/internal/plugins"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run <plugin.wasm>",
	Short: "Invoke a compiled guest on wazero",
	Long: `Instantiate a scriptbridge guest built for wasip1, call its initialize export
and invoke it once with the given input. The mount directory is visible to the
guest at the interpreter home.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}

		r, err := newWasmRunner(cmd, args[0], cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		return invokeOnce(cmd, r, data)
	},
}

func init() {
	addInputFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// newWasmRunner loads and initializes the guest at path.
func newWasmRunner(cmd *cobra.Command, path string, c *config.Config) (*plugins.Runner, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guest: %w", err)
	}

	mount, err := filepath.Abs(c.Host.Mount)
	if err != nil {
		return nil, fmt.Errorf("resolve mount %q: %w", c.Host.Mount, err)
	}

	r, err := plugins.NewRunner(cmd.Context(), wasm, plugins.RunnerConfig{
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Mount:     mount,
		Home:      c.Interpreter.Home,
		MaxMemory: c.Host.MaxMemory,
		Env:       guestEnv(c),
		Stderr:    cmd.ErrOrStderr(),
		Funcs:     hostFuncs(),
	})
	if err != nil {
		return nil, err
	}

	if err := r.Initialize(); err != nil {
		return nil, errors.Join(err, r.Close())
	}

	return r, nil
}

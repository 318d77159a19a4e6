package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var replWasm string

// replCmd represents the repl command.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Invoke a plugin interactively",
	Long: `Start a prompt where every line is sent to the plugin as one invocation.
The interpreter is initialized once, so script state persists between lines.
Type .exit or press Ctrl-D to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			r   invoker
			err error
		)
		if replWasm != "" {
			r, err = newWasmRunner(cmd, replWasm, cfg)
		} else {
			r, err = newNativeRunner(cmd.Context(), afero.NewOsFs(), cfg)
		}
		if err != nil {
			return err
		}
		defer r.Close()

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          promptStyle.Render(cfg.Interpreter.Module + "> "),
			HistoryFile:     historyFile(),
			HistoryLimit:    1000,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
			Stdin:           io.NopCloser(cmd.InOrStdin()),
			Stdout:          cmd.OutOrStdout(),
			Stderr:          cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize readline: %w", err)
		}
		defer rl.Close()

		return repl(rl, r, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	replCmd.Flags().StringVar(&replWasm, "wasm", "", "run a compiled guest instead of the in-process plugin")
	rootCmd.AddCommand(replCmd)
}

// lineReader is the part of readline the loop uses.
type lineReader interface {
	Readline() (string, error)
}

// repl invokes r with every line read until EOF or .exit.
func repl(rl lineReader, r invoker, out, status io.Writer) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintln(status, dimStyle.Render("bye"))

			return nil
		}
		if err != nil {
			return err
		}

		if strings.TrimSpace(line) == ".exit" {
			return nil
		}

		res, err := r.Call([]byte(line))
		if err != nil {
			_, _ = fmt.Fprintln(status, failStyle.Render("error")+" "+err.Error())

			continue
		}
		printResult(out, status, res)
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".scriptbridge_history")
}
